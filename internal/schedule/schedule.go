// Package schedule picks randomized polling intervals from a time-of-day table.
package schedule

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultTimezone is the operating timezone used when none is configured.
const DefaultTimezone = "America/Los_Angeles"

// Bucket maps the local hours [StartHour, EndHour) to an inclusive wait range
// in minutes. A bucket whose StartHour is greater than its EndHour wraps past
// midnight.
type Bucket struct {
	Name       string `mapstructure:"name" validate:"required"`
	StartHour  int    `mapstructure:"start_hour" validate:"min=0,max=23"`
	EndHour    int    `mapstructure:"end_hour" validate:"min=0,max=24"`
	MinMinutes int    `mapstructure:"min_minutes" validate:"min=0"`
	MaxMinutes int    `mapstructure:"max_minutes" validate:"gtefield=MinMinutes"`
	// CarryOver splits a wait that would run past EndHour: sleep until the
	// boundary, then resample from the following bucket.
	CarryOver bool `mapstructure:"carry_over"`
}

// Contains reports whether hour (0-23) falls inside the bucket.
func (b Bucket) Contains(hour int) bool {
	if b.StartHour < b.EndHour {
		return hour >= b.StartHour && hour < b.EndHour
	}
	return hour >= b.StartHour || hour < b.EndHour
}

// DefaultBuckets returns the built-in schedule: slow at night, fastest in the
// early morning and evening when new jobs tend to post.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Name: "night", StartHour: 21, EndHour: 5, MinMinutes: 90, MaxMinutes: 270, CarryOver: true},
		{Name: "early-morning", StartHour: 5, EndHour: 9, MinMinutes: 5, MaxMinutes: 25},
		{Name: "late-morning", StartHour: 9, EndHour: 12, MinMinutes: 5, MaxMinutes: 25},
		{Name: "midday", StartHour: 12, EndHour: 18, MinMinutes: 2, MaxMinutes: 8},
		{Name: "evening", StartHour: 18, EndHour: 21, MinMinutes: 2, MaxMinutes: 8},
	}
}

// Rand is the randomness source used for sampling. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Scheduler computes adaptive wait durations.
type Scheduler struct {
	buckets []Bucket
	loc     *time.Location
	rng     Rand
	logger  *zap.SugaredLogger
}

// New returns a Scheduler over buckets. Every hour of the day must be covered
// by exactly one bucket. A nil rng uses the math/rand/v2 global source.
func New(buckets []Bucket, loc *time.Location, rng Rand, logger *zap.SugaredLogger) (*Scheduler, error) {
	if err := CheckCoverage(buckets); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if rng == nil {
		rng = globalRand{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scheduler{buckets: buckets, loc: loc, rng: rng, logger: logger}, nil
}

// CheckCoverage verifies that each hour 0-23 belongs to exactly one bucket.
func CheckCoverage(buckets []Bucket) error {
	if len(buckets) == 0 {
		return errors.New("schedule has no buckets")
	}
	for hour := 0; hour < 24; hour++ {
		matches := 0
		for _, b := range buckets {
			if b.Contains(hour) {
				matches++
			}
		}
		switch {
		case matches == 0:
			return errors.Newf("schedule does not cover hour %d", hour)
		case matches > 1:
			return errors.Newf("schedule buckets overlap at hour %d", hour)
		}
	}
	return nil
}

// Location returns the timezone the schedule is evaluated in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Buckets returns the schedule table.
func (s *Scheduler) Buckets() []Bucket {
	return s.buckets
}

// BucketFor returns the bucket governing now in the scheduler's timezone.
func (s *Scheduler) BucketFor(now time.Time) Bucket {
	hour := now.In(s.loc).Hour()
	for _, b := range s.buckets {
		if b.Contains(hour) {
			return b
		}
	}
	// unreachable after CheckCoverage
	return s.buckets[len(s.buckets)-1]
}

// WaitSeconds returns the number of seconds to wait before the next poll.
func (s *Scheduler) WaitSeconds(now time.Time) int {
	return s.waitSeconds(now.In(s.loc), 0)
}

// Wait is WaitSeconds as a time.Duration.
func (s *Scheduler) Wait(now time.Time) time.Duration {
	return time.Duration(s.WaitSeconds(now)) * time.Second
}

func (s *Scheduler) waitSeconds(now time.Time, depth int) int {
	b := s.BucketFor(now)
	sampled := s.sample(b)

	s.logger.Infow("Scheduled wait",
		"bucket", b.Name,
		"local_time", now.Format("03:04 PM"),
		"range_minutes", fmt.Sprintf("%d-%d", b.MinMinutes, b.MaxMinutes),
		"seconds", sampled)

	if !b.CarryOver || depth >= len(s.buckets) {
		return sampled
	}

	boundary := nextBoundary(now, b.EndHour)
	remaining := int(boundary.Sub(now) / time.Second)
	if sampled <= remaining {
		return sampled
	}

	s.logger.Infow("Wait would cross bucket boundary, splitting",
		"bucket", b.Name,
		"boundary", boundary.Format("03:04 PM"),
		"seconds_until_boundary", remaining)

	return remaining + s.waitSeconds(boundary, depth+1)
}

// sample draws a uniform number of seconds in [MinMinutes*60, MaxMinutes*60].
func (s *Scheduler) sample(b Bucket) int {
	lo := b.MinMinutes * 60
	hi := b.MaxMinutes * 60
	return lo + s.rng.IntN(hi-lo+1)
}

// nextBoundary returns the first time strictly after now whose local hour is
// endHour on the hour.
func nextBoundary(now time.Time, endHour int) time.Time {
	y, m, d := now.Date()
	boundary := time.Date(y, m, d, endHour, 0, 0, 0, now.Location())
	if !boundary.After(now) {
		boundary = time.Date(y, m, d+1, endHour, 0, 0, 0, now.Location())
	}
	return boundary
}
