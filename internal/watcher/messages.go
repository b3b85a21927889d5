package watcher

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/jonathan/jobwatch/internal/failure"
	"github.com/jonathan/jobwatch/internal/posting"
)

func postingsMessage(heading string, set posting.Set) string {
	return heading + "\n\n" + strings.Join(set.Texts(), "\n\n")
}

func newPostingsMessage(set posting.Set) string {
	return postingsMessage("New job(s) posted:", set)
}

func stillAvailableMessage(set posting.Set) string {
	return postingsMessage("Still available:", set)
}

func skippedMessage(job posting.Posting, reason string) string {
	return fmt.Sprintf("Skipped auto-accept (%s):\n\n%s", reason, job.Text())
}

func acceptOutcomeMessage(job posting.Posting, outcome posting.AcceptOutcome) string {
	switch outcome {
	case posting.Accepted:
		return "Accepted job:\n\n" + job.Text()
	case posting.NoLongerAvailable:
		return "Tried to accept, but the job is no longer available:\n\n" + job.Text()
	default:
		return fmt.Sprintf("Accept finished with outcome %s:\n\n%s", outcome, job.Text())
	}
}

// shutdownMessage leads with the failure that stopped the bot, so the part
// that survives truncation is the most recent.
func shutdownMessage(err error) string {
	switch failure.KindOf(err) {
	case failure.FatalConfig:
		return fmt.Sprintf("Job bot stopped: configuration error. Fix the setup and restart.\n\n%v", err)
	case failure.Exhausted:
		return exhaustedMessage(err)
	default:
		return fmt.Sprintf("Job bot stopped: unexpected error.\n\n%v", err)
	}
}

func exhaustedMessage(err error) string {
	var fe *failure.Error
	if !errors.As(err, &fe) {
		return fmt.Sprintf("Job bot stopped after repeated failures.\n\n%v", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job bot stopped after repeated failures during %s.\n\n", fe.Op))
	sb.WriteString(fmt.Sprintf("Last error: %s", oneLine(lastFailure(err))))

	if len(fe.Attempts) > 0 {
		sb.WriteString("\n\nAttempts, newest first:")
		for i := len(fe.Attempts) - 1; i >= 0; i-- {
			sb.WriteString("\n" + oneLine(fe.Attempts[i]))
		}
	} else {
		sb.WriteString(fmt.Sprintf("\n\n%v", err))
	}
	return sb.String()
}

// lastFailure descends through nested exhaustion to the error that ended the
// final attempt.
func lastFailure(err error) string {
	for {
		var fe *failure.Error
		if !errors.As(err, &fe) || fe.Kind != failure.Exhausted || fe.Cause == nil {
			return err.Error()
		}
		err = fe.Cause
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " / ")), " ")
}
