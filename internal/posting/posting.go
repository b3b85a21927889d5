// Package posting holds the scraped job rows and the set arithmetic used to
// decide which rows are new since the previous scrape.
package posting

import "strings"

// Delimiter joins a posting's fields into its canonical text.
const Delimiter = " | "

// Posting is one row of the available-jobs table. Two postings built from the
// same ordered fields are equal.
type Posting struct {
	fields []string
	text   string
	row    int
}

// New builds a Posting from the row's cell values. Fields are trimmed. The
// table row is unknown until set with AtRow.
func New(fields ...string) Posting {
	cleaned := make([]string, len(fields))
	for i, f := range fields {
		cleaned[i] = strings.TrimSpace(f)
	}
	return Posting{fields: cleaned, text: strings.Join(cleaned, Delimiter), row: -1}
}

// AtRow returns a copy of p located at data row i of the scraped table.
// Duplicate rows count, so i can exceed the posting's position in a Set.
func (p Posting) AtRow(i int) Posting {
	p.row = i
	return p
}

// Row returns the data row the posting was scraped from, or -1 if unknown.
func (p Posting) Row() int {
	return p.row
}

// Text returns the canonical text used for equality.
func (p Posting) Text() string {
	return p.text
}

func (p Posting) String() string {
	return p.text
}

// Fields returns a copy of the posting's fields.
func (p Posting) Fields() []string {
	out := make([]string, len(p.fields))
	copy(out, p.fields)
	return out
}

// Field returns field i, or "" if the row has fewer fields.
func (p Posting) Field(i int) string {
	if i < 0 || i >= len(p.fields) {
		return ""
	}
	return p.fields[i]
}

// Equal reports whether p and other have the same canonical text. The row is
// not compared.
func (p Posting) Equal(other Posting) bool {
	return p.text == other.text
}

// Set is the collection of unique postings seen in one scrape. Iteration
// follows the order postings were added, which is the table order.
type Set struct {
	items []Posting
	index map[string]int
}

// NewSet builds a Set, dropping duplicates after their first occurrence.
func NewSet(postings ...Posting) Set {
	s := Set{index: make(map[string]int, len(postings))}
	for _, p := range postings {
		s.add(p)
	}
	return s
}

func (s *Set) add(p Posting) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[p.text]; ok {
		return
	}
	s.index[p.text] = len(s.items)
	s.items = append(s.items, p)
}

// Len returns the number of postings.
func (s Set) Len() int {
	return len(s.items)
}

// IsEmpty reports whether the set has no postings.
func (s Set) IsEmpty() bool {
	return len(s.items) == 0
}

// Contains reports whether p is in the set.
func (s Set) Contains(p Posting) bool {
	_, ok := s.index[p.text]
	return ok
}

// IndexOf returns p's position in table order, or -1.
func (s Set) IndexOf(p Posting) int {
	if i, ok := s.index[p.text]; ok {
		return i
	}
	return -1
}

// Postings returns the postings in table order.
func (s Set) Postings() []Posting {
	out := make([]Posting, len(s.items))
	copy(out, s.items)
	return out
}

// Texts returns the canonical text of each posting in table order.
func (s Set) Texts() []string {
	out := make([]string, len(s.items))
	for i, p := range s.items {
		out[i] = p.text
	}
	return out
}

// Diff splits curr against prev: fresh holds postings absent from prev,
// still holds postings present in both. Both keep curr's order and together
// cover every posting in curr.
func Diff(prev, curr Set) (fresh, still Set) {
	fresh = NewSet()
	still = NewSet()
	for _, p := range curr.items {
		if prev.Contains(p) {
			still.add(p)
		} else {
			fresh.add(p)
		}
	}
	return fresh, still
}

// Snapshot is the result of one scrape. EmptyConfirmed is set only when the
// page showed an explicit "no jobs" indicator.
type Snapshot struct {
	Postings       Set
	EmptyConfirmed bool
}

// AcceptOutcome is how the portal answered an acceptance.
type AcceptOutcome int

const (
	// Accepted means the portal confirmed the job is ours.
	Accepted AcceptOutcome = iota + 1
	// NoLongerAvailable means someone else took the job first.
	NoLongerAvailable
)

func (o AcceptOutcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case NoLongerAvailable:
		return "no longer available"
	default:
		return "unknown"
	}
}
