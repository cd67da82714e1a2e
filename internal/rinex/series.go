package rinex

import (
	"fmt"
	"sort"
	"time"

	"example.com/rnxgate/internal/grammar"
)

// MergePolicy decides what happens when two containers hold differing
// payload content for the same epoch.
type MergePolicy int

const (
	MergeFailOnConflict MergePolicy = iota
	MergeLastWins
	MergeFirstWins
)

func (p MergePolicy) String() string {
	switch p {
	case MergeLastWins:
		return "last-wins"
	case MergeFirstWins:
		return "first-wins"
	case MergeFailOnConflict:
		return "fail-on-conflict"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParseMergePolicy resolves a policy flag value.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "last-wins":
		return MergeLastWins, nil
	case "first-wins":
		return MergeFirstWins, nil
	case "fail-on-conflict":
		return MergeFailOnConflict, nil
	}
	return MergeFailOnConflict, fmt.Errorf("unknown merge policy %q", s)
}

// Entry pairs an epoch key with its payload.
type Entry struct {
	Epoch   Epoch
	Payload Payload
}

// Series is the epoch time-series container: entries in chronological
// order, one payload variant per file type. Construction from a single
// file is append-only; Merge, Filter and Decimate derive new containers
// and never mutate their receivers. The container is not internally
// synchronized: concurrent readers are safe, writers need external
// exclusion.
type Series struct {
	ftype   grammar.FileType
	entries []Entry
}

// NewSeries returns an empty container for the given file type.
func NewSeries(t grammar.FileType) *Series {
	return &Series{ftype: t}
}

// FileType returns the payload variant the container holds.
func (s *Series) FileType() grammar.FileType {
	return s.ftype
}

// Len returns the number of epochs.
func (s *Series) Len() int {
	return len(s.entries)
}

// At returns the i-th entry in chronological order.
func (s *Series) At(i int) Entry {
	return s.entries[i]
}

// Insert appends an epoch. Construction is append-only: an epoch that
// precedes the last inserted one fails with NonMonotonicEpochError.
func (s *Series) Insert(e Epoch, p Payload) error {
	if p != nil && p.Type() != s.ftype {
		return fmt.Errorf("%s payload inserted into %s series", p.Type(), s.ftype)
	}
	if n := len(s.entries); n > 0 && e.Time.Before(s.entries[n-1].Epoch.Time) {
		return &NonMonotonicEpochError{Prev: s.entries[n-1].Epoch.Time, Next: e.Time}
	}
	s.entries = append(s.entries, Entry{Epoch: e, Payload: p})
	return nil
}

// Lookup returns the payload stored at exactly t.
func (s *Series) Lookup(t time.Time) (Payload, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Epoch.Time.Before(t)
	})
	if i < len(s.entries) && s.entries[i].Epoch.Time.Equal(t) {
		return s.entries[i].Payload, true
	}
	return nil, false
}

// First returns the earliest epoch key.
func (s *Series) First() (Epoch, bool) {
	if len(s.entries) == 0 {
		return Epoch{}, false
	}
	return s.entries[0].Epoch, true
}

// Last returns the latest epoch key.
func (s *Series) Last() (Epoch, bool) {
	if len(s.entries) == 0 {
		return Epoch{}, false
	}
	return s.entries[len(s.entries)-1].Epoch, true
}

// Cursor is a restartable chronological iterator over a window of a
// Series. The zero position is before the first entry.
type Cursor struct {
	s        *Series
	from, to int
	pos      int
}

// Next advances the cursor and returns the entry it lands on.
func (c *Cursor) Next() (Entry, bool) {
	if c.s == nil || c.from+c.pos >= c.to {
		return Entry{}, false
	}
	e := c.s.entries[c.from+c.pos]
	c.pos++
	return e, true
}

// Reset rewinds the cursor to the start of its window.
func (c *Cursor) Reset() {
	c.pos = 0
}

// Epochs iterates the whole container chronologically.
func (s *Series) Epochs() *Cursor {
	return &Cursor{s: s, from: 0, to: len(s.entries)}
}

// Range iterates the entries with from <= epoch <= to. The window is
// empty when from is after to or nothing overlaps.
func (s *Series) Range(from, to time.Time) *Cursor {
	if from.After(to) {
		return &Cursor{}
	}
	lo := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Epoch.Time.Before(from)
	})
	hi := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Epoch.Time.After(to)
	})
	return &Cursor{s: s, from: lo, to: hi}
}

// Merge combines two containers of the same file type under the given
// policy. Epochs present in only one side carry over; shared epochs
// with equal content collapse; shared epochs with disjoint sub-payloads
// union without conflict; genuinely conflicting content is resolved by
// the policy or fails with ErrMergeConflict.
func (s *Series) Merge(other *Series, policy MergePolicy) (*Series, error) {
	if other == nil {
		other = NewSeries(s.ftype)
	}
	if s.ftype != other.ftype {
		return nil, fmt.Errorf("cannot merge %s series with %s series", s.ftype, other.ftype)
	}
	out := NewSeries(s.ftype)
	i, j := 0, 0
	for i < len(s.entries) || j < len(other.entries) {
		switch {
		case j >= len(other.entries):
			out.entries = append(out.entries, s.entries[i])
			i++
		case i >= len(s.entries):
			out.entries = append(out.entries, other.entries[j])
			j++
		case s.entries[i].Epoch.Time.Before(other.entries[j].Epoch.Time):
			out.entries = append(out.entries, s.entries[i])
			i++
		case other.entries[j].Epoch.Time.Before(s.entries[i].Epoch.Time):
			out.entries = append(out.entries, other.entries[j])
			j++
		default:
			merged, err := resolve(s.entries[i], other.entries[j], policy)
			if err != nil {
				return nil, err
			}
			out.entries = append(out.entries, merged)
			i++
			j++
		}
	}
	return out, nil
}

func resolve(a, b Entry, policy MergePolicy) (Entry, error) {
	if a.Payload.equal(b.Payload) {
		return a, nil
	}
	if u, ok := a.Payload.union(b.Payload); ok {
		return Entry{Epoch: a.Epoch, Payload: u}, nil
	}
	switch policy {
	case MergeLastWins:
		return b, nil
	case MergeFirstWins:
		return a, nil
	}
	return Entry{}, fmt.Errorf("%w at %s", ErrMergeConflict, a.Epoch.Time.Format(time.RFC3339Nano))
}

// Filter derives a container holding only the sub-payloads the
// predicate matches. Epochs left empty are dropped.
func (s *Series) Filter(pred Predicate) *Series {
	out := NewSeries(s.ftype)
	for _, e := range s.entries {
		if p, ok := e.Payload.filter(pred); ok {
			out.entries = append(out.entries, Entry{Epoch: e.Epoch, Payload: p})
		}
	}
	return out
}

// Decimate derives a container keeping only the first epoch in each
// interval bucket.
func (s *Series) Decimate(interval time.Duration) *Series {
	out := NewSeries(s.ftype)
	if interval <= 0 {
		out.entries = append(out.entries, s.entries...)
		return out
	}
	var last time.Time
	have := false
	for _, e := range s.entries {
		bucket := e.Epoch.Time.Truncate(interval)
		if have && bucket.Equal(last) {
			continue
		}
		out.entries = append(out.entries, e)
		last = bucket
		have = true
	}
	return out
}

// Equal reports whether two containers hold the same epochs with the
// same payload content.
func (s *Series) Equal(other *Series) bool {
	if other == nil || s.ftype != other.ftype || len(s.entries) != len(other.entries) {
		return false
	}
	for i := range s.entries {
		a, b := s.entries[i], other.entries[i]
		if !a.Epoch.Time.Equal(b.Epoch.Time) || a.Epoch.Flag != b.Epoch.Flag {
			return false
		}
		if !a.Payload.equal(b.Payload) {
			return false
		}
	}
	return true
}
