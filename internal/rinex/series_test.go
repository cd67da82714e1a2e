package rinex

import (
	"errors"
	"sort"
	"testing"
	"time"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
)

func at(min int) time.Time {
	return time.Date(2022, 1, 1, 0, min, 0, 0, time.UTC)
}

func metSeries(t *testing.T, vals map[int]float64) *Series {
	t.Helper()
	s := NewSeries(grammar.Meteo)
	mins := make([]int, 0, len(vals))
	for m := range vals {
		mins = append(mins, m)
	}
	sort.Ints(mins)
	for _, m := range mins {
		if err := s.Insert(Epoch{Time: at(m), System: gnss.TimeUTC}, MetPayload{"PR": vals[m]}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	return s
}

func TestSeriesInsertMonotonic(t *testing.T) {
	s := NewSeries(grammar.Meteo)
	if err := s.Insert(Epoch{Time: at(10)}, MetPayload{"PR": 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// Same timestamp again is allowed; only regressions fail.
	if err := s.Insert(Epoch{Time: at(10)}, MetPayload{"PR": 2}); err != nil {
		t.Fatalf("Insert same epoch: %v", err)
	}
	err := s.Insert(Epoch{Time: at(5)}, MetPayload{"PR": 3})
	var nm *NonMonotonicEpochError
	if !errors.As(err, &nm) {
		t.Fatalf("err = %v, want NonMonotonicEpochError", err)
	}
	if !nm.Prev.Equal(at(10)) || !nm.Next.Equal(at(5)) {
		t.Errorf("prev/next = %v/%v", nm.Prev, nm.Next)
	}
}

func TestSeriesInsertTypeMismatch(t *testing.T) {
	s := NewSeries(grammar.Observation)
	if err := s.Insert(Epoch{Time: at(0)}, MetPayload{"PR": 1}); err == nil {
		t.Fatal("foreign payload type accepted")
	}
}

func TestSeriesLookupFirstLast(t *testing.T) {
	s := metSeries(t, map[int]float64{0: 1, 10: 2, 20: 3})
	if p, ok := s.Lookup(at(10)); !ok || p.(MetPayload)["PR"] != 2 {
		t.Fatalf("Lookup = %v, %v", p, ok)
	}
	if _, ok := s.Lookup(at(15)); ok {
		t.Fatal("Lookup hit between epochs")
	}
	first, _ := s.First()
	last, _ := s.Last()
	if !first.Time.Equal(at(0)) || !last.Time.Equal(at(20)) {
		t.Errorf("first/last = %v/%v", first.Time, last.Time)
	}
}

func TestSeriesRangeAndCursorReset(t *testing.T) {
	s := metSeries(t, map[int]float64{0: 1, 10: 2, 20: 3, 30: 4})
	c := s.Range(at(10), at(20))
	var got []float64
	for {
		e, ok := c.Next()
		if !ok {
			break
		}
		got = append(got, e.Payload.(MetPayload)["PR"])
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("range = %v", got)
	}
	c.Reset()
	if e, ok := c.Next(); !ok || e.Payload.(MetPayload)["PR"] != 2 {
		t.Fatalf("after reset = %v, %v", e, ok)
	}
	if inv := s.Range(at(20), at(10)); func() bool { _, ok := inv.Next(); return ok }() {
		t.Fatal("inverted range yields entries")
	}
}

func TestSeriesMergeDisjointEpochs(t *testing.T) {
	a := metSeries(t, map[int]float64{0: 1, 20: 3})
	b := metSeries(t, map[int]float64{10: 2, 30: 4})
	m, err := a.Merge(b, MergeFailOnConflict)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if m.Len() != 4 {
		t.Fatalf("Len = %d", m.Len())
	}
	for i := 1; i < m.Len(); i++ {
		if m.At(i).Epoch.Time.Before(m.At(i - 1).Epoch.Time) {
			t.Fatal("merged series not chronological")
		}
	}
}

func TestSeriesMergeIdempotent(t *testing.T) {
	a := metSeries(t, map[int]float64{0: 1, 10: 2})
	m, err := a.Merge(a, MergeFailOnConflict)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !m.Equal(a) {
		t.Fatal("self-merge changed content")
	}
}

func TestSeriesMergeConflictPolicies(t *testing.T) {
	a := metSeries(t, map[int]float64{0: 1})
	b := metSeries(t, map[int]float64{0: 99})

	if _, err := a.Merge(b, MergeFailOnConflict); !errors.Is(err, ErrMergeConflict) {
		t.Fatalf("fail-on-conflict err = %v", err)
	}
	m, err := a.Merge(b, MergeLastWins)
	if err != nil {
		t.Fatalf("last-wins: %v", err)
	}
	if m.At(0).Payload.(MetPayload)["PR"] != 99 {
		t.Errorf("last-wins kept %v", m.At(0).Payload)
	}
	m, err = a.Merge(b, MergeFirstWins)
	if err != nil {
		t.Fatalf("first-wins: %v", err)
	}
	if m.At(0).Payload.(MetPayload)["PR"] != 1 {
		t.Errorf("first-wins kept %v", m.At(0).Payload)
	}
}

func TestSeriesMergeUnionDisjointSats(t *testing.T) {
	g01 := gnss.Sat{Sys: gnss.GPS, PRN: 1}
	r05 := gnss.Sat{Sys: gnss.GLONASS, PRN: 5}
	a := NewSeries(grammar.Observation)
	a.Insert(Epoch{Time: at(0)}, &ObsPayload{Sats: map[gnss.Sat]SatObs{g01: {"C1C": {Val: 1}}}})
	b := NewSeries(grammar.Observation)
	b.Insert(Epoch{Time: at(0)}, &ObsPayload{Sats: map[gnss.Sat]SatObs{r05: {"C1C": {Val: 2}}}})

	m, err := a.Merge(b, MergeFailOnConflict)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	p := m.At(0).Payload.(*ObsPayload)
	if len(p.Sats) != 2 {
		t.Fatalf("union sats = %v", p.Sats)
	}

	// Same satellite with differing cells is a genuine conflict.
	c := NewSeries(grammar.Observation)
	c.Insert(Epoch{Time: at(0)}, &ObsPayload{Sats: map[gnss.Sat]SatObs{g01: {"C1C": {Val: 7}}}})
	if _, err := a.Merge(c, MergeFailOnConflict); !errors.Is(err, ErrMergeConflict) {
		t.Fatalf("conflict err = %v", err)
	}
}

func TestSeriesMergeTypeMismatch(t *testing.T) {
	a := NewSeries(grammar.Observation)
	b := NewSeries(grammar.Meteo)
	if _, err := a.Merge(b, MergeLastWins); err == nil {
		t.Fatal("cross-type merge accepted")
	}
}

func TestSeriesFilter(t *testing.T) {
	g01 := gnss.Sat{Sys: gnss.GPS, PRN: 1}
	r05 := gnss.Sat{Sys: gnss.GLONASS, PRN: 5}
	s := NewSeries(grammar.Observation)
	s.Insert(Epoch{Time: at(0)}, &ObsPayload{Sats: map[gnss.Sat]SatObs{
		g01: {"C1C": {Val: 1}, "L1C": {Val: 2}},
		r05: {"C1C": {Val: 3}},
	}})
	s.Insert(Epoch{Time: at(10)}, &ObsPayload{Sats: map[gnss.Sat]SatObs{
		r05: {"C1C": {Val: 4}},
	}})

	gps := s.Filter(func(sat gnss.Sat, _ gnss.ObsCode) bool { return sat.Sys == gnss.GPS })
	if gps.Len() != 1 {
		t.Fatalf("gps epochs = %d, want empty epochs dropped", gps.Len())
	}
	p := gps.At(0).Payload.(*ObsPayload)
	if len(p.Sats) != 1 || len(p.Sats[g01]) != 2 {
		t.Fatalf("filtered payload = %v", p.Sats)
	}

	code := s.Filter(func(_ gnss.Sat, c gnss.ObsCode) bool { return c == "C1C" })
	if code.Len() != 2 {
		t.Fatalf("code filter epochs = %d", code.Len())
	}
	if obs := code.At(0).Payload.(*ObsPayload).Sats[g01]; len(obs) != 1 {
		t.Fatalf("code filter left %v", obs)
	}
}

func TestSeriesDecimate(t *testing.T) {
	s := metSeries(t, map[int]float64{0: 1, 5: 2, 10: 3, 15: 4, 30: 5})
	d := s.Decimate(10 * time.Minute)
	if d.Len() != 3 {
		t.Fatalf("Len = %d, want 3", d.Len())
	}
	want := []float64{1, 3, 5}
	for i, w := range want {
		if got := d.At(i).Payload.(MetPayload)["PR"]; got != w {
			t.Errorf("bucket %d = %v, want %v", i, got, w)
		}
	}
	if s.Len() != 5 {
		t.Error("Decimate mutated receiver")
	}
	if d0 := s.Decimate(0); d0.Len() != s.Len() {
		t.Errorf("zero interval dropped epochs: %d", d0.Len())
	}
}

func TestParseMergePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MergePolicy
		wantErr bool
	}{
		{in: "last-wins", want: MergeLastWins},
		{in: "first-wins", want: MergeFirstWins},
		{in: "fail-on-conflict", want: MergeFailOnConflict},
		{in: "latest", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseMergePolicy(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMergePolicy(%q) err = nil", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseMergePolicy(%q) = %v, %v", tc.in, got, err)
		}
	}
}
