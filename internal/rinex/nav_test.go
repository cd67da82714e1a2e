package rinex

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
)

// navVals renders orbit fields in the 19-column exponent format.
func navVals(prefix string, vals ...float64) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, v := range vals {
		fmt.Fprintf(&b, "%19.12E", v)
	}
	return b.String()
}

func v3NavGPS(prn int, toc string, crs, sqrtA, week float64) []string {
	head := fmt.Sprintf("G%02d %s", prn, toc)
	return []string{
		navVals(head, 1.1e-4, -2.2e-12, 0),
		navVals("    ", 61, crs, 4.5e-9, 1.2),
		navVals("    ", 2.1e-6, 0.01, 8.3e-6, sqrtA),
		navVals("    ", 518400, 1.5e-7, -1.9, -2.0e-7),
		navVals("    ", 0.95, 221, 2.6, -8.1e-9),
		navVals("    ", -4.9e-10, 1, week, 0),
		navVals("    ", 2, 0, 4.6e-9, 553),
		navVals("    ", 511200, 4),
	}
}

func v3NavGLO(prn int, toc string) []string {
	head := fmt.Sprintf("R%02d %s", prn, toc)
	return []string{
		navVals(head, -1.8e-4, 0, 86370),
		navVals("    ", 12317.3, -1.2, 0, 0),
		navVals("    ", 10210.6, 2.8, 0, 5),
		navVals("    ", 21056.9, 0.9, -2.8e-9, 0),
	}
}

func TestDecodeNavV3Mixed(t *testing.T) {
	lines := []string{
		hl("     3.04           N: GNSS NAV DATA    M: MIXED", "RINEX VERSION / TYPE"),
		hl("", "END OF HEADER"),
	}
	// GPS message first in the file but later in time: grouping restores
	// chronological order.
	lines = append(lines, v3NavGPS(1, "2022 01 01 02 00 00", 61.4, 5153.65, 2190)...)
	lines = append(lines, v3NavGLO(10, "2022 01 01 00 15 00")...)

	_, s := parseText(t, lines)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if !s.At(0).Epoch.Time.Before(s.At(1).Epoch.Time) {
		t.Fatalf("epochs not sorted: %v %v", s.At(0).Epoch.Time, s.At(1).Epoch.Time)
	}

	glo := s.At(0).Payload.(*NavPayload)
	if len(glo.Msgs) != 1 {
		t.Fatalf("glonass msgs = %d", len(glo.Msgs))
	}
	m := glo.Msgs[0]
	if m.Sat != (gnss.Sat{Sys: gnss.GLONASS, PRN: 10}) || m.Kind != grammar.NavKindStateVector {
		t.Fatalf("msg = %+v", m)
	}
	if m.StateVector.Pos[0] != 12317.3*1000 {
		t.Errorf("PosX = %v, want meters", m.StateVector.Pos[0])
	}
	if m.StateVector.FreqNum != 5 {
		t.Errorf("FreqNum = %d", m.StateVector.FreqNum)
	}
	if m.Clock[0] != -1.8e-4 {
		t.Errorf("TauN slot = %v", m.Clock[0])
	}

	gps := s.At(1).Payload.(*NavPayload)
	g := gps.Msgs[0]
	if g.Kind != grammar.NavKindKeplerian || g.Message != "LNAV" {
		t.Fatalf("gps msg = %+v", g)
	}
	if g.Keplerian.Crs != 61.4 || g.Keplerian.SqrtA != 5153.65 {
		t.Errorf("Crs/SqrtA = %v/%v", g.Keplerian.Crs, g.Keplerian.SqrtA)
	}
	if g.Keplerian.Week != 2190 {
		t.Errorf("Week = %d", g.Keplerian.Week)
	}
	wantToc := time.Date(2022, 1, 1, 2, 0, 0, 0, time.UTC)
	if !g.Toc.Equal(wantToc) {
		t.Errorf("Toc = %v", g.Toc)
	}
}

func TestDecodeNavV2GPS(t *testing.T) {
	lines := []string{
		hl("     2.11           NAVIGATION DATA", "RINEX VERSION / TYPE"),
		hl("", "END OF HEADER"),
	}
	head := fmt.Sprintf("%2d %02d %2d %2d %2d %2d%5.1f", 3, 22, 1, 1, 0, 0, 0.0)
	lines = append(lines,
		navVals(head, 2.5e-4, 1.1e-11, 0),
		navVals("   ", 10, 20, 30, 40),
		navVals("   ", 1, 2, 3, 5153.7),
		navVals("   ", 0, 0, 0, 0),
		navVals("   ", 0, 0, 0, 0),
		navVals("   ", 0, 0, 2142, 0),
		navVals("   ", 0, 0, 0, 0),
		navVals("   ", 0, 4),
	)
	h, s := parseText(t, lines)
	if h.System != gnss.GPS {
		t.Fatalf("system = %v", h.System)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
	m := s.At(0).Payload.(*NavPayload).Msgs[0]
	if m.Sat != (gnss.Sat{Sys: gnss.GPS, PRN: 3}) {
		t.Fatalf("sat = %v", m.Sat)
	}
	if m.Keplerian.IODE != 10 || m.Keplerian.SqrtA != 5153.7 || m.Keplerian.Week != 2142 {
		t.Errorf("keplerian = %+v", m.Keplerian)
	}
	if m.Keplerian.FitInt != 4 {
		t.Errorf("FitInt = %v", m.Keplerian.FitInt)
	}
}

func TestDecodeNavBeiDouWeekOffset(t *testing.T) {
	lines := []string{
		hl("     3.04           N: GNSS NAV DATA    M: MIXED", "RINEX VERSION / TYPE"),
		hl("", "END OF HEADER"),
	}
	head := "C06 2022 01 01 00 00 00"
	lines = append(lines,
		navVals(head, 1e-4, 0, 0),
		navVals("    ", 1, 2, 3, 4),
		navVals("    ", 0, 0.01, 0, 5282.6),
		navVals("    ", 0, 0, 0, 0),
		navVals("    ", 0, 0, 0, 0),
		navVals("    ", 0, 0, 834, 0),
		navVals("    ", 0, 0, 0, 0),
		navVals("    ", 0, 0),
	)
	_, s := parseText(t, lines)
	m := s.At(0).Payload.(*NavPayload).Msgs[0]
	if m.Message != "D1" {
		t.Errorf("message = %q", m.Message)
	}
	if m.Keplerian.Week != 834+1356 {
		t.Errorf("Week = %d, want GPS week", m.Keplerian.Week)
	}
	// Raw slots keep the file value for serialization.
	if m.Orbit[4][2] != 834 {
		t.Errorf("raw week slot = %v", m.Orbit[4][2])
	}
}

func TestDecodeNavV4Framed(t *testing.T) {
	lines := []string{
		hl("     4.00           N: GNSS NAV DATA    M: MIXED", "RINEX VERSION / TYPE"),
		hl("", "END OF HEADER"),
		"> EPH G01 LNAV",
	}
	lines = append(lines, v3NavGPS(1, "2022 01 01 00 00 00", 61.4, 5153.65, 2190)[0:]...)
	lines = append(lines,
		"> STO G01 LNAV",
		"    2022 01 01 00 00 00 GPUT               0.000000000000E+00",
		navVals("    ", 2.8e-9, 0, 61440),
	)
	_, s := parseText(t, lines)
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
	p := s.At(0).Payload.(*NavPayload)
	if len(p.Msgs) != 2 {
		t.Fatalf("msgs = %d", len(p.Msgs))
	}
	if p.Msgs[0].RecordType != "EPH" || p.Msgs[0].Kind != grammar.NavKindKeplerian {
		t.Errorf("eph msg = %+v", p.Msgs[0])
	}
	sto := p.Msgs[1]
	if sto.RecordType != "STO" || sto.Kind != grammar.NavKindRaw {
		t.Fatalf("sto msg = %+v", sto)
	}
	if len(sto.RawLines) != 2 {
		t.Errorf("raw lines = %v", sto.RawLines)
	}
}

func TestDecodeNavTruncated(t *testing.T) {
	lines := []string{
		hl("     3.04           N: GNSS NAV DATA    M: MIXED", "RINEX VERSION / TYPE"),
		hl("", "END OF HEADER"),
	}
	lines = append(lines, v3NavGPS(1, "2022 01 01 00 00 00", 61.4, 5153.65, 2190)[:4]...)
	_, _, err := Parse(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	if err == nil {
		t.Fatal("truncated message accepted")
	}
}
