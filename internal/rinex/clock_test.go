package rinex

import (
	"fmt"
	"strings"
	"testing"
)

func clockLine(recType, name string, y, mo, d, h, mi int, sec float64, vals ...float64) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-2s %-4s %4d %02d %02d %02d %02d%10.6f%3d", recType, name, y, mo, d, h, mi, sec, len(vals))
	b.WriteString("   ")
	var out []string
	for i, v := range vals {
		if i == 2 || (i > 2 && (i-2)%4 == 0) {
			out = append(out, b.String())
			b.Reset()
		}
		fmt.Fprintf(&b, "%19.12E ", v)
	}
	return append(out, b.String())
}

func TestDecodeClock(t *testing.T) {
	lines := []string{
		hl("     3.00           CLOCK DATA", "RINEX VERSION / TYPE"),
		hl("     2    AR    AS", "# / TYPES OF DATA"),
		hl("IGS", "ANALYSIS CENTER"),
		hl("", "END OF HEADER"),
	}
	lines = append(lines, clockLine("AR", "GOLD", 2022, 1, 1, 0, 0, 0, -1.234e-7, 2.5e-11)...)
	lines = append(lines, clockLine("AS", "G01", 2022, 1, 1, 0, 0, 0, 4.577e-4, 1.1e-11)...)
	lines = append(lines, clockLine("AS", "G02", 2022, 1, 1, 0, 5, 0, 4.6e-4, 1.2e-11)...)

	h, s := parseText(t, lines)
	if h.AnalysisCenter != "IGS" {
		t.Errorf("AnalysisCenter = %q", h.AnalysisCenter)
	}
	if len(h.ClockDataTypes) != 2 || h.ClockDataTypes[0] != "AR" {
		t.Errorf("ClockDataTypes = %v", h.ClockDataTypes)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	p := s.At(0).Payload.(*ClockPayload)
	if len(p.Records) != 2 {
		t.Fatalf("records at first epoch = %d", len(p.Records))
	}
	ar := p.Records[0]
	if ar.RecordType != "AR" || ar.Name != "GOLD" || len(ar.Values) != 2 {
		t.Fatalf("AR record = %+v", ar)
	}
	if ar.Values[0] != -1.234e-7 {
		t.Errorf("bias = %v", ar.Values[0])
	}
	as := p.Records[1]
	if as.RecordType != "AS" || as.Name != "G01" || as.Values[0] != 4.577e-4 {
		t.Errorf("AS record = %+v", as)
	}
}

func TestDecodeClockContinuation(t *testing.T) {
	lines := []string{
		hl("     3.00           CLOCK DATA", "RINEX VERSION / TYPE"),
		hl("     1    AR", "# / TYPES OF DATA"),
		hl("", "END OF HEADER"),
	}
	lines = append(lines, clockLine("AR", "USN7", 2022, 1, 1, 0, 0, 0, 1, 2, 3, 4, 5, 6)...)
	_, s := parseText(t, lines)
	rec := s.At(0).Payload.(*ClockPayload).Records[0]
	if len(rec.Values) != 6 {
		t.Fatalf("values = %v", rec.Values)
	}
	for i, want := range []float64{1, 2, 3, 4, 5, 6} {
		if rec.Values[i] != want {
			t.Fatalf("values[%d] = %v", i, rec.Values[i])
		}
	}
}

func TestDecodeClockErrors(t *testing.T) {
	base := []string{
		hl("     3.00           CLOCK DATA", "RINEX VERSION / TYPE"),
		hl("     1    AS", "# / TYPES OF DATA"),
		hl("", "END OF HEADER"),
	}
	t.Run("unknown record type", func(t *testing.T) {
		lines := append(append([]string(nil), base...),
			"XX G01  2022 01 01 00 00  0.000000  1   "+fmt.Sprintf("%19.12E", 1.0))
		if _, _, err := Parse(strings.NewReader(strings.Join(lines, "\n") + "\n")); err == nil {
			t.Fatal("unknown record type accepted")
		}
	})
	t.Run("truncated values", func(t *testing.T) {
		rec := clockLine("AS", "G01", 2022, 1, 1, 0, 0, 0, 1, 2, 3, 4, 5, 6)
		lines := append(append([]string(nil), base...), rec[0])
		if _, _, err := Parse(strings.NewReader(strings.Join(lines, "\n") + "\n")); err == nil {
			t.Fatal("truncated record accepted")
		}
	})
}
