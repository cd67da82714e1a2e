package rinex

import (
	"testing"
	"time"

	"example.com/rnxgate/internal/gnss"
)

func TestDecodeMetV2(t *testing.T) {
	lines := []string{
		hl("     2.11           METEOROLOGICAL DATA", "RINEX VERSION / TYPE"),
		hl("     3    PR    TD    HR", "# / TYPES OF OBSERV"),
		hl("", "END OF HEADER"),
		" 22  1  1  0  0  0 1013.4   22.5   45.0",
		" 22  1  1  0 30  0 1013.1   22.1   46.5",
	}
	_, s := parseText(t, lines)
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
	p := s.At(0).Payload.(MetPayload)
	if p["PR"] != 1013.4 || p["TD"] != 22.5 || p["HR"] != 45.0 {
		t.Fatalf("payload = %v", p)
	}
	want := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	if !s.At(0).Epoch.Time.Equal(want) || s.At(0).Epoch.System != gnss.TimeUTC {
		t.Errorf("epoch = %+v", s.At(0).Epoch)
	}
}

func TestDecodeMetContinuation(t *testing.T) {
	// Ten sensors force a continuation line after the eighth value.
	sensors := "    10    PR    TD    HR    ZW    ZD    ZT    WD    WS    RI    HI"
	lines := []string{
		hl("     3.03           METEOROLOGICAL DATA", "RINEX VERSION / TYPE"),
		hl(sensors, "# / TYPES OF OBSERV"),
		hl("", "END OF HEADER"),
		" 2022 01 01 00 00 00 1013.4   22.5   45.0    1.1    2.2    3.3  270.0    4.4",
		"        5.5    0.0",
	}
	_, s := parseText(t, lines)
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
	p := s.At(0).Payload.(MetPayload)
	if len(p) != 10 {
		t.Fatalf("values = %v", p)
	}
	if p["WD"] != 270.0 || p["RI"] != 5.5 || p["HI"] != 0.0 {
		t.Errorf("continuation values = %v", p)
	}
}

func TestDecodeMetMissingValue(t *testing.T) {
	lines := []string{
		hl("     2.11           METEOROLOGICAL DATA", "RINEX VERSION / TYPE"),
		hl("     3    PR    TD    HR", "# / TYPES OF OBSERV"),
		hl("", "END OF HEADER"),
		" 22  1  1  0  0  0 1013.4          45.0",
	}
	_, s := parseText(t, lines)
	p := s.At(0).Payload.(MetPayload)
	if _, ok := p["TD"]; ok {
		t.Fatalf("blank sensor value decoded: %v", p)
	}
	if p["PR"] != 1013.4 || p["HR"] != 45.0 {
		t.Errorf("payload = %v", p)
	}
}

func TestMetFilterAndEqual(t *testing.T) {
	a := MetPayload{"PR": 1013.4, "TD": 22.5}
	b := MetPayload{"PR": 1013.4, "TD": 22.5}
	if !a.equal(b) {
		t.Fatal("equal payloads differ")
	}
	p, ok := a.filter(func(_ gnss.Sat, code gnss.ObsCode) bool { return code == "PR" })
	if !ok || len(p.(MetPayload)) != 1 {
		t.Fatalf("filter = %v", p)
	}
	if _, ok := a.filter(func(gnss.Sat, gnss.ObsCode) bool { return false }); ok {
		t.Fatal("empty filter result kept")
	}
}
