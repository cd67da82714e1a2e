package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/grammar"
	"example.com/rnxgate/internal/rinex"
)

func obsFixture(t *testing.T) (*rinex.Header, *rinex.Series) {
	t.Helper()
	h := &rinex.Header{
		VersionMajor: 3,
		VersionMinor: 4,
		Type:         grammar.Observation,
		System:       gnss.Mixed,
		MarkerName:   "STAT",
	}
	s := rinex.NewSeries(grammar.Observation)
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		p := &rinex.ObsPayload{Sats: map[gnss.Sat]rinex.SatObs{
			{Sys: gnss.GPS, PRN: 1}:     {"C1C": {Val: 2.0e7}, "L1C": {Val: 1.1e8}},
			{Sys: gnss.GLONASS, PRN: 5}: {"C1C": {Val: 1.9e7}},
		}}
		e := rinex.Epoch{Time: base.Add(time.Duration(i) * 30 * time.Second), System: gnss.TimeGPS}
		if err := s.Insert(e, p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	event := rinex.Epoch{
		Time:   base.Add(2 * time.Minute),
		System: gnss.TimeGPS,
		Flag:   rinex.FlagExternalEvent,
	}
	if err := s.Insert(event, &rinex.ObsPayload{EventRecords: []string{"note"}, EventCount: 1}); err != nil {
		t.Fatalf("Insert event: %v", err)
	}
	return h, s
}

func TestBuildSummary(t *testing.T) {
	h, s := obsFixture(t)
	sum, err := BuildSummary(h, s, "")
	if err != nil {
		t.Fatalf("BuildSummary: %v", err)
	}
	if sum.Format != "observation" || sum.System != "Mixed" || sum.Version != "3.04" {
		t.Errorf("Format = %q, System = %q, Version = %q", sum.Format, sum.System, sum.Version)
	}
	if sum.Epochs != 4 || sum.Events != 1 {
		t.Errorf("Epochs = %d, Events = %d", sum.Epochs, sum.Events)
	}
	if sum.First.IsZero() || !sum.Last.After(sum.First) {
		t.Errorf("span = %v .. %v", sum.First, sum.Last)
	}
	want := map[CodeCount]bool{
		{System: "G", Code: "C1C", Count: 3}: true,
		{System: "G", Code: "L1C", Count: 3}: true,
		{System: "R", Code: "C1C", Count: 3}: true,
	}
	if len(sum.Codes) != len(want) {
		t.Fatalf("Codes = %v", sum.Codes)
	}
	for _, c := range sum.Codes {
		if !want[c] {
			t.Errorf("unexpected count %+v", c)
		}
	}
	// Sorted: G before R, C1C before L1C.
	if sum.Codes[0].System != "G" || sum.Codes[0].Code != "C1C" || sum.Codes[2].System != "R" {
		t.Errorf("order = %v", sum.Codes)
	}
}

func TestBuildSummarySensorStats(t *testing.T) {
	h := &rinex.Header{VersionMajor: 2, VersionMinor: 11, Type: grammar.Meteo}
	s := rinex.NewSeries(grammar.Meteo)
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	readings := []rinex.MetPayload{
		{"PR": 1013.4, "TD": 22.5},
		{"PR": 1013.0, "TD": 21.5},
		{"PR": 1012.7},
	}
	for i, p := range readings {
		if err := s.Insert(rinex.Epoch{Time: base.Add(time.Duration(i) * time.Minute)}, p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	sum, err := BuildSummary(h, s, "")
	if err != nil {
		t.Fatalf("BuildSummary: %v", err)
	}
	if len(sum.Sensors) != 2 {
		t.Fatalf("Sensors = %+v", sum.Sensors)
	}
	pr := sum.Sensors[0]
	if pr.Code != "PR" || pr.N != 3 || pr.Min != 1012.7 || pr.Max != 1013.4 {
		t.Errorf("PR stats = %+v", pr)
	}
	td := sum.Sensors[1]
	if td.Code != "TD" || td.N != 2 || td.Mean != 22.0 {
		t.Errorf("TD stats = %+v", td)
	}
}

func TestBuildSummaryWithDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.rnx")
	if err := os.WriteFile(path, []byte("payload\n"), 0644); err != nil {
		t.Fatal(err)
	}
	h, s := obsFixture(t)
	sum, err := BuildSummary(h, s, path)
	if err != nil {
		t.Fatalf("BuildSummary: %v", err)
	}
	if len(sum.Sha256) != 64 || sum.Bytes != 8 {
		t.Errorf("digest = %q, bytes = %d", sum.Sha256, sum.Bytes)
	}
	if _, err := BuildSummary(h, s, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestSummaryJSONRoundTrip(t *testing.T) {
	h, s := obsFixture(t)
	sum, err := BuildSummary(h, s, "")
	if err != nil {
		t.Fatalf("BuildSummary: %v", err)
	}
	path := filepath.Join(t.TempDir(), "summary.json")
	if err := SaveJSON(sum, path); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	loaded, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if loaded.Epochs != sum.Epochs || len(loaded.Codes) != len(sum.Codes) {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSavePDF(t *testing.T) {
	h, s := obsFixture(t)
	sum, err := BuildSummary(h, s, "")
	if err != nil {
		t.Fatalf("BuildSummary: %v", err)
	}
	sum.Sha256 = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	sum.Sensors = []SensorStats{{Code: "PR", N: 3, Min: 1012.7, Max: 1013.4, Mean: 1013.0}}
	for _, lang := range []Language{LangEnglish, LangGerman} {
		out := filepath.Join(t.TempDir(), string(lang)+".pdf")
		if err := SavePDF(sum, lang, out); err != nil {
			t.Fatalf("SavePDF(%s): %v", lang, err)
		}
		info, err := os.Stat(out)
		if err != nil || info.Size() == 0 {
			t.Fatalf("output %s: %v", out, err)
		}
	}
}

func TestQRContent(t *testing.T) {
	sum := Summary{
		Sha256:  "AB12cd34",
		Format:  "observation",
		Version: "3.04",
		First:   time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		Last:    time.Date(2022, 1, 1, 0, 1, 0, 0, time.UTC),
		Epochs:  3,
	}
	content, err := qrContent(sum)
	if err != nil {
		t.Fatalf("qrContent: %v", err)
	}
	want := "sha256:ab12cd34\n" +
		"format:observation 3.04\n" +
		"span:2022-01-01T00:00:00Z/2022-01-01T00:01:00Z\n" +
		"epochs:3"
	if content != want {
		t.Errorf("content = %q, want %q", content, want)
	}

	if _, err := qrContent(Summary{Sha256: "  "}); err == nil {
		t.Error("blank digest accepted")
	}
	if _, err := qrContent(Summary{Sha256: "zzzz"}); err == nil {
		t.Error("non-hex digest accepted")
	}
}

func TestSummaryQR(t *testing.T) {
	png, err := SummaryQR(Summary{Sha256: "ab12cd34", Format: "meteo", Version: "2.11"}, 64)
	if err != nil {
		t.Fatalf("SummaryQR: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("empty PNG")
	}
	if _, err := SummaryQR(Summary{}, 64); err == nil {
		t.Error("summary without digest accepted")
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want Language
		err  bool
	}{
		{in: "", want: LangEnglish},
		{in: "EN", want: LangEnglish},
		{in: "de", want: LangGerman},
		{in: "Deutsch", want: LangGerman},
		{in: "fr", want: LangEnglish, err: true},
	}
	for _, tc := range tests {
		got, err := ParseLanguage(tc.in)
		if got != tc.want || (err != nil) != tc.err {
			t.Errorf("ParseLanguage(%q) = %v, %v", tc.in, got, err)
		}
		if tc.err && !errors.Is(err, ErrUnsupportedLanguage) {
			t.Errorf("ParseLanguage(%q) error = %v", tc.in, err)
		}
	}
}

func TestLocaleKeyParity(t *testing.T) {
	en := locales[LangEnglish]
	if len(en) == 0 {
		t.Fatal("english locale empty")
	}
	for lang, table := range locales {
		if lang == LangEnglish {
			continue
		}
		for key := range en {
			if _, ok := table[key]; !ok {
				t.Errorf("locale %s missing key %s", lang, key)
			}
		}
		for key := range table {
			if _, ok := en[key]; !ok {
				t.Errorf("locale %s has undeclared key %s", lang, key)
			}
		}
	}
}

func TestTranslatorFallback(t *testing.T) {
	de := NewTranslator(LangGerman)
	if de.T("report.title") != "Scan-Bericht" {
		t.Errorf("de title = %q", de.T("report.title"))
	}
	if de.T("no.such.key") != "no.such.key" {
		t.Errorf("missing key = %q", de.T("no.such.key"))
	}
	unknown := NewTranslator("xx")
	if unknown.Lang() != LangEnglish {
		t.Errorf("fallback lang = %q", unknown.Lang())
	}
}
