package dict

import (
	"strings"
	"testing"

	"example.com/rnxgate/internal/gnss"
	"example.com/rnxgate/internal/rinex"
)

func TestDefaultDictionary(t *testing.T) {
	d := Default()
	if d.IsEmpty() {
		t.Fatal("embedded dictionary is empty")
	}
	tests := []struct {
		sys  gnss.Constellation
		code gnss.ObsCode
		want bool
	}{
		{gnss.GPS, "C1C", true},
		{gnss.GPS, "L2W", true},
		{gnss.GPS, "P1", true},
		{gnss.GPS, "C9Z", false},
		{gnss.Galileo, "C8Q", true},
		{gnss.Galileo, "P1", false},
		{gnss.GLONASS, "C3Q", true},
		{gnss.BeiDou, "C2I", true},
		{gnss.SBAS, "C5I", true},
	}
	for _, tc := range tests {
		if got := d.KnownCode(tc.sys, tc.code); got != tc.want {
			t.Errorf("KnownCode(%v, %s) = %v, want %v", tc.sys, tc.code, got, tc.want)
		}
	}
	if !d.KnownSensor("PR") || !d.KnownSensor("ZT") {
		t.Error("standard sensors missing")
	}
	if d.KnownSensor("QQ") {
		t.Error("KnownSensor accepted QQ")
	}
	if len(d.Systems()) != 7 {
		t.Errorf("Systems() = %v", d.Systems())
	}
}

func TestFromFileValidation(t *testing.T) {
	tests := []struct {
		name string
		file File
		want string
	}{
		{
			name: "bad key",
			file: File{Constellations: map[string]ConstellationEntry{"GPS": {}}},
			want: "not a system letter",
		},
		{
			name: "unknown letter",
			file: File{Constellations: map[string]ConstellationEntry{"Q": {}}},
			want: "unknown constellation",
		},
		{
			name: "band out of range",
			file: File{Constellations: map[string]ConstellationEntry{"G": {Bands: []int{0}}}},
			want: "band 0 out of range",
		},
		{
			name: "bad kind",
			file: File{Constellations: map[string]ConstellationEntry{
				"G": {Bands: []int{1}, Codes: []string{"X1C"}},
			}},
			want: "unknown kind",
		},
		{
			name: "undeclared band",
			file: File{Constellations: map[string]ConstellationEntry{
				"G": {Bands: []int{1}, Codes: []string{"C2C"}},
			}},
			want: "band 2 not declared",
		},
		{
			name: "duplicate code",
			file: File{Constellations: map[string]ConstellationEntry{
				"G": {Bands: []int{1}, Codes: []string{"C1C", "C1C"}},
			}},
			want: "duplicate C1C",
		},
		{
			name: "bad legacy length",
			file: File{Constellations: map[string]ConstellationEntry{
				"G": {Legacy: []string{"C1C"}},
			}},
			want: "not a 2-character code",
		},
		{
			name: "bad sensor",
			file: File{Sensors: []string{"PRX"}},
			want: "not a 2-character code",
		},
		{
			name: "duplicate sensor",
			file: File{Sensors: []string{"PR", "PR"}},
			want: "duplicate PR",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromFile(tc.file)
			if err == nil {
				t.Fatal("no error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestFromYAML(t *testing.T) {
	doc := `
constellations:
  G:
    name: GPS
    bands: [1]
    codes: [C1C, L1C]
sensors: [PR]
`
	d, err := FromYAML([]byte(doc))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if !d.KnownCode(gnss.GPS, "C1C") || d.KnownCode(gnss.GPS, "C2C") {
		t.Errorf("codes = %v", d.Codes(gnss.GPS))
	}
	if _, err := FromYAML([]byte("constellations: [")); err == nil {
		t.Error("malformed document accepted")
	}
}

func TestCheck(t *testing.T) {
	h := &rinex.Header{
		ObsCodes: map[gnss.Constellation][]gnss.ObsCode{
			gnss.GPS:     {"C1C", "C9Z"},
			gnss.Galileo: {"C1C"},
		},
		Sensors: []rinex.MetSensor{{Code: "PR"}, {Code: "XX"}},
	}
	findings := Default().Check(h)
	if len(findings) != 2 {
		t.Fatalf("findings = %v", findings)
	}
	if findings[0].String() != "G C9Z: code not in dictionary" {
		t.Errorf("first finding = %q", findings[0])
	}
	if findings[1].String() != "XX: sensor not in dictionary" {
		t.Errorf("second finding = %q", findings[1])
	}
}

func TestCheckUnknownConstellation(t *testing.T) {
	doc := `
constellations:
  G:
    bands: [1]
    codes: [C1C]
`
	d, err := FromYAML([]byte(doc))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	h := &rinex.Header{
		ObsCodes: map[gnss.Constellation][]gnss.ObsCode{
			gnss.GLONASS: {"C1C"},
		},
	}
	findings := d.Check(h)
	if len(findings) != 1 || findings[0].Reason != "constellation not in dictionary" {
		t.Fatalf("findings = %v", findings)
	}
}
