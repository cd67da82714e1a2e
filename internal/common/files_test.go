package common

import (
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want FileClass
		gz   bool
	}{
		{name: "long rinex", in: "STAT00DEU_R_20220010000_01D_30S_MO.rnx", want: ClassRINEX},
		{name: "long crinex gz", in: "STAT00DEU_R_20220010000_01D_30S_MO.crx.gz", want: ClassCRINEX, gz: true},
		{name: "short obs", in: "stat0010.22o", want: ClassRINEX},
		{name: "short nav", in: "brdc0010.22n", want: ClassRINEX},
		{name: "short compact", in: "stat0010.22d", want: ClassCRINEX},
		{name: "short compact gz", in: "stat0010.22d.gz", want: ClassCRINEX, gz: true},
		{name: "uppercase", in: "STAT0010.22D", want: ClassCRINEX},
		{name: "unrelated", in: "notes.txt", want: ClassUnknown},
		{name: "bare gz", in: "dump.gz", want: ClassUnknown, gz: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			class, gz := Classify(tc.in)
			if class != tc.want || gz != tc.gz {
				t.Fatalf("Classify(%q) = %v, %v, want %v, %v", tc.in, class, gz, tc.want, tc.gz)
			}
		})
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "stat0010.22d", want: "stat0010.22o"},
		{in: "stat0010.22d.gz", want: "stat0010.22o"},
		{in: "STAT00DEU.crx", want: "STAT00DEU.rnx"},
		{in: "STAT00DEU.crx.gz", want: "STAT00DEU.rnx"},
		{in: "already.rnx", want: "already.rnx"},
	}
	for _, tc := range tests {
		if got := OutputName(tc.in); got != tc.want {
			t.Errorf("OutputName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJournalAppendRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	j := NewJournal(path)
	if err := j.Append(JournalEntry{Input: "a.crx", Output: "a.rnx", Class: "crinex", Epochs: 12}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Append(JournalEntry{Input: "b.rnx", Error: "unsupported dialect"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	entries, err := ReadJournal(path)
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Output != "a.rnx" || entries[0].Epochs != 12 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Error == "" || entries[1].Ts.IsZero() {
		t.Errorf("second entry = %+v", entries[1])
	}
	if err := j.Append(JournalEntry{}); err == nil {
		t.Error("entry without input accepted")
	}
}
