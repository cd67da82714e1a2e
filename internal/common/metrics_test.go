package common

import (
	"strings"
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.SetTotalBytes(400)
	m.AddEpoch(80)
	m.AddEpoch(120)
	m.AddBytes(100)
	m.IncDesync()
	m.Stop()

	s := m.Snapshot()
	if s.Bytes != 300 || s.Epochs != 2 || s.Desyncs != 1 {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.Completion() != 0.75 {
		t.Errorf("Completion = %v, want 0.75", s.Completion())
	}
	if s.Duration <= 0 {
		t.Errorf("Duration = %v", s.Duration)
	}
	if s.ThroughputBytesPerSecond() <= 0 {
		t.Errorf("throughput = %v", s.ThroughputBytesPerSecond())
	}
}

func TestMetricsCompletionClamped(t *testing.T) {
	s := MetricsSnapshot{Bytes: 500, TotalBytes: 400}
	if s.Completion() != 1 {
		t.Errorf("Completion = %v, want clamp to 1", s.Completion())
	}
	if (MetricsSnapshot{Bytes: 10}).Completion() != 0 {
		t.Error("Completion without total must be 0")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KiB"},
		{3 * 1024 * 1024, "3.00 MiB"},
		{5 * 1024 * 1024 * 1024, "5.00 GiB"},
	}
	for _, tc := range tests {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestProgressPrinter(t *testing.T) {
	var sb strings.Builder
	m := NewMetrics()
	m.Start()
	m.AddEpoch(1024)
	stop := StartProgressPrinter(&sb, m, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	stop()
	out := sb.String()
	if !strings.Contains(out, "Processed:") || !strings.Contains(out, "epochs") {
		t.Errorf("progress output = %q", out)
	}
	// stop on a printer that never ticked must not panic
	StartProgressPrinter(&sb, nil, time.Second)()
}
