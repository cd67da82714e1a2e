package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rnxd.toml")
	doc := `
watch_dirs = ["in1", "in2"]
output_dir = "converted"
settle_ms = 250

[logs]
max_size_mb = 10
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(cfg.WatchDirs) != 2 || cfg.OutputDir != "converted" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.settle() != 250*time.Millisecond {
		t.Errorf("settle = %s", cfg.settle())
	}
	if cfg.Journal != filepath.Join("converted", "journal.ndjson") {
		t.Errorf("journal = %q", cfg.Journal)
	}
	if cfg.Logs.MaxSizeMB != 10 || cfg.Logs.MaxAgeDays != 7 {
		t.Errorf("logs = %+v", cfg.Logs)
	}
}

func TestLoadConfigRejectsEmptyWatchList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rnxd.toml")
	if err := os.WriteFile(path, []byte("output_dir = \"out\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("empty watch_dirs accepted")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rnxd.toml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "watch_dirs") || !strings.Contains(text, "# ") {
		t.Errorf("default config missing commented fields:\n%s", text)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("reload default: %v", err)
	}
	if cfg.SettleMS != 500 {
		t.Errorf("settle_ms = %d", cfg.SettleMS)
	}
	if err := writeDefaultConfig(path); err == nil {
		t.Fatal("overwrote existing config")
	}
}
