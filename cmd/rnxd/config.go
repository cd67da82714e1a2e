package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

type logConfig struct {
	Directory  string `mapstructure:"directory" toml:"directory" comment:"log directory (default <output_dir>/logs)"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb" comment:"rotate after this many megabytes"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days" comment:"delete rotated logs older than this many days"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" comment:"keep at most this many rotated logs"`
	Compress   bool   `mapstructure:"compress" toml:"compress" comment:"gzip rotated logs"`
}

type config struct {
	WatchDirs []string  `mapstructure:"watch_dirs" toml:"watch_dirs" comment:"directories watched for arriving CRINEX and gzip files"`
	OutputDir string    `mapstructure:"output_dir" toml:"output_dir" comment:"directory converted plain-RINEX files are written to"`
	Journal   string    `mapstructure:"journal" toml:"journal" comment:"NDJSON conversion journal (default <output_dir>/journal.ndjson)"`
	SettleMS  int       `mapstructure:"settle_ms" toml:"settle_ms" comment:"quiet period before a changed file is picked up, in milliseconds"`
	Logs      logConfig `mapstructure:"logs" toml:"logs"`
}

func defaultConfig() config {
	return config{
		WatchDirs: []string{"incoming"},
		OutputDir: "out",
		SettleMS:  500,
		Logs: logConfig{
			MaxSizeMB:  25,
			MaxAgeDays: 7,
			MaxBackups: 5,
		},
	}
}

func (c *config) settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.WatchDirs) == 0 {
		return cfg, fmt.Errorf("%s: watch_dirs is empty", path)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "out"
	}
	if cfg.Journal == "" {
		cfg.Journal = filepath.Join(cfg.OutputDir, "journal.ndjson")
	}
	if cfg.SettleMS <= 0 {
		cfg.SettleMS = 500
	}
	if cfg.Logs.Directory == "" {
		cfg.Logs.Directory = filepath.Join(cfg.OutputDir, "logs")
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	return cfg, nil
}

// writeDefaultConfig renders the built-in defaults as a commented TOML
// document. It refuses to overwrite an existing file.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := toml.Marshal(defaultConfig())
	if err != nil {
		return err
	}
	header := "# rnxd configuration. Paths are relative to the working directory.\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}
