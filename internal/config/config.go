// Package config holds the configuration surface of the reconciler: source
// and archive roots, state and lock file locations, and the timing knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SideSource configures where one side's documents are deposited.
type SideSource struct {
	Root          string   `yaml:"root"`
	Subpath       []string `yaml:"subpath"`
	NestedSubpath []string `yaml:"nested_subpath"`
}

// Config is the full configuration file.
type Config struct {
	SideA SideSource `yaml:"side_a"`
	SideB SideSource `yaml:"side_b"`

	MatchDir     string `yaml:"match_dir"`
	UnmatchedDir string `yaml:"unmatched_dir"`
	StateFile    string `yaml:"state_file"`
	LockFile     string `yaml:"lock_file"`
	OutputDir    string `yaml:"output_dir"`
	DocExt       string `yaml:"doc_ext"`

	WaitingDays    int    `yaml:"waiting_days"`
	ScanWindowDays int    `yaml:"scan_window_days"`
	StartDate      string `yaml:"start_date"` // MMYYYY, empty means no lower bound

	RunInterval   string `yaml:"run_interval"`    // Go duration, e.g. "5m"
	DailyReportAt string `yaml:"daily_report_at"` // "HH:MM" local time
}

// Default returns the configuration used when a field is absent from the file.
func Default() Config {
	return Config{
		SideA:          SideSource{Subpath: []string{"entrant", "mt910"}},
		SideB:          SideSource{Subpath: []string{"entrant", "pacs.008"}, NestedSubpath: []string{"manu", "sgci"}},
		MatchDir:       "MATCH",
		UnmatchedDir:   "NO_MATCH",
		StateFile:      "reconciliation_state.json",
		LockFile:       "reconciliation.lock",
		OutputDir:      "output",
		DocExt:         ".pdf",
		WaitingDays:    5,
		ScanWindowDays: 10,
		RunInterval:    "5m",
		DailyReportAt:  "23:55",
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields the engine cannot run without.
func (c Config) Validate() error {
	if c.WaitingDays <= 0 {
		return fmt.Errorf("waiting_days must be positive, got %d", c.WaitingDays)
	}
	if c.ScanWindowDays <= 0 {
		return fmt.Errorf("scan_window_days must be positive, got %d", c.ScanWindowDays)
	}
	if c.StateFile == "" {
		return fmt.Errorf("state_file is required")
	}
	if c.MatchDir == "" || c.UnmatchedDir == "" {
		return fmt.Errorf("match_dir and unmatched_dir are required")
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	if _, err := c.StartDateTime(); err != nil {
		return err
	}
	if c.DailyReportAt != "" {
		if _, err := time.Parse("15:04", c.DailyReportAt); err != nil {
			return fmt.Errorf("daily_report_at must be HH:MM, got %q", c.DailyReportAt)
		}
	}
	return nil
}

// Interval parses the run interval between cycles.
func (c Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.RunInterval)
	if err != nil {
		return 0, fmt.Errorf("run_interval must be a duration, got %q", c.RunInterval)
	}
	return d, nil
}

// StartDateTime parses the MMYYYY earliest-eligible-date cutoff. A zero time
// means no cutoff.
func (c Config) StartDateTime() (time.Time, error) {
	if c.StartDate == "" {
		return time.Time{}, nil
	}
	if len(c.StartDate) != 6 {
		return time.Time{}, fmt.Errorf("start_date must be MMYYYY, got %q", c.StartDate)
	}
	month, err := strconv.Atoi(c.StartDate[:2])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("start_date must be MMYYYY, got %q", c.StartDate)
	}
	year, err := strconv.Atoi(c.StartDate[2:])
	if err != nil {
		return time.Time{}, fmt.Errorf("start_date must be MMYYYY, got %q", c.StartDate)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}
