package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlematch/internal/config"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, []string{"entrant", "mt910"}, cfg.SideA.Subpath)
	assert.Equal(t, []string{"manu", "sgci"}, cfg.SideB.NestedSubpath)
	assert.Equal(t, 5, cfg.WaitingDays)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
side_a:
  root: /data/advices
side_b:
  root: /data/instructions
waiting_days: 3
start_date: "082025"
run_interval: 30s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/advices", cfg.SideA.Root)
	assert.Equal(t, "/data/instructions", cfg.SideB.Root)
	assert.Equal(t, 3, cfg.WaitingDays)
	// untouched fields keep their defaults
	assert.Equal(t, "MATCH", cfg.MatchDir)
	assert.Equal(t, 10, cfg.ScanWindowDays)

	interval, err := cfg.Interval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"negative waiting days", "waiting_days: -1"},
		{"zero scan window", "scan_window_days: 0"},
		{"empty state file", `state_file: ""`},
		{"bad interval", "run_interval: soon"},
		{"bad start date", `start_date: "2025-08"`},
		{"bad report time", `daily_report_at: "25:99"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestStartDateTime(t *testing.T) {
	cfg := config.Default()
	cfg.StartDate = "082025"

	cutoff, err := cfg.StartDateTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC), cutoff)

	cfg.StartDate = ""
	cutoff, err = cfg.StartDateTime()
	require.NoError(t, err)
	assert.True(t, cutoff.IsZero())

	cfg.StartDate = "132025"
	_, err = cfg.StartDateTime()
	assert.Error(t, err)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
