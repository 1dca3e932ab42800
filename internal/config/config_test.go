package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseWallTime(t *testing.T) {
	tests := []struct {
		in       string
		hour     int
		minute   int
		wantErr  bool
	}{
		{"09:30", 9, 30, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"9:30", 0, 0, true},
		{"09:60", 0, 0, true},
		{"24:00", 0, 0, true},
		{"0930", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		h, m, err := ParseWallTime(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseWallTime(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || h != tt.hour || m != tt.minute {
			t.Errorf("ParseWallTime(%q) = (%d, %d, %v), want (%d, %d)", tt.in, h, m, err, tt.hour, tt.minute)
		}
	}
}

func TestLoad_CreatesTemplateOnMissingConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected an error pointing at the created template")
	}

	if _, statErr := os.Stat(filepath.Join(dir, "config.toml")); statErr != nil {
		t.Errorf("template not created: %v", statErr)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[database]\npath = \"/tmp/test.db\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Strategy.Lots != 3 || cfg.Strategy.QuantityPerLot != 75 {
		t.Errorf("strategy sizing = %d x %d", cfg.Strategy.Lots, cfg.Strategy.QuantityPerLot)
	}
	if cfg.Strategy.TotalQuantity() != 225 {
		t.Errorf("total quantity = %d", cfg.Strategy.TotalQuantity())
	}
	if cfg.Strategy.MaxTradesPerDay != 2 {
		t.Errorf("max trades = %d", cfg.Strategy.MaxTradesPerDay)
	}
	if cfg.Market.RangeWindowStart != "09:12" || cfg.Market.RangeWindowEnd != "09:33" {
		t.Errorf("range window = %s-%s", cfg.Market.RangeWindowStart, cfg.Market.RangeWindowEnd)
	}
	if cfg.Market.EntryCutoff != "12:12" {
		t.Errorf("entry cutoff = %s", cfg.Market.EntryCutoff)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %s", cfg.Logging.Level)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[database]
path = "/tmp/override.db"

[strategy]
lots = 2
max_trades_per_day = 5

[market]
entry_cutoff = "13:00"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Strategy.Lots != 2 || cfg.Strategy.MaxTradesPerDay != 5 {
		t.Errorf("strategy = %+v", cfg.Strategy)
	}
	if cfg.Market.EntryCutoff != "13:00" {
		t.Errorf("entry cutoff = %s", cfg.Market.EntryCutoff)
	}
	// Untouched keys keep their defaults.
	if cfg.Strategy.SpreadWidth != 200 {
		t.Errorf("spread width = %v", cfg.Strategy.SpreadWidth)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[database]\npath = \"/tmp/file.db\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("NIFTY_SIGNALS_DB", "/tmp/env.db")
	t.Setenv("NIFTY_SIGNALS_MAX_TRADES", "4")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("db path = %q, want the env override", cfg.Database.Path)
	}
	if cfg.Strategy.MaxTradesPerDay != 4 {
		t.Errorf("max trades = %d, want 4", cfg.Strategy.MaxTradesPerDay)
	}
}

func TestLoad_InvalidWallTime(t *testing.T) {
	dir := t.TempDir()
	content := "[market]\nopen_time = \"9am\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected a validation error for a malformed wall time")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}

	cfg.Strategy.Lots = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative lots must fail validation")
	}
}
