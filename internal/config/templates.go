package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Nifty Signals Configuration

[database]
# SQLite database path. Empty uses ~/.config/nifty-signals/signals.db
path = ""

[strategy]
# Number of lots per credit spread
lots = 3
# Contract quantity per lot
quantity_per_lot = 75
# Maximum triggered trades per trading day
max_trades_per_day = 2
# Sell strike offset from the opposite range edge, in points
sell_strike_offset = 100.0
# Distance between sell and buy strikes, in points
spread_width = 200.0
# Strike rounding step
strike_step = 50.0

[market]
# Session windows in exchange-local (IST) wall time, "HH:MM"
open_time = "09:30"
close_time = "15:15"
range_window_start = "09:12"
range_window_end = "09:33"
entry_cutoff = "12:12"

[logging]
# Log level: debug, info, warn, error
level = "info"
# Log to console
console = true
# Log to rotating file
file = true
# Log file path. Empty uses ~/.config/nifty-signals/logs/engine.log
file_path = ""
# Max log file size in megabytes before rotation
max_size = 100
# Number of rotated files to keep
max_backups = 7
# Days to retain rotated files
max_age = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "02-Jan-2006"
# Time format
time_format = "15:04:05"
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}
