// Package config provides configuration management for the signal engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Market   MarketConfig   `mapstructure:"market"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	UI       UIConfig       `mapstructure:"ui"`
}

// DatabaseConfig holds SQLite database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StrategyConfig holds credit-spread strategy parameters.
type StrategyConfig struct {
	Lots             int     `mapstructure:"lots"`
	QuantityPerLot   int     `mapstructure:"quantity_per_lot"`
	MaxTradesPerDay  int     `mapstructure:"max_trades_per_day"`
	SellStrikeOffset float64 `mapstructure:"sell_strike_offset"`
	SpreadWidth      float64 `mapstructure:"spread_width"`
	StrikeStep       float64 `mapstructure:"strike_step"`
}

// MarketConfig holds the session windows in exchange-local (IST) wall time.
// Each value is "HH:MM".
type MarketConfig struct {
	OpenTime         string `mapstructure:"open_time"`
	CloseTime        string `mapstructure:"close_time"`
	RangeWindowStart string `mapstructure:"range_window_start"`
	RangeWindowEnd   string `mapstructure:"range_window_end"`
	EntryCutoff      string `mapstructure:"entry_cutoff"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/nifty-signals"
	}
	return filepath.Join(home, ".config", "nifty-signals")
}

// DefaultDBPath returns the default SQLite database path.
func DefaultDBPath() string {
	return filepath.Join(DefaultConfigDir(), "signals.db")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDBPath()
	}
	if cfg.Strategy.Lots == 0 {
		cfg.Strategy.Lots = 3
	}
	if cfg.Strategy.QuantityPerLot == 0 {
		cfg.Strategy.QuantityPerLot = 75
	}
	if cfg.Strategy.MaxTradesPerDay == 0 {
		cfg.Strategy.MaxTradesPerDay = 2
	}
	if cfg.Strategy.SellStrikeOffset == 0 {
		cfg.Strategy.SellStrikeOffset = 100
	}
	if cfg.Strategy.SpreadWidth == 0 {
		cfg.Strategy.SpreadWidth = 200
	}
	if cfg.Strategy.StrikeStep == 0 {
		cfg.Strategy.StrikeStep = 50
	}
	if cfg.Market.OpenTime == "" {
		cfg.Market.OpenTime = "09:30"
	}
	if cfg.Market.CloseTime == "" {
		cfg.Market.CloseTime = "15:15"
	}
	if cfg.Market.RangeWindowStart == "" {
		cfg.Market.RangeWindowStart = "09:12"
	}
	if cfg.Market.RangeWindowEnd == "" {
		cfg.Market.RangeWindowEnd = "09:33"
	}
	if cfg.Market.EntryCutoff == "" {
		cfg.Market.EntryCutoff = "12:12"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NIFTY_SIGNALS_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NIFTY_SIGNALS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NIFTY_SIGNALS_MAX_TRADES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Strategy.MaxTradesPerDay = n
		}
	}
}

// TotalQuantity returns the total quantity of one position.
func (s StrategyConfig) TotalQuantity() int {
	return s.Lots * s.QuantityPerLot
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Strategy.Lots <= 0 {
		return fmt.Errorf("lots must be positive")
	}
	if c.Strategy.QuantityPerLot <= 0 {
		return fmt.Errorf("quantity_per_lot must be positive")
	}
	if c.Strategy.MaxTradesPerDay <= 0 {
		return fmt.Errorf("max_trades_per_day must be positive")
	}
	if c.Strategy.SpreadWidth <= 0 {
		return fmt.Errorf("spread_width must be positive")
	}
	if c.Strategy.StrikeStep <= 0 {
		return fmt.Errorf("strike_step must be positive")
	}

	for name, val := range map[string]string{
		"open_time":          c.Market.OpenTime,
		"close_time":         c.Market.CloseTime,
		"range_window_start": c.Market.RangeWindowStart,
		"range_window_end":   c.Market.RangeWindowEnd,
		"entry_cutoff":       c.Market.EntryCutoff,
	} {
		if _, _, err := ParseWallTime(val); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, val, err)
		}
	}

	return nil
}

// ParseWallTime parses an "HH:MM" string into hour and minute.
func ParseWallTime(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	hour, err = strconv.Atoi(s[:2])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour")
	}
	minute, err = strconv.Atoi(s[3:])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute")
	}
	return hour, minute, nil
}
