// Package cli provides the command-line interface for the signal engine.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nifty-signals/internal/analysis/oitrend"
	"nifty-signals/internal/analysis/signal"
	"nifty-signals/internal/config"
	"nifty-signals/internal/ingest"
	"nifty-signals/internal/logging"
	"nifty-signals/internal/store"
	"nifty-signals/internal/strategy"
	"nifty-signals/pkg/marketclock"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-09-01"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.DataStore
	Ingestor *ingest.Ingestor
	OI       *oitrend.Analyzer
	Scorer   *signal.Scorer
	Manager  *strategy.Manager
	Sessions marketclock.Sessions
	Clock    marketclock.Clock
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
		Clock:  marketclock.SystemClock{},
	}
	app.Sessions = sessionsFromConfig(cfg.Market)

	dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Database.Path).Msg("SQLite store initialized")
	}

	if app.Store != nil {
		app.Ingestor = ingest.NewIngestor(app.Store, app.Clock, logging.WithComponent(logger, "ingest"))
		app.OI = oitrend.NewAnalyzer(app.Store, app.Clock, logging.WithComponent(logger, "oitrend"))
		app.Scorer = signal.NewScorer(app.Store, app.Store, app.OI, app.Clock, logging.WithComponent(logger, "signal"))
		engine := strategy.NewBreakoutEngine(app.Store, app.Sessions, cfg.Strategy)
		app.Manager = strategy.NewManager(app.Store, engine, app.Sessions, cfg.Strategy, app.Clock,
			logging.WithComponent(logger, "strategy"))
	}

	rootCmd := &cobra.Command{
		Use:   "nifty-signals",
		Short: "NIFTY options market signal and strategy engine",
		Long: `nifty-signals computes market signals from NIFTY/BANKNIFTY option chain
open-interest trends and runs an opening-range credit-spread strategy.

Use 'nifty-signals help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/nifty-signals)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	// Add all command groups
	addCoreCommands(rootCmd, app)
	addSignalCommands(rootCmd, app)
	addStrategyCommands(rootCmd, app)
	addDataCommands(rootCmd, app)

	return rootCmd
}

func sessionsFromConfig(m config.MarketConfig) marketclock.Sessions {
	openH, openM, _ := config.ParseWallTime(m.OpenTime)
	closeH, closeM, _ := config.ParseWallTime(m.CloseTime)
	rangeStartH, rangeStartM, _ := config.ParseWallTime(m.RangeWindowStart)
	rangeEndH, rangeEndM, _ := config.ParseWallTime(m.RangeWindowEnd)
	cutoffH, cutoffM, _ := config.ParseWallTime(m.EntryCutoff)

	return marketclock.Sessions{
		Market:      marketclock.NewWindow(openH, openM, closeH, closeM),
		RangeWindow: marketclock.NewWindow(rangeStartH, rangeStartM, rangeEndH, rangeEndM),
		EntryCutoff: cutoffH*60 + cutoffM,
	}
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("nifty-signals v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Database")
	output.Printf("  Path:            %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Strategy")
	output.Printf("  Lots:            %d x %d qty\n", cfg.Strategy.Lots, cfg.Strategy.QuantityPerLot)
	output.Printf("  Max Trades/Day:  %d\n", cfg.Strategy.MaxTradesPerDay)
	output.Printf("  Strike Offset:   %.0f\n", cfg.Strategy.SellStrikeOffset)
	output.Printf("  Spread Width:    %.0f\n", cfg.Strategy.SpreadWidth)
	output.Printf("  Strike Step:     %.0f\n", cfg.Strategy.StrikeStep)
	output.Println()

	output.Bold("Market Windows (IST)")
	output.Printf("  Session:         %s - %s\n", cfg.Market.OpenTime, cfg.Market.CloseTime)
	output.Printf("  Opening Range:   %s - %s\n", cfg.Market.RangeWindowStart, cfg.Market.RangeWindowEnd)
	output.Printf("  Entry Cutoff:    %s\n", cfg.Market.EntryCutoff)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  Console:         %v\n", cfg.Logging.Console)
	output.Printf("  File:            %v\n", cfg.Logging.File)

	return nil
}
