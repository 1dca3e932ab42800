package main

import (
	"fmt"
	"os"

	"nifty-signals/internal/cli"
	"nifty-signals/internal/config"
	"nifty-signals/internal/logging"
)

func main() {
	configDir := configDirFromArgs(os.Args[1:])

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.File
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	if cfg.Logging.MaxSize > 0 {
		logCfg.MaxSize = cfg.Logging.MaxSize
	}
	if cfg.Logging.MaxBackups > 0 {
		logCfg.MaxBackups = cfg.Logging.MaxBackups
	}
	if cfg.Logging.MaxAge > 0 {
		logCfg.MaxAge = cfg.Logging.MaxAge
	}
	logger := logging.NewLoggerWithConfig(logCfg)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configDirFromArgs pre-scans for --config so it applies before cobra parses.
func configDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len("--config=") && arg[:len("--config=")] == "--config=" {
			return arg[len("--config="):]
		}
	}
	return ""
}
