// Command terrafusion runs the orbital globe service or renders frames
// headlessly.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/star/terrafusion/internal/config"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "terrafusion",
	Short:         "Orbital globe projection service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (env TERRAFUSION_* overrides it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.AddCommand(serveCmd, renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration, logging warnings with a bootstrap
// logger, and returns the service logger at the configured level.
func loadConfig() (config.Config, *slog.Logger, error) {
	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))

	v, err := config.NewViper(configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if logLevel != "" {
		v.Set("log_level", logLevel)
	}
	cfg, err := config.Load(v, logger)
	if err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level.Set(cfg.LogLevel)
	return cfg, logger, nil
}
