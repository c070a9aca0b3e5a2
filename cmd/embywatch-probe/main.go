// Command embywatch-probe inspects a media server with the bot's own
// configuration: detection, authentication, library stats and a live
// dashboard preview.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/d3v1l1989/embywatch/internal/app"
	"github.com/d3v1l1989/embywatch/internal/config"
	"github.com/d3v1l1989/embywatch/internal/logging"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "embywatch-probe",
	Short:         "Diagnose the media server connection used by embywatch",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads .env and the config file
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	if !verbose {
		return logging.NullLogger()
	}
	logCfg := cfg.Logging
	logCfg.File = ""
	logger, err := logging.SetupLogger(&logCfg)
	if err != nil {
		return logging.NullLogger()
	}
	return logger
}

// openApp builds a read-only App next to a possibly running bot
func openApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.Options{SharedState: true}, newLogger(cfg))
}
