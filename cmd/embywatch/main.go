package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/d3v1l1989/embywatch/internal/app"
	"github.com/d3v1l1989/embywatch/internal/config"
	"github.com/d3v1l1989/embywatch/internal/discord"
	"github.com/d3v1l1989/embywatch/internal/logging"
	"github.com/d3v1l1989/embywatch/internal/scheduler"
	"github.com/d3v1l1989/embywatch/internal/telemetry"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var (
		showVersion bool
		configPath  string
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configPath, "config", "", "path to config.yaml")
	flag.Parse()

	if showVersion {
		fmt.Printf("embywatch %s\n", Version)
		return
	}

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// A missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		return err
	}

	logger, err := logging.SetupLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)

	logger.Info("starting embywatch", "version", Version, "config", cfg.File, "server", cfg.Server.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.Init()

	session, err := discord.Open(cfg.Discord.Token, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	a, err := app.New(ctx, cfg, app.Options{Messenger: discord.NewMessenger(session, logger)}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(logger)
	sched.Add("presence", cfg.Polling.StatusInterval, a.Monitor.RefreshPresence)
	sched.Add("dashboard", cfg.Polling.DashboardInterval, a.Monitor.RefreshDashboard)

	if cfg.Metrics.Addr != "" {
		srv := telemetry.NewServer(cfg.Metrics.Addr, func() any {
			return statusReport{Server: a.Monitor.Status(), Cycles: cycleReports(sched.LastResults())}
		}, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("telemetry server stopped", "error", err)
			}
		}()
	}

	sched.Run(ctx)
	logger.Info("shutting down")
	return nil
}
