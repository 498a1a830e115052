// Package main is the entrypoint for the statsbot CLI and server.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/MacJediWizard/statsbot/internal/config"
	"github.com/MacJediWizard/statsbot/internal/db"
	"github.com/MacJediWizard/statsbot/internal/history"
	"github.com/MacJediWizard/statsbot/internal/metrics"
	"github.com/MacJediWizard/statsbot/internal/reports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	_ "time/tzdata"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "statsbot",
		Short: "Daily SaaS statistics reports for Telegram",
		Long: `statsbot counts users, websites, comments and guests in the toolbar
database and reports them to a Telegram chat every day, on chat commands
and over HTTP.

Configuration comes from an optional YAML file and the environment
(MONGODB_URI, TELEGRAM_BOT_TOKEN, CHAT_ID, ...).`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(&configPath),
		newStatsCmd(&configPath),
		newNewUsersCmd(&configPath),
		newSendCmd(&configPath),
		newPingCmd(&configPath),
		newSampleCmd(&configPath),
		newHistoryCmd(&configPath),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "statsbot %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	service *reports.Service
	history *history.Store             // nil when history is disabled
	metrics *metrics.PrometheusMetrics // nil when metrics are disabled
}

type appOptions struct {
	withHistory bool
	withMetrics bool
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp(configPath string, opts appOptions) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: newLogger(cfg),
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	serviceConfig := reports.ServiceConfig{
		Location:    loc,
		Diagnostics: cfg.Report.Diagnostics,
	}

	if opts.withHistory && cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open run history: %w", err)
		}
		a.history = store
		serviceConfig.Recorder = store
	}

	if opts.withMetrics && cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := metrics.NewPrometheusMetrics(reg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.metrics = m
		serviceConfig.Observer = m
	}

	dbConfig := db.DefaultConfig(cfg.Mongo.URI)
	dbConfig.Database = cfg.Mongo.Database
	dbConfig.ConnectTimeout = cfg.Mongo.ConnectTimeout
	connector := db.NewConnector(dbConfig, a.logger)

	a.service = reports.NewService(connector, serviceConfig, a.logger)

	return a, nil
}

// Close releases the history database.
func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close run history")
		}
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("version", Version).Logger()
	if cfg.Logging.Format != "json" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}
