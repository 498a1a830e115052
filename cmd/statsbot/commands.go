package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/MacJediWizard/statsbot/internal/config"
	"github.com/MacJediWizard/statsbot/internal/history"
	"github.com/MacJediWizard/statsbot/internal/models"
	"github.com/MacJediWizard/statsbot/internal/notifications"
	"github.com/MacJediWizard/statsbot/internal/reports"
	"github.com/spf13/cobra"
)

// commandContext is cancelled on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatsCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute and print the statistics report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, appOptions{withHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := commandContext()
			defer cancel()

			report, err := a.service.StatsReport(ctx, models.TriggerCLI)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), reports.StatsFailureMessage)
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					Report *models.StatsReport `json:"report"`
					Rates  reports.Rates       `json:"rates"`
				}{report, reports.ComputeRates(report.Metrics)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), reports.RenderStats(report))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw counts and rates as JSON")

	return cmd
}

func newNewUsersCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "newusers",
		Short: "List the users registered today",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, appOptions{withHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := commandContext()
			defer cancel()

			report, err := a.service.NewUsersReport(ctx, models.TriggerCLI)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), reports.NewUsersFailureMessage)
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reports.RenderNewUsers(report))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decoded records as JSON")

	return cmd
}

func newSendCmd(configPath *string) *cobra.Command {
	var chatID int64

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the statistics report to Telegram now",
		Long: `Compute the statistics report and send it to the configured chat
(or --chat). On failure the fixed failure text is sent instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, appOptions{withHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.ValidateTelegram(); err != nil {
				return err
			}

			bot, err := notifications.NewTelegramBot(telegramConfig(a.cfg), a.service, a.logger)
			if err != nil {
				return err
			}
			scheduler := reports.NewScheduler(a.service, bot, reports.SchedulerConfig{
				Spec:     a.cfg.Schedule.Cron,
				Location: a.service.Location(),
				ChatID:   a.cfg.Telegram.ChatID,
			}, a.logger)

			ctx, cancel := commandContext()
			defer cancel()

			if chatID != 0 {
				return scheduler.SendReport(ctx, chatID, models.TriggerCLI)
			}
			return scheduler.RunNow(ctx, models.TriggerCLI)
		},
	}

	cmd.Flags().Int64Var(&chatID, "chat", 0, "chat ID to send to (default: CHAT_ID)")

	return cmd
}

func newPingCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect to MongoDB and list the collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := commandContext()
			defer cancel()

			names, err := a.service.Ping(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s\n", a.cfg.Mongo.Database)
			for _, name := range names {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}

func newSampleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Log raw and normalized samples of recent user records",
		Long: `Fetch a few raw user documents, then up to 10 users created in the
last week, and log their fields and timestamp types. Useful when the
counts look wrong after a schema change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := commandContext()
			defer cancel()

			users, err := a.service.SampleRecentUsers(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), users)
		},
	}
}

func newHistoryCmd(configPath *string) *cobra.Command {
	var (
		limit int
		prune time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent report runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.History.Path == "" {
				return errors.New("run history is disabled (history.path is empty)")
			}

			store, err := history.Open(cfg.History.Path, newLogger(cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := commandContext()
			defer cancel()

			if prune > 0 {
				n, err := store.PruneOlderThan(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", n)
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "number of runs to show")
	cmd.Flags().DurationVar(&prune, "prune", 0, "first remove runs older than this (e.g. 720h)")

	return cmd
}

func printRuns(w io.Writer, runs []*models.ReportRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No report runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tKIND\tTRIGGER\tSTATUS\tDURATION\tERROR")
	for _, run := range runs {
		errText := "-"
		if run.ErrorKind != "" {
			errText = run.ErrorKind + ": " + run.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.Kind,
			run.Trigger,
			run.Status,
			run.Duration.Round(time.Millisecond),
			errText,
		)
	}
	return tw.Flush()
}

func telegramConfig(cfg *config.Config) notifications.TelegramConfig {
	return notifications.TelegramConfig{
		Token:      cfg.Telegram.Token,
		ChatID:     cfg.Telegram.ChatID,
		WebhookURL: cfg.Telegram.WebhookURL,
		Proxy:      cfg.Telegram.Proxy,
		NoProxy:    cfg.Telegram.NoProxy,
	}
}
