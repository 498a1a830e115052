package reports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MacJediWizard/statsbot/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultCronSpec sends the daily report at 9:00.
const DefaultCronSpec = "0 9 * * *"

// Deliverer sends report text to a chat.
type Deliverer interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// SchedulerConfig holds configuration for the report scheduler.
type SchedulerConfig struct {
	Spec     string
	Location *time.Location
	ChatID   int64
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Spec:     DefaultCronSpec,
		Location: time.Local,
	}
}

// Scheduler sends the statistics report on a cron schedule.
type Scheduler struct {
	service   *Service
	deliverer Deliverer
	config    SchedulerConfig
	cron      *cron.Cron
	logger    zerolog.Logger
	mu        sync.RWMutex
	entryID   cron.EntryID
	running   bool
}

// NewScheduler creates a new report scheduler.
func NewScheduler(service *Service, deliverer Deliverer, config SchedulerConfig, logger zerolog.Logger) *Scheduler {
	if config.Spec == "" {
		config.Spec = DefaultCronSpec
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &Scheduler{
		service:   service,
		deliverer: deliverer,
		config:    config,
		cron:      cron.New(cron.WithLocation(config.Location)),
		logger:    logger.With().Str("component", "report_scheduler").Logger(),
	}
}

// Start registers the daily job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.config.Spec, func() {
		s.executeReport(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid report schedule %q: %w", s.config.Spec, err)
	}
	s.entryID = entryID
	s.running = true

	s.cron.Start()

	s.logger.Info().
		Str("cron", s.config.Spec).
		Str("timezone", s.config.Location.String()).
		Time("next_run", s.cron.Entry(entryID).Next).
		Msg("report scheduler started")
	return nil
}

// Stop stops the scheduler. The returned context is done once a running job finishes.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.cron.Remove(s.entryID)
	s.logger.Info().Msg("stopping report scheduler")
	return s.cron.Stop()
}

// NextRun returns the next scheduled run, or the zero time when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// RunNow computes and delivers the report immediately.
func (s *Scheduler) RunNow(ctx context.Context, trigger models.Trigger) error {
	return s.SendReport(ctx, s.config.ChatID, trigger)
}

// SendReport computes the statistics report and delivers it to chatID. The
// failure text is delivered when the computation fails.
func (s *Scheduler) SendReport(ctx context.Context, chatID int64, trigger models.Trigger) error {
	text := s.service.StatsMessage(ctx, trigger)
	if err := s.deliverer.SendText(ctx, chatID, text); err != nil {
		return fmt.Errorf("send report to chat %d: %w", chatID, err)
	}
	return nil
}

func (s *Scheduler) executeReport(ctx context.Context) {
	logger := s.logger.With().Int64("chat_id", s.config.ChatID).Logger()
	logger.Info().Msg("initiating daily stats")

	if err := s.RunNow(ctx, models.TriggerSchedule); err != nil {
		logger.Error().Err(err).Msg("failed to send daily stats")
		return
	}

	logger.Info().Msg("daily stats sent successfully")
}
