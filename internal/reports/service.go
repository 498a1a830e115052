package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/statsbot/internal/db"
	"github.com/MacJediWizard/statsbot/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// User-facing texts for failed reports. Error details are only logged.
const (
	StatsFailureMessage    = "Failed to fetch statistics. Please check the logs for more information."
	NewUsersFailureMessage = "Failed to fetch today's new users. Please check the logs."
)

// RunRecorder persists report run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.ReportRun) error
}

// Observer receives report run outcomes, e.g. for metrics.
type Observer interface {
	ObserveReport(kind models.ReportKind, status models.RunStatus, duration time.Duration)
}

// Failure is the error returned when a report computation fails. Any partial
// result has been discarded.
type Failure struct {
	Kind   db.ErrorKind
	Report models.ReportKind
	RunID  uuid.UUID
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s report failed (%s): %v", f.Report, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ServiceConfig holds configuration for the report service.
type ServiceConfig struct {
	// Location is the timezone that defines "today". Defaults to time.Local.
	Location *time.Location
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Diagnostics samples recent users before each new-users listing.
	Diagnostics bool
	Recorder    RunRecorder
	Observer    Observer
}

// Service runs report computations. Each computation opens its own session
// and closes it on every exit path; concurrent computations do not share
// or wait on each other.
type Service struct {
	opener    db.Opener
	generator *Generator
	config    ServiceConfig
	logger    zerolog.Logger
}

// NewService creates a new report service.
func NewService(opener db.Opener, config ServiceConfig, logger zerolog.Logger) *Service {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Service{
		opener:    opener,
		generator: NewGenerator(logger),
		config:    config,
		logger:    logger.With().Str("component", "report_service").Logger(),
	}
}

// Location returns the timezone reports are computed in.
func (s *Service) Location() *time.Location {
	return s.config.Location
}

// StatsReport computes the statistics report. On failure the error is a *Failure.
func (s *Service) StatsReport(ctx context.Context, trigger models.Trigger) (*models.StatsReport, error) {
	var report *models.StatsReport
	err := s.run(ctx, models.ReportKindStats, trigger, func(ctx context.Context, sess db.Session, runID uuid.UUID, w Windows) error {
		metrics, err := s.generator.CollectMetrics(ctx, sess, w)
		if err != nil {
			return err
		}
		report = &models.StatsReport{
			RunID:        runID,
			StartOfToday: w.StartOfToday,
			GeneratedAt:  s.now(),
			Metrics:      *metrics,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// NewUsersReport lists today's new users. On failure the error is a *Failure.
func (s *Service) NewUsersReport(ctx context.Context, trigger models.Trigger) (*models.NewUsersReport, error) {
	var report *models.NewUsersReport
	err := s.run(ctx, models.ReportKindNewUsers, trigger, func(ctx context.Context, sess db.Session, runID uuid.UUID, w Windows) error {
		if s.config.Diagnostics {
			// The sample only feeds the logs; the listing runs regardless.
			if _, err := s.generator.SampleRecentUsers(ctx, sess, w); err != nil {
				s.logger.Warn().Err(err).Str("run_id", runID.String()).Msg("user diagnostics failed")
			}
		}
		users, err := s.generator.ListNewUsers(ctx, sess, w)
		if err != nil {
			return err
		}
		report = &models.NewUsersReport{
			RunID:       runID,
			Day:         w.StartOfToday,
			GeneratedAt: s.now(),
			Users:       users,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// StatsMessage renders the statistics report, or the fixed failure text.
func (s *Service) StatsMessage(ctx context.Context, trigger models.Trigger) string {
	report, err := s.StatsReport(ctx, trigger)
	if err != nil {
		return StatsFailureMessage
	}
	return RenderStats(report)
}

// NewUsersMessage renders today's new users listing, or the fixed failure text.
func (s *Service) NewUsersMessage(ctx context.Context, trigger models.Trigger) string {
	report, err := s.NewUsersReport(ctx, trigger)
	if err != nil {
		return NewUsersFailureMessage
	}
	return RenderNewUsers(report)
}

// SampleRecentUsers runs the schema diagnostic on its own session.
func (s *Service) SampleRecentUsers(ctx context.Context) ([]models.UserRecord, error) {
	sess, err := s.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.closeSession(sess)

	return s.generator.SampleRecentUsers(ctx, sess, NewWindows(s.now()))
}

// Ping connects to the database and lists its collections.
func (s *Service) Ping(ctx context.Context) ([]string, error) {
	sess, err := s.opener.Open(ctx)
	if err != nil {
		s.logError("connection test failed", err)
		return nil, err
	}
	defer s.closeSession(sess)

	names, err := sess.CollectionNames(ctx)
	if err != nil {
		s.logError("listing collections failed", err)
		return nil, err
	}
	s.logger.Info().Strs("collections", names).Msg("connected to mongodb")
	return names, nil
}

type runFunc func(ctx context.Context, sess db.Session, runID uuid.UUID, w Windows) error

func (s *Service) run(ctx context.Context, kind models.ReportKind, trigger models.Trigger, fn runFunc) error {
	runID := uuid.New()
	started := time.Now()
	w := NewWindows(s.now())
	run := models.NewReportRun(runID, kind, trigger, w.Now)

	logger := s.logger.With().
		Str("run_id", runID.String()).
		Str("report", string(kind)).
		Str("trigger", string(trigger)).
		Logger()
	logger.Info().Msg("generating report")

	err := s.withSession(ctx, func(sess db.Session) error {
		return fn(ctx, sess, runID, w)
	})
	run.Duration = time.Since(started)

	var failure *Failure
	if err != nil {
		failure = &Failure{Kind: db.KindOf(err), Report: kind, RunID: runID, Err: err}
		run.MarkFailed(string(failure.Kind), err.Error())
		s.logError(fmt.Sprintf("failed to generate %s report", kind), failure)
	} else {
		logger.Info().Dur("duration", run.Duration).Msg("report generated")
	}

	if s.config.Observer != nil {
		s.config.Observer.ObserveReport(kind, run.Status, run.Duration)
	}
	if s.config.Recorder != nil {
		if recErr := s.config.Recorder.RecordRun(ctx, run); recErr != nil {
			logger.Error().Err(recErr).Msg("failed to record report run")
		}
	}

	if failure != nil {
		return failure
	}
	return nil
}

func (s *Service) withSession(ctx context.Context, fn func(db.Session) error) error {
	sess, err := s.opener.Open(ctx)
	if err != nil {
		return err
	}
	defer s.closeSession(sess)
	return fn(sess)
}

func (s *Service) closeSession(sess db.Session) {
	if err := sess.Close(context.Background()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close database session")
	}
}

func (s *Service) now() time.Time {
	return s.config.Clock().In(s.config.Location)
}

// logError logs a data-source error with every diagnostic field available.
func (s *Service) logError(msg string, err error) {
	ev := s.logger.Error().Err(err)

	var failure *Failure
	if errors.As(err, &failure) {
		ev = ev.Str("run_id", failure.RunID.String()).Str("error_kind", string(failure.Kind))
	}

	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		ev = ev.Str("error_name", dbErr.Name).
			Int32("error_code", dbErr.Code).
			Str("op", dbErr.Op).
			Str("collection", dbErr.Collection)
	} else {
		ev = ev.Str("error_name", fmt.Sprintf("%T", errors.Unwrap(err)))
	}

	ev.Str("error_message", err.Error()).
		Str("error_detail", fmt.Sprintf("%+v", err)).
		Msg(msg)
}
