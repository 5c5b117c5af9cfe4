// Package cron provides the scheduled warehouse refresh using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/avaldezp/olap-horarios/internal/etl"
)

// jobTimeout bounds one scheduled pipeline run.
const jobTimeout = 30 * time.Minute

// Pipeline is what the refresh job needs from the ETL runner.
type Pipeline interface {
	Run(ctx context.Context) (*etl.Report, error)
}

// Scheduler runs the full pipeline on a cron spec.
type Scheduler struct {
	cron   *cron.Cron
	runner Pipeline
	spec   string
	logger *slog.Logger
}

// NewScheduler creates a scheduler for the given 5-field cron spec.
func NewScheduler(runner Pipeline, spec string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:   c,
		runner: runner,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the refresh job and begins the schedule.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.refresh)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("spec", s.spec),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops the schedule and returns a context that is done once
// running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the refresh outside the schedule.
func (s *Scheduler) RunNow() {
	go s.refresh()
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.logger.Info("starting scheduled warehouse refresh")

	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled refresh failed",
			slog.String("job_id", report.JobID.String()),
			slog.Any("error", err),
		)
		return
	}

	s.logger.Info("scheduled refresh finished",
		slog.String("job_id", report.JobID.String()),
		slog.Duration("duration", report.Duration),
		slog.Int("fact_rows", report.FactRows),
		slog.Int("slot_rows", report.SlotRows),
	)
}
