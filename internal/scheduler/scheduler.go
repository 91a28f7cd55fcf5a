// Package scheduler triggers the daily ledger run on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/logger"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
	"github.com/ndewijer/Disclosure-Ledger/internal/service"
)

// Runner starts a journaled run. *service.RunService implements it.
type Runner interface {
	Trigger(ctx context.Context, trigger string, date time.Time) (model.Run, error)
}

// Scheduler fires Runner.Trigger on a standard five-field cron expression.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	entry  cron.EntryID
	ctx    context.Context
}

// New parses the cron expression schedule in loc and registers the run. Overlapping ticks are skipped
// while a run is still going.
func New(ctx context.Context, runner Runner, schedule string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	log := cronLogger{slog.Default()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		runner: runner,
		ctx:    context.WithoutCancel(ctx),
	}
	id, err := s.cron.AddFunc(schedule, func() { s.tick(s.ctx) })
	if err != nil {
		return nil, fmt.Errorf("invalid run schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.WithContext(s.ctx).Info("run schedule started", "next", s.Next())
}

// Stop halts the schedule and returns a context that is done once a run in
// progress has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next time the run fires, or the zero time when the
// scheduler is not started.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) tick(ctx context.Context) {
	log := logger.WithContext(ctx)
	run, err := s.runner.Trigger(ctx, service.TriggerSchedule, time.Time{})
	switch {
	case errors.Is(err, apperrors.ErrRunInProgress):
		log.Warn("scheduled run skipped, another run is in progress")
	case err != nil:
		log.Error("scheduled run could not start", "error", err)
	default:
		log.Info("scheduled run finished", "run_id", run.ID, "status", run.Status)
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
