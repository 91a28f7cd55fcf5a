package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/logger"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
	"github.com/ndewijer/Disclosure-Ledger/internal/repository"
)

// Run triggers recorded in the journal.
const (
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
	TriggerManual   = "manual"
)

// Pipeline runs one ledger update.
type Pipeline interface {
	Run(ctx context.Context, req RunRequest) (model.RunSummary, error)
}

// RunDefaults fills the parts of a request the caller leaves empty.
type RunDefaults struct {
	LedgerPath string
	Categories []model.Category
	Location   *time.Location // the exchange's calendar day decides the default date
}

// RunService journals pipeline runs and makes sure only one touches the
// ledger at a time.
type RunService struct {
	pipeline Pipeline
	runs     *repository.RunRepository
	defaults RunDefaults
	now      func() time.Time

	mu      sync.Mutex // held for the duration of a run
	pending sync.WaitGroup
}

// NewRunService creates a new RunService.
func NewRunService(pipeline Pipeline, runs *repository.RunRepository, defaults RunDefaults) *RunService {
	if defaults.Location == nil {
		defaults.Location = time.UTC
	}
	return &RunService{
		pipeline: pipeline,
		runs:     runs,
		defaults: defaults,
		now:      time.Now,
	}
}

// Today returns the current calendar day in the configured location.
func (s *RunService) Today() time.Time {
	y, m, d := s.now().In(s.defaults.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Trigger runs the pipeline for date and waits for it to finish. A zero date
// means today. A failed pipeline is reported through the returned entry's
// status; the error is for runs that could not start, such as
// apperrors.ErrRunInProgress when another run holds the ledger.
func (s *RunService) Trigger(ctx context.Context, trigger string, date time.Time) (model.Run, error) {
	if !s.mu.TryLock() {
		return model.Run{}, apperrors.ErrRunInProgress
	}
	defer s.mu.Unlock()

	run, err := s.begin(trigger, date)
	if err != nil {
		return model.Run{}, err
	}
	return s.execute(ctx, run), nil
}

// Start begins a run in the background and returns its journal entry while
// it is still running. The run outlives ctx's cancellation.
func (s *RunService) Start(ctx context.Context, trigger string, date time.Time) (model.Run, error) {
	if !s.mu.TryLock() {
		return model.Run{}, apperrors.ErrRunInProgress
	}

	run, err := s.begin(trigger, date)
	if err != nil {
		s.mu.Unlock()
		return model.Run{}, err
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer s.mu.Unlock()
		s.execute(context.WithoutCancel(ctx), run)
	}()
	return run, nil
}

// Wait blocks until background runs have finished.
func (s *RunService) Wait() {
	s.pending.Wait()
}

// GetRun retrieves a journal entry by ID.
func (s *RunService) GetRun(id string) (model.Run, error) {
	return s.runs.GetRun(id)
}

// ListRuns returns the most recent journal entries.
func (s *RunService) ListRuns(limit int) ([]model.Run, error) {
	return s.runs.ListRuns(limit)
}

// RecoverInterrupted fails journal entries left running by a previous process.
func (s *RunService) RecoverInterrupted(ctx context.Context) error {
	n, err := s.runs.FailInterruptedRuns(s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		logger.WithContext(ctx).Warn("marked interrupted runs as failed", "count", n)
	}
	return nil
}

func (s *RunService) begin(trigger string, date time.Time) (model.Run, error) {
	if date.IsZero() {
		date = s.Today()
	}
	run := model.Run{
		ID:        uuid.New().String(),
		Date:      date.Format(model.DateKeyLayout),
		Trigger:   trigger,
		Status:    model.RunStatusRunning,
		StartedAt: s.now().UTC().Truncate(time.Second),
	}
	if err := s.runs.InsertRun(run); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (s *RunService) execute(ctx context.Context, run model.Run) model.Run {
	ctx = logger.WithRunID(ctx, run.ID)
	log := logger.WithContext(ctx)
	date, _ := time.Parse(model.DateKeyLayout, run.Date)

	log.Info("run started", "date", run.Date, "trigger", run.Trigger)
	summary, err := s.pipeline.Run(ctx, RunRequest{
		Date:       date,
		LedgerPath: s.defaults.LedgerPath,
		Categories: s.defaults.Categories,
	})

	finished := s.now().UTC().Truncate(time.Second)
	run.FinishedAt = &finished
	run.Summary = &summary
	run.Status = model.RunStatusSucceeded
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		log.Error("run failed", "error", err)
	} else {
		log.Info("run finished", "inserted", summary.Totals().Inserted)
	}

	if ferr := s.runs.FinishRun(run.ID, run.Status, finished, run.Summary, err); ferr != nil {
		log.Error("failed to journal run outcome", "error", ferr)
	}
	return run
}
