package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"LegalCorpus/internal/config"
	"LegalCorpus/internal/domain"
	"LegalCorpus/internal/ports"
)

// ErrRunActive is returned when a trigger arrives while a run holds the
// single-run slot.
var ErrRunActive = errors.New("a run is already in progress")

// SchedulerStatus is the externally visible scheduler snapshot.
type SchedulerStatus struct {
	State        domain.SchedulerState `json:"state"`
	NextRunAt    *time.Time            `json:"next_run_at,omitempty"`
	CurrentRunID int64                 `json:"current_run_id,omitempty"`
	LastRun      *domain.RunRecord     `json:"last_run,omitempty"`
}

// SchedulerDeps wires the scheduler's collaborators.
type SchedulerDeps struct {
	Pipeline *Pipeline
	Registry ports.SourceRegistry
	RunLog   ports.RunLog
	Notifier ports.Notifier
	Reporter *Reporter
	Config   config.SchedulerConfig
	Alerts   config.AlertConfig
	Logger   *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Scheduler triggers daily refresh runs and guards the single-run slot that
// scheduled, manual, and admin-upload ingestion all share. At most one run
// is ever active; a trigger while a run is active is a no-op, never queued.
type Scheduler struct {
	pipeline *Pipeline
	registry ports.SourceRegistry
	runlog   ports.RunLog
	notifier ports.Notifier
	reporter *Reporter
	cfg      config.SchedulerConfig
	alerts   config.AlertConfig
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	running      bool
	currentRunID int64
	lastRun      *domain.RunRecord
	nextRun      time.Time
}

// NewScheduler builds the scheduler; Start must be called to arm the timer.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		pipeline: deps.Pipeline,
		registry: deps.Registry,
		runlog:   deps.RunLog,
		notifier: deps.Notifier,
		reporter: deps.Reporter,
		cfg:      deps.Config,
		alerts:   deps.Alerts,
		logger:   logger,
		now:      now,
	}
}

// Start launches the daily timer loop in the background. Request handling
// is never blocked by a run; the loop exits when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.DailyEnabled() {
		s.logger.Info("daily refresh disabled")
		return
	}

	go func() {
		for {
			next := s.nextRunTime(s.now())
			s.mu.Lock()
			s.nextRun = next
			s.mu.Unlock()

			timer := time.NewTimer(next.Sub(s.now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if _, started, err := s.trigger(ctx, domain.TriggerScheduled); err != nil {
					s.logger.Error("scheduled run could not start", "error", err)
				} else if !started {
					s.logger.Warn("scheduled run skipped, another run is active")
				}
			}
		}
	}()
}

// nextRunTime computes the next daily HH:MM in the configured location.
func (s *Scheduler) nextRunTime(now time.Time) time.Time {
	loc := s.cfg.Location()
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.Hour, s.cfg.Minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// TriggerNow starts a manual refresh run over the full source registry.
// Returns started=false when a run is already active; the run itself
// executes in the background.
func (s *Scheduler) TriggerNow(ctx context.Context) (int64, bool, error) {
	return s.trigger(ctx, domain.TriggerManual)
}

func (s *Scheduler) trigger(ctx context.Context, trig domain.RunTrigger) (int64, bool, error) {
	if !s.acquire() {
		return s.CurrentRunID(), false, nil
	}

	runID, err := s.runlog.CreateRun(ctx, trig)
	if err != nil {
		s.release(nil)
		return 0, false, fmt.Errorf("open run record: %w", err)
	}

	s.mu.Lock()
	s.currentRunID = runID
	s.mu.Unlock()

	// The run outlives a triggering HTTP request; detach its cancellation.
	go s.execute(context.WithoutCancel(ctx), runID, trig)
	return runID, true, nil
}

// execute processes every registry entry in order and finalizes the run.
func (s *Scheduler) execute(ctx context.Context, runID int64, trig domain.RunTrigger) {
	run := &domain.RunRecord{
		ID:        runID,
		Trigger:   trig,
		Status:    domain.RunCompleted,
		StartedAt: s.now(),
	}
	defer s.finalize(ctx, run)

	entries, err := s.registry.Load(ctx)
	if err != nil {
		run.Status = domain.RunFailed
		run.ErrorMessage = err.Error()
		run.FailedURLs = append(run.FailedURLs, domain.FailedURL{URL: "source-registry", Reason: err.Error()})
		return
	}

	s.logger.Info("refresh run started", "run_id", runID, "trigger", trig, "sources", len(entries))

	for _, entry := range entries {
		batch, err := s.pipeline.IngestURLs(ctx, entry.State, entry.DocumentType, []string{entry.URL})

		run.URLsAttempted++
		run.InsertedCount += batch.Inserted
		run.UpdatedCount += batch.Updated
		run.RejectedCount += batch.Rejected
		run.FailedURLs = append(run.FailedURLs, batch.FailedURLs()...)

		if err != nil {
			// Store unavailability aborts the run; per-URL failures do not.
			run.Status = domain.RunFailed
			run.ErrorMessage = err.Error()
			return
		}
	}
}

// RunBatch executes an admin-supplied ingestion batch under the single-run
// slot, synchronously. The same exclusivity that guards scheduled runs
// guards uploads, so a manual batch can never overlap a refresh.
func (s *Scheduler) RunBatch(ctx context.Context, fn func(context.Context) (Batch, error)) (int64, Batch, error) {
	if !s.acquire() {
		return 0, Batch{}, ErrRunActive
	}

	runID, err := s.runlog.CreateRun(ctx, domain.TriggerManual)
	if err != nil {
		s.release(nil)
		return 0, Batch{}, fmt.Errorf("open run record: %w", err)
	}

	s.mu.Lock()
	s.currentRunID = runID
	s.mu.Unlock()

	run := &domain.RunRecord{
		ID:        runID,
		Trigger:   domain.TriggerManual,
		Status:    domain.RunCompleted,
		StartedAt: s.now(),
	}

	batch, err := fn(ctx)
	run.URLsAttempted = len(batch.Outcomes)
	run.InsertedCount = batch.Inserted
	run.UpdatedCount = batch.Updated
	run.RejectedCount = batch.Rejected
	run.FailedURLs = batch.FailedURLs()
	if err != nil {
		run.Status = domain.RunFailed
		run.ErrorMessage = err.Error()
	}

	s.finalize(ctx, run)
	return runID, batch, err
}

// finalize closes the audit entry, captures a quality snapshot, raises
// alerts, and releases the run slot.
func (s *Scheduler) finalize(ctx context.Context, run *domain.RunRecord) {
	ended := s.now()
	run.EndedAt = &ended

	if err := s.runlog.FinalizeRun(ctx, run); err != nil {
		s.logger.Error("finalize run", "run_id", run.ID, "error", err)
	}

	if s.reporter != nil {
		if err := s.reporter.Capture(ctx, "run:"+string(run.Trigger), run.ID); err != nil {
			s.logger.Warn("capture quality snapshot", "run_id", run.ID, "error", err)
		}
	}

	s.maybeAlert(ctx, run)

	s.logger.Info("refresh run finished",
		"run_id", run.ID,
		"status", run.Status,
		"inserted", run.InsertedCount,
		"updated", run.UpdatedCount,
		"rejected", run.RejectedCount,
		"failed_urls", len(run.FailedURLs))

	s.release(run)
}

// maybeAlert sends at most one webhook per run: always on abort, and on
// completion only when failures reach the configured threshold. Alert
// delivery failures are logged, never escalated.
func (s *Scheduler) maybeAlert(ctx context.Context, run *domain.RunRecord) {
	if s.notifier == nil || !s.alerts.Enabled {
		return
	}

	reason := ""
	switch {
	case run.Status == domain.RunFailed:
		reason = run.ErrorMessage
		if reason == "" {
			reason = "run aborted"
		}
	case s.alerts.FailureThreshold > 0 && len(run.FailedURLs) >= s.alerts.FailureThreshold:
		reason = fmt.Sprintf("%d of %d urls failed", len(run.FailedURLs), run.URLsAttempted)
	default:
		return
	}

	alert := domain.RunAlert{RunID: run.ID, Reason: reason, FailedCount: len(run.FailedURLs)}
	if err := s.notifier.NotifyRunFailure(ctx, alert); err != nil {
		s.logger.Warn("alert webhook failed", "run_id", run.ID, "error", err)
	}
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) release(run *domain.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.currentRunID = 0
	if run != nil {
		s.lastRun = run
	}
}

// CurrentRunID returns the id of the active run, or zero.
func (s *Scheduler) CurrentRunID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRunID
}

// Status reports the scheduler state machine: running while a run is
// active, otherwise idle with the last run's terminal status attached.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{State: domain.SchedulerIdle, LastRun: s.lastRun}
	if s.running {
		status.State = domain.SchedulerRunning
		status.CurrentRunID = s.currentRunID
	}
	if s.cfg.DailyEnabled() && !s.nextRun.IsZero() {
		next := s.nextRun
		status.NextRunAt = &next
	}
	return status
}
