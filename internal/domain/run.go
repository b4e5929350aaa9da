package domain

import "time"

// OutcomeResult classifies what happened to one URL or upload row.
type OutcomeResult string

const (
	ResultInserted          OutcomeResult = "inserted"
	ResultUpdated           OutcomeResult = "updated"
	ResultRejectedLow       OutcomeResult = "rejected_low_quality"
	ResultRejectedUntrusted OutcomeResult = "rejected_untrusted"
	ResultFailed            OutcomeResult = "failed"
)

// IngestionOutcome is the per-item result of an ingestion batch. Identifier
// is the URL, or "row N" for upload rows.
type IngestionOutcome struct {
	Identifier string        `json:"identifier"`
	Result     OutcomeResult `json:"result"`
	Reason     string        `json:"reason,omitempty"`
}

// RunTrigger records who started a run.
type RunTrigger string

const (
	TriggerScheduled RunTrigger = "scheduled"
	TriggerManual    RunTrigger = "manual"
)

// RunStatus tracks the lifecycle of one audit-log entry.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// FailedURL is one per-URL failure recorded in a run.
type FailedURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// RunRecord is the durable audit entry for one ingestion run. It is created
// when the run starts and finalized exactly once when the run completes or
// aborts; finalized records are never mutated again.
type RunRecord struct {
	ID            int64       `json:"id"`
	Trigger       RunTrigger  `json:"trigger"`
	Status        RunStatus   `json:"status"`
	StartedAt     time.Time   `json:"started_at"`
	EndedAt       *time.Time  `json:"ended_at,omitempty"`
	URLsAttempted int         `json:"urls_attempted"`
	InsertedCount int         `json:"inserted_count"`
	UpdatedCount  int         `json:"updated_count"`
	RejectedCount int         `json:"rejected_count"`
	FailedURLs    []FailedURL `json:"failed_urls"`
	ErrorMessage  string      `json:"error_message,omitempty"`
}

// SchedulerState is the scheduler's externally visible state machine.
type SchedulerState string

const (
	SchedulerIdle      SchedulerState = "idle"
	SchedulerRunning   SchedulerState = "running"
	SchedulerCompleted SchedulerState = "completed"
	SchedulerFailed    SchedulerState = "failed"
)

// RunAlert is the payload posted to the alert webhook when a run aborts or
// accumulates too many URL failures.
type RunAlert struct {
	RunID       int64  `json:"run_id"`
	Reason      string `json:"reason"`
	FailedCount int    `json:"failed_count"`
}
