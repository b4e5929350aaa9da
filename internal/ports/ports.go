package ports

import (
	"context"

	"LegalCorpus/internal/domain"
)

// PageFetcher retrieves a public URL and extracts a normalized page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (domain.ExtractedPage, error)
}

// CorpusStore persists the deduplicated statute/precedent corpus. Upserts
// are keyed by natural identity and never delete unrelated records; the
// returned bool is true when the record was newly inserted.
type CorpusStore interface {
	UpsertStatute(ctx context.Context, rec domain.StatuteRecord) (bool, error)
	UpsertPrecedent(ctx context.Context, rec domain.PrecedentRecord) (bool, error)
	CorpusCounts(ctx context.Context) (statutes, precedents []domain.StateCount, err error)
	QualityFacts(ctx context.Context) ([]domain.QualityFact, error)
}

// RunLog is the append-only audit trail of ingestion runs plus the
// data-quality snapshot history.
type RunLog interface {
	CreateRun(ctx context.Context, trigger domain.RunTrigger) (int64, error)
	FinalizeRun(ctx context.Context, run *domain.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
	SaveSnapshot(ctx context.Context, source string, runID int64, snap domain.QualitySnapshot) error
	ListSnapshots(ctx context.Context, limit int) ([]domain.QualitySnapshot, error)
}

// SourceRegistry loads the configured public source list. Implementations
// re-read the backing file on every call so edits take effect on the next
// run without a restart.
type SourceRegistry interface {
	Load(ctx context.Context) ([]domain.SourceEntry, error)
}

// Notifier dispatches a single outbound alert about a troubled run.
// Delivery failures are the caller's to log, never to escalate.
type Notifier interface {
	NotifyRunFailure(ctx context.Context, alert domain.RunAlert) error
}
