// Package storage persists the legal corpus and the run audit log in
// Postgres. Upserts are keyed by each record's natural identity and report
// whether they inserted or updated via Postgres' xmax system column.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"LegalCorpus/internal/domain"
	"LegalCorpus/internal/ports"
)

// Field caps applied before upsert, matching the corpus column budget.
const (
	maxTitleLen    = 500
	maxCitationLen = 300
	maxCourtLen    = 250
	maxSnippetLen  = 5000
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository implements the corpus store and the run audit log on
// one shared database handle.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.CorpusStore = (*PostgresRepository)(nil)
var _ ports.RunLog = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// --- Corpus store ---

func statuteUpsert(rec domain.StatuteRecord) sq.InsertBuilder {
	return psql.Insert("statute_reference").
		Columns("state", "legacy_code", "legacy_section", "new_code", "new_section", "title", "keywords", "source_url").
		Values(
			string(rec.State),
			rec.LegacyCode,
			rec.LegacySection,
			rec.NewCode,
			rec.NewSection,
			clip(rec.Title, maxTitleLen),
			pq.StringArray(rec.Keywords),
			nullIfEmpty(rec.SourceURL),
		).
		Suffix(`ON CONFLICT (state, legacy_code, legacy_section, new_code, new_section)
			DO UPDATE SET
				title = EXCLUDED.title,
				keywords = EXCLUDED.keywords,
				source_url = EXCLUDED.source_url,
				updated_at = NOW()
			RETURNING (xmax = 0)`)
}

// UpsertStatute inserts or updates a statute mapping by natural key.
// Returns true when the record was newly inserted.
func (r *PostgresRepository) UpsertStatute(ctx context.Context, rec domain.StatuteRecord) (bool, error) {
	query, args, err := statuteUpsert(rec).ToSql()
	if err != nil {
		return false, fmt.Errorf("build statute upsert: %w", err)
	}

	var inserted bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert statute: %w", err)
	}
	return inserted, nil
}

func precedentUpsert(rec domain.PrecedentRecord) sq.InsertBuilder {
	return psql.Insert("precedent_corpus").
		Columns("state", "title", "citation", "court", "year", "topics", "snippet", "source_url").
		Values(
			string(rec.State),
			clip(rec.Title, maxTitleLen),
			clip(rec.Citation, maxCitationLen),
			clip(rec.Court, maxCourtLen),
			nullIfZero(rec.Year),
			pq.StringArray(rec.Topics),
			clip(rec.Snippet, maxSnippetLen),
			nullIfEmpty(rec.SourceURL),
		).
		Suffix(`ON CONFLICT (state, citation)
			DO UPDATE SET
				title = EXCLUDED.title,
				court = EXCLUDED.court,
				year = EXCLUDED.year,
				topics = EXCLUDED.topics,
				snippet = EXCLUDED.snippet,
				source_url = EXCLUDED.source_url,
				updated_at = NOW()
			RETURNING (xmax = 0)`)
}

// UpsertPrecedent inserts or updates a precedent record by (state, citation).
func (r *PostgresRepository) UpsertPrecedent(ctx context.Context, rec domain.PrecedentRecord) (bool, error) {
	query, args, err := precedentUpsert(rec).ToSql()
	if err != nil {
		return false, fmt.Errorf("build precedent upsert: %w", err)
	}

	var inserted bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert precedent: %w", err)
	}
	return inserted, nil
}

// CorpusCounts returns per-state record counts for both tables.
func (r *PostgresRepository) CorpusCounts(ctx context.Context) ([]domain.StateCount, []domain.StateCount, error) {
	statutes, err := r.stateCounts(ctx, "statute_reference")
	if err != nil {
		return nil, nil, err
	}
	precedents, err := r.stateCounts(ctx, "precedent_corpus")
	if err != nil {
		return nil, nil, err
	}
	return statutes, precedents, nil
}

func (r *PostgresRepository) stateCounts(ctx context.Context, table string) ([]domain.StateCount, error) {
	query, args, err := psql.Select("state", "COUNT(*)").
		From(table).
		GroupBy("state").
		OrderBy("state").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build counts query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}
	defer rows.Close()

	var counts []domain.StateCount
	for rows.Next() {
		var sc domain.StateCount
		if err := rows.Scan(&sc.State, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts = append(counts, sc)
	}
	return counts, rows.Err()
}

// QualityFacts returns the projection of the precedent corpus the data
// quality reporter classifies.
func (r *PostgresRepository) QualityFacts(ctx context.Context) ([]domain.QualityFact, error) {
	query, args, err := psql.Select("state", "title", "citation", "snippet", "COALESCE(source_url, '')").
		From("precedent_corpus").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build facts query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []domain.QualityFact
	for rows.Next() {
		var f domain.QualityFact
		if err := rows.Scan(&f.State, &f.Title, &f.Citation, &f.Snippet, &f.SourceURL); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// --- Run audit log ---

// CreateRun opens a new audit entry in the running state and returns its id.
func (r *PostgresRepository) CreateRun(ctx context.Context, trigger domain.RunTrigger) (int64, error) {
	query, args, err := psql.Insert("scheduler_run_audit").
		Columns("trigger", "status").
		Values(string(trigger), string(domain.RunRunning)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build create run: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// FinalizeRun closes a run exactly once; finalizing an already finalized
// run is an error, keeping audit entries immutable after completion.
func (r *PostgresRepository) FinalizeRun(ctx context.Context, run *domain.RunRecord) error {
	failed, err := json.Marshal(run.FailedURLs)
	if err != nil {
		return fmt.Errorf("marshal failed urls: %w", err)
	}

	query, args, err := psql.Update("scheduler_run_audit").
		Set("ended_at", sq.Expr("NOW()")).
		Set("status", string(run.Status)).
		Set("urls_attempted", run.URLsAttempted).
		Set("inserted_count", run.InsertedCount).
		Set("updated_count", run.UpdatedCount).
		Set("rejected_count", run.RejectedCount).
		Set("failed_urls", failed).
		Set("error_message", nullIfEmpty(run.ErrorMessage)).
		Where(sq.Eq{"id": run.ID}).
		Where("ended_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build finalize run: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("finalize run %d: %w", run.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize run %d: %w", run.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("run %d not open for finalization", run.ID)
	}
	return nil
}

// ListRuns returns audit entries, most recent first.
func (r *PostgresRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 30
	}

	query, args, err := psql.Select(
		"id", "trigger", "status", "started_at", "ended_at",
		"urls_attempted", "inserted_count", "updated_count", "rejected_count",
		"failed_urls", "COALESCE(error_message, '')",
	).
		From("scheduler_run_audit").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list runs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var (
			run    domain.RunRecord
			ended  sql.NullTime
			failed []byte
		)
		if err := rows.Scan(
			&run.ID, &run.Trigger, &run.Status, &run.StartedAt, &ended,
			&run.URLsAttempted, &run.InsertedCount, &run.UpdatedCount, &run.RejectedCount,
			&failed, &run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			run.EndedAt = &t
		}
		if err := json.Unmarshal(failed, &run.FailedURLs); err != nil {
			return nil, fmt.Errorf("decode failed urls for run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// --- Data quality history ---

// SaveSnapshot appends one data-quality history row.
func (r *PostgresRepository) SaveSnapshot(ctx context.Context, source string, runID int64, snap domain.QualitySnapshot) error {
	query, args, err := psql.Insert("data_quality_history").
		Columns(
			"source", "run_id", "total_records", "trusted_records", "high_quality_records",
			"trusted_source_pct", "high_quality_pct",
			"runs_in_window", "urls_attempted", "records_inserted", "url_failures",
		).
		Values(
			clip(source, 80),
			nullIfZero64(runID),
			snap.TotalRecords,
			snap.TrustedRecords,
			snap.HighQualityRecords,
			snap.TrustedSourcePct,
			snap.HighQualityPct,
			snap.RecentRuns.Runs,
			snap.RecentRuns.URLsAttempted,
			snap.RecentRuns.Inserted,
			snap.RecentRuns.URLFailures,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save snapshot: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns history rows, most recent first.
func (r *PostgresRepository) ListSnapshots(ctx context.Context, limit int) ([]domain.QualitySnapshot, error) {
	if limit <= 0 {
		limit = 30
	}

	query, args, err := psql.Select(
		"captured_at", "total_records", "trusted_records", "high_quality_records",
		"trusted_source_pct", "high_quality_pct",
		"runs_in_window", "urls_attempted", "records_inserted", "url_failures",
	).
		From("data_quality_history").
		OrderBy("captured_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list snapshots: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.QualitySnapshot
	for rows.Next() {
		var snap domain.QualitySnapshot
		if err := rows.Scan(
			&snap.CapturedAt, &snap.TotalRecords, &snap.TrustedRecords, &snap.HighQualityRecords,
			&snap.TrustedSourcePct, &snap.HighQualityPct,
			&snap.RecentRuns.Runs, &snap.RecentRuns.URLsAttempted,
			&snap.RecentRuns.Inserted, &snap.RecentRuns.URLFailures,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.RecentRuns.URLsAttempted > 0 {
			snap.RecentRuns.FailureRate = float64(snap.RecentRuns.URLFailures) / float64(snap.RecentRuns.URLsAttempted)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// clip truncates on a rune boundary; Postgres rejects strings carrying a
// split multibyte sequence.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func nullIfZero64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
