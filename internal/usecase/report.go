package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"LegalCorpus/internal/config"
	"LegalCorpus/internal/domain"
	"LegalCorpus/internal/ports"
	"LegalCorpus/internal/quality"
)

const snapshotCacheKey = "quality-snapshot"

// ReporterDeps wires the data quality reporter.
type ReporterDeps struct {
	Store  ports.CorpusStore
	RunLog ports.RunLog
	Filter *quality.Filter
	Config config.ReporterConfig
	Logger *slog.Logger
}

// Reporter computes trust/quality metrics over the corpus and recent runs.
// Snapshots are cached briefly so the endpoint stays cheap without ever
// serving indefinitely stale numbers.
type Reporter struct {
	store      ports.CorpusStore
	runlog     ports.RunLog
	filter     *quality.Filter
	cache      *gocache.Cache
	recentRuns int
	logger     *slog.Logger
}

// NewReporter builds the reporter.
func NewReporter(deps ReporterDeps) *Reporter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recentRuns := deps.Config.RecentRuns
	if recentRuns <= 0 {
		recentRuns = 20
	}
	ttl := deps.Config.CacheTTL()
	return &Reporter{
		store:      deps.Store,
		runlog:     deps.RunLog,
		filter:     deps.Filter,
		cache:      gocache.New(ttl, 2*ttl),
		recentRuns: recentRuns,
		logger:     logger,
	}
}

// Snapshot returns the current metrics, served from cache within the TTL.
// It never mutates stored data.
func (r *Reporter) Snapshot(ctx context.Context) (domain.QualitySnapshot, error) {
	if cached, ok := r.cache.Get(snapshotCacheKey); ok {
		return cached.(domain.QualitySnapshot), nil
	}

	snap, err := r.compute(ctx)
	if err != nil {
		return domain.QualitySnapshot{}, err
	}

	r.cache.SetDefault(snapshotCacheKey, snap)
	return snap, nil
}

// Capture computes a fresh snapshot and appends it to the history table.
// Called at the end of every run.
func (r *Reporter) Capture(ctx context.Context, source string, runID int64) error {
	snap, err := r.compute(ctx)
	if err != nil {
		return err
	}
	r.cache.SetDefault(snapshotCacheKey, snap)
	return r.runlog.SaveSnapshot(ctx, source, runID, snap)
}

// History returns stored snapshots, most recent first.
func (r *Reporter) History(ctx context.Context, limit int) ([]domain.QualitySnapshot, error) {
	return r.runlog.ListSnapshots(ctx, limit)
}

func (r *Reporter) compute(ctx context.Context) (domain.QualitySnapshot, error) {
	facts, err := r.store.QualityFacts(ctx)
	if err != nil {
		return domain.QualitySnapshot{}, fmt.Errorf("load corpus facts: %w", err)
	}

	snap := domain.QualitySnapshot{
		CapturedAt:   time.Now().UTC(),
		TotalRecords: len(facts),
	}

	domainCounts := map[string]int{}
	stateCounts := map[domain.State]int{}

	for _, fact := range facts {
		stateCounts[fact.State]++
		domainCounts[hostOf(fact.SourceURL)]++

		if r.filter.TrustedURL(fact.SourceURL) {
			snap.TrustedRecords++
		}
		if r.isHighQuality(fact) {
			snap.HighQualityRecords++
		}
	}

	// Percentages are 0 for an empty corpus, never a division by zero.
	if snap.TotalRecords > 0 {
		snap.TrustedSourcePct = round2(float64(snap.TrustedRecords) * 100 / float64(snap.TotalRecords))
		snap.HighQualityPct = round2(float64(snap.HighQualityRecords) * 100 / float64(snap.TotalRecords))
	}

	snap.TopDomains = topDomains(domainCounts, 10)
	snap.StateDistribution = stateDistribution(stateCounts)

	window, err := r.runWindow(ctx)
	if err != nil {
		return domain.QualitySnapshot{}, err
	}
	snap.RecentRuns = window

	return snap, nil
}

// isHighQuality mirrors the ingestion filter: trusted source, real content,
// and a non-empty citation.
func (r *Reporter) isHighQuality(fact domain.QualityFact) bool {
	if strings.TrimSpace(fact.Citation) == "" {
		return false
	}
	verdict, _ := r.filter.Check(fact.Title, fact.Snippet, fact.SourceURL)
	return verdict == quality.HighQuality
}

func (r *Reporter) runWindow(ctx context.Context) (domain.RunWindow, error) {
	runs, err := r.runlog.ListRuns(ctx, r.recentRuns)
	if err != nil {
		return domain.RunWindow{}, fmt.Errorf("load recent runs: %w", err)
	}

	window := domain.RunWindow{Runs: len(runs)}
	for _, run := range runs {
		window.URLsAttempted += run.URLsAttempted
		window.Inserted += run.InsertedCount
		window.URLFailures += len(run.FailedURLs)
	}
	if window.URLsAttempted > 0 {
		window.FailureRate = round2(float64(window.URLFailures) / float64(window.URLsAttempted))
	}
	return window, nil
}

func hostOf(raw string) string {
	if raw == "" {
		return "unknown"
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(parsed.Hostname())
}

func topDomains(counts map[string]int, limit int) []domain.DomainCount {
	out := make([]domain.DomainCount, 0, len(counts))
	for host, count := range counts {
		out = append(out, domain.DomainCount{Domain: host, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func stateDistribution(counts map[domain.State]int) []domain.StateCount {
	out := make([]domain.StateCount, 0, len(counts))
	for state, count := range counts {
		out = append(out, domain.StateCount{State: state, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].State < out[j].State
	})
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
