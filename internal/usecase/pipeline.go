package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"LegalCorpus/internal/domain"
	"LegalCorpus/internal/infrastructure/fetcher"
	"LegalCorpus/internal/ports"
	"LegalCorpus/internal/quality"
)

// PipelineDeps wires the driven adapters into the ingestion workflow.
type PipelineDeps struct {
	Fetcher ports.PageFetcher
	Store   ports.CorpusStore
	Filter  *quality.Filter
	// RejectLowQuality drops thin-but-trusted records instead of storing
	// them.
	RejectLowQuality bool
	Logger           *slog.Logger
}

// Pipeline processes ingestion batches item by item. A failure on one item
// never aborts the batch; only a store failure does.
type Pipeline struct {
	fetcher   ports.PageFetcher
	store     ports.CorpusStore
	filter    *quality.Filter
	rejectLow bool
	logger    *slog.Logger
}

// Batch aggregates per-item outcomes of one ingestion call. The counters
// always sum to the number of input items.
type Batch struct {
	Outcomes []domain.IngestionOutcome `json:"outcomes"`
	Inserted int                       `json:"inserted"`
	Updated  int                       `json:"updated"`
	Rejected int                       `json:"rejected"`
	Failed   int                       `json:"failed"`
}

func (b *Batch) add(outcome domain.IngestionOutcome) {
	b.Outcomes = append(b.Outcomes, outcome)
	switch outcome.Result {
	case domain.ResultInserted:
		b.Inserted++
	case domain.ResultUpdated:
		b.Updated++
	case domain.ResultRejectedLow, domain.ResultRejectedUntrusted:
		b.Rejected++
	case domain.ResultFailed:
		b.Failed++
	}
}

// FailedURLs returns the batch's failures in input order.
func (b *Batch) FailedURLs() []domain.FailedURL {
	var failed []domain.FailedURL
	for _, outcome := range b.Outcomes {
		if outcome.Result == domain.ResultFailed {
			failed = append(failed, domain.FailedURL{URL: outcome.Identifier, Reason: outcome.Reason})
		}
	}
	return failed
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher:   deps.Fetcher,
		store:     deps.Store,
		filter:    deps.Filter,
		rejectLow: deps.RejectLowQuality,
		logger:    logger,
	}
}

// IngestURLs fetches each URL in order, filters the extraction, and upserts
// accepted records. Per-URL errors become outcomes; a store error aborts
// the batch and is returned alongside the partial outcomes.
func (p *Pipeline) IngestURLs(ctx context.Context, state domain.State, docType domain.DocumentType, urls []string) (Batch, error) {
	var batch Batch

	if !domain.SupportedState(state) {
		for _, url := range urls {
			batch.add(domain.IngestionOutcome{Identifier: url, Result: domain.ResultFailed, Reason: "invalid_row"})
		}
		return batch, nil
	}

	for _, url := range urls {
		page, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			p.logger.Debug("fetch failed", "url", url, "error", err)
			batch.add(domain.IngestionOutcome{Identifier: url, Result: domain.ResultFailed, Reason: fetcher.Reason(err)})
			continue
		}

		verdict, reason := p.filter.Check(page.Title, page.Snippet, url)
		if outcome, rejected := p.rejectionOutcome(url, verdict, reason); rejected {
			batch.add(outcome)
			continue
		}

		rec := pageToPrecedent(state, docType, page)
		inserted, err := p.store.UpsertPrecedent(ctx, rec)
		if err != nil {
			batch.add(domain.IngestionOutcome{Identifier: url, Result: domain.ResultFailed, Reason: "store_error"})
			return batch, fmt.Errorf("upsert %s: %w", url, err)
		}
		batch.add(upsertOutcome(url, inserted))
	}

	return batch, nil
}

// rejectionOutcome maps a filter verdict to a rejection outcome, honoring
// the low-quality storage policy.
func (p *Pipeline) rejectionOutcome(identifier string, verdict quality.Verdict, reason string) (domain.IngestionOutcome, bool) {
	switch verdict {
	case quality.Untrusted:
		return domain.IngestionOutcome{Identifier: identifier, Result: domain.ResultRejectedUntrusted, Reason: reason}, true
	case quality.Rejected:
		return domain.IngestionOutcome{Identifier: identifier, Result: domain.ResultRejectedLow, Reason: reason}, true
	case quality.LowQuality:
		if p.rejectLow {
			return domain.IngestionOutcome{Identifier: identifier, Result: domain.ResultRejectedLow, Reason: reason}, true
		}
	}
	return domain.IngestionOutcome{}, false
}

// pageToPrecedent shapes a fetched page into a corpus record. Public pages
// carry no formal citation, so the source URL doubles as the natural key.
func pageToPrecedent(state domain.State, docType domain.DocumentType, page domain.ExtractedPage) domain.PrecedentRecord {
	topics := []string{"public-source", string(state)}
	if docType == domain.DocumentStatute {
		topics = append(topics, "statute-reference")
	}
	return domain.PrecedentRecord{
		State:     state,
		Title:     page.Title,
		Citation:  page.SourceURL,
		Court:     "Public Source",
		Topics:    topics,
		Snippet:   page.Snippet,
		SourceURL: page.SourceURL,
	}
}

func upsertOutcome(identifier string, inserted bool) domain.IngestionOutcome {
	if inserted {
		return domain.IngestionOutcome{Identifier: identifier, Result: domain.ResultInserted}
	}
	return domain.IngestionOutcome{Identifier: identifier, Result: domain.ResultUpdated}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, "|")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
