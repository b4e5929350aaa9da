package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"LegalCorpus/internal/domain"
	"LegalCorpus/internal/quality"
)

// ErrBadUpload marks an upload whose header line cannot be parsed at all,
// as opposed to per-row failures which become outcomes.
var ErrBadUpload = errors.New("malformed csv upload")

// statute CSV columns: state, legacy_code, legacy_section, new_code,
// new_section, title, keywords, source_url. keywords is |-separated.
var statuteRequired = []string{"state", "legacy_code", "legacy_section", "new_code", "new_section", "title"}

// precedent CSV columns: state, title, citation, court, year, topics,
// snippet, source_url. topics is |-separated; citation falls back to
// source_url.
var precedentRequired = []string{"state", "title", "snippet"}

// IngestStatuteCSV processes uploaded statute rows. Rows failing validation
// produce a failed outcome and processing continues with the next row.
func (p *Pipeline) IngestStatuteCSV(ctx context.Context, r io.Reader) (Batch, error) {
	return p.ingestCSV(ctx, r, statuteRequired, p.statuteRow)
}

// IngestPrecedentCSV processes uploaded precedent rows.
func (p *Pipeline) IngestPrecedentCSV(ctx context.Context, r io.Reader) (Batch, error) {
	return p.ingestCSV(ctx, r, precedentRequired, p.precedentRow)
}

type rowHandler func(ctx context.Context, row map[string]string) (domain.IngestionOutcome, error)

func (p *Pipeline) ingestCSV(ctx context.Context, r io.Reader, required []string, handle rowHandler) (Batch, error) {
	var batch Batch

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		// An empty upload has nothing to report.
		return batch, nil
	}
	if err != nil {
		return batch, fmt.Errorf("%w: %v", ErrBadUpload, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	for rowNum := 1; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		identifier := "row " + strconv.Itoa(rowNum)
		if err != nil {
			batch.add(domain.IngestionOutcome{Identifier: identifier, Result: domain.ResultFailed, Reason: "invalid_row"})
			continue
		}

		row := map[string]string{}
		for i, value := range record {
			if i < len(header) {
				row[header[i]] = strings.TrimSpace(value)
			}
		}

		if !hasRequired(row, required) || !domain.SupportedState(domain.State(strings.ToLower(row["state"]))) {
			batch.add(domain.IngestionOutcome{Identifier: identifier, Result: domain.ResultFailed, Reason: "invalid_row"})
			continue
		}

		outcome, err := handle(ctx, row)
		outcome.Identifier = identifier
		batch.add(outcome)
		if err != nil {
			return batch, fmt.Errorf("row %d: %w", rowNum, err)
		}
	}

	return batch, nil
}

func (p *Pipeline) statuteRow(ctx context.Context, row map[string]string) (domain.IngestionOutcome, error) {
	if verdict, reason := p.filter.TitleQuality(row["title"]); verdict == quality.Rejected {
		return domain.IngestionOutcome{Result: domain.ResultRejectedLow, Reason: reason}, nil
	}

	rec := domain.StatuteRecord{
		State:         domain.State(strings.ToLower(row["state"])),
		LegacyCode:    row["legacy_code"],
		LegacySection: row["legacy_section"],
		NewCode:       row["new_code"],
		NewSection:    row["new_section"],
		Title:         row["title"],
		Keywords:      splitList(row["keywords"]),
		SourceURL:     row["source_url"],
	}

	inserted, err := p.store.UpsertStatute(ctx, rec)
	if err != nil {
		return domain.IngestionOutcome{Result: domain.ResultFailed, Reason: "store_error"}, err
	}
	return upsertOutcome("", inserted), nil
}

func (p *Pipeline) precedentRow(ctx context.Context, row map[string]string) (domain.IngestionOutcome, error) {
	citation := row["citation"]
	if citation == "" {
		citation = row["source_url"]
	}
	if citation == "" {
		return domain.IngestionOutcome{Result: domain.ResultFailed, Reason: "invalid_row"}, nil
	}

	verdict, reason := p.filter.Check(row["title"], row["snippet"], row["source_url"])
	if outcome, rejected := p.rejectionOutcome("", verdict, reason); rejected {
		return outcome, nil
	}

	year := 0
	if raw := row["year"]; raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			year = parsed
		}
	}

	court := row["court"]
	if court == "" {
		court = "Public Source"
	}

	rec := domain.PrecedentRecord{
		State:     domain.State(strings.ToLower(row["state"])),
		Title:     row["title"],
		Citation:  citation,
		Court:     court,
		Year:      year,
		Topics:    splitList(row["topics"]),
		Snippet:   row["snippet"],
		SourceURL: row["source_url"],
	}

	inserted, err := p.store.UpsertPrecedent(ctx, rec)
	if err != nil {
		return domain.IngestionOutcome{Result: domain.ResultFailed, Reason: "store_error"}, err
	}
	return upsertOutcome("", inserted), nil
}

func hasRequired(row map[string]string, required []string) bool {
	for _, column := range required {
		if row[column] == "" {
			return false
		}
	}
	return true
}
