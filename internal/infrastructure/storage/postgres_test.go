package storage

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lib/pq"

	"LegalCorpus/internal/domain"
)

func TestStatuteUpsertSQL(t *testing.T) {
	t.Parallel()

	rec := domain.StatuteRecord{
		State:         domain.StateTelangana,
		LegacyCode:    "IPC",
		LegacySection: "302",
		NewCode:       "BNS",
		NewSection:    "103",
		Title:         "Punishment for murder",
		Keywords:      []string{"murder", "homicide"},
		SourceURL:     "https://indiacode.nic.in/ipc/302",
	}

	query, args, err := statuteUpsert(rec).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}

	if !strings.Contains(query, "ON CONFLICT (state, legacy_code, legacy_section, new_code, new_section)") {
		t.Fatalf("missing natural-key conflict clause: %s", query)
	}
	if !strings.Contains(query, "RETURNING (xmax = 0)") {
		t.Fatalf("missing insert/update discriminator: %s", query)
	}
	if strings.Contains(query, "DELETE") {
		t.Fatalf("upsert must never delete: %s", query)
	}
	if strings.Contains(query, "inserted_at") {
		t.Fatalf("upsert must not touch the insertion timestamp: %s", query)
	}
	if !strings.Contains(query, "$8") {
		t.Fatalf("expected dollar placeholders: %s", query)
	}
	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(args))
	}
	if _, ok := args[6].(pq.StringArray); !ok {
		t.Fatalf("keywords should bind as pq.StringArray, got %T", args[6])
	}
}

func TestPrecedentUpsertSQL(t *testing.T) {
	t.Parallel()

	rec := domain.PrecedentRecord{
		State:     domain.StateAndhraPradesh,
		Title:     strings.Repeat("t", maxTitleLen+100),
		Citation:  "AIR 1965 SC 1887",
		Court:     "Supreme Court of India",
		Topics:    []string{"theft"},
		Snippet:   strings.Repeat("s", maxSnippetLen+1),
		SourceURL: "https://indiankanoon.org/doc/1/",
	}

	query, args, err := precedentUpsert(rec).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}

	if !strings.Contains(query, "ON CONFLICT (state, citation)") {
		t.Fatalf("missing natural-key conflict clause: %s", query)
	}
	if !strings.Contains(query, "updated_at = NOW()") {
		t.Fatalf("update must refresh updated_at: %s", query)
	}
	if strings.Contains(query, "inserted_at") {
		t.Fatalf("upsert must not touch the insertion timestamp: %s", query)
	}

	title, ok := args[1].(string)
	if !ok || len(title) != maxTitleLen {
		t.Fatalf("title not clipped to %d: %T len %d", maxTitleLen, args[1], len(title))
	}
	snippet, ok := args[6].(string)
	if !ok || len(snippet) != maxSnippetLen {
		t.Fatalf("snippet not clipped to %d", maxSnippetLen)
	}
	if args[4] != nil {
		t.Fatalf("zero year should bind NULL, got %v", args[4])
	}
}

func TestClipRuneBoundary(t *testing.T) {
	t.Parallel()

	// Telugu characters are 3 bytes each; a byte cut mid-rune would make
	// Postgres reject the value as invalid UTF-8.
	long := strings.Repeat("తెలంగాణ", 600)
	for _, max := range []int{maxTitleLen, maxCitationLen, maxCourtLen, maxSnippetLen} {
		clipped := clip(long, max)
		if len(clipped) > max {
			t.Fatalf("clip(%d) returned %d bytes", max, len(clipped))
		}
		if !utf8.ValidString(clipped) {
			t.Fatalf("clip(%d) produced invalid UTF-8", max)
		}
	}

	if clip("short", 100) != "short" {
		t.Fatal("clip must not touch strings under the cap")
	}
}

func TestNullBinders(t *testing.T) {
	t.Parallel()

	if nullIfEmpty("") != nil {
		t.Fatal("empty string should bind NULL")
	}
	if nullIfEmpty("x") != "x" {
		t.Fatal("non-empty string should pass through")
	}
	if nullIfZero(0) != nil || nullIfZero(1984) != 1984 {
		t.Fatal("year binding broken")
	}
}
