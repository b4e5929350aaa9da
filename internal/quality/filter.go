// Package quality implements the trust and content-quality checks applied
// to every candidate record before it may enter the corpus. The checks are
// pure functions of the candidate and the configured allow-list/thresholds.
package quality

import (
	"net/url"
	"strings"

	"LegalCorpus/internal/config"
)

// Verdict is the filter's decision for one candidate.
type Verdict int

const (
	// Untrusted means the source domain is not on the allow-list; the
	// candidate must not be stored.
	Untrusted Verdict = iota
	// Rejected means the content is empty or placeholder-like; such
	// candidates never enter the corpus.
	Rejected
	// LowQuality means the content is real but below the length
	// threshold; storage policy decides whether it is kept.
	LowQuality
	// HighQuality means the candidate passed every check.
	HighQuality
)

// Filter evaluates candidates against a fixed allow-list and thresholds.
type Filter struct {
	trustedDomains    []string
	titlePlaceholders []string
	contentMarkers    []string
	minSnippetLen     int
}

// New builds a Filter from configuration.
func New(cfg config.QualityConfig) *Filter {
	minLen := cfg.MinSnippetLength
	if minLen <= 0 {
		minLen = 180
	}
	return &Filter{
		trustedDomains:    lowerAll(cfg.TrustedDomains),
		titlePlaceholders: lowerAll(cfg.TitlePlaceholders),
		contentMarkers:    lowerAll(cfg.ContentMarkers),
		minSnippetLen:     minLen,
	}
}

// TrustedURL reports whether the URL's host is on the allow-list, matching
// either the domain itself or any of its subdomains.
func (f *Filter) TrustedURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, domain := range f.trustedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Check classifies a candidate page. The trust check runs first, but the
// content checks apply regardless of trust, so a placeholder page from a
// trusted domain is still low quality.
func (f *Filter) Check(title, snippet, sourceURL string) (Verdict, string) {
	if !f.TrustedURL(sourceURL) {
		return Untrusted, "source domain not on allow-list"
	}
	return f.ContentQuality(title, snippet)
}

// ContentQuality applies only the content checks, for records whose
// provenance is established elsewhere.
func (f *Filter) ContentQuality(title, snippet string) (Verdict, string) {
	if verdict, reason := f.TitleQuality(title); verdict != HighQuality {
		return verdict, reason
	}

	snippet = strings.TrimSpace(snippet)
	if snippet == "" {
		return Rejected, "empty content"
	}
	loweredSnippet := strings.ToLower(snippet)
	for _, marker := range f.contentMarkers {
		if strings.Contains(loweredSnippet, marker) {
			return Rejected, "placeholder content: " + marker
		}
	}

	if len(snippet) < f.minSnippetLen {
		return LowQuality, "content below minimum length"
	}
	return HighQuality, ""
}

// TitleQuality checks only the title, for statute rows that carry no
// snippet.
func (f *Filter) TitleQuality(title string) (Verdict, string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Rejected, "empty title"
	}
	lowered := strings.ToLower(title)
	for _, placeholder := range f.titlePlaceholders {
		if lowered == placeholder {
			return Rejected, "placeholder title: " + placeholder
		}
	}
	return HighQuality, ""
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
