package domain

import "time"

// State enumerates the jurisdictions the corpus covers. Records tagged
// "all" apply to every supported state.
type State string

const (
	StateAndhraPradesh State = "andhra pradesh"
	StateTelangana     State = "telangana"
	StateAll           State = "all"
)

// SupportedState reports whether s is one of the configured jurisdictions.
func SupportedState(s State) bool {
	switch s {
	case StateAndhraPradesh, StateTelangana, StateAll:
		return true
	}
	return false
}

// DocumentType distinguishes statute reference entries from precedent pages.
type DocumentType string

const (
	DocumentStatute   DocumentType = "statute"
	DocumentPrecedent DocumentType = "precedent"
)

// SourceEntry is one configured public URL in the source registry.
type SourceEntry struct {
	State        State        `yaml:"state"`
	DocumentType DocumentType `yaml:"document_type"`
	URL          string       `yaml:"url"`
}

// StatuteRecord maps a legacy code/section to its successor code/section.
// Natural key: (state, legacy_code, legacy_section, new_code, new_section).
type StatuteRecord struct {
	State         State
	LegacyCode    string
	LegacySection string
	NewCode       string
	NewSection    string
	Title         string
	Keywords      []string
	SourceURL     string
}

// PrecedentRecord is one ingested judgment or reference page.
// Natural key: (state, citation); citation defaults to the source URL when
// the page carries no formal citation.
type PrecedentRecord struct {
	State     State
	Title     string
	Citation  string
	Court     string
	Year      int
	Topics    []string
	Snippet   string
	SourceURL string
}

// ExtractedPage is the fetcher's normalized view of one public page.
type ExtractedPage struct {
	Title     string
	Snippet   string
	SourceURL string
}

// StateCount pairs a state with its corpus record count.
type StateCount struct {
	State State `json:"state"`
	Count int   `json:"count"`
}

// DomainCount pairs a source host with its corpus record count.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// QualityFact is the minimal projection of a corpus record the data
// quality reporter classifies.
type QualityFact struct {
	State     State
	Title     string
	Citation  string
	Snippet   string
	SourceURL string
}

// QualitySnapshot is a point-in-time view of corpus trust and quality.
type QualitySnapshot struct {
	CapturedAt         time.Time     `json:"captured_at"`
	TotalRecords       int           `json:"total_records"`
	TrustedRecords     int           `json:"trusted_records"`
	HighQualityRecords int           `json:"high_quality_records"`
	TrustedSourcePct   float64       `json:"trusted_source_pct"`
	HighQualityPct     float64       `json:"high_quality_pct"`
	TopDomains         []DomainCount `json:"top_domains"`
	StateDistribution  []StateCount  `json:"state_distribution"`
	RecentRuns         RunWindow     `json:"recent_runs"`
}

// RunWindow aggregates outcomes over the most recent scheduler runs.
type RunWindow struct {
	Runs          int     `json:"runs"`
	URLsAttempted int     `json:"urls_attempted"`
	Inserted      int     `json:"inserted"`
	URLFailures   int     `json:"url_failures"`
	FailureRate   float64 `json:"failure_rate"`
}
