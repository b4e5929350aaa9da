// Package registry loads the editable list of public source URLs. The file
// is re-read on every Load so edits take effect on the next run without a
// restart.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"LegalCorpus/internal/domain"
	"LegalCorpus/internal/ports"
)

// FileRegistry reads source entries from a YAML file.
type FileRegistry struct {
	path   string
	logger *slog.Logger
}

var _ ports.SourceRegistry = (*FileRegistry)(nil)

// NewFileRegistry points the registry at a sources file.
func NewFileRegistry(path string, logger *slog.Logger) *FileRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRegistry{path: path, logger: logger}
}

type sourcesFile struct {
	Sources []domain.SourceEntry `yaml:"sources"`
}

// Load parses the sources file. Invalid entries are skipped and logged so a
// single bad edit never blocks the whole refresh; a missing file yields an
// empty list.
func (r *FileRegistry) Load(_ context.Context) ([]domain.SourceEntry, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Warn("sources file missing", "path", r.path)
			return nil, nil
		}
		return nil, fmt.Errorf("read sources file %s: %w", r.path, err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", r.path, err)
	}

	entries := make([]domain.SourceEntry, 0, len(file.Sources))
	for i, entry := range file.Sources {
		entry.State = domain.State(strings.ToLower(strings.TrimSpace(string(entry.State))))
		entry.URL = strings.TrimSpace(entry.URL)

		if err := validate(entry); err != nil {
			r.logger.Warn("skipping source entry", "index", i, "url", entry.URL, "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func validate(entry domain.SourceEntry) error {
	if !domain.SupportedState(entry.State) {
		return fmt.Errorf("unsupported state %q", entry.State)
	}
	switch entry.DocumentType {
	case domain.DocumentStatute, domain.DocumentPrecedent:
	default:
		return fmt.Errorf("unsupported document type %q", entry.DocumentType)
	}
	parsed, err := url.Parse(entry.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid url %q", entry.URL)
	}
	return nil
}
