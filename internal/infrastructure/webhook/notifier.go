// Package webhook posts run-failure alerts to a configured destination.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"LegalCorpus/internal/domain"
	"LegalCorpus/internal/ports"
)

// Notifier sends a single JSON alert per troubled run.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the alert destination.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 12 * time.Second},
	}
}

// NotifyRunFailure posts the alert payload. The caller logs errors; a
// failed alert never fails the run that raised it.
func (n *Notifier) NotifyRunFailure(ctx context.Context, alert domain.RunAlert) error {
	if n.webhookURL == "" {
		return fmt.Errorf("alert webhook misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"text":         "legal corpus refresh needs attention",
		"run_id":       alert.RunID,
		"reason":       alert.Reason,
		"failed_count": alert.FailedCount,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("alert webhook error: %s", resp.Status)
	}

	return nil
}
