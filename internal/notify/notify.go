// Package notify posts the run summary to an operator-configured webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/WaffleThief123/container-backup/internal/pipeline"
)

const maxRetries = 3

type Notifier struct {
	URL    string
	Client *http.Client
}

func New(url string) *Notifier {
	return &Notifier{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

type payload struct {
	Event     string          `json:"event"`
	Status    string          `json:"status"`
	StartedAt time.Time       `json:"started_at"`
	Duration  string          `json:"duration"`
	Services  int             `json:"services"`
	Errors    int             `json:"errors"`
	SizeBytes int64           `json:"size_bytes"`
	Deleted   int             `json:"deleted_archives"`
	Details   []serviceDetail `json:"details"`
}

type serviceDetail struct {
	Service string   `json:"service"`
	Stage   string   `json:"stage"`
	Archive string   `json:"archive,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func buildPayload(summary *pipeline.Summary) payload {
	status := "success"
	if summary.Failed() {
		status = "failure"
	}

	p := payload{
		Event:     "backup-finished",
		Status:    status,
		StartedAt: summary.StartedAt,
		Duration:  summary.Duration,
		Services:  summary.Services,
		Errors:    summary.Errors,
		SizeBytes: summary.SizeBytes,
		Deleted:   summary.Deleted,
	}
	for _, s := range summary.Statuses {
		p.Details = append(p.Details, serviceDetail{
			Service: s.Service,
			Stage:   string(s.Stage),
			Archive: s.Archive,
			Errors:  s.Errors,
		})
	}
	return p
}

// Send posts the summary to the webhook, retrying transient failures with
// exponential backoff. A missing URL disables notification.
func (n *Notifier) Send(ctx context.Context, summary *pipeline.Summary) error {
	if n.URL == "" {
		return nil
	}

	body, err := json.Marshal(buildPayload(summary))
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned %s", resp.Status)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("failed to deliver webhook notification: %w", err)
	}
	slog.Info("Webhook notification delivered", "url", n.URL)
	return nil
}
