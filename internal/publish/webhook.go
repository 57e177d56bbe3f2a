package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/shukpa/astrophysics-data-engineering/internal/escalate"
)

const webhookTimeout = 10 * time.Second

// Webhook posts escalation events to per-queue webhook endpoints. Queues
// without a configured URL are silently skipped, which lets deployments wire
// only the sinks they consume.
type Webhook struct {
	urls   map[escalate.Queue]string
	client *http.Client
	logger log.Logger
}

// NewWebhook creates a webhook sink from a queue-to-URL map.
func NewWebhook(urls map[escalate.Queue]string, logger log.Logger) *Webhook {
	if logger == nil {
		logger = log.Nop()
	}
	return &Webhook{
		urls:   urls,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

// Publish posts the event to the queue's webhook.
func (w *Webhook) Publish(ctx context.Context, queue escalate.Queue, ev *escalate.Event) error {
	url, ok := w.urls[queue]
	if !ok || url == "" {
		w.logger.Info(ctx, "no webhook for queue, event not forwarded",
			"queue", string(queue),
			"candid", ev.Decision.CandidateID,
		)
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req) //nolint:gosec // G704: url is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("webhook: post %s: %w", queue, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook: %s returned %d: %s", queue, resp.StatusCode, string(respBody))
	}
	return nil
}
