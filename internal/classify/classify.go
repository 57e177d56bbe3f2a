// Package classify implements the ML classifier collaborator client. The
// collaborator receives normalized light-curve features and returns a primary
// label with independent per-class confidences. Callers degrade to Unknown on
// error; this client only reports the failure.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
	"github.com/shukpa/astrophysics-data-engineering/internal/enrich"
	"github.com/shukpa/astrophysics-data-engineering/internal/retry"
)

// Client calls the classification service. It implements enrich.Classifier.
type Client struct {
	endpoint   string
	policy     retry.Policy
	httpClient *http.Client
}

// New creates a classifier client with the given call policy.
func New(endpoint string, policy retry.Policy) *Client {
	return &Client{
		endpoint:   endpoint,
		policy:     policy,
		httpClient: &http.Client{},
	}
}

type classifyResponse struct {
	PrimaryLabel      string  `json:"primary_label"`
	PrimaryConfidence float64 `json:"primary_confidence"`
	AlternativeLabels []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"alternative_labels,omitempty"`
}

// Classify sends features to the collaborator and maps the response onto the
// open label set. Unrecognized labels come back as Other with the raw string
// preserved.
func (c *Client) Classify(ctx context.Context, f enrich.Features) (*enrich.Classification, error) {
	var out classifyResponse

	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.post(ctx, f, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	cl := &enrich.Classification{
		Primary:    alert.ParseLabel(out.PrimaryLabel),
		Confidence: clamp01(out.PrimaryConfidence),
	}
	for _, a := range out.AlternativeLabels {
		cl.Alternatives = append(cl.Alternatives, enrich.LabelScore{
			Label:      alert.ParseLabel(a.Label),
			Confidence: clamp01(a.Confidence),
		})
	}
	return cl, nil
}

func (c *Client) post(ctx context.Context, f enrich.Features, out *classifyResponse) error {
	body, err := json.Marshal(map[string]any{"features": f})
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/api/v1/classify", bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classify request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("classifier returned %d: %s", resp.StatusCode, string(respBody))
	case resp.StatusCode != http.StatusOK:
		return retry.Permanent(
			fmt.Errorf("classifier returned %d: %s", resp.StatusCode, string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
