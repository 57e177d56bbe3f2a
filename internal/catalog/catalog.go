// Package catalog implements the cross-match collaborator client: a cone
// search against an external catalog service (SIMBAD/CDS style). Every call
// is bounded by the injected retry policy; exhaustion surfaces as an error
// which the enricher degrades to an unavailable cross-match.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shukpa/astrophysics-data-engineering/internal/enrich"
	"github.com/shukpa/astrophysics-data-engineering/internal/retry"
)

// Client queries one catalog endpoint. It implements enrich.Catalog.
type Client struct {
	name       string
	endpoint   string
	policy     retry.Policy
	httpClient *http.Client
}

// New creates a catalog client. The http.Client carries no timeout of its
// own; the per-attempt timeout comes from the policy.
func New(name, endpoint string, policy retry.Policy) *Client {
	return &Client{
		name:       name,
		endpoint:   endpoint,
		policy:     policy,
		httpClient: &http.Client{},
	}
}

// Name identifies the catalog in cross-match results.
func (c *Client) Name() string { return c.name }

type coneSearchRow struct {
	ObjectID   string  `json:"object_id"`
	Separation float64 `json:"separation_arcsec"`
	ObjectType string  `json:"object_type"`
}

// CrossMatch runs a cone search around the given position. Retries follow the
// policy; HTTP 4xx responses are permanent.
func (c *Client) CrossMatch(ctx context.Context, ra, dec, radiusArcsec float64) ([]enrich.CrossMatch, error) {
	var matches []enrich.CrossMatch

	err := c.policy.Do(ctx, func(ctx context.Context) error {
		rows, err := c.coneSearch(ctx, ra, dec, radiusArcsec)
		if err != nil {
			return err
		}
		matches = matches[:0]
		for _, row := range rows {
			matches = append(matches, enrich.CrossMatch{
				Catalog:         c.name,
				MatchedObjectID: row.ObjectID,
				Separation:      row.Separation,
				ObjectType:      row.ObjectType,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", c.name, err)
	}
	return matches, nil
}

func (c *Client) coneSearch(ctx context.Context, ra, dec, radiusArcsec float64) ([]coneSearchRow, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("invalid endpoint: %w", err))
	}
	u.Path = "/api/v1/conesearch"

	q := u.Query()
	q.Set("ra", strconv.FormatFloat(ra, 'f', -1, 64))
	q.Set("dec", strconv.FormatFloat(dec, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radiusArcsec, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cone search failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(
			fmt.Errorf("catalog returned %d: %s", resp.StatusCode, string(body)))
	}

	var rows []coneSearchRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
	}
	return rows, nil
}
