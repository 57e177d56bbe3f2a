package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config adds pipeline-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	Shards                int
	ShardQueueDepth       int
	CatalogEndpoints      string
	ClassifierEndpoint    string
	ConeRadiusArcsec      float64
	TemplatePath          string
	ThresholdPath         string
	ScoreWindowSeconds    int
	HumanReviewPerMinute  int
	ClaudeAPIKey          string
	ClaudeModel           string
	QueueWebhookURLs      string
	APITokens             string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight alerts to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory ledger and dedup index)")
	fs.IntVar(&c.Shards, "shards", 4, "number of pipeline partitions, one worker each (1..256)")
	fs.IntVar(&c.ShardQueueDepth, "shard-queue-depth", 256, "buffered alerts per shard before intake blocks")
	fs.StringVar(&c.CatalogEndpoints, "catalog-endpoints", "", "comma-separated name=url pairs of cross-match catalog services")
	fs.StringVar(&c.ClassifierEndpoint, "classifier-endpoint", "", "URL of the light-curve classifier service (empty = degrade to Unknown)")
	fs.Float64Var(&c.ConeRadiusArcsec, "cone-radius-arcsec", 5, "cross-match cone search radius in arcseconds")
	fs.StringVar(&c.TemplatePath, "template-path", "", "path to the versioned class template YAML (empty = template-free scoring)")
	fs.StringVar(&c.ThresholdPath, "threshold-path", "", "path to the escalation threshold YAML (empty = built-in defaults)")
	fs.IntVar(&c.ScoreWindowSeconds, "score-window-seconds", 3600, "sliding window for the false-alarm correction count")
	fs.IntVar(&c.HumanReviewPerMinute, "human-review-per-minute", 10, "max human-review escalations per minute (0 = unlimited)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the specialist review provider (empty = no specialist)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model for specialist review")
	fs.StringVar(&c.QueueWebhookURLs, "queue-webhook-urls", "", "comma-separated queue=url pairs for decision delivery (empty = in-memory sink)")
	fs.StringVar(&c.APITokens, "api-tokens", "", "comma-separated bearer tokens accepted by the intake API (empty = no auth)")
}

// Tokens returns the accepted API bearer tokens, if any.
func (c *Config) Tokens() []string {
	if strings.TrimSpace(c.APITokens) == "" {
		return nil
	}
	parts := strings.Split(c.APITokens, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.Shards <= 0 || c.Shards > 256 {
		errs = append(errs, fmt.Errorf("invalid SHARDS %d (must be 1..256)", c.Shards))
	}
	if c.ShardQueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("invalid SHARD_QUEUE_DEPTH %d (must be positive)", c.ShardQueueDepth))
	}

	if c.ConeRadiusArcsec <= 0 || c.ConeRadiusArcsec > 60 {
		errs = append(errs, fmt.Errorf("invalid CONE_RADIUS_ARCSEC %g (must be in (0,60])", c.ConeRadiusArcsec))
	}
	if c.ScoreWindowSeconds <= 0 {
		errs = append(errs, fmt.Errorf("invalid SCORE_WINDOW_SECONDS %d (must be positive)", c.ScoreWindowSeconds))
	}
	if c.HumanReviewPerMinute < 0 {
		errs = append(errs, fmt.Errorf("invalid HUMAN_REVIEW_PER_MINUTE %d (must be >= 0)", c.HumanReviewPerMinute))
	}

	if _, err := ParsePairs(c.CatalogEndpoints); err != nil {
		errs = append(errs, fmt.Errorf("invalid CATALOG_ENDPOINTS: %w", err))
	}
	if _, err := ParsePairs(c.QueueWebhookURLs); err != nil {
		errs = append(errs, fmt.Errorf("invalid QUEUE_WEBHOOK_URLS: %w", err))
	}

	// A specialist model must be named whenever a key is configured
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
