package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		Shards:                4,
		ShardQueueDepth:       256,
		ConeRadiusArcsec:      5,
		ScoreWindowSeconds:    3600,
		HumanReviewPerMinute:  10,
		ClaudeAPIKey:          "sk-test-key",
		ClaudeModel:           "claude-sonnet-4-20250514",
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.Shards != 4 {
		t.Errorf("Shards = %d, want 4", c.Shards)
	}
	if c.ShardQueueDepth != 256 {
		t.Errorf("ShardQueueDepth = %d, want 256", c.ShardQueueDepth)
	}
	if c.ScoreWindowSeconds != 3600 {
		t.Errorf("ScoreWindowSeconds = %d, want 3600", c.ScoreWindowSeconds)
	}
	if c.HumanReviewPerMinute != 10 {
		t.Errorf("HumanReviewPerMinute = %d, want 10", c.HumanReviewPerMinute)
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-sonnet-4-20250514")
	}

	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-shards", "16",
		"-catalog-endpoints", "simbad=http://simbad:8000,gaia=http://gaia:8000",
		"-classifier-endpoint", "http://classifier:8000",
		"-template-path", "/etc/ade/templates.yaml",
		"-human-review-per-minute", "3",
		"-claude-api-key", "sk-override",
		"-claude-model", "claude-opus-4-20250514",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.Shards != 16 {
		t.Errorf("Shards = %d, want 16", c.Shards)
	}
	if c.CatalogEndpoints != "simbad=http://simbad:8000,gaia=http://gaia:8000" {
		t.Errorf("CatalogEndpoints = %q", c.CatalogEndpoints)
	}
	if c.ClassifierEndpoint != "http://classifier:8000" {
		t.Errorf("ClassifierEndpoint = %q", c.ClassifierEndpoint)
	}
	if c.TemplatePath != "/etc/ade/templates.yaml" {
		t.Errorf("TemplatePath = %q", c.TemplatePath)
	}
	if c.HumanReviewPerMinute != 3 {
		t.Errorf("HumanReviewPerMinute = %d, want 3", c.HumanReviewPerMinute)
	}
	if c.ClaudeAPIKey != "sk-override" {
		t.Errorf("ClaudeAPIKey = %q, want %q", c.ClaudeAPIKey, "sk-override")
	}
	if c.ClaudeModel != "claude-opus-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-opus-4-20250514")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "base is valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "minimum valid values",
			mutate: func(c *Config) {
				c.DrainSeconds = 1
				c.ShutdownBudgetSeconds = 2
				c.APIPort = 1
				c.Shards = 1
				c.ShardQueueDepth = 1
				c.ScoreWindowSeconds = 1
				c.HumanReviewPerMinute = 0
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			mutate: func(c *Config) {
				c.DrainSeconds = 299
				c.ShutdownBudgetSeconds = 300
				c.APIPort = 65535
				c.Shards = 256
				c.ConeRadiusArcsec = 60
			},
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			mutate:    func(c *Config) { c.DrainSeconds = 0 },
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			mutate:    func(c *Config) { c.DrainSeconds = 301; c.ShutdownBudgetSeconds = 302 },
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			mutate:    func(c *Config) { c.ShutdownBudgetSeconds = c.DrainSeconds },
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:      "budget less than drain",
			mutate:    func(c *Config) { c.ShutdownBudgetSeconds = 30 },
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		// APIPort boundaries
		{
			name:      "port zero",
			mutate:    func(c *Config) { c.APIPort = 0 },
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			mutate:    func(c *Config) { c.APIPort = 65536 },
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Pipeline sizing
		{
			name:      "shards zero",
			mutate:    func(c *Config) { c.Shards = 0 },
			wantErr:   true,
			errSubstr: []string{"SHARDS"},
		},
		{
			name:      "shards above max",
			mutate:    func(c *Config) { c.Shards = 257 },
			wantErr:   true,
			errSubstr: []string{"SHARDS"},
		},
		{
			name:      "queue depth zero",
			mutate:    func(c *Config) { c.ShardQueueDepth = 0 },
			wantErr:   true,
			errSubstr: []string{"SHARD_QUEUE_DEPTH"},
		},
		// Domain knobs
		{
			name:      "cone radius zero",
			mutate:    func(c *Config) { c.ConeRadiusArcsec = 0 },
			wantErr:   true,
			errSubstr: []string{"CONE_RADIUS_ARCSEC"},
		},
		{
			name:      "cone radius too wide",
			mutate:    func(c *Config) { c.ConeRadiusArcsec = 61 },
			wantErr:   true,
			errSubstr: []string{"CONE_RADIUS_ARCSEC"},
		},
		{
			name:      "score window zero",
			mutate:    func(c *Config) { c.ScoreWindowSeconds = 0 },
			wantErr:   true,
			errSubstr: []string{"SCORE_WINDOW_SECONDS"},
		},
		{
			name:      "negative review rate",
			mutate:    func(c *Config) { c.HumanReviewPerMinute = -1 },
			wantErr:   true,
			errSubstr: []string{"HUMAN_REVIEW_PER_MINUTE"},
		},
		// Pair lists
		{
			name:      "malformed catalog endpoints",
			mutate:    func(c *Config) { c.CatalogEndpoints = "simbad" },
			wantErr:   true,
			errSubstr: []string{"CATALOG_ENDPOINTS"},
		},
		{
			name:      "malformed queue webhook urls",
			mutate:    func(c *Config) { c.QueueWebhookURLs = "human-review=" },
			wantErr:   true,
			errSubstr: []string{"QUEUE_WEBHOOK_URLS"},
		},
		{
			name:    "well-formed pairs",
			mutate:  func(c *Config) { c.QueueWebhookURLs = "human-review=http://h,specialist-review=http://s" },
			wantErr: false,
		},
		// Specialist
		{
			name:      "key without model",
			mutate:    func(c *Config) { c.ClaudeModel = "" },
			wantErr:   true,
			errSubstr: []string{"CLAUDE_MODEL"},
		},
		{
			name:    "no key and no model is fine",
			mutate:  func(c *Config) { c.ClaudeAPIKey = ""; c.ClaudeModel = "" },
			wantErr: false,
		},
		// Error accumulation
		{
			name: "multiple fields invalid",
			mutate: func(c *Config) {
				c.DrainSeconds = 0
				c.ShutdownBudgetSeconds = 0
				c.APIPort = 0
				c.Shards = 0
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "SHARDS"},
		},
		// Extreme values
		{
			name: "extreme negative values",
			mutate: func(c *Config) {
				c.DrainSeconds = math.MinInt32
				c.ShutdownBudgetSeconds = math.MinInt32
				c.APIPort = math.MinInt32
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validBase()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"single", "tok-a", 1},
		{"rotation pair", "tok-a,tok-b", 2},
		{"whitespace noise", " tok-a , , tok-b ", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Config{APITokens: tt.in}
			if got := c.Tokens(); len(got) != tt.want {
				t.Errorf("Tokens(%q) = %v, want %d entries", tt.in, got, tt.want)
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port, shards int
	}{
		{60, 90, 8080, 4},
		{1, 2, 1, 1},
		{299, 300, 65535, 256},
		{0, 0, 0, 0},
		{-1, -1, -1, -1},
		{301, 302, 65536, 257},
		{150, 100, 8080, 4},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.shards)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port, shards int) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.Shards = shards
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		shardsOK := shards >= 1 && shards <= 256
		crossOK := budget > drain

		allValid := drainOK && budgetOK && portOK && shardsOK && crossOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
