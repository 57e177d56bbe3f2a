package specialist

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/linnemanlabs/go-core/log"

	"github.com/shukpa/astrophysics-data-engineering/internal/retry"
)

const responseTokens = 1024

const systemPrompt = `You are a transient astronomy specialist reviewing one alert that the
automated pipeline flagged. You receive the enriched alert and its anomaly
assessment as JSON.

Respond with a single JSON object and nothing else:
{"verdict": "confirm" | "downgrade" | "escalate" | "needs-context",
 "rationale": "<one or two sentences>",
 "requested_context": "<only with needs-context>"}

confirm: the assessment is sound as routed.
downgrade: the deviation is likely instrumental or a known variable.
escalate: the evidence warrants more urgent attention than routed.
needs-context: name the single most useful missing piece of information.`

// Claude reviews assessments via the Anthropic API. Implements Reviewer.
type Claude struct {
	client anthropic.Client
	model  anthropic.Model
	policy retry.Policy
	logger log.Logger
}

// NewClaude creates a Claude-backed reviewer.
func NewClaude(apiKey, model string, policy retry.Policy, logger log.Logger) *Claude {
	if logger == nil {
		logger = log.Nop()
	}
	return &Claude{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
		policy: policy,
		logger: logger,
	}
}

// Review performs the single specialist round trip under the call policy.
func (c *Claude) Review(ctx context.Context, req *Request) (*Assessment, error) {
	prompt := fmt.Sprintf("Enriched alert:\n%s\n\nAnomaly assessment:\n%s\n\nReview and respond.",
		string(req.Enriched), string(req.Assessment))

	var out *Assessment
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: responseTokens,
			System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return fmt.Errorf("specialist call: %w", err)
		}

		var text string
		for _, block := range msg.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}

		a, ok := parseAssessment(text)
		if !ok {
			// Malformed output will not improve on transport retry.
			return retry.Permanent(fmt.Errorf("specialist returned unparseable assessment: %.200s", text))
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "specialist review complete",
		"verdict", out.Verdict,
	)
	return out, nil
}
