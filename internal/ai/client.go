// Package ai wraps the Anthropic SDK behind the narrow completion contract
// the pipeline depends on. Providers are treated as unreliable, rate-limited,
// non-transactional resources: every call carries a timeout, and callers must
// never assume a failed-looking call had no billable side effect.
package ai

import (
	"context"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the AI provider operations used by the pipeline.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompletionRequest is our own request type for Complete.
type CompletionRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int64
}

// Citation is a source URL the provider returned for its answer.
type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Completion is the provider's answer plus any citations it attached.
type Completion struct {
	Text      string
	Citations []Citation
	Usage     TokenUsage
}

// TokenUsage tracks token consumption for cost attribution.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client  sdk.Client
	timeout time.Duration
}

// NewClient creates an Anthropic-backed client. timeout bounds each call;
// zero means 60s.
func NewClient(apiKey string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
		timeout: timeout,
	}
}

func (c *sdkClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "ai: complete")
	}

	return fromSDKMessage(msg), nil
}

func fromSDKMessage(msg *sdk.Message) *Completion {
	out := &Completion{
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
		for _, cit := range block.Citations {
			if cit.URL != "" {
				out.Citations = append(out.Citations, Citation{
					URL:   cit.URL,
					Title: cit.Title,
				})
			}
		}
	}
	out.Text = joinBlocks(parts)

	return out
}
