// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/deep-research/pkg/types"
)

const defaultMaxTokens = 4096

// ClaudeAgent runs iterations against the Anthropic Messages API.
type ClaudeAgent struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeAgent creates a ClaudeAgent from cfg. Extra request options are
// applied after those derived from cfg.
func NewClaudeAgent(cfg types.AIConfig, extra ...aoption.RequestOption) *ClaudeAgent {
	opts := []aoption.RequestOption{aoption.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, aoption.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, aoption.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	maxTokens := int64(defaultMaxTokens)
	if cfg.MaxTokens > 0 {
		maxTokens = int64(cfg.MaxTokens)
	}
	return &ClaudeAgent{
		client:    anthropic.NewClient(opts...),
		model:     strings.TrimSpace(cfg.Model),
		maxTokens: maxTokens,
	}
}

// Name returns the provider and model.
func (c *ClaudeAgent) Name() string { return "anthropic/" + c.model }

// Run sends the prompt as a single user message and collects the text blocks
// of the reply.
func (c *ClaudeAgent) Run(ctx context.Context, prompt string) (Response, error) {
	if c.model == "" {
		return Response{}, errors.New("missing model")
	}
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("calling Claude API: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) == 0 {
		return Response{}, errors.New("no text content in Claude API response")
	}

	text := strings.Join(parts, "\n")
	findings, rejected := ParseFindings(text)
	return Response{Text: text, Findings: findings, Rejected: rejected}, nil
}
