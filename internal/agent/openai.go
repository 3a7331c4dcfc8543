// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"

	"github.com/pdiddy/deep-research/pkg/types"
)

// OpenAIAgent runs iterations against an OpenAI-compatible chat completions
// endpoint.
type OpenAIAgent struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIAgent creates an OpenAIAgent from cfg. Extra request options are
// applied after those derived from cfg.
func NewOpenAIAgent(cfg types.AIConfig, extra ...ooption.RequestOption) *OpenAIAgent {
	opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, ooption.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	maxTokens := int64(defaultMaxTokens)
	if cfg.MaxTokens > 0 {
		maxTokens = int64(cfg.MaxTokens)
	}
	return &OpenAIAgent{
		client:    openai.NewClient(opts...),
		model:     strings.TrimSpace(cfg.Model),
		maxTokens: maxTokens,
	}
}

// Name returns the provider and model.
func (o *OpenAIAgent) Name() string { return "openai/" + o.model }

// Run sends the prompt as a single user message and returns the first choice.
func (o *OpenAIAgent) Run(ctx context.Context, prompt string) (Response, error) {
	if o.model == "" {
		return Response{}, errors.New("missing model")
	}
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		MaxCompletionTokens: openai.Int(o.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, errors.New("OpenAI API returned no choices")
	}

	text := completion.Choices[0].Message.Content
	findings, rejected := ParseFindings(text)
	return Response{Text: text, Findings: findings, Rejected: rejected}, nil
}
