package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/channeldesk/dialog-engine/internal/model"
)

const defaultClaudeModel = "claude-3-5-haiku-20241022"

// AnthropicClient serves Claude-class completions.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a Claude-class client.
func NewAnthropicClient(apiKey, modelName string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	if modelName == "" {
		modelName = defaultClaudeModel
	}

	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  modelName,
	}, nil
}

// Provider returns the provider family.
func (c *AnthropicClient) Provider() model.AssistantProvider {
	return model.ProviderClaude
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, prompt, contextText string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(c.model),
		MaxTokens: anthropic.F(int64(completionMaxTokens)),
		System: anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(prompt),
		}}),
		Messages: anthropic.F([]anthropic.MessageParam{{
			Role: anthropic.F(anthropic.MessageParamRoleUser),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(contextText),
				},
			}),
		}}),
	})
	if err != nil {
		return "", fmt.Errorf("claude completion: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}
	if content == "" {
		return "", errors.New("claude completion: empty response")
	}

	return content, nil
}
