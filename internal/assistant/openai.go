package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/channeldesk/dialog-engine/internal/model"
)

const (
	defaultGPTModel  = "gpt-4o-mini"
	defaultGrokModel = "grok-2-latest"

	grokBaseURL = "https://api.x.ai/v1"

	completionMaxTokens = 1024
)

// OpenAIClient serves GPT-class completions via the OpenAI API.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	provider model.AssistantProvider
}

// NewOpenAIClient creates a GPT-class client.
func NewOpenAIClient(apiKey, modelName string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if modelName == "" {
		modelName = defaultGPTModel
	}

	return &OpenAIClient{
		client:   openai.NewClient(apiKey),
		model:    modelName,
		provider: model.ProviderGPT,
	}, nil
}

// NewGrokClient creates a Grok-class client. The xAI API is
// OpenAI-compatible, so it shares the SDK with a different base URL.
func NewGrokClient(apiKey, modelName string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("xAI API key is required")
	}
	if modelName == "" {
		modelName = defaultGrokModel
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = grokBaseURL

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		model:    modelName,
		provider: model.ProviderGrok,
	}, nil
}

// Provider returns the provider family.
func (c *OpenAIClient) Provider() model.AssistantProvider {
	return c.provider
}

// Complete sends a completion request.
func (c *OpenAIClient) Complete(ctx context.Context, prompt, contextText string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: contextText},
		},
		MaxTokens: completionMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s completion: empty response", c.provider)
	}

	return resp.Choices[0].Message.Content, nil
}
