package assistant

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/channeldesk/dialog-engine/internal/model"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClient serves Gemini-class completions.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-class client.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: modelName}, nil
}

// Provider returns the provider family.
func (c *GeminiClient) Provider() model.AssistantProvider {
	return model.ProviderGemini
}

// Complete sends a completion request.
func (c *GeminiClient) Complete(ctx context.Context, prompt, contextText string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(contextText), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini completion: empty response")
	}

	return text, nil
}
