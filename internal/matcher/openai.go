package matcher

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultBaseURL = "https://api.mistral.ai/v1/"
	DefaultModel   = "mistral-medium"
)

// OpenAIChat talks to any OpenAI-compatible chat completions endpoint.
type OpenAIChat struct {
	client openai.Client
	model  string
}

// NewOpenAIChat creates a client for baseURL (DefaultBaseURL when empty).
func NewOpenAIChat(apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAIChat {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}, opts...)
	return &OpenAIChat{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}
}

func (c *OpenAIChat) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(1000),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}
	return resp.Choices[0].Message.Content, nil
}
