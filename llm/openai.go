package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openAIClient struct {
	api   *openai.Client
	model string
}

// NewOpenAIClient targets api.openai.com unless a base URL points it at a
// compatible server.
func NewOpenAIClient(opts Options) Client {
	cfg := openai.DefaultConfig(opts.OpenAIAPIKey)
	if opts.OpenAIBaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.OpenAIBaseURL, "/")
	}
	return &openAIClient{api: openai.NewClientWithConfig(cfg), model: opts.Model}
}

func (c *openAIClient) Generate(ctx context.Context, req Request) (string, error) {
	msgs, err := req.messages()
	if err != nil {
		return "", err
	}

	chat := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		chat[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{Model: c.model, Messages: chat})
	if err != nil {
		return "", fmt.Errorf("%w: openai chat completion: %w", ErrUnavailable, err)
	}
	for _, choice := range resp.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content, nil
		}
	}
	return "", fmt.Errorf("%w: openai chat completion returned no content", ErrUnavailable)
}
