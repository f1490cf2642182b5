// Package llm generates answers from a chat model served by Ollama or an
// OpenAI-compatible API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fabfab/symptom-agent/config"
)

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)

// ErrUnavailable wraps failures reaching the generation backend.
var ErrUnavailable = errors.New("generation service unavailable")

// Exchange is one earlier question and the answer given to it.
type Exchange struct {
	Question string
	Answer   string
}

// Request is one generation call. History is replayed as alternating user
// and assistant turns between the system instruction and the prompt.
type Request struct {
	System  string
	History []Exchange
	Prompt  string
}

type message struct {
	Role    string
	Content string
}

func (r Request) messages() ([]message, error) {
	if strings.TrimSpace(r.Prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	out := make([]message, 0, 2*len(r.History)+2)
	if r.System != "" {
		out = append(out, message{Role: roleSystem, Content: r.System})
	}
	for _, ex := range r.History {
		out = append(out,
			message{Role: roleUser, Content: ex.Question},
			message{Role: roleAssistant, Content: ex.Answer},
		)
	}
	return append(out, message{Role: roleUser, Content: r.Prompt}), nil
}

type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
