package backend

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"github.com/teilomillet/lucid/assembly"
)

// ChatCompleter is the part of the go-openai client used by Hosted.
// *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// HostedConfig configures the hosted backend. The API key is passed in
// explicitly; this package never reads the environment.
type HostedConfig struct {
	APIKey string

	// BaseURL overrides the API root, e.g. for an OpenAI-compatible proxy.
	BaseURL string

	// HTTPClient is optional; go-openai's default client is used otherwise.
	HTTPClient *http.Client
}

// Hosted talks to an OpenAI-compatible chat-completion API with
// log-probability reporting enabled.
type Hosted struct {
	client        ChatCompleter
	hasCredential bool
}

// NewHosted builds a Hosted backend on top of go-openai.
func NewHosted(cfg HostedConfig) *Hosted {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	return &Hosted{
		client:        openai.NewClientWithConfig(clientCfg),
		hasCredential: cfg.APIKey != "",
	}
}

// NewHostedWithClient wraps an existing client. The client is assumed to
// carry its own credential.
func NewHostedWithClient(client ChatCompleter) *Hosted {
	return &Hosted{client: client, hasCredential: true}
}

// Complete sends messages in order and returns the first choice. LogProbs is
// the choice's *openai.LogProbs, untouched; Tokens counts its entries and is
// 0 when the structure is absent.
func (h *Hosted) Complete(ctx context.Context, model string, messages []assembly.Message) (*Completion, error) {
	if !h.hasCredential {
		return nil, ErrMissingCredential
	}

	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		LogProbs: true,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := resp.Choices[0]
	tokens := 0
	completion := &Completion{
		Model:  resp.Model,
		Output: choice.Message.Content,
		Tokens: &tokens,
	}
	if choice.LogProbs != nil {
		completion.LogProbs = choice.LogProbs
		tokens = len(choice.LogProbs.Content)
	}
	return completion, nil
}

func toOpenAIMessages(messages []assembly.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}
