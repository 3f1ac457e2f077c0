package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/teilomillet/lucid/assembly"
)

// DefaultLocalEndpoint is Ollama's generate endpoint on its default port.
const DefaultLocalEndpoint = "http://localhost:11434/api/generate"

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 4 << 10

// LocalConfig configures the local backend.
type LocalConfig struct {
	Endpoint   string
	HTTPClient *http.Client
}

// Local sends a flattened transcript to an Ollama-style generate endpoint.
// It reports neither log-probabilities nor token counts.
type Local struct {
	endpoint string
	client   *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// StatusError reports a non-2xx answer from the local backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("local backend returned status %d: %s", e.StatusCode, e.Body)
}

// NewLocal builds a Local backend. An empty endpoint selects
// DefaultLocalEndpoint.
func NewLocal(cfg LocalConfig) *Local {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultLocalEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Local{endpoint: endpoint, client: client}
}

// Complete strips LocalPrefix from model, joins messages into a
// "role: content" transcript and posts it as a single prompt.
func (l *Local) Complete(ctx context.Context, model string, messages []assembly.Message) (*Completion, error) {
	name := strings.TrimPrefix(model, LocalPrefix)

	body, err := json.Marshal(generateRequest{
		Model:  name,
		Prompt: assembly.Transcript(messages),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	reported := out.Model
	if reported == "" {
		reported = name
	}
	return &Completion{Model: reported, Output: out.Response}, nil
}
