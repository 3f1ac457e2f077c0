package wrapper

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/teilomillet/lucid/assembly"
	"github.com/teilomillet/lucid/backend"
)

// Result is what one call sent and what came back.
type Result struct {
	// Model is the identifier reported by the backend.
	Model string `json:"model"`
	// Messages is the exact list handed to the backend.
	Messages []assembly.Message `json:"messages"`
	Output   string             `json:"output"`
	// LogProbs is backend-specific and nil when the backend reports none.
	LogProbs any  `json:"logprobs"`
	Tokens   *int `json:"tokens"`

	Backend backend.Kind `json:"backend"`
	// PromptTokens estimates Messages with the encoding of the model that
	// was actually called. Nil without a token counter.
	PromptTokens *int `json:"prompt_tokens,omitempty"`
}

// WriteText prints the result in the command line report layout.
func (r *Result) WriteText(w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("MODEL: %s\n", r.Model)
	ew.printf("MESSAGES:\n")
	for _, msg := range r.Messages {
		ew.printf("- %s: %s\n", msg.Role, msg.Content)
	}
	ew.printf("OUTPUT: %s\n", r.Output)
	if r.LogProbs != nil {
		data, err := json.Marshal(r.LogProbs)
		if err != nil {
			return fmt.Errorf("encode logprobs: %w", err)
		}
		ew.printf("LOGPROBS: %s\n", data)
	}
	if r.Tokens != nil {
		ew.printf("TOKENS: %d\n", *r.Tokens)
	}
	if r.PromptTokens != nil {
		ew.printf("PROMPT TOKENS: %d\n", *r.PromptTokens)
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
