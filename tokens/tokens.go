// Package tokens estimates how many tokens an assembled message list costs,
// using tiktoken encodings. The estimate is informational: it counts message
// contents only and ignores per-message framing overhead.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/teilomillet/lucid/assembly"
)

// DefaultEncoding is used when the model has no known tiktoken encoding,
// e.g. local models.
const DefaultEncoding = "cl100k_base"

// Tokenizer is the subset of *tiktoken.Tiktoken used here.
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// Counter counts the tokens of a message list sent to model.
type Counter interface {
	CountMessages(model string, messages []assembly.Message) int
}

// TokenCounter implements Counter. It uses the encoding tiktoken registers
// for each model and the fallback encoding for models it does not know.
type TokenCounter struct {
	fallback Tokenizer
	lookup   func(model string) (Tokenizer, error)

	mu      sync.Mutex
	byModel map[string]Tokenizer
}

// NewTokenCounter loads fallback (DefaultEncoding when empty) up front so a
// bad encoding name fails here rather than on the first call.
func NewTokenCounter(fallback string) (*TokenCounter, error) {
	if fallback == "" {
		fallback = DefaultEncoding
	}
	encoding, err := tiktoken.GetEncoding(fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to get fallback encoding %s: %w", fallback, err)
	}
	return newTokenCounter(encoding, encodingForModel), nil
}

// NewTokenCounterWithTokenizer counts every model with t.
func NewTokenCounterWithTokenizer(t Tokenizer) *TokenCounter {
	return newTokenCounter(t, nil)
}

func newTokenCounter(fallback Tokenizer, lookup func(string) (Tokenizer, error)) *TokenCounter {
	return &TokenCounter{
		fallback: fallback,
		lookup:   lookup,
		byModel:  make(map[string]Tokenizer),
	}
}

func encodingForModel(model string) (Tokenizer, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return encoding, nil
}

// encodingFor caches known models only; unknown identifiers arrive from
// requests and would otherwise grow the cache without bound.
func (tc *TokenCounter) encodingFor(model string) Tokenizer {
	if tc.lookup == nil {
		return tc.fallback
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if encoding, ok := tc.byModel[model]; ok {
		return encoding
	}
	encoding, err := tc.lookup(model)
	if err != nil {
		return tc.fallback
	}
	tc.byModel[model] = encoding
	return encoding
}

// CountMessages sums the token counts of every message content, encoded the
// way model would see it.
func (tc *TokenCounter) CountMessages(model string, messages []assembly.Message) int {
	encoding := tc.encodingFor(model)
	total := 0
	for _, msg := range messages {
		total += len(encoding.Encode(msg.Content, nil, nil))
	}
	return total
}
