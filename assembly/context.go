package assembly

import (
	"context"
	"fmt"
	"os"
)

// ContextProvider returns the ordered context chunks to inject for a query.
// An empty result means no context.
type ContextProvider interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
}

// NoContext is the placeholder retriever: it always returns an empty sequence.
type NoContext struct{}

func (NoContext) Retrieve(context.Context, string) ([]string, error) {
	return nil, nil
}

// StaticContext returns the same precomputed chunks for every query.
type StaticContext []string

func (s StaticContext) Retrieve(context.Context, string) ([]string, error) {
	return []string(s), nil
}

// ContextFunc adapts a plain function to ContextProvider.
type ContextFunc func(ctx context.Context, query string) ([]string, error)

func (f ContextFunc) Retrieve(ctx context.Context, query string) ([]string, error) {
	return f(ctx, query)
}

// FileContext reads the file at path once and returns a provider that feeds
// its whole content as a single chunk.
func FileContext(path string) (StaticContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}
	return StaticContext{string(data)}, nil
}

// Chain concatenates the chunks of several providers in order.
func Chain(providers ...ContextProvider) ContextProvider {
	return ContextFunc(func(ctx context.Context, query string) ([]string, error) {
		var chunks []string
		for _, p := range providers {
			if p == nil {
				continue
			}
			c, err := p.Retrieve(ctx, query)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, c...)
		}
		return chunks, nil
	})
}
