package wrapper

import (
	"fmt"

	"github.com/teilomillet/lucid/assembly"
	"github.com/teilomillet/lucid/backend"
	"github.com/teilomillet/lucid/config"
	"github.com/teilomillet/lucid/tokens"
)

// FromConfig builds a Wrapper and its dispatcher from cfg. All three
// backends are registered; the hosted one reports a missing credential only
// when it is actually selected.
func FromConfig(cfg *config.Config, options ...Option) (*Wrapper, error) {
	kind, err := backend.ParseKind(cfg.Backend.Kind)
	if err != nil {
		return nil, err
	}

	layout, err := assembly.ParseLayout(cfg.Context.Layout)
	if err != nil {
		return nil, err
	}

	provider, err := ContextFromConfig(cfg.Context)
	if err != nil {
		return nil, err
	}

	dispatcher := &backend.Dispatcher{
		Hosted: backend.NewHosted(backend.HostedConfig{
			APIKey:  cfg.Hosted.APIKey,
			BaseURL: cfg.Hosted.BaseURL,
		}),
		Local: backend.NewLocal(backend.LocalConfig{
			Endpoint: cfg.Local.Endpoint,
		}),
		Stub: backend.Stub{Output: cfg.Stub.Output},
	}

	if cfg.Tokens.Enabled {
		counter, err := tokens.NewTokenCounter(cfg.Tokens.Encoding)
		if err != nil {
			return nil, fmt.Errorf("token counter: %w", err)
		}
		// Caller options come last so they can replace the counter.
		options = append([]Option{WithTokenCounter(counter)}, options...)
	}

	opts := Options{
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		DevMode:      cfg.DevMode,
		Context:      provider,
		Layout:       layout,
		Backend:      kind,
	}
	return New(opts, dispatcher, options...), nil
}

// ContextFromConfig returns the inline documents followed by the context
// file, if any, as one provider. With neither configured it is NoContext.
func ContextFromConfig(cfg config.ContextConfig) (assembly.ContextProvider, error) {
	if len(cfg.Documents) == 0 && cfg.File == "" {
		return assembly.NoContext{}, nil
	}

	chunks := append(assembly.StaticContext{}, cfg.Documents...)
	if cfg.File != "" {
		file, err := assembly.FileContext(cfg.File)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, file...)
	}
	return chunks, nil
}
