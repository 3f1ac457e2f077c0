// Package wrapper is the transparency layer around a chat-completion
// backend. It assembles the message list, hands exactly that list to one
// backend, and returns it alongside the model output so callers can see what
// the model was actually asked.
package wrapper

import (
	"context"
	"time"

	"github.com/teilomillet/lucid/assembly"
	"github.com/teilomillet/lucid/backend"
	"github.com/teilomillet/lucid/metrics"
	"github.com/teilomillet/lucid/tokens"
	"go.uber.org/zap"
)

// InvocationError reports a failed backend call, as opposed to a failure
// while assembling the messages. Backend is empty when the kind could not be
// resolved.
type InvocationError struct {
	Backend backend.Kind
	Err     error
}

func (e *InvocationError) Error() string { return e.Err.Error() }

func (e *InvocationError) Unwrap() error { return e.Err }

// Options is the read-only configuration of a Wrapper.
type Options struct {
	Model        string
	SystemPrompt string
	DevMode      bool
	Context      assembly.ContextProvider
	Layout       assembly.Layout
	Backend      backend.Kind
}

// Request carries per-call overrides. Zero fields fall back to Options.
type Request struct {
	// DevMode overrides Options.DevMode when non-nil.
	DevMode *bool
	// Model overrides Options.Model when non-empty.
	Model string
	// Context replaces Options.Context when non-nil.
	Context assembly.ContextProvider
}

// Wrapper composes messages and invokes one backend per call. It is safe for
// concurrent use.
type Wrapper struct {
	opts       Options
	dispatcher *backend.Dispatcher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	counter    tokens.Counter
}

// Option configures optional collaborators.
type Option func(*Wrapper)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Wrapper) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics records every backend invocation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wrapper) { w.metrics = m }
}

// WithTokenCounter adds a prompt token estimate to every result.
func WithTokenCounter(c tokens.Counter) Option {
	return func(w *Wrapper) { w.counter = c }
}

// New returns a Wrapper sending through dispatcher.
func New(opts Options, dispatcher *backend.Dispatcher, options ...Option) *Wrapper {
	w := &Wrapper{
		opts:       opts,
		dispatcher: dispatcher,
		logger:     zap.NewNop(),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Options returns the configuration the wrapper was built with.
func (w *Wrapper) Options() Options {
	return w.opts
}

// BuildMessages returns the message list a call with input would send. No
// backend is contacted.
func (w *Wrapper) BuildMessages(ctx context.Context, input string, devMode bool) ([]assembly.Message, error) {
	return w.composer(nil).Compose(ctx, input, devMode)
}

// Generate sends input using the configured mode, model and context.
func (w *Wrapper) Generate(ctx context.Context, input string) (*Result, error) {
	return w.GenerateWith(ctx, input, Request{})
}

// GenerateWith sends input with per-call overrides applied.
func (w *Wrapper) GenerateWith(ctx context.Context, input string, req Request) (*Result, error) {
	devMode := w.opts.DevMode
	if req.DevMode != nil {
		devMode = *req.DevMode
	}
	model := w.opts.Model
	if req.Model != "" {
		model = req.Model
	}

	messages, err := w.composer(req.Context).Compose(ctx, input, devMode)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("sending messages",
		zap.String("model", model),
		zap.Bool("dev_mode", devMode),
		zap.Any("messages", messages),
	)

	start := time.Now()
	kind, completion, err := w.dispatcher.Complete(ctx, w.opts.Backend, model, messages)
	elapsed := time.Since(start)
	if err != nil {
		w.observe(kind, "error", elapsed, len(messages), nil)
		w.logger.Error("backend invocation failed",
			zap.String("backend", string(kind)),
			zap.String("model", model),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, &InvocationError{Backend: kind, Err: err}
	}
	w.observe(kind, "success", elapsed, len(messages), completion.Tokens)

	result := &Result{
		Model:    completion.Model,
		Messages: messages,
		Output:   completion.Output,
		LogProbs: completion.LogProbs,
		Tokens:   completion.Tokens,
		Backend:  kind,
	}
	if w.counter != nil {
		n := w.counter.CountMessages(model, messages)
		result.PromptTokens = &n
	}

	w.logger.Info("backend invocation completed",
		zap.String("backend", string(kind)),
		zap.String("model", result.Model),
		zap.Int("messages", len(messages)),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

func (w *Wrapper) composer(override assembly.ContextProvider) assembly.Composer {
	provider := w.opts.Context
	if override != nil {
		provider = override
	}
	return assembly.Composer{
		SystemPrompt: w.opts.SystemPrompt,
		Context:      provider,
		Layout:       w.opts.Layout,
	}
}

func (w *Wrapper) observe(kind backend.Kind, outcome string, elapsed time.Duration, messages int, tokens *int) {
	if w.metrics == nil {
		return
	}
	label := string(kind)
	if label == "" {
		label = "unresolved"
	}
	w.metrics.ObserveInvocation(label, outcome, elapsed.Seconds(), messages, tokens)
}
