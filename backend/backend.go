// Package backend sends an assembled message list to exactly one model
// backend and normalizes its answer into a Completion.
//
// Three backends exist: Hosted (an OpenAI-compatible chat-completion API),
// Local (an Ollama-style generate endpoint) and Stub (no network at all).
// The Dispatcher chooses one per call from an explicit Kind; KindAuto falls
// back to a case-sensitive test of the model identifier against LocalPrefix.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teilomillet/lucid/assembly"
)

// LocalPrefix marks model identifiers served by the local backend.
const LocalPrefix = "ollama/"

var (
	// ErrUnknownKind is returned for a backend kind outside the known set.
	ErrUnknownKind = errors.New("unknown backend kind")

	// ErrNotConfigured is returned when the resolved backend is missing.
	ErrNotConfigured = errors.New("backend not configured")

	// ErrMissingCredential is returned by the hosted backend when no API key
	// was supplied. No request is sent.
	ErrMissingCredential = errors.New("missing hosted backend credential")

	// ErrNoChoices is returned when the hosted backend answers without any
	// completion choice.
	ErrNoChoices = errors.New("hosted backend returned no choices")
)

// Kind selects a backend.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindHosted Kind = "hosted"
	KindLocal  Kind = "local"
	KindStub   Kind = "stub"
)

// ParseKind maps a configuration or flag value to a Kind. The empty string
// selects KindAuto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindHosted, KindLocal, KindStub:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Completion is the normalized answer of a backend.
type Completion struct {
	// Model is the identifier reported by the backend.
	Model string

	// Output is the generated text.
	Output string

	// LogProbs is the backend's log-probability structure, passed through
	// untouched. Nil when the backend does not provide one.
	LogProbs any

	// Tokens is the number of per-token log-probability entries. Nil when
	// the backend cannot report it.
	Tokens *int
}

// Backend completes a message list with the given model.
type Backend interface {
	Complete(ctx context.Context, model string, messages []assembly.Message) (*Completion, error)
}

// Dispatcher routes a call to one of its configured backends.
type Dispatcher struct {
	Hosted Backend
	Local  Backend
	Stub   Backend
}

// Resolve returns the concrete kind used for model. Explicit kinds are kept
// as-is; KindAuto picks KindLocal for identifiers starting with LocalPrefix
// and KindHosted otherwise. The stub is never chosen implicitly.
func Resolve(kind Kind, model string) (Kind, error) {
	switch kind {
	case "", KindAuto:
		if strings.HasPrefix(model, LocalPrefix) {
			return KindLocal, nil
		}
		return KindHosted, nil
	case KindHosted, KindLocal, KindStub:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Backend returns the backend registered for a concrete kind.
func (d *Dispatcher) Backend(kind Kind) (Backend, error) {
	var b Backend
	switch kind {
	case KindHosted:
		b = d.Hosted
	case KindLocal:
		b = d.Local
	case KindStub:
		b = d.Stub
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, kind)
	}
	return b, nil
}

// Complete resolves kind for model and calls exactly one backend. It returns
// the resolved kind alongside the completion so callers can report it.
func (d *Dispatcher) Complete(ctx context.Context, kind Kind, model string, messages []assembly.Message) (Kind, *Completion, error) {
	resolved, err := Resolve(kind, model)
	if err != nil {
		return "", nil, err
	}

	b, err := d.Backend(resolved)
	if err != nil {
		return resolved, nil, err
	}

	completion, err := b.Complete(ctx, model, messages)
	if err != nil {
		return resolved, nil, fmt.Errorf("%s backend: %w", resolved, err)
	}
	return resolved, completion, nil
}
