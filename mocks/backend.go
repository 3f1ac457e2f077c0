// Package mocks provides test doubles for Lucid's collaborators.
package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/lucid/assembly"
	"github.com/teilomillet/lucid/backend"
)

// Call is one recorded invocation of a MockBackend.
type Call struct {
	Model    string
	Messages []assembly.Message
}

// MockBackend implements backend.Backend and records every call.
//
// Example usage:
//
//	mb := mocks.NewMockBackend(func(ctx context.Context, model string, msgs []assembly.Message) (*backend.Completion, error) {
//	    return &backend.Completion{Model: model, Output: "mocked"}, nil
//	})
type MockBackend struct {
	CompleteFunc func(ctx context.Context, model string, messages []assembly.Message) (*backend.Completion, error)

	mu    sync.Mutex
	calls []Call
}

var _ backend.Backend = (*MockBackend)(nil)

// NewMockBackend creates a MockBackend. With a nil completeFunc every call
// succeeds with an empty output and the requested model echoed.
func NewMockBackend(completeFunc func(context.Context, string, []assembly.Message) (*backend.Completion, error)) *MockBackend {
	return &MockBackend{CompleteFunc: completeFunc}
}

// Complete implements backend.Backend.
func (m *MockBackend) Complete(ctx context.Context, model string, messages []assembly.Message) (*backend.Completion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Model: model, Messages: messages})
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, model, messages)
	}
	return &backend.Completion{Model: model}, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockBackend) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// LastCall returns the most recent call and whether there was one.
func (m *MockBackend) LastCall() (Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Call{}, false
	}
	return m.calls[len(m.calls)-1], true
}
