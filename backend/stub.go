package backend

import (
	"context"

	"github.com/teilomillet/lucid/assembly"
)

// DefaultStubOutput is returned by a Stub without a configured output.
const DefaultStubOutput = "[stub] no backend invoked"

// Stub answers without any network call. It lets the message trail be
// inspected without credentials or a running model server.
type Stub struct {
	Output string
}

// Complete echoes the requested model and returns the fixed output.
func (s Stub) Complete(_ context.Context, model string, _ []assembly.Message) (*Completion, error) {
	output := s.Output
	if output == "" {
		output = DefaultStubOutput
	}
	return &Completion{Model: model, Output: output}, nil
}
