package wrapper

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/lucid/assembly"
	"github.com/teilomillet/lucid/backend"
)

func TestWriteText(t *testing.T) {
	tokens := 2
	r := &Result{
		Model: "gpt-4o-2024-08-06",
		Messages: []assembly.Message{
			{Role: assembly.RoleSystem, Content: "You are a helpful assistant."},
			{Role: assembly.RoleUser, Content: "What is RAG?"},
		},
		Output:   "Retrieval-augmented generation.",
		LogProbs: map[string]any{"content": []any{}},
		Tokens:   &tokens,
		Backend:  backend.KindHosted,
	}

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))

	want := "MODEL: gpt-4o-2024-08-06\n" +
		"MESSAGES:\n" +
		"- system: You are a helpful assistant.\n" +
		"- user: What is RAG?\n" +
		"OUTPUT: Retrieval-augmented generation.\n" +
		`LOGPROBS: {"content":[]}` + "\n" +
		"TOKENS: 2\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTextOmitsAbsentFields(t *testing.T) {
	r := &Result{
		Model:    "llama3",
		Messages: []assembly.Message{{Role: assembly.RoleUser, Content: "Hi"}},
		Output:   "Hello",
	}

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.NotContains(t, buf.String(), "LOGPROBS")
	assert.NotContains(t, buf.String(), "TOKENS")
}

func TestResultJSON(t *testing.T) {
	r := &Result{
		Model:    "llama3",
		Messages: []assembly.Message{{Role: assembly.RoleUser, Content: "Hi"}},
		Output:   "Hello",
		Backend:  backend.KindLocal,
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "llama3",
		"messages": [{"role": "user", "content": "Hi"}],
		"output": "Hello",
		"logprobs": null,
		"tokens": null,
		"backend": "local"
	}`, string(data))
}
