package assembly

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helpful = "You are a helpful assistant."

// TestBuild covers the ordering rules: dev mode bypasses everything, the
// system prompt always opens a regular list, chunks follow in order and the
// user message is always last.
func TestBuild(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		dev    bool
		system string
		chunks []string
		layout Layout
		want   []Message
	}{
		{
			name:   "no context",
			input:  "What is RAG?",
			system: helpful,
			want: []Message{
				{Role: RoleSystem, Content: helpful},
				{Role: RoleUser, Content: "What is RAG?"},
			},
		},
		{
			name:   "dev mode ignores prompt and context",
			input:  "What is RAG?",
			dev:    true,
			system: helpful,
			chunks: []string{"doc1 text", "doc2 text"},
			want: []Message{
				{Role: RoleUser, Content: "What is RAG?"},
			},
		},
		{
			name:   "single chunk",
			input:  "What is RAG?",
			system: helpful,
			chunks: []string{"doc1 text"},
			want: []Message{
				{Role: RoleSystem, Content: helpful},
				{Role: RoleSystem, Content: "doc1 text"},
				{Role: RoleUser, Content: "What is RAG?"},
			},
		},
		{
			name:   "chunks keep provider order",
			input:  "q",
			system: helpful,
			chunks: []string{"c1", "c2", "c3"},
			want: []Message{
				{Role: RoleSystem, Content: helpful},
				{Role: RoleSystem, Content: "c1"},
				{Role: RoleSystem, Content: "c2"},
				{Role: RoleSystem, Content: "c3"},
				{Role: RoleUser, Content: "q"},
			},
		},
		{
			name:   "duplicate chunks are not removed",
			input:  "q",
			system: helpful,
			chunks: []string{"same", "same"},
			want: []Message{
				{Role: RoleSystem, Content: helpful},
				{Role: RoleSystem, Content: "same"},
				{Role: RoleSystem, Content: "same"},
				{Role: RoleUser, Content: "q"},
			},
		},
		{
			name:   "empty system prompt is kept",
			input:  "q",
			system: "",
			want: []Message{
				{Role: RoleSystem, Content: ""},
				{Role: RoleUser, Content: "q"},
			},
		},
		{
			name:   "empty input passes through",
			input:  "",
			system: helpful,
			want: []Message{
				{Role: RoleSystem, Content: helpful},
				{Role: RoleUser, Content: ""},
			},
		},
		{
			name:   "empty chunk list adds nothing",
			input:  "q",
			system: helpful,
			chunks: []string{},
			want: []Message{
				{Role: RoleSystem, Content: helpful},
				{Role: RoleUser, Content: "q"},
			},
		},
		{
			name:   "combined layout",
			input:  "q",
			system: helpful,
			chunks: []string{"c1", "c2"},
			layout: LayoutCombined,
			want: []Message{
				{Role: RoleSystem, Content: helpful},
				{Role: RoleSystem, Content: "Context:\nc1\n\nc2"},
				{Role: RoleUser, Content: "q"},
			},
		},
		{
			name:   "combined layout without chunks",
			input:  "q",
			system: helpful,
			layout: LayoutCombined,
			want: []Message{
				{Role: RoleSystem, Content: helpful},
				{Role: RoleUser, Content: "q"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.input, tt.dev, tt.system, tt.chunks, tt.layout)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestBuildCounts checks the size rule for many chunk counts: 1 in dev mode,
// 2+n otherwise, with the user message last.
func TestBuildCounts(t *testing.T) {
	for n := 0; n <= 8; n++ {
		chunks := make([]string, n)
		for i := range chunks {
			chunks[i] = string(rune('a' + i))
		}

		dev := Build("input", true, helpful, chunks, LayoutChunks)
		require.Len(t, dev, 1)
		assert.Equal(t, Message{Role: RoleUser, Content: "input"}, dev[0])

		msgs := Build("input", false, helpful, chunks, LayoutChunks)
		require.Len(t, msgs, n+2)
		assert.Equal(t, Message{Role: RoleSystem, Content: helpful}, msgs[0])
		for i, chunk := range chunks {
			assert.Equal(t, Message{Role: RoleSystem, Content: chunk}, msgs[i+1])
		}
		assert.Equal(t, Message{Role: RoleUser, Content: "input"}, msgs[len(msgs)-1])
	}
}

func TestComposer(t *testing.T) {
	ctx := context.Background()

	t.Run("provider receives the query", func(t *testing.T) {
		var seen string
		c := Composer{
			SystemPrompt: helpful,
			Context: ContextFunc(func(_ context.Context, q string) ([]string, error) {
				seen = q
				return []string{"retrieved"}, nil
			}),
		}

		msgs, err := c.Compose(ctx, "What is RAG?", false)
		require.NoError(t, err)
		assert.Equal(t, "What is RAG?", seen)
		assert.Equal(t, []Message{
			{Role: RoleSystem, Content: helpful},
			{Role: RoleSystem, Content: "retrieved"},
			{Role: RoleUser, Content: "What is RAG?"},
		}, msgs)
	})

	t.Run("dev mode skips the provider", func(t *testing.T) {
		called := false
		c := Composer{
			SystemPrompt: helpful,
			Context: ContextFunc(func(context.Context, string) ([]string, error) {
				called = true
				return nil, errors.New("should not be called")
			}),
		}

		msgs, err := c.Compose(ctx, "raw", true)
		require.NoError(t, err)
		assert.False(t, called)
		assert.Equal(t, []Message{{Role: RoleUser, Content: "raw"}}, msgs)
	})

	t.Run("nil provider behaves like no context", func(t *testing.T) {
		msgs, err := Composer{SystemPrompt: helpful}.Compose(ctx, "q", false)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("provider error is returned", func(t *testing.T) {
		boom := errors.New("index offline")
		c := Composer{Context: ContextFunc(func(context.Context, string) ([]string, error) {
			return nil, boom
		})}

		msgs, err := c.Compose(ctx, "q", false)
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, msgs)
	})
}

func TestTranscript(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: helpful},
		{Role: RoleSystem, Content: "doc"},
		{Role: RoleUser, Content: "What is RAG?"},
	}
	assert.Equal(t,
		"system: You are a helpful assistant.\nsystem: doc\nuser: What is RAG?",
		Transcript(msgs))
	assert.Equal(t, "", Transcript(nil))
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutChunks, l)

	l, err = ParseLayout("combined")
	require.NoError(t, err)
	assert.Equal(t, LayoutCombined, l)

	_, err = ParseLayout("interleaved")
	assert.Error(t, err)
}

func TestContextProviders(t *testing.T) {
	ctx := context.Background()

	chunks, err := NoContext{}.Retrieve(ctx, "q")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = StaticContext{"a", "b"}.Retrieve(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunks)

	path := filepath.Join(t.TempDir(), "docs.txt")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o600))

	fc, err := FileContext(path)
	require.NoError(t, err)
	chunks, err = fc.Retrieve(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"line one\nline two\n"}, chunks)

	_, err = FileContext(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	chained := Chain(StaticContext{"inline"}, nil, fc)
	chunks, err = chained.Retrieve(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"inline", "line one\nline two\n"}, chunks)
}
