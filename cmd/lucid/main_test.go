package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, noEnv)
	return code, stdout.String(), stderr.String()
}

func TestStubDefaultMessage(t *testing.T) {
	code, out, _ := runCLI(t, "--backend", "stub")
	require.Equal(t, exitOK, code)

	want := "MODEL: gpt-4o\n" +
		"MESSAGES:\n" +
		"- system: You are a helpful assistant.\n" +
		"- user: What is RAG?\n" +
		"OUTPUT: [stub] no backend invoked\n"
	assert.Equal(t, want, out)
}

func TestStubWithContextAndInterspersedMessage(t *testing.T) {
	code, out, _ := runCLI(t, "--backend", "stub", "Hello", "--context", "doc1", "--context", "doc2")
	require.Equal(t, exitOK, code)

	assert.Contains(t, out, "- system: You are a helpful assistant.\n- system: doc1\n- system: doc2\n- user: Hello\n")
}

func TestDevModeAliases(t *testing.T) {
	for _, flagName := range []string{"--dev-mode", "--dev"} {
		t.Run(flagName, func(t *testing.T) {
			code, out, _ := runCLI(t, "--backend=stub", flagName, "Hi")
			require.Equal(t, exitOK, code)
			assert.Contains(t, out, "MESSAGES:\n- user: Hi\nOUTPUT:")
			assert.NotContains(t, out, "system")
		})
	}
}

func TestDocsFileIsOneChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.txt")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two"), 0644))

	code, out, _ := runCLI(t, "--backend", "stub", "--docs", path, "--json", "Q")
	require.Equal(t, exitOK, code)

	var result struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Backend string `json:"backend"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Messages, 3)
	assert.Equal(t, "line one\nline two", result.Messages[1].Content)
	assert.Equal(t, "stub", result.Backend)
}

func TestSystemOverride(t *testing.T) {
	code, out, _ := runCLI(t, "--backend", "stub", "--system", "Be terse.", "--model", "ollama/llama3", "Q")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "MODEL: ollama/llama3\n")
	assert.Contains(t, out, "- system: Be terse.\n")
}

func TestLocalBackendByPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "llama3", body["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","response":"local answer"}`))
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "lucid.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("local:\n  endpoint: "+srv.URL+"\n"), 0644))

	code, out, stderr := runCLI(t, "--config", cfgPath, "--model", "ollama/llama3", "Q")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, out, "MODEL: llama3\n")
	assert.Contains(t, out, "OUTPUT: local answer\n")
	assert.NotContains(t, out, "LOGPROBS:")
	assert.NotContains(t, out, "TOKENS:")
}

func TestMissingCredentialFails(t *testing.T) {
	code, out, stderr := runCLI(t, "--backend", "hosted", "Q")
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "missing hosted backend credential")
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"--nope"}},
		{name: "two messages", args: []string{"one", "two"}},
		{name: "bad backend", args: []string{"--backend", "cloud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := runCLI(t, tt.args...)
			assert.Equal(t, exitUsage, code)
			assert.Empty(t, out)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	code, _, stderr := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "open config file")
}

func TestVersionAndHelp(t *testing.T) {
	code, out, _ := runCLI(t, "--version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "lucid "+Version+"\n", out)

	code, _, stderr := runCLI(t, "-h")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "Usage: lucid")
}

func TestMessageAfterTerminator(t *testing.T) {
	code, out, _ := runCLI(t, "--backend", "stub", "--", "--not-a-flag")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "- user: --not-a-flag\n")
}
