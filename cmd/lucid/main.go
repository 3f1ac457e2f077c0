// Command lucid sends one message through the wrapper and prints what was
// sent alongside what came back.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teilomillet/lucid/config"
	"github.com/teilomillet/lucid/logging"
	"github.com/teilomillet/lucid/wrapper"
	"go.uber.org/zap"
)

// Version is reported by --version.
const Version = "v0.1.0"

const defaultMessage = "What is RAG?"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type stringListFlag struct {
	values []string
}

func (s *stringListFlag) String() string {
	return strings.Join(s.values, ",")
}

func (s *stringListFlag) Set(v string) error {
	s.values = append(s.values, v)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer, lookup func(string) (string, bool)) int {
	fs := flag.NewFlagSet("lucid", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		model       string
		devMode     bool
		contexts    stringListFlag
		docs        string
		configPath  string
		backendKind string
		system      string
		jsonOut     bool
		countTokens bool
		verbose     bool
		showVersion bool
	)
	fs.StringVar(&model, "model", config.DefaultModel, "Model identifier; an \"ollama/\" prefix selects the local server.")
	fs.BoolVar(&devMode, "dev-mode", false, "Send the raw message only, without system prompt or context.")
	fs.BoolVar(&devMode, "dev", false, "Shorthand for --dev-mode.")
	fs.Var(&contexts, "context", "Context chunk sent before the message (repeatable).")
	fs.StringVar(&docs, "docs", "", "File whose whole content is sent as one context chunk.")
	fs.StringVar(&configPath, "config", "", "YAML configuration file.")
	fs.StringVar(&backendKind, "backend", "", "Backend: auto, hosted, local or stub.")
	fs.StringVar(&system, "system", "", "Override the system prompt.")
	fs.BoolVar(&jsonOut, "json", false, "Print the result as JSON.")
	fs.BoolVar(&countTokens, "count-tokens", false, "Add an estimate of the prompt size in tokens.")
	fs.BoolVar(&verbose, "verbose", false, "Log the message trail to stderr.")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit.")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lucid [flags] [message]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	positionals, err := parseInterspersed(fs, argv)
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}
	if showVersion {
		fmt.Fprintf(stdout, "lucid %s\n", Version)
		return exitOK
	}
	if len(positionals) > 1 {
		fmt.Fprintf(stderr, "expected at most one message, got %d\n", len(positionals))
		fs.Usage()
		return exitUsage
	}
	message := defaultMessage
	if len(positionals) == 1 {
		message = positionals[0]
	}

	cfg := config.DefaultConfig()
	cfg.Logging = config.LoggingConfig{Level: "warn", Format: "text"}
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["model"] {
		cfg.Model = model
	}
	if set["dev-mode"] || set["dev"] {
		cfg.DevMode = devMode
	}
	if set["backend"] {
		cfg.Backend.Kind = backendKind
	}
	if set["system"] {
		cfg.SystemPrompt = system
	}
	if set["context"] || set["docs"] {
		cfg.Context.Documents = contexts.values
		cfg.Context.File = docs
	}
	if countTokens {
		cfg.Tokens.Enabled = true
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	cfg.ApplyEnv(lookup)

	logger, err := logging.NewWriter(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to create logger: %v\n", err)
		return exitFailure
	}
	defer func() {
		_ = logger.Sync()
	}()

	w, err := wrapper.FromConfig(cfg, wrapper.WithLogger(logger))
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	result, err := w.Generate(ctx, message)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	if jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
	} else {
		err = result.WriteText(stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// parseInterspersed lets the message appear before, between or after flags.
// Everything after "--" is positional.
func parseInterspersed(fs *flag.FlagSet, argv []string) ([]string, error) {
	var positionals []string
	for {
		if err := fs.Parse(argv); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positionals, nil
		}
		if consumedTerminator(argv, rest) {
			return append(positionals, rest...), nil
		}
		positionals = append(positionals, rest[0])
		argv = rest[1:]
	}
}

// consumedTerminator reports whether the flag parser stopped at "--" rather
// than at a positional argument.
func consumedTerminator(argv, rest []string) bool {
	i := len(argv) - len(rest) - 1
	return i >= 0 && argv[i] == "--"
}
