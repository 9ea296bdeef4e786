// Kira is a conversational AI companion server.
//
// It exposes a WebSocket chat API that streams responses token by
// token, an operational event feed, and Prometheus metrics.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	kira serve               Start the companion server
//	kira init [dir]          Initialize a working directory with defaults
//	kira version             Print version and build information
//	kira -o json version     Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codewithayuu/kira-chan-sub000/internal/buildinfo"
	"github.com/codewithayuu/kira-chan-sub000/internal/config"
	"github.com/codewithayuu/kira-chan-sub000/internal/embeddings"
	"github.com/codewithayuu/kira-chan-sub000/internal/events"
	"github.com/codewithayuu/kira-chan-sub000/internal/llm"
	"github.com/codewithayuu/kira-chan-sub000/internal/memory"
	"github.com/codewithayuu/kira-chan-sub000/internal/persona"
	"github.com/codewithayuu/kira-chan-sub000/internal/pipeline"
	"github.com/codewithayuu/kira-chan-sub000/internal/rater"
	"github.com/codewithayuu/kira-chan-sub000/internal/web"
)

// main is intentionally minimal. It constructs the OS-level
// environment and delegates immediately to [run], keeping os.Exit,
// os.Stdout, and os.Args out of the application logic so the full
// lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the kira command. Arguments are
// parsed by hand; the flag package's package-level globals make
// concurrent test runs awkward and the surface here is tiny.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		if level, err = config.ParseLogLevel(cfg.LogLevel); err != nil {
			return err
		}
	}
	logger := newLogger(stdout, level)
	logger.Info("starting", "version", buildinfo.Version, "config", cfgPath)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// --- Provider gateway ---
	gateway := llm.NewGateway(logger)
	for _, p := range cfg.Providers {
		var client llm.Client
		switch p.Kind {
		case "anthropic":
			client = llm.NewAnthropicClient(p.Name, p.APIKey, logger)
		case "openai", "ollama", "":
			client = llm.NewOpenAIClient(p.Name, p.BaseURL, p.APIKey, logger)
		default:
			return fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
		}
		models := make(map[llm.ModelClass]string, len(p.Models))
		for class, model := range p.Models {
			models[llm.ModelClass(class)] = model
		}
		gateway.Register(client, p.Priority, models)
		logger.Info("provider registered", "name", p.Name, "kind", p.Kind, "priority", p.Priority)
	}

	// --- Memory ---
	embedder := embeddings.New(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
	})
	var backend memory.Backend
	switch cfg.Memory.Backend {
	case "sqlite":
		backend, err = memory.NewSQLiteBackend(cfg.MemoryPath())
	case "json", "":
		backend, err = memory.NewFileBackend(cfg.MemoryPath())
	default:
		return fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
	if err != nil {
		return fmt.Errorf("open memory backend: %w", err)
	}
	store := memory.NewStore(backend, embedder, cfg.Tau(), logger)
	defer store.Close()

	// --- Pipeline ---
	who, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return err
	}
	bus := events.New()
	gateway.SetEventBus(bus)
	store.SetEventBus(bus)
	sampler := rater.NewLLMRater(gateway, cfg.Pipeline.RateSample, logger)
	orch := pipeline.New(gateway, store,
		pipeline.WithPersona(who),
		pipeline.WithSampler(sampler),
		pipeline.WithEventBus(bus),
		pipeline.WithMaxReEdits(cfg.Pipeline.MaxReEdits),
		pipeline.WithSummaryEvery(cfg.Pipeline.SummaryEvery),
		pipeline.WithLogger(logger),
	)

	// --- Nightly decay/rehearsal sweep ---
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.Maintenance.Cron, func() {
		started := time.Now()
		jobCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		if err := store.RunMaintenance(jobCtx, time.Now()); err != nil {
			logger.Error("maintenance failed", "error", err)
			return
		}
		bus.Publish(events.Event{Source: events.SourceMaintenance, Kind: events.KindMaintenanceRun,
			Data: map[string]any{"duration_ms": time.Since(started).Milliseconds()}})
		logger.Info("maintenance complete", "duration", time.Since(started))
	}); err != nil {
		return fmt.Errorf("schedule maintenance %q: %w", cfg.Maintenance.Cron, err)
	}
	sched.Start()
	defer sched.Stop()

	// --- Web server with graceful shutdown ---
	listen := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := web.NewServer(listen, orch, gateway, bus, logger)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("kira stopped")
	return nil
}

// defaultConfigYAML is written by `kira init` as a starting point.
const defaultConfigYAML = `listen:
  port: 8080

providers:
  - name: local
    kind: ollama
    base_url: http://localhost:11434/v1
    priority: 10
    models:
      fast: llama3.2:3b
      quality: llama3.1:8b
  # - name: anthropic
  #   kind: anthropic
  #   api_key: ${ANTHROPIC_API_KEY}
  #   priority: 20
  #   models:
  #     fast: claude-haiku-3-20240307
  #     quality: claude-sonnet-4-20250514

embeddings:
  base_url: http://localhost:11434
  model: nomic-embed-text

memory:
  backend: sqlite
  tau_days: 30

pipeline:
  max_re_edits: 2
  summary_every: 15
  rate_sample: 0.1

maintenance:
  cron: "0 3 * * *"

data_dir: data
log_level: info
`

func runInit(stdout io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch", "uptime"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Kira - Conversational AI Companion")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: kira [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the companion server")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

// newLogger creates the structured logger all components share.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}
