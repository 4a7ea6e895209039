// Command moorline is the Moorline transcript ingestion server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/moorline/moorline/internal/config"
	"github.com/moorline/moorline/internal/embedder"
	"github.com/moorline/moorline/internal/harbour"
	"github.com/moorline/moorline/internal/health"
	"github.com/moorline/moorline/internal/ingest"
	"github.com/moorline/moorline/internal/observe"
	"github.com/moorline/moorline/internal/review"
	"github.com/moorline/moorline/internal/schema"
	"github.com/moorline/moorline/internal/server"
	"github.com/moorline/moorline/internal/store"
	"github.com/moorline/moorline/pkg/provider/embeddings"
	ollamaembed "github.com/moorline/moorline/pkg/provider/embeddings/ollama"
	oaembed "github.com/moorline/moorline/pkg/provider/embeddings/openai"
	"github.com/moorline/moorline/pkg/provider/llm"
	"github.com/moorline/moorline/pkg/provider/llm/anyllm"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "moorline: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "moorline: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("moorline starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "moorline",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	llmProvider, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to create llm provider", "name", cfg.Providers.LLM.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	embedProvider, err := buildEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		slog.Error("failed to create embeddings provider", "name", cfg.Providers.Embeddings.Name, "err", err)
		return 1
	}
	if embedProvider != nil {
		slog.Info("provider created", "kind", "embeddings", "name", cfg.Providers.Embeddings.Name, "model", embedProvider.ModelID())
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	db, err := store.New(ctx, cfg.Store.PostgresDSN, cfg.Store.EmbeddingDimensions)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		return 1
	}
	defer db.Close()
	slog.Info("store ready", "embedding_dimensions", cfg.Store.EmbeddingDimensions)

	// ── Pipeline wiring ───────────────────────────────────────────────────────
	registry, err := schema.NewRegistry()
	if err != nil {
		slog.Error("failed to compile shape schemas", "err", err)
		return 1
	}

	pipeline := ingest.NewPipeline(ingest.PipelineConfig{
		Classifier:            ingest.NewClassifier(llmProvider),
		Cleaner:               ingest.NewCleaner(llmProvider),
		Validator:             registry,
		Resolver:              harbour.NewResolver(harbour.NewPostgresStore(db.Pool())),
		Store:                 db,
		Embedder:              embedder.New(embedProvider, db, metrics),
		Router:                review.NewRouter(db, metrics),
		Metrics:               metrics,
		MinFallbackConfidence: cfg.Classifier.MinFallbackConfidence,
	})

	probes := health.New(version,
		health.Probe{Name: "database", Run: db.Ping},
		health.Probe{Name: "providers", Run: func(ctx context.Context) error {
			if embedProvider == nil {
				return errors.New("embeddings provider not configured")
			}
			return nil
		}},
	)

	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		Ingestor:   pipeline,
		LLM:        llmProvider,
		Embeddings: embedProvider,
		Searcher:   db,
		Health:     probes,
		Metrics:    metrics,
	})

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// buildLLM creates the completion provider named in entry via any-llm-go.
func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

// buildEmbeddings creates the embeddings provider named in entry. An empty
// name disables embedding enrichment (searchable records stay retrievable by
// key, and readyz reports the gap).
func buildEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	switch entry.Name {
	case "":
		return nil, nil
	case "openai":
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	case "ollama":
		return ollamaembed.New(entry.BaseURL, entry.Model)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Moorline — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	fmt.Printf("║  Vector dims     : %-19d ║\n", cfg.Store.EmbeddingDimensions)
	fmt.Printf("║  Confidence gate : %-19.2f ║\n", cfg.Classifier.MinFallbackConfidence)
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
