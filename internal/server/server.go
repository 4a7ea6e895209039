// Package server exposes the Moorline HTTP API: transcript ingestion, the
// ask/search pass-throughs, health probes, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/moorline/moorline/internal/health"
	"github.com/moorline/moorline/internal/ingest"
	"github.com/moorline/moorline/internal/observe"
	"github.com/moorline/moorline/internal/store"
	"github.com/moorline/moorline/pkg/provider/embeddings"
	"github.com/moorline/moorline/pkg/provider/llm"
)

// shutdownTimeout bounds graceful shutdown after the run context ends.
const shutdownTimeout = 10 * time.Second

// Ingestor runs the ingestion pipeline for one transcript.
type Ingestor interface {
	Ingest(ctx context.Context, t ingest.Transcript) (*ingest.Result, error)
}

// Searcher is the similarity-search surface of the record store.
type Searcher interface {
	SearchQnA(ctx context.Context, embedding []float32, limit int) ([]store.QnAMatch, error)
}

// Config carries the server's wiring.
type Config struct {
	ListenAddr string
	Ingestor   Ingestor
	LLM        llm.Provider
	Embeddings embeddings.Provider
	Searcher   Searcher
	Health     *health.Handler
	Metrics    *observe.Metrics
}

// Server is the Moorline HTTP front end.
type Server struct {
	addr       string
	ingestor   Ingestor
	llm        llm.Provider
	embeddings embeddings.Provider
	searcher   Searcher
	health     *health.Handler
	metrics    *observe.Metrics
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	return &Server{
		addr:       cfg.ListenAddr,
		ingestor:   cfg.Ingestor,
		llm:        cfg.LLM,
		embeddings: cfg.Embeddings,
		searcher:   cfg.Searcher,
		health:     cfg.Health,
		metrics:    cfg.Metrics,
	}
}

// Handler builds the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/ingest", s.handleIngest)
	mux.HandleFunc("POST /v1/ask", s.handleAsk)
	mux.HandleFunc("POST /v1/search", s.handleSearch)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully. Returns nil
// on clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", slog.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
