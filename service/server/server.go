package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mintdesk/mintdesk/service/db"
	"github.com/mintdesk/mintdesk/service/metrics"
	solanasvc "github.com/mintdesk/mintdesk/service/solana"
	"github.com/mintdesk/mintdesk/service/workflow"
)

// Workflows is the surface the handlers need from the workflow service.
type Workflows interface {
	CreateMint(ctx context.Context, decimals uint8) (*workflow.CreateMintResult, error)
	MintTo(ctx context.Context, mint, amount string) (*workflow.MintResult, error)
	Transfer(ctx context.Context, mint, recipient, amount string) (*workflow.TransferResult, error)
	Balance(ctx context.Context, address string) (*workflow.BalanceResult, error)
	TokenBalance(ctx context.Context, mint, owner string) (*workflow.TokenBalanceResult, error)
	History(ctx context.Context, address string, limit int) ([]solanasvc.HistoryEntry, error)
	Airdrop(ctx context.Context, address, sol string) (*workflow.AirdropResult, error)
}

// Server is the HTTP front for the token workflows.
type Server struct {
	addr      string
	workflows Workflows
	store     *db.Store
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates the HTTP server. store is optional; when nil the submissions
// listing endpoint is disabled. metrics is optional; when nil the /metrics
// endpoint is disabled.
func New(addr string, workflows Workflows, store *db.Store, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		workflows: workflows,
		store:     store,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the route set. Exposed separately from Start so tests can
// drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	route("POST /api/v1/mints", "create_mint", handleCreateMint(s.workflows, s.logger))
	route("POST /api/v1/mints/{mint}/mint", "mint_to", handleMintTo(s.workflows, s.logger))
	route("POST /api/v1/transfers", "transfer", handleTransfer(s.workflows, s.logger))
	route("GET /api/v1/balance/{address}", "balance", handleBalance(s.workflows, s.logger))
	route("GET /api/v1/token-balance/{mint}/{owner}", "token_balance", handleTokenBalance(s.workflows, s.logger))
	route("GET /api/v1/history/{address}", "history", handleHistory(s.workflows, s.logger))
	route("POST /api/v1/airdrops", "airdrop", handleAirdrop(s.workflows, s.logger))

	if s.store != nil {
		route("GET /api/v1/submissions", "submissions", handleListSubmissions(s.store, s.logger))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS
// preflight requests so browser wallet frontends can call the API directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
