package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mintdesk/mintdesk/service/config"
	"github.com/mintdesk/mintdesk/service/db"
	"github.com/mintdesk/mintdesk/service/events"
	"github.com/mintdesk/mintdesk/service/metrics"
	"github.com/mintdesk/mintdesk/service/server"
	solanasvc "github.com/mintdesk/mintdesk/service/solana"
	"github.com/mintdesk/mintdesk/service/wallet"
	"github.com/mintdesk/mintdesk/service/workflow"
)

func main() {
	// Fails fast if any required config is missing or invalid.
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"solana_rpc", cfg.SolanaRPCURL,
		"confirmation_level", cfg.ConfirmationLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(nil)
	rpcClient := solanasvc.NewRPCClient(cfg.SolanaRPCURL)

	// The signer is optional; without it the server still serves reads
	// (balance, token balance, history) and rejects signing operations.
	var signer wallet.Signer
	if cfg.KeypairPath != "" {
		ks := wallet.NewKeypairSigner(cfg.KeypairPath, logger)
		if err := ks.Connect(ctx); err != nil {
			logger.Error("failed to connect signer", "error", err)
			os.Exit(1)
		}
		signer = ks
	} else {
		logger.Warn("no keypair configured, signing operations disabled")
	}

	var publisher events.Publisher
	if cfg.NATSURL != "" {
		p, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
		logger.Info("workflow event publishing enabled", "nats_url", cfg.NATSURL)
	}

	var store *db.Store
	var submissionStore workflow.SubmissionStore
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store = db.NewStore(pool, m)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure database schema", "error", err)
			os.Exit(1)
		}
		submissionStore = store
		logger.Info("submission audit log enabled")
	}

	workflows, err := workflow.NewService(cfg, rpcClient, signer, publisher, submissionStore, m, logger)
	if err != nil {
		logger.Error("failed to initialize workflows", "error", err)
		os.Exit(1)
	}

	httpServer := server.New(cfg.ServerAddr, workflows, store, m, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}

func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
