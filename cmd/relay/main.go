package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rsethi/vitalrelay/internal/classify"
	"github.com/rsethi/vitalrelay/internal/config"
	"github.com/rsethi/vitalrelay/internal/database"
	"github.com/rsethi/vitalrelay/internal/gateway"
	"github.com/rsethi/vitalrelay/internal/history"
	"github.com/rsethi/vitalrelay/internal/identity"
	"github.com/rsethi/vitalrelay/internal/registry"
	"github.com/rsethi/vitalrelay/internal/router"
	"github.com/rsethi/vitalrelay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relay.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"addr", cfg.Server.Addr,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load identity token table
	verifier, err := identity.LoadFileVerifier(cfg.Auth.TokensPath)
	if err != nil {
		logger.Error("failed to load token table", "error", err)
		os.Exit(1)
	}
	logger.Info("token table loaded", "path", cfg.Auth.TokensPath)

	// Connect to the history database if persistence is enabled
	var pool *pgxpool.Pool
	if cfg.History.Enabled {
		logger.Info("connecting to history database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("database connected")
	}

	// Session registry
	reg := registry.New()

	// Connection gateway
	gwCfg := gateway.DefaultConfig()
	gwCfg.OutboxSize = cfg.Gateway.OutboxSize
	gwCfg.EventBufferSize = cfg.Gateway.EventBufferSize
	gwCfg.JoinGrace = cfg.Gateway.JoinGrace
	gwCfg.WriteTimeout = cfg.Gateway.WriteTimeout
	gwCfg.PingInterval = cfg.Gateway.PingInterval
	gwCfg.PongTimeout = cfg.Gateway.PongTimeout
	gwCfg.ReadLimit = cfg.Gateway.ReadLimit

	gw := gateway.NewManager(gwCfg, verifier, logger)
	if err := gw.Start(ctx); err != nil {
		logger.Error("failed to start gateway", "error", err)
		os.Exit(1)
	}

	// Event router
	routerCfg := router.Config{HistoryBufferSize: cfg.Router.HistoryBufferSize}
	rt := router.New(routerCfg, gw, reg, gw.Events(), logger)
	if err := rt.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	// History writer
	var writer *history.Writer
	if cfg.History.Enabled {
		writerCfg := history.Config{
			BatchSize:     cfg.History.BatchSize,
			FlushInterval: cfg.History.FlushInterval,
		}
		writer = history.NewWriter(writerCfg, rt.History(), pool, classify.DefaultThresholds(), logger)
		if err := writer.Start(ctx); err != nil {
			logger.Error("failed to start history writer", "error", err)
			os.Exit(1)
		}
	}

	// HTTP servers
	wsMux := http.NewServeMux()
	wsMux.HandleFunc(cfg.Server.WSPath, gw.ServeWS)
	wsServer := &http.Server{Addr: cfg.Server.Addr, Handler: wsMux}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc(cfg.Health.Path, healthHandler(gw, rt, reg, writer))
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("websocket server listening", "addr", cfg.Server.Addr, "path", cfg.Server.WSPath)
		if err := wsServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("health server listening", "port", cfg.Health.Port, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		wsServer.Shutdown(shutdownCtx)
		healthServer.Shutdown(shutdownCtx)
		return nil
	})

	logger.Info("relay running")

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		cancel()
	}

	// Ordered shutdown: gateway first so the router drains the closed
	// event channel, then the router, then the writer.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	gw.Stop(shutdownCtx)
	rt.Stop(shutdownCtx)
	if writer != nil {
		writer.Stop(shutdownCtx)
	}

	logger.Info("relay stopped")
}

// healthHandler reports component statistics as JSON.
func healthHandler(gw *gateway.Manager, rt router.Router, reg *registry.Registry, writer *history.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{
			"status":          "ok",
			"version":         version.String(),
			"active_sessions": reg.Len(),
			"gateway":         gw.Stats(),
			"router":          rt.Stats(),
		}
		if writer != nil {
			status["history"] = writer.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}
}
