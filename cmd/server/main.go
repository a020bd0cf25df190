package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kriterionquant/chainscope/internal/chain"
	"github.com/kriterionquant/chainscope/internal/config"
	"github.com/kriterionquant/chainscope/internal/notify"
	"github.com/kriterionquant/chainscope/internal/server"
	"github.com/kriterionquant/chainscope/internal/ws"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Setup logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	// Load config
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}

	analyticsCfg, err := config.Load(cfg.ConfigFile)
	if err != nil {
		logger.Error("failed to load analytics config", zap.Error(err))
		return 1
	}
	params := analyticsCfg.Params()

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("snapshotFile", cfg.SnapshotFile),
		zap.Int("uploadRatePerMinute", cfg.UploadRatePerMinute),
		zap.Bool("wsEnabled", cfg.WSEnabled),
		zap.Float64("contractMultiplier", params.ContractMultiplier),
		zap.Int("surfaceGridSize", params.SurfaceGridSize),
	)

	store := server.NewSnapshotStore(logger)

	// Preload a snapshot when configured. A missing file is fatal;
	// an empty setting just starts the server without data.
	if cfg.SnapshotFile != "" {
		start := time.Now()
		snap, err := loadSnapshot(cfg.SnapshotFile, logger)
		if err != nil {
			logger.Error("failed to preload snapshot", zap.Error(err))
			return 1
		}
		id := store.Swap(snap)
		logger.Info("snapshot preloaded",
			zap.String("id", id),
			zap.String("file", cfg.SnapshotFile),
			zap.Int("contracts", snap.Len()),
			zap.Duration("duration", time.Since(start)),
		)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket hub (optional)
	var hub *ws.Hub
	if cfg.WSEnabled {
		hub = ws.NewHub(logger)
		go hub.Run(ctx)
		logger.Info("WebSocket enabled")
	}

	notifyCfg := notify.LoadConfig()
	if err := notifyCfg.Validate(); err != nil {
		logger.Error("invalid notification config", zap.Error(err))
		return 1
	}
	notifier := notify.New(notifyCfg, logger)
	if notifyCfg.Enabled {
		logger.Info("notifications enabled", zap.String("topic", notifyCfg.Topic))
	}

	srv := server.NewServer(store, params, cfg, hub, notifier, logger)

	router, err := server.NewRouter(srv, logger)
	if err != nil {
		logger.Error("failed to create router", zap.Error(err))
		return 1
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Cancel context to stop the hub
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}

// loadSnapshot reads either a raw CBOE CSV or a chainscope archive,
// picking the format from the file extension.
func loadSnapshot(path string, logger *zap.Logger) (*chain.Snapshot, error) {
	if strings.HasSuffix(path, ".jsonl") || strings.HasSuffix(path, ".jsonl.zst") {
		return chain.ReadArchive(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	return chain.ParseCBOE(f, logger)
}
