package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/psoleague/matchmaking-backend/internal/config"
	"github.com/psoleague/matchmaking-backend/internal/draft"
	"github.com/psoleague/matchmaking-backend/internal/httpapi"
	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/internal/service"
	"github.com/psoleague/matchmaking-backend/internal/store"
	"github.com/psoleague/matchmaking-backend/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	stores, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	ctx := context.Background()
	hub := ws.NewHub(ctx, logger)
	registry := draft.NewRegistry(ctx, nil, cfg.DraftPickTimeout, logger)
	notifier := notify.Multi{hub, &notify.Log{Logger: logger}}
	svc := service.New(stores, registry, notifier, logger)

	go purgeLoop(ctx, svc, cfg.MatchRetention, logger)

	handler := httpapi.SetupRoutes(svc, hub, logger)

	logger.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// purgeLoop drops matches past the retention window.
func purgeLoop(ctx context.Context, svc *service.Service, retention time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpiredMatches(ctx, retention)
			if err != nil {
				logger.Warn("match purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged expired matches", zap.Int64("count", n))
			}
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
