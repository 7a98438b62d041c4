package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PriyavPithia/backend-priyav-cat/internal/audit"
	"github.com/PriyavPithia/backend-priyav-cat/internal/config"
	"github.com/PriyavPithia/backend-priyav-cat/internal/database"
	httpapi "github.com/PriyavPithia/backend-priyav-cat/internal/http"
	"github.com/PriyavPithia/backend-priyav-cat/internal/logger"
	"github.com/PriyavPithia/backend-priyav-cat/internal/notify"
	"github.com/PriyavPithia/backend-priyav-cat/internal/repository"
	"github.com/PriyavPithia/backend-priyav-cat/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "case-backend")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Storage：DB 不可用时回退到内存 repo（本地联调不因无 DB 失败）
	var db *sql.DB
	var casesRepo repository.CasesRepository
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			casesRepo = repository.NewPostgresCasesRepository(db)
			log.Info("DB enabled for case-backend")
		} else {
			log.Warn("DB enabled but connection failed, falling back to in-memory repo", zap.Error(err))
		}
	}
	if casesRepo == nil {
		casesRepo = repository.NewMemoryCasesRepo()
	}

	// 审计事件外发（可选）
	var publisher audit.Publisher = audit.NopPublisher{}
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		publisher = audit.NewRedisPublisher(redisClient, cfg.Redis.Stream, log)
	}

	// 通知 webhook（可选）
	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookClient(cfg.Notify.WebhookURL, log)
	}

	caseService := service.NewCaseService(casesRepo, publisher, notifier, log)
	caseHandler := httpapi.NewCaseHandler(caseService, log)

	router := httpapi.NewRouter(log)
	router.RegisterCaseRoutes(caseHandler)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
