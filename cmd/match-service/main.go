package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fundermatch/platform/pkg/common/config"
	"github.com/fundermatch/platform/pkg/common/database"
	"github.com/fundermatch/platform/pkg/common/kafka"
	"github.com/fundermatch/platform/pkg/common/logger"
	"github.com/fundermatch/platform/pkg/common/metrics"
	"github.com/fundermatch/platform/pkg/common/models"
	"github.com/fundermatch/platform/pkg/gateway/middleware"
	"github.com/fundermatch/platform/pkg/ingestion"
	"github.com/fundermatch/platform/pkg/match"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init("match-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}

	repo := ingestion.NewRepository(db)
	cache := match.NewCache(db, database.GetRedis(), cfg.MatchCacheTTL, repo)
	if err := cache.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate match cache table")
	}

	rules, err := match.LoadRules(os.Getenv("SCORING_RULES_PATH"))
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to load scoring rules, using defaults")
	}

	scorer := match.NewScoringClient(cfg, rules)
	service := match.NewService(repo, cache, scorer, rules)
	handler := match.NewHandler(service)

	// Flush the hot tier when a sync completes elsewhere; the Postgres rows
	// are invalidated by the sync service itself.
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer("funder.sync", "match-service")
	go func() {
		err := consumer.Consume(consumerCtx, func(ctx context.Context, event models.Event) error {
			if event.Type == "sync.completed" {
				cache.FlushHotTier(ctx)
			}
			return nil
		})
		if err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("sync event consumer stopped")
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)
	handler.Register(router.PathPrefix("/api/v1").Subrouter())

	var root http.Handler = router
	root = middleware.BodyLimit(cfg.MaxRequestBody)(root)
	root = middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)(root)
	root = middleware.Logging(root)
	root = middleware.Recovery(root)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8082"),
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8082",
		}).Info("Match Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Match Service...")

	stopConsumer()
	consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()

	logger.Log.Info("Match Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
