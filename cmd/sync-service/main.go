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
	"github.com/fundermatch/platform/pkg/gateway/middleware"
	"github.com/fundermatch/platform/pkg/grantdata"
	"github.com/fundermatch/platform/pkg/ingestion"
	"github.com/fundermatch/platform/pkg/match"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init("sync-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}

	repo := ingestion.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate ingestion tables")
	}

	cache := match.NewCache(db, database.GetRedis(), cfg.MatchCacheTTL, repo)
	if err := cache.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate match cache table")
	}

	// One limiter for the whole process keeps the remote API pacing global.
	limiter := grantdata.NewLimiter(cfg.GrantAPIMinInterval)
	defer limiter.Close()
	client := grantdata.NewClient(cfg.GrantAPIBaseURL, cfg.GrantAPITimeout, limiter)

	producer := kafka.NewProducer("funder.sync")
	defer producer.Close()

	service := ingestion.NewService(client, repo, cache, producer, cfg)
	handler := ingestion.NewHandler(service, repo)

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
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8081"),
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8081",
		}).Info("Sync Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Sync Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()

	logger.Log.Info("Sync Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
