package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/food-truck-finder/backend/internal/config"
	"github.com/food-truck-finder/backend/internal/db"
	"github.com/food-truck-finder/backend/internal/events"
	"github.com/food-truck-finder/backend/internal/repositories"
	"github.com/food-truck-finder/backend/internal/services"
	"github.com/food-truck-finder/backend/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	campaignRepo := repositories.NewCampaignRepo(pool)
	postRepo := repositories.NewPostRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	campaignService := services.NewCampaignService(campaignRepo, postRepo, auditRepo, publisher, cfg, log)

	sched, err := worker.NewScheduler(campaignService, cfg, log)
	if err != nil {
		log.Fatal("invalid worker schedule", zap.Error(err))
	}

	subscriber := events.NewRedisSubscriber(rdb, log)
	if err := subscriber.Subscribe(ctx, events.ChannelPost, func(ev events.Event) {
		sched.HandlePostEvent(ctx, ev)
	}); err != nil {
		log.Fatal("failed to subscribe to post events", zap.Error(err))
	}

	// Metrics for the worker process
	metricsSrv := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	sched.Start(ctx)
	log.Info("worker started",
		zap.String("expiry_sweep", cfg.ExpirySweepSpec),
		zap.String("reconcile", cfg.ReconcileSpec),
	)

	// Catch up on anything that expired while the worker was down.
	if _, err := sched.Run(worker.JobCompleteExpired); err != nil {
		log.Warn("startup expiry sweep failed", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down worker")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
