package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/food-truck-finder/backend/internal/config"
	"github.com/food-truck-finder/backend/internal/db"
	"github.com/food-truck-finder/backend/internal/events"
	apphttp "github.com/food-truck-finder/backend/internal/http"
	"github.com/food-truck-finder/backend/internal/http/handlers"
	"github.com/food-truck-finder/backend/internal/repositories"
	"github.com/food-truck-finder/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run migrations
	if cfg.RunMigrations {
		if err := db.Migrate(cfg.PostgresDSN, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	campaignRepo := repositories.NewCampaignRepo(pool)
	postRepo := repositories.NewPostRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)

	// Services
	campaignService := services.NewCampaignService(campaignRepo, postRepo, auditRepo, publisher, cfg, log)
	postService := services.NewPostService(postRepo, campaignService, auditRepo, publisher, cfg, log)

	// Handlers
	campaignHandler := handlers.NewCampaignHandler(campaignService, log)
	postHandler := handlers.NewPostHandler(postService, log)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	prom := fiberprometheus.New("food-truck-api")
	apphttp.SetupRouter(app, cfg, log, rdb, prom, campaignHandler, postHandler)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
