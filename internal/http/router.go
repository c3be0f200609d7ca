package http

import (
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/food-truck-finder/backend/internal/config"
	"github.com/food-truck-finder/backend/internal/http/handlers"
	"github.com/food-truck-finder/backend/internal/middleware"
	"github.com/food-truck-finder/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	prom *fiberprometheus.FiberPrometheus,
	campaignHandler *handlers.CampaignHandler,
	postHandler *handlers.PostHandler,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))
	if prom != nil {
		prom.RegisterAt(app, "/metrics")
		app.Use(prom.Middleware)
	}

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler()
	app.Get("/api/v1/meta/campaign-types", metaHandler.GetCampaignTypes)
	app.Get("/api/v1/meta/platforms", metaHandler.GetPlatforms)

	api := app.Group("/api/v1", middleware.AuthMiddleware(cfg, log))
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log))

	userHandler := handlers.NewUserHandler()
	api.Get("/me", userHandler.GetMe)

	manageCampaigns := middleware.RequirePermission(rbac.PermManageCampaigns)
	managePosts := middleware.RequirePermission(rbac.PermManagePosts)
	reportPublish := middleware.RequirePermission(rbac.PermReportPublish)
	reportAnalytics := middleware.RequirePermission(rbac.PermReportAnalytics)

	// Campaigns
	api.Post("/campaigns", manageCampaigns, campaignHandler.CreateCampaign)
	api.Get("/campaigns", manageCampaigns, campaignHandler.ListCampaigns)
	api.Get("/campaigns/active", manageCampaigns, campaignHandler.ActiveCampaigns)
	api.Get("/campaigns/:id", manageCampaigns, campaignHandler.GetCampaign)
	api.Put("/campaigns/:id", manageCampaigns, campaignHandler.UpdateCampaign)
	api.Delete("/campaigns/:id", manageCampaigns, campaignHandler.DeleteCampaign)
	api.Post("/campaigns/:id/status", manageCampaigns, campaignHandler.ChangeStatus)
	api.Post("/campaigns/:id/posts", manageCampaigns, campaignHandler.AddPost)
	api.Delete("/campaigns/:id/posts/:postId", manageCampaigns, campaignHandler.RemovePost)
	api.Post("/campaigns/:id/reconcile", manageCampaigns, campaignHandler.ReconcilePosts)
	api.Get("/campaigns/:id/history", manageCampaigns, campaignHandler.GetHistory)
	api.Post("/campaigns/:id/analytics", reportAnalytics, campaignHandler.UpdateAnalytics)

	// Posts
	api.Post("/posts", managePosts, postHandler.CreatePost)
	api.Get("/posts", managePosts, postHandler.ListPosts)
	api.Get("/posts/scheduled", managePosts, postHandler.ScheduledPosts)
	api.Get("/posts/templates", managePosts, postHandler.Templates)
	api.Post("/posts/from-template/:id", managePosts, postHandler.CreateFromTemplate)
	api.Get("/posts/:id", managePosts, postHandler.GetPost)
	api.Put("/posts/:id", managePosts, postHandler.UpdatePost)
	api.Delete("/posts/:id", managePosts, postHandler.DeletePost)
	api.Post("/posts/:id/schedule", managePosts, postHandler.SchedulePost)
	api.Post("/posts/:id/unschedule", managePosts, postHandler.UnschedulePost)

	// Callbacks from the publisher and the analytics collector
	api.Post("/posts/:id/platforms/:platform/published", reportPublish, postHandler.PlatformPublished)
	api.Post("/posts/:id/platforms/:platform/failed", reportPublish, postHandler.PlatformFailed)
	api.Post("/posts/:id/analytics", reportAnalytics, postHandler.UpdateAnalytics)
}
