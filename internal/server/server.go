// Package server contains the HTTP handlers for the review feed API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reviewfeed/internal/cache"
	"reviewfeed/internal/config"
	"reviewfeed/internal/database"
	"reviewfeed/internal/featureflags"
	"reviewfeed/internal/feed"
	"reviewfeed/internal/middleware"
	"reviewfeed/internal/models"
	"reviewfeed/internal/repository"
	"reviewfeed/internal/service"
	"reviewfeed/internal/worker"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// The collectors register on the default Prometheus registry, which accepts
// them only once per process.
var httpMetrics = sync.OnceValue(func() *fiberprometheus.FiberPrometheus {
	return middleware.InitMetrics("reviewfeed-api")
})

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownFn     context.CancelFunc
	featureFlags   *featureflags.Manager
	projector      feed.Projector
	prewarmer      *worker.Prewarmer
	ingest         *service.IngestService
	productFeed    *service.ProductFeedService
	commentFeed    *service.CommentFeedService
	reactions      *service.ReactionService
	moderation     *service.ModerationService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// A nil client leaves the feed on the in-process cache.
	redisClient := cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("server requires a database")
	}

	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	userRepo := repository.NewUserRepository(db)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	store := cache.NewStore(redisClient, cfg.LocalTTL())
	settings := service.Settings{
		FeedTTL:         cfg.FeedTTL(),
		EntityTTL:       cfg.EntityTTL(),
		ViewerTTL:       cfg.ViewerTTL(),
		NewProductsDays: cfg.NewProductsDays,
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: httpMetrics(),
		featureFlags:   flags,
		projector:      feed.NewProjector(cfg.BackendDomain, cfg.MediaURL),
	}

	server.moderation = service.NewModerationService(commentRepo, userRepo)
	server.ingest = service.NewIngestService(categoryRepo, productRepo, commentRepo)
	server.productFeed = service.NewProductFeedService(productRepo, categoryRepo, store, flags, settings, nil)
	server.commentFeed = service.NewCommentFeedService(commentRepo, productRepo, server.productFeed, store, settings, server.moderation.IsAdmin)
	server.reactions = service.NewReactionService(reactionRepo, productRepo, commentRepo, userRepo, server.productFeed, store, settings.ViewerTTL)

	server.prewarmer = worker.NewPrewarmer(server.commentFeed.WarmProduct, flags, cfg.PrewarmWorkers, cfg.PrewarmQueue)
	server.productFeed.SetPrewarmer(server.prewarmer)

	return server, nil
}

// Ingest exposes the write path used by the seeder and scrapers.
func (s *Server) Ingest() *service.IngestService {
	return s.ingest
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: models.MsgTooManyRequests,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	secret := s.config.JWTSecret
	api := app.Group("/api")

	// Public feed routes; a valid token personalizes liked/favorite/is_own.
	public := api.Group("", middleware.OptionalAuth(secret))
	public.Get("/products", s.GetProducts)
	public.Get("/products/:id", s.GetProduct)
	public.Get("/feedbacks", s.GetFeedbacks)
	public.Get("/comments", s.GetComments)
	public.Get("/categories", s.GetCategories)

	protected := api.Group("", middleware.AuthRequired(secret))
	protected.Post("/feedbacks", s.CreateFeedback)
	protected.Post("/comments", s.CreateComment)
	protected.Get("/user-feedbacks", s.GetUserFeedbacks)
	protected.Get("/user-comments", s.GetUserComments)
	protected.Put("/user-comments/:id", s.UpdateUserComment)
	protected.Delete("/user-comments/:id", s.DeleteUserComment)
	protected.Post("/like/:product_id", s.ToggleLike)
	protected.Post("/favorite/:product_id", s.ToggleFavorite)
	protected.Get("/favorites", s.GetFavorites)
	protected.Get("/me", s.GetMyProfile)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/moderation", s.GetPendingComments)
	admin.Post("/moderation/:id/accept", s.AcceptComment)
	admin.Post("/moderation/:id/reject", s.RejectComment)
	admin.Post("/comments/:id/promo", s.SetCommentPromo)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional; a
// configured client that stops answering makes the service unready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"prewarm_pending": s.prewarmer.Pending(),
		"time":            time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the viewer is known.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := middleware.ViewerID(c)

		admin, err := s.moderation.IsAdmin(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError(models.MsgAdminRequired))
		}

		return c.Next()
	}
}

// newApp builds the Fiber application with middleware and routes.
func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Review Feed API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Message: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the background workers and serves HTTP until the app is shut down.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownFn = cancel
	s.prewarmer.Start(ctx)

	s.app = s.newApp()

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Workers stop only after the listener has drained.
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	s.prewarmer.Stop()

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
