// Package server contains HTTP and WebSocket handlers for the feed API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"socialfeed/internal/bootstrap"
	"socialfeed/internal/cache"
	"socialfeed/internal/config"
	"socialfeed/internal/identity"
	"socialfeed/internal/middleware"
	"socialfeed/internal/notifications"
	"socialfeed/internal/observability"
	"socialfeed/internal/repository"
	"socialfeed/internal/service"

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

// fiberprometheus registers its collectors globally, so one instance serves
// every app in the process.
var promMiddleware = sync.OnceValue(func() *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New("socialfeed")
})

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	runtime        *bootstrap.Runtime
	promMiddleware *fiberprometheus.FiberPrometheus
	resolver       identity.Resolver
	broker         *notifications.Broker
	hub            *notifications.Hub
	feed           *service.FeedService
}

// NewServer connects to the database and Redis and builds a server on top.
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewServerWithDeps(cfg, rt.DB, rt.Redis)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	s.runtime = rt
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil, in which case the post cache is disabled and rate
// limits fail open.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("server requires config and database")
	}

	store := cache.NewStore(redisClient, cfg.PostCacheTTL)
	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db, store)

	broker := notifications.NewBroker(cfg.SubscriberBacklog)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: promMiddleware(),
		resolver:       identity.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer),
		broker:         broker,
		hub:            notifications.NewHub(broker),
		feed:           service.NewFeedService(users, posts, broker),
	}, nil
}

// Feed exposes the domain service, mainly for the seeder and tests.
func (s *Server) Feed() *service.FeedService {
	return s.feed
}

// Broker exposes the change notifier so in-process consumers can subscribe.
func (s *Server) Broker() *notifications.Broker {
	return s.broker
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing sets the trace id local that ContextMiddleware copies into the context.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Coarse per-IP ceiling; per-caller write limits live on the routes.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	app.Use(middleware.ResolveCaller(s.resolver))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	writeLimit := func(resource string) fiber.Handler {
		return middleware.RateLimit(s.redis, s.config.RateLimitPerMinute, time.Minute, resource)
	}

	api := app.Group("/api")
	api.Post("/ops", writeLimit("ops"), s.ExecuteOperation)

	users := api.Group("/users")
	users.Post("/register", writeLimit("register"), s.RegisterUser)
	users.Patch("/me", s.UpdateMyUsername)
	// Specific routes before the generic /:id route
	users.Get("/identity/:identityId", s.GetUserByIdentity)
	users.Get("/:id", s.GetUser)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", writeLimit("create_post"), s.CreatePost)
	posts.Post("/:id/like", s.LikePost)
	posts.Post("/:id/comments", writeLimit("create_comment"), s.CreateComment)
	posts.Delete("/:id/comments/:commentId", s.DeleteComment)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.DeletePost)

	app.Get("/ws", s.WebsocketUpgrade, s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database health. Redis only backs the cache and rate
// limits, so its absence degrades but does not fail readiness.
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
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database":    dbStatus,
			"redis":       redisStatus,
			"subscribers": s.broker.SubscriberCount(),
			"websockets":  s.hub.Count(),
		},
		"time": time.Now(),
	})
}

// Shutdown closes websocket clients, ends every subscription and releases the
// connections opened by NewServer.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.hub.Shutdown(ctx); err != nil {
		observability.Logger.WarnContext(ctx, "error shutting down websocket hub", slog.String("error", err.Error()))
	}
	s.broker.Close()

	if s.runtime != nil {
		return s.runtime.Close()
	}
	return nil
}
