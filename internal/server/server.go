// Package server contains the HTTP and WebSocket handlers for the friend-request API.
package server

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	_ "friendpush/docs" // swagger docs
	"friendpush/internal/bootstrap"
	"friendpush/internal/config"
	"friendpush/internal/events"
	"friendpush/internal/featureflags"
	"friendpush/internal/middleware"
	"friendpush/internal/models"
	"friendpush/internal/notifications"
	"friendpush/internal/repository"
	"friendpush/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// promMiddleware registers the HTTP collectors once per process.
func promMiddleware() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("friendpush-api")
	})
	return prom
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	requestRepo    repository.FriendRequestRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	friendRequests *service.FriendRequestService
	userService    *service.UserService
	closers        []io.Closer
}

// NewServer connects the database and Redis and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; realtime delivery is then local to this process and
// notifications use the in-process dispatcher.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: promMiddleware(),
		userRepo:       repository.NewUserRepository(db),
		requestRepo:    repository.NewFriendRequestRepository(db),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())

	var sink events.UserSink = s.hub
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		sink = s.notifier
	}

	provider, err := bootstrap.NewPushProvider(s.shutdownCtx, cfg)
	if err != nil {
		return nil, err
	}
	sender := notifications.NewSender(s.userRepo, provider)

	dispatcher, dispatchCloser := bootstrap.NewDispatcher(cfg, redisClient, sender)
	publisher, publishClosers := bootstrap.NewPublisher(cfg, sink, s.userRepo)
	s.closers = append(append(s.closers, dispatchCloser), publishClosers...)

	s.friendRequests = service.NewFriendRequestService(s.requestRepo, s.userRepo, dispatcher, publisher, s.featureFlags)
	s.userService = service.NewUserService(s.userRepo)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected responses still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

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
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "friendpush metrics",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	api.Get("/ws", middleware.WebSocketAuthRequired, middleware.ContextMiddleware(), s.WebsocketHandler())

	protected := api.Group("", middleware.AuthRequired, middleware.ContextMiddleware())

	friendRequests := protected.Group("/friend-requests")
	friendRequests.Post("/send", middleware.RateLimit(
		s.redis, 20, time.Minute, "friend_request"), s.SendFriendRequest)
	friendRequests.Get("/", s.ListFriendRequests)
	// Specific routes before generic /:id
	friendRequests.Get("/incoming", s.ListIncomingFriendRequests)
	friendRequests.Get("/:id", s.GetFriendRequest)

	users := protected.Group("/users")
	users.Put("/:username/fcm-token", middleware.RateLimit(
		s.redis, 10, time.Minute, "fcm_token"), s.UpdateDeviceToken)
	users.Delete("/:username/fcm-token", s.ClearDeviceToken)

	protected.Get("/feature-flags", s.GetFeatureFlags)
}

// App returns the configured Fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app == nil {
		s.app = fiber.New(fiber.Config{
			AppName:      "friendpush",
			BodyLimit:    1 * 1024 * 1024,
			ErrorHandler: s.errorHandler,
		})
		s.SetupMiddleware(s.app)
		s.SetupRoutes(s.app)
	}
	return s.app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// Start wires realtime delivery and listens until the app is shut down.
func (s *Server) Start() error {
	app := s.App()

	if s.notifier != nil {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start notification hub wiring",
				slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server and releases its resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	// Dispatchers drain after HTTP stops accepting sends.
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			middleware.Logger.Error("error closing dependency", slog.String("error", err.Error()))
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
