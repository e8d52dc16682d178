// Package server contains the HTTP handlers for the brokerage API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"akinmueble/internal/cache"
	"akinmueble/internal/config"
	"akinmueble/internal/database"
	"akinmueble/internal/middleware"
	"akinmueble/internal/models"
	"akinmueble/internal/notifications"
	"akinmueble/internal/repository"
	"akinmueble/internal/scheduler"
	"akinmueble/internal/search"
	"akinmueble/internal/security"
	"akinmueble/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Identity is the identity service as seen by the HTTP layer: it gates
// routes and issues credentials.
type Identity interface {
	middleware.PermissionValidator
	service.CredentialIssuer
}

// Deps are the external collaborators a Server is built from. Index may be
// nil, which disables property search and the reindex job.
type Deps struct {
	Identity Identity
	Mailer   service.Mailer
	Index    service.Indexer
}

type closer interface {
	Close(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	identity       Identity
	mailer         service.Mailer
	store          *repository.Store
	notifier       *notifications.Notifier
	requests       *service.RequestService
	applications   *service.ApplicationService
	properties     *service.PropertyService
	scheduler      *scheduler.Scheduler
	hub            *notifications.Hub
	stopWiring     context.CancelFunc
	searchEnabled  bool
}

// NewServer connects to the database, Redis and the external services named
// in cfg and builds a Server over them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.InitRedis(cfg.RedisURL)

	identity := security.NewGateway(security.Options{
		BaseURL:       cfg.SecurityURL,
		Timeout:       cfg.SecurityTimeout,
		AdviserRoleID: cfg.AdviserRoleID,
		ClientRoleID:  cfg.ClientRoleID,
	})
	mailer := notifications.NewDispatcher(
		notifications.NewClient(cfg.NotificationsURL, cfg.NotificationTimeout),
		cfg.NotificationWorkers, 0, cfg.NotificationTimeout,
	)

	deps := Deps{Identity: identity, Mailer: mailer}
	if cfg.MeiliHost != "" {
		index := search.NewPropertyIndex(cfg.MeiliHost, cfg.MeiliAPIKey, cfg.MeiliIndex)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := index.EnsureIndex(ctx); err != nil {
			middleware.Logger.Warn("search index not ready", slog.String("error", err.Error()))
		}
		cancel()
		deps.Index = index
	}

	return NewServerWithDeps(cfg, db, redisClient, deps)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, deps Deps) (*Server, error) {
	if deps.Identity == nil {
		return nil, errors.New("identity service is required")
	}
	if deps.Mailer == nil {
		return nil, errors.New("mailer is required")
	}

	store := repository.NewStore(db)
	notifier := notifications.NewNotifier(redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("akinmueble-api"),
		identity:       deps.Identity,
		mailer:         deps.Mailer,
		store:          store,
		notifier:       notifier,
		requests:       service.NewRequestService(store, deps.Mailer, notifier),
		applications:   service.NewApplicationService(store, deps.Mailer, deps.Identity),
		properties:     service.NewPropertyService(store, deps.Index),
		hub:            notifications.NewHub(),
		searchEnabled:  deps.Index != nil,
	}

	var reindexer scheduler.Reindexer
	if s.searchEnabled {
		reindexer = s.properties
	}
	s.scheduler = scheduler.New(scheduler.Jobs(cfg, reindexer, s.requests)...)

	return s, nil
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:     "Akinmueble API",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: fiberErrorCode(fe.Code)})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func fiberErrorCode(status int) string {
	switch {
	case status == fiber.StatusNotFound:
		return models.CodeNotFound
	case status == fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case status >= 500:
		return models.CodeInternal
	default:
		return models.CodeValidation
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS before the limiter so rejected browsers still see CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:4200,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
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
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// gate requires the caller's token to be granted action on resource.
func (s *Server) gate(resource security.Resource, action security.Action) fiber.Handler {
	return middleware.PermissionRequired(s.identity, resource, action)
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Akinmueble API Metrics",
	}))

	// Public forms
	app.Post("/send-message-advisor-request", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "adviser_form"), s.SendAdviserApplication)
	app.Post("/contact-form", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "contact_form"), s.SendContactForm)

	// Must precede /property/:id
	app.Get("/property/search", middleware.RateLimit(
		s.redis, 60, time.Minute, "property_search"), s.SearchProperties)

	// Request lifecycle
	app.Post("/cancel-client-request", s.gate(security.ResourceRequest, security.ActionDelete), s.CancelClientRequest)
	app.Post("/change-status-of-request", s.gate(security.ResourceRequest, security.ActionEdit), s.ChangeRequestStatus)
	app.Post("/assign-guarantor", s.gate(security.ResourceRequest, security.ActionEdit), s.AssignGuarantor)
	app.Post("/assign-contract", s.gate(security.ResourceRequest, security.ActionEdit), s.AssignContract)
	app.Post("/adviser-change", s.gate(security.ResourceRequest, security.ActionEdit), s.ChangeAdviser)
	app.Get("/request-by-adviser-date", s.gate(security.ResourceRequest, security.ActionList), s.RequestsByAdviserDate)
	app.Get("/requests-by-adviser-request-status", s.gate(security.ResourceRequest, security.ActionList), s.RequestsByAdviserStatus)

	// Adviser applications
	app.Post("/adviser-form-accepted/:id", s.gate(security.ResourceAdviser, security.ActionEdit), s.AcceptAdviserApplication)
	app.Post("/adviser-form-rejected/:id", s.gate(security.ResourceAdviser, security.ActionEdit), s.RejectAdviserApplication)

	app.Get("/ws/requests/:propertyId", s.gate(security.ResourceRequest, security.ActionList),
		s.WatchPropertyRequests, s.RequestEventsHandler())

	s.setupRelationRoutes(app)
	s.setupCRUDRoutes(app)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
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
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"search":   s.searchEnabled,
		},
		"time": time.Now(),
	})
}

// Start starts the scheduler and the HTTP listener. It blocks until the
// listener stops.
func (s *Server) Start() error {
	app := s.App()
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if s.redis != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopWiring = cancel
		if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
			middleware.Logger.Warn("request event stream disabled", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops the listener, lets in-flight jobs and queued notifications
// finish within ctx, then closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.stopWiring != nil {
		s.stopWiring()
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error closing websocket connections", slog.String("error", err.Error()))
	}

	s.scheduler.Stop(ctx)

	if c, ok := s.mailer.(closer); ok {
		if err := c.Close(ctx); err != nil {
			middleware.Logger.Error("notifications not drained", slog.String("error", err.Error()))
		}
	}

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

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
