// Package server contains the HTTP handlers and wiring for the blog API and its HTML pages.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	_ "blogapi/docs" // swagger docs
	"blogapi/internal/bootstrap"
	"blogapi/internal/cache"
	"blogapi/internal/config"
	"blogapi/internal/database"
	"blogapi/internal/hashing"
	"blogapi/internal/middleware"
	"blogapi/internal/models"
	"blogapi/internal/observability"
	"blogapi/internal/repository"
	"blogapi/internal/service"
	"blogapi/internal/session"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Version is reported by the readiness probe and the tracer resource.
const Version = "1.0.0"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	logger         *slog.Logger
	metrics        *observability.Metrics
	promMiddleware *fiberprometheus.FiberPrometheus
	app            *fiber.App
	views          map[string]*template.Template
	sessions       *session.Manager
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	authService    *service.AuthService
	postService    *service.PostService
	shutdownHooks  []func(context.Context) error
}

// Deps are the already-initialized resources a Server is built from.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	// Redis is optional. Without it sessions live in memory and nothing is cached.
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewServer connects to the database and Redis and builds a Server.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	metrics := observability.NewMetrics()

	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(Deps{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Logger:  logger,
		Metrics: metrics,
	})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.DB == nil {
		return nil, errors.New("server: config and db are required")
	}
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}

	hasher, err := hashing.NewBcryptHasher(deps.Config.BcryptCost)
	if err != nil {
		return nil, err
	}

	views, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("server: parse templates: %w", err)
	}

	sessionCfg := session.Config{
		TTL:          deps.Config.SessionTTL,
		CookieName:   deps.Config.SessionCookieName,
		CookieSecure: deps.Config.SessionCookieSecure,
	}
	if deps.Redis != nil {
		sessionCfg.Storage = cache.NewSessionStorage(deps.Redis)
	}

	c := cache.New(deps.Redis)
	userRepo := repository.NewUserRepository(deps.DB, c)
	postRepo := repository.NewPostRepository(deps.DB, c)

	return &Server{
		config:         deps.Config,
		db:             deps.DB,
		redis:          deps.Redis,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		promMiddleware: middleware.InitMetrics(observability.ServiceName, deps.Metrics.Registry),
		views:          views,
		sessions:       session.NewManager(sessionCfg),
		userRepo:       userRepo,
		postRepo:       postRepo,
		authService:    service.NewAuthService(userRepo, hasher),
		postService:    service.NewPostService(postRepo),
	}, nil
}

// OnShutdown registers fn to run after the HTTP server stops.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.shutdownHooks = append(s.shutdownHooks, fn)
}

// NewApp returns a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Blog API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger(s.logger))

	// Fiber refuses credentials with a wildcard origin.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: s.config.AllowedOrigins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Resolves the session user for every request that can use one.
	app.Use(s.SessionMiddleware())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	app.Get("/metrics", middleware.MetricsHandler(s.metrics.Registry))

	// HTML pages
	app.Get("/", s.Index)
	app.Get("/register", s.RegisterPage)
	app.Post("/register", s.RegisterForm)
	app.Get("/login", s.LoginPage)
	app.Post("/login", s.LoginForm)
	app.Get("/logout", s.LoginRequired(), s.Logout)
	app.Post("/create-post", s.LoginRequired(), s.CreatePostForm)

	api := app.Group("/api")

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	api.Get("/about", s.About)

	// Auth routes
	api.Post("/register", s.Register)
	api.Post("/login", s.Login)
	api.Get("/logout", s.LoginRequired(), s.LogoutAPI)

	// Blog routes. Reading a single post is public.
	blog := api.Group("/blog")
	blog.Get("/:id", s.GetPost)
	blog.Post("/", s.LoginRequired(), s.CreatePost)
	blog.Get("/", s.LoginRequired(), s.ListPosts)
	blog.Patch("/:id", s.LoginRequired(), s.UpdatePost)
	blog.Delete("/:id", s.LoginRequired(), s.DeletePost)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional; without it the app runs on in-memory sessions.
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
		"version": Version,
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	app := s.app
	if app == nil {
		app = s.NewApp()
	}
	s.logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	for _, hook := range s.shutdownHooks {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := database.Close(s.db); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	s.logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}

// errorHandler turns errors escaping handlers into the standard error body.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	return s.respondError(c, err)
}

// respondError writes err with its mapped status. Internal causes are logged, never returned.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := models.StatusCode(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

func isAPIRequest(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/") || c.Path() == "/api"
}
