// Package server contains the HTTP handlers and route wiring for the API and
// page endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"socialdb/internal/auth"
	"socialdb/internal/cache"
	"socialdb/internal/config"
	"socialdb/internal/database"
	"socialdb/internal/middleware"
	"socialdb/internal/models"
	"socialdb/internal/repository"
	"socialdb/internal/session"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	tokens         *auth.TokenService
	sessions       *session.Store
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Sessions live in Redis, so it is a hard dependency here.
	if err := cache.InitRedis(cfg.RedisURL); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	// Injected clients feed the cache-aside path too.
	cache.SetClient(redisClient)

	prom := middleware.InitMetrics("socialdb-api")

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		tokens:         tokens,
		sessions:       session.NewStore(redisClient),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID and user ID to the logger
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Auth routes
	app.Post("/register", s.Register)
	app.Post("/login", s.Login)
	app.Get("/logout", s.Logout)

	// Post routes, all behind the API auth variant
	app.Post("/post", s.AuthRequired(), s.CreatePost)
	app.Get("/posts", s.AuthRequired(), s.GetPosts)
	app.Put("/posts/:postId", s.AuthRequired(), s.UpdatePost)
	app.Delete("/posts/:postId", s.AuthRequired(), s.DeletePost)

	// HTML pages; /post and /index behind the redirecting page variant
	app.Get("/", s.HomePage)
	app.Get("/register", s.RegisterPage)
	app.Get("/login", s.LoginPage)
	app.Get("/post", s.PageAuthRequired(), s.PostPage)
	app.Get("/index", s.PageAuthRequired(), s.IndexPage)
}

// authenticate resolves the session cookie to verified token claims. It is
// the shared contract behind both middleware variants.
func (s *Server) authenticate(c *fiber.Ctx) (*auth.Claims, uint, error) {
	sid := c.Cookies(session.CookieName)
	if sid == "" {
		return nil, 0, models.NewUnauthorizedError("Unauthorized")
	}

	token, err := s.sessions.Get(c.Context(), sid)
	if err != nil {
		if err == session.ErrNotFound {
			return nil, 0, models.NewUnauthorizedError("Unauthorized")
		}
		return nil, 0, models.NewInternalError(err)
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, 0, models.NewUnauthorizedError("Invalid token")
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, 0, models.NewUnauthorizedError("Invalid token")
	}

	// The account may have been deleted since the session was created. The
	// lookup goes through the user cache, so steady-state requests do not
	// hit the database.
	if _, err := s.userRepo.GetByID(c.Context(), userID); err != nil {
		if appErr, ok := err.(*models.AppError); ok && appErr.Code == "NOT_FOUND" {
			return nil, 0, models.NewUnauthorizedError("Unauthorized")
		}
		return nil, 0, err
	}

	return claims, userID, nil
}

// attachIdentity stores the verified identity in locals and the user context.
func (s *Server) attachIdentity(c *fiber.Ctx, claims *auth.Claims, userID uint) {
	c.Locals("userID", userID)
	c.Locals("username", claims.Username)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
}

// AuthRequired is the API auth variant: a missing or invalid session token
// short-circuits with a 401 JSON body.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, userID, err := s.authenticate(c)
		if err != nil {
			status := fiber.StatusUnauthorized
			if appErr, ok := err.(*models.AppError); ok && appErr.Code == "INTERNAL_ERROR" {
				status = fiber.StatusInternalServerError
			}
			return models.RespondWithError(c, status, err)
		}
		s.attachIdentity(c, claims, userID)
		return c.Next()
	}
}

// PageAuthRequired is the page auth variant: browser navigation gets a
// redirect to the login page instead of a machine-readable failure.
func (s *Server) PageAuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, userID, err := s.authenticate(c)
		if err != nil {
			return c.Redirect("/login", fiber.StatusFound)
		}
		s.attachIdentity(c, claims, userID)
		return c.Next()
	}
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
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

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis holds the sessions, so the server is not ready without it.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName: "SocialDB API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
