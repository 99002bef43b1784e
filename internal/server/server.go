// Package server wires the HTTP API: middleware chain, routes and handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/factory"
	"folio/internal/mailer"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/observability"
	"folio/internal/query"
	"folio/internal/repository"
	"folio/internal/security"
	"folio/internal/service"
	"folio/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
)

// UserRepository is everything the user routes need from storage.
type UserRepository interface {
	service.UserStore
	factory.Store[*models.User]
}

// PostRepository is everything the post routes need from storage.
type PostRepository interface {
	service.PostStore
	factory.Store[*models.Post]
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the already-initialized collaborators of a Server.
type Deps struct {
	DB       Pinger
	Redis    *redis.Client
	Users    UserRepository
	Posts    PostRepository
	Projects factory.Store[*models.Project]
	Assets   storage.AssetStore
	Mailer   mailer.Sender
	// Credentials defaults to security.NewCredentials().
	Credentials *security.Credentials
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             Pinger
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	closers        []func(context.Context) error

	tokens  *security.TokenService
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter

	userService *service.UserService
	postService *service.PostService

	users    *factory.Handler[*models.User]
	posts    *factory.Handler[*models.Post]
	projects *factory.Handler[*models.Project]
}

// NewServer connects to MongoDB and Redis and builds a Server on top of them.
// Redis is optional: without it caching and rate limiting are skipped.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	assets, err := storage.FromConfig(ctx, cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("asset storage: %w", err)
	}

	sender, err := mailer.NewSender(cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("mailer: %w", err)
	}

	db := store.DB()
	s, err := NewServerWithDeps(cfg, Deps{
		DB:       store,
		Redis:    rdb,
		Users:    repository.NewUserRepository(db),
		Posts:    repository.NewPostRepository(db, cache.New(rdb)),
		Projects: repository.NewProjectRepository(db),
		Assets:   assets,
		Mailer:   sender,
	})
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	s.closers = append(s.closers, store.Close)
	if rdb != nil {
		s.closers = append(s.closers, func(context.Context) error { return rdb.Close() })
	}
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with in-memory stores.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Users == nil || deps.Posts == nil || deps.Projects == nil {
		return nil, errors.New("server: user, post and project stores are required")
	}
	if deps.Assets == nil || deps.Mailer == nil {
		return nil, errors.New("server: asset store and mailer are required")
	}
	creds := deps.Credentials
	if creds == nil {
		creds = security.NewCredentials()
	}

	tokens := security.NewTokenService(security.TokenOptions{
		Secret:       cfg.JWTSecret,
		TTL:          cfg.TokenTTL(),
		CookieTTL:    cfg.CookieTTL(),
		SecureCookie: cfg.IsProduction(),
	})

	maxAsset := int64(cfg.AssetMaxSizeMB) << 20
	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: observability.HTTPMetrics(),
		tokens:         tokens,
		auth:           middleware.NewAuthenticator(tokens, deps.Users),
		limiter:        middleware.NewRateLimiter(deps.Redis, cfg.IsProduction()),
		userService: service.NewUserService(deps.Users, creds, tokens, deps.Mailer, service.UserOptions{
			Allowlist: cfg.Allowlist(),
			ResetURL:  cfg.ResetURL,
		}),
		postService: service.NewPostService(deps.Posts, deps.Assets, service.PostOptions{
			AssetPrefix:   cfg.AssetPreset,
			MaxAssetBytes: maxAsset,
		}),
	}

	s.users = factory.New[*models.User](deps.Users, factory.Options[*models.User]{
		Label:  "user",
		New:    func() *models.User { return &models.User{} },
		Schema: query.SchemaFor[models.User](),
		ID:     middleware.UserID,
	})
	s.posts = factory.New[*models.Post](deps.Posts, factory.Options[*models.Post]{
		Label:  "post",
		New:    func() *models.Post { return &models.Post{} },
		Schema: query.SchemaFor[models.Post](),
		Param:  "slug",
		Scope: func(c *fiber.Ctx) bson.M {
			if middleware.CurrentUser(c) != nil {
				return nil
			}
			return bson.M{"isPublished": true}
		},
	})
	s.projects = factory.New[*models.Project](deps.Projects, factory.Options[*models.Project]{
		Label:  "project",
		New:    func() *models.Project { return &models.Project{} },
		Schema: query.SchemaFor[models.Project](),
		Param:  "projectId",
	})

	return s, nil
}

// App builds the fiber application once and returns it.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	// base64 bodies are a third larger than the files they carry
	bodyLimit := (s.config.AssetMaxSizeMB*2 + 1) << 20
	app := fiber.New(fiber.Config{
		AppName:      "folio",
		ErrorHandler: ErrorHandler(s.config.IsDevelopment()),
		BodyLimit:    max(bodyLimit, fiber.DefaultBodyLimit),
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	// Propagate request and trace ids to the logger
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())

	// Errors are rendered here so the access log carries the final status.
	app.Use(middleware.StructuredLogger(ErrorHandler(s.config.IsDevelopment())))

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		// fiber refuses credentials with a wildcard origin
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(compress.New())

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests from this IP, please try again later")
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

	api := app.Group("/api/v1")
	protect := s.auth.Protect()

	users := api.Group("/users")
	users.Post("/", s.limiter.Limit("register", 5, time.Hour), s.Register)
	users.Post("/login", s.limiter.Limit("login", 10, 15*time.Minute), s.Login)
	users.Get("/logout", s.Logout)
	users.Post("/forgot-password", s.limiter.Limit("forgot_password", 5, time.Hour), s.ForgotPassword)
	users.Patch("/reset-password", s.ResetPassword)
	users.Get("/checkAuth", protect, s.CheckAuth)
	users.Get("/user", protect, s.users.GetOne())
	users.Patch("/user", protect, s.UpdateMe)
	users.Patch("/change-password", protect, s.ChangePassword)

	posts := api.Group("/posts")
	posts.Get("/", s.auth.OptionalAuth(), s.posts.GetAll())
	posts.Get("/slider-data", s.SliderData)
	posts.Post("/", protect, s.CreatePost)
	// Define specific routes BEFORE the generic /:slug routes
	posts.Post("/upload-file", protect, s.UploadFile)
	posts.Delete("/delete-file", protect, s.DeleteFile)
	posts.Patch("/toggle-publish/:postId", protect, s.TogglePublish)
	posts.Patch("/toggle-slider/:postId", protect, s.ToggleSlider)
	posts.Post("/:slug/react", s.React)
	posts.Post("/:slug/create-comment", s.CreateComment)
	posts.Post("/:slug/delete-comment", protect, s.DeleteComment)
	posts.Get("/:slug", s.GetPost)
	posts.Patch("/:slug", protect, s.UpdatePost)
	posts.Delete("/:slug", protect, s.DeletePost)

	projects := api.Group("/projects")
	projects.Get("/", s.projects.GetAll())
	projects.Post("/", protect, s.projects.CreateOne())
	projects.Get("/:projectId", s.projects.GetOne())
	projects.Patch("/:projectId", protect, s.projects.UpdateOne())
	projects.Delete("/:projectId", protect, s.projects.DeleteOne())

	app.Use(func(c *fiber.Ctx) error {
		return models.NewNotFoundMessage(fmt.Sprintf("Cannot find the route %s on this server!", c.OriginalURL()))
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings MongoDB and Redis. Redis is optional, so its absence
// is reported but does not fail the probe.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if err := s.db.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "Readiness: database ping failed", slog.String("error", err.Error()))
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	addr := ":" + s.config.Port
	slog.Info("Server starting", slog.String("addr", addr), slog.String("env", s.config.Env))
	return s.App().Listen(addr)
}

// Shutdown drains in-flight requests and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	for _, closeFn := range s.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
