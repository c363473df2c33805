package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "monolith/docs" // swagger docs
	"monolith/internal/cache"
	"monolith/internal/config"
	"monolith/internal/featureflags"
	"monolith/internal/imagekit"
	"monolith/internal/jobs"
	"monolith/internal/mailer"
	"monolith/internal/middleware"
	"monolith/internal/models"
	"monolith/internal/notifications"
	"monolith/internal/repository"
	"monolith/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	csrfCookieName = "XSRF-TOKEN"
	csrfHeaderName = "X-XSRF-TOKEN"
	claimsLocal    = "sessionClaims"
)

var errTokenRevoked = errors.New("token has been revoked")

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
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
	workerDone     chan struct{}

	userRepo     repository.UserRepository
	queue        jobs.Queue
	worker       *jobs.Worker
	sweeper      *jobs.Sweeper
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	hubs         []wireableHub
	featureFlags *featureflags.Manager
	imagekit     *imagekit.Signer
	media        *service.MediaService

	authService       *service.AuthService
	userService       *service.UserService
	followService     *service.FollowService
	connectionService *service.ConnectionService
	postService       *service.PostService
	commentService    *service.CommentService
	storyService      *service.StoryService
	messageService    *service.MessageService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The bootstrap package establishes DB/Redis and optional seeding; a nil
// redisClient runs the job queue in memory with realtime disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	flags, err := featureflags.Load(cfg.FeatureFlags, cfg.FeatureFlagsFile)
	if err != nil {
		return nil, err
	}
	mail, err := mailer.New(cfg)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("monolith-api"),
		userRepo:       userRepo,
		featureFlags:   flags,
		imagekit:       imagekit.NewSigner(cfg.ImageKitPrivateKey, cfg.ImageKitPublicKey, cfg.ImageKitURLEndpoint),
		media:          service.NewMediaService(cfg),
	}

	var events service.EventPublisher
	if redisClient != nil {
		s.queue = jobs.NewRedisQueue(redisClient)
		s.notifier = notifications.NewNotifier(redisClient)
		s.hub = notifications.NewHub()
		s.hubs = []wireableHub{s.hub}
		events = s.notifier
	} else {
		s.queue = jobs.NewMemoryQueue()
	}

	audience := service.NewAudience(followRepo, connectionRepo)
	s.authService = service.NewAuthService(userRepo, cfg.JWTSecret, cfg.SessionTTL())
	s.userService = service.NewUserService(userRepo, followRepo, postRepo, s.media)
	s.followService = service.NewFollowService(followRepo, userRepo)
	s.connectionService = service.NewConnectionService(connectionRepo, userRepo, followRepo, s.queue, events, mail, cfg.FrontendURL)
	s.postService = service.NewPostService(postRepo, userRepo, audience)
	s.commentService = service.NewCommentService(commentRepo, postRepo)
	s.storyService = service.NewStoryService(storyRepo, audience, s.queue, cfg.StoryTTL())
	s.messageService = service.NewMessageService(messageRepo, userRepo, events)

	s.worker = jobs.NewWorker(s.queue, cfg.JobPollInterval())
	s.worker.Register(jobs.TypeStoryExpire, s.storyService.HandleExpire)
	s.worker.Register(jobs.TypeConnectionRequestEmail, s.connectionService.HandleRequestEmail)

	if spec := strings.TrimSpace(cfg.StorySweepSpec); spec != "" {
		s.sweeper, err = jobs.NewSweeper(spec, s.storyService.Sweep)
		if err != nil {
			return nil, fmt.Errorf("invalid STORY_SWEEP_SPEC %q: %w", spec, err)
		}
	}

	return s, nil
}

// NewApp builds the Fiber app with middleware and routes attached.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "monolith API",
		BodyLimit:    (2*s.config.ImageMaxUploadSizeMB + 1) * 1024 * 1024,
		ErrorHandler: s.handleError,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// handleError renders errors that escape handlers (unknown routes, oversized
// bodies, panics turned into errors) in the standard envelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return models.RespondWithError(c, fe.Code, errors.New(fe.Message))
	}
	return mapServiceError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Propagate request and trace IDs into the request context for logging
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers; uploaded media is embedded cross-origin by the SPA.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, " + csrfHeaderName + ", Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.IsTest()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Too many requests, please try again later.",
			})
		},
	}))

	// Double-submit cookie for cookie-authenticated browser sessions. Bearer
	// clients are not exposed to CSRF and skip the check.
	if s.config.CSRFEnabled {
		app.Use(csrf.New(csrf.Config{
			KeyLookup:      "header:" + csrfHeaderName,
			CookieName:     csrfCookieName,
			CookieSameSite: "Lax",
			CookieSecure:   s.config.CookieSecure,
			Expiration:     2 * time.Hour,
			Next: func(c *fiber.Ctx) bool {
				return c.Get(fiber.HeaderAuthorization) != ""
			},
			ErrorHandler: func(c *fiber.Ctx, _ error) error {
				return models.RespondWithError(c, fiber.StatusForbidden,
					models.NewForbiddenError("CSRF token mismatch."))
			},
		}))
	}
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

	if base := s.config.MediaBaseURL; strings.HasPrefix(base, "/") {
		app.Static(base, s.media.Dir(), fiber.Static{MaxAge: 86400})
	}

	app.Get("/sanctum/csrf-cookie", s.CSRFCookie)

	api := app.Group("/api")
	api.Get("/", s.HealthCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "monolith metrics",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	api.Post("/register", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "register"), s.Register)
	loginPolicy := middleware.FailOpen
	if s.config.IsProduction() {
		loginPolicy = middleware.FailClosed
	}
	api.Post("/login", middleware.RateLimitWithPolicy(
		s.redis, 10, 5*time.Minute, loginPolicy, "login"), s.Login)
	api.Post("/logout", s.Logout)

	// Client-side upload signing
	api.Get("/imagekit-auth", middleware.RateLimit(
		s.redis, 60, time.Minute, "imagekit_auth"), s.ImageKitAuth)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	protected.Get("/user", s.CurrentUser)
	protected.Get("/user/profile", s.GetUserProfile)
	protected.Put("/user/profile-picture", s.UpdateProfilePicture)
	protected.Post("/user/update", s.UpdateProfile)
	protected.Post("/discover-users", middleware.RateLimit(
		s.redis, 30, time.Minute, "discover"), s.DiscoverUsers)
	protected.Post("/toggle-follow", s.ToggleFollow)
	protected.Get("/my-posts", s.GetMyPosts)

	// Define specific /:id/:resource routes BEFORE generic /:id route
	users := protected.Group("/users")
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id", s.GetSelectedUser)

	connections := protected.Group("/connections")
	connections.Get("/", s.GetConnections)
	connections.Get("/status/:id", s.GetConnectionStatus)
	connections.Post("/toggle", middleware.RateLimit(
		s.redis, 30, time.Minute, "connection_toggle"), s.ToggleConnection)
	connections.Post("/accept", s.AcceptConnection)
	connections.Post("/decline", s.DeclineConnection)

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	posts.Get("/feed-posts", s.GetFeedPosts)
	posts.Post("/:id/like", s.ToggleLike)

	comments := protected.Group("/comments")
	comments.Get("/:postId/comments", s.GetComments)
	comments.Get("/:postId/count", s.CountComments)
	comments.Post("/:postId/add", middleware.RateLimit(
		s.redis, 20, time.Minute, "create_comment"), s.AddComment)
	comments.Delete("/:id/delete", s.DeleteComment)

	stories := protected.Group("/stories")
	stories.Get("/", s.GetStories)
	stories.Post("/add", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_story"), s.AddStory)
	stories.Post("/:id/view", s.ViewStory)

	messages := protected.Group("/messages")
	messages.Post("/send", middleware.RateLimit(
		s.redis, 30, time.Minute, "send_message"), s.SendMessage)
	messages.Post("/get-messages", s.GetChatMessages)
	messages.Get("/unread-messages", s.GetUnreadMessages)
	messages.Get("/recent-messages", s.GetRecentMessages)

	// Websocket endpoint - protected by AuthRequired
	protected.Get("/ws", s.RealtimeEnabled(), s.WebsocketHandler())

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
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

	// Redis backs revocation, the job queue and realtime but the API still
	// serves without it, so a missing client degrades instead of failing.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus == "unhealthy" || redisStatus == "unhealthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus == "unavailable":
		overallStatus = "degraded"
	}

	pending := int64(-1)
	if s.queue != nil {
		if n, err := s.queue.Pending(ctx); err == nil {
			pending = n
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "monolith",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"pending_jobs": pending,
		"time":         time.Now(),
	})
}

// AuthRequired returns the authentication middleware. The token comes from
// the Authorization header or the session cookie and must not be revoked.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := s.authenticate(c)
		if err != nil {
			msg := "Invalid or expired token"
			switch {
			case errors.Is(err, middleware.ErrMissingToken):
				msg = "Unauthenticated."
			case errors.Is(err, errTokenRevoked):
				msg = "Token has been revoked"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(msg))
		}

		c.Locals("userID", claims.UserID)
		c.Locals(claimsLocal, claims)
		// Sync to UserContext for logging and downstream services
		c.SetUserContext(middleware.WithUserID(c.UserContext(), claims.UserID))

		return c.Next()
	}
}

func (s *Server) authenticate(c *fiber.Ctx) (*middleware.SessionClaims, error) {
	token, err := middleware.TokenFromRequest(c, s.config.SessionCookieName)
	if err != nil {
		return nil, err
	}
	claims, err := middleware.ParseToken(s.config.JWTSecret, token)
	if err != nil {
		return nil, err
	}
	revoked, err := cache.IsRevoked(c.UserContext(), claims.JTI)
	if err != nil {
		// Fail open on a Redis outage; the token is still signature-checked.
		middleware.Logger.WarnContext(c.UserContext(), "revocation check failed", "error", err.Error())
	}
	if revoked {
		return nil, errTokenRevoked
	}
	return claims, nil
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.userRepo.GetByID(c.UserContext(), currentUserID(c))
		if err != nil {
			return mapServiceError(c, err)
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()
	s.startBackground(ctx)

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// startBackground launches the job worker, the story sweeper and the hub wiring.
func (s *Server) startBackground(ctx context.Context) {
	s.workerDone = make(chan struct{})
	go func() {
		defer close(s.workerDone)
		s.worker.Run(ctx)
	}()

	if s.sweeper != nil {
		s.sweeper.Start()
	}

	// Wire all hubs to Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			go func() {
				if err := h.StartWiring(ctx, s.notifier); err != nil && ctx.Err() == nil {
					log.Printf("failed to start %s wiring: %v", h.Name(), err)
				}
			}()
		}
	}
}

// Shutdown gracefully shuts down the server: HTTP first, then websockets,
// background jobs, the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close WebSocket connections gracefully
	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", h.Name(), err)
		}
	}

	// Cancel the server-scoped context to stop the worker and subscribers
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	if s.workerDone != nil {
		select {
		case <-s.workerDone:
		case <-ctx.Done():
			log.Printf("job worker did not stop before shutdown deadline")
		}
	}
	if s.sweeper != nil {
		s.sweeper.Stop(ctx)
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
