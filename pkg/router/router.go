// Package router assembles the gin engine: middleware chain, public API,
// operator endpoints and the static front-end.
package router

import (
	"net/http"
	"os"

	"ai-interface/backend/pkg/config"
	"ai-interface/backend/pkg/errors"
	"ai-interface/backend/pkg/health"
	"ai-interface/backend/pkg/logger"
	"ai-interface/backend/pkg/middleware"
	"ai-interface/backend/pkg/validator"
	"ai-interface/backend/relay/api"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine  *gin.Engine
	Logger  *logger.Logger
	Config  *config.Config
	Checker *health.Checker
}

// New creates the engine with the full middleware chain applied.
func New(cfg *config.Config, log *logger.Logger, checker *health.Checker) *Router {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Request id first so the logger middleware can pick it up.
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(log))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	engine.Use(bodyLimit(cfg.Security.MaxBodySize))

	rateLimiter := middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: middleware.DefaultRateLimiterOptions().ExpiryDuration,
		KeyFunc:        middleware.DefaultRateLimiterOptions().KeyFunc,
	})
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:  engine,
		Logger:  log,
		Config:  cfg,
		Checker: checker,
	}
}

// SetupRoutes registers the public API, operator endpoints and the static
// front-end.
func (r *Router) SetupRoutes(handler *api.Handler) {
	api.RegisterRoutes(r.Engine, handler)

	// Operator endpoint; distinct from the public /api/health.
	if r.Checker != nil {
		r.Engine.GET("/health", r.Checker.Handler())
	}

	// The browser front-end is plain static files the relay never
	// interprets.
	if dir := r.Config.Server.StaticDir; dirExists(dir) {
		r.Engine.Static("/app", dir)
		r.Engine.StaticFile("/", dir+"/index.html")
	}
}

// AddOpenAPIValidation installs request validation when the schema file is
// present. A missing schema is not an error; the relay runs unvalidated.
func (r *Router) AddOpenAPIValidation(schemaPath string) {
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.LogError(err, "failed to initialize OpenAPI validator")
		return
	}

	r.Engine.Use(v.Middleware())
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath)
}

// bodyLimit caps request body size, mirroring the original deployment's
// 25MB JSON limit for inline file attachments.
func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
