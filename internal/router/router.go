package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/triage-api/internal/middleware"
	"github.com/jwalitptl/triage-api/pkg/metrics"
)

// Handler mounts public routes. extra runs before the handler itself.
type Handler interface {
	RegisterRoutes(r *gin.RouterGroup, extra ...gin.HandlerFunc)
}

// ProtectedHandler mounts routes behind bearer authentication.
type ProtectedHandler interface {
	RegisterProtected(r *gin.RouterGroup, auth *middleware.AuthMiddleware)
}

type HealthHandler interface {
	RegisterRoutes(r *gin.RouterGroup)
}

// MixedHandler has both public and protected routes.
type MixedHandler interface {
	Handler
	ProtectedHandler
}

type Handlers struct {
	Health      HealthHandler
	Auth        MixedHandler
	Intake      Handler
	Queue       MixedHandler
	Appointment ProtectedHandler
	Dashboard   ProtectedHandler
}

type RouterConfig struct {
	RateLimit      middleware.RateLimiterConfig
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// DisplayMaxAge is the Cache-Control max-age of the waiting-room board.
	DisplayMaxAge int
	Compress      middleware.CompressConfig
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = middleware.DefaultMaxBodySize
	}
	if config.DisplayMaxAge <= 0 {
		config.DisplayMaxAge = 5
	}
	if config.Compress.Level == 0 {
		config.Compress = middleware.DefaultCompressConfig()
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.Recovery(),
		middleware.Metrics(m),
		middleware.Timeout(config.RequestTimeout),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(),
	)

	return &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.handlers.Health.RegisterRoutes(api)
	r.setupPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate(), middleware.NoStore())
	r.setupProtectedRoutes(protected)
}

// setupPublicRoutes mounts the kiosk, the waiting-room display and login.
// Writes from unauthenticated clients are rate limited per IP. Kiosk and
// display responses are gzipped.
func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	limiter := middleware.NewRateLimiter(r.config.RateLimit)
	writes := []gin.HandlerFunc{limiter.RateLimit(), middleware.SizeLimit(r.config.MaxBodyBytes)}

	screens := rg.Group("", middleware.Compress(r.config.Compress))
	r.handlers.Intake.RegisterRoutes(screens, writes...)
	r.handlers.Queue.RegisterRoutes(screens, middleware.Cache(r.config.DisplayMaxAge))
	r.handlers.Auth.RegisterRoutes(rg, writes...)
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	rg.Use(middleware.SizeLimit(r.config.MaxBodyBytes))

	r.handlers.Auth.RegisterProtected(rg, r.auth)
	r.handlers.Queue.RegisterProtected(rg, r.auth)
	r.handlers.Appointment.RegisterProtected(rg, r.auth)
	r.handlers.Dashboard.RegisterProtected(rg, r.auth)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
