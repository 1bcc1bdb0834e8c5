package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mealplan-backend/internal/activity"
	"mealplan-backend/internal/plans"
	"mealplan-backend/internal/services/health"
	"mealplan-backend/internal/shared/config"
	"mealplan-backend/internal/shared/metrics"
	"mealplan-backend/internal/shared/server/middleware"
	"mealplan-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers and infrastructure the router wires up.
type RouterDeps struct {
	Config   config.Config
	Activity *activity.Handler
	Plans    *plans.Handler
	Limiter  middleware.Limiter
	// Health checks backing stores; nil means always healthy.
	Health *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.Health))

	authed := api.Group("",
		middleware.Auth(cfg.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Limiter:  deps.Limiter,
			GroupFor: rateLimitGroup,
			Rules:    rateLimitRules(cfg),
		}),
	)
	registerMeRoutes(authed)
	if deps.Activity != nil {
		deps.Activity.RegisterRoutes(authed)
	}
	if deps.Plans != nil {
		deps.Plans.RegisterRoutes(authed)
	}

	internal := r.Group("/internal", middleware.InternalSecret(cfg.CronSecret))
	if deps.Activity != nil {
		deps.Activity.RegisterInternalRoutes(internal)
	}

	return r
}

// Reads are cheap self-healing fetches and get a looser budget than writes.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet {
		return "READ"
	}
	return "DEFAULT"
}

func rateLimitRules(cfg config.Config) map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		"DEFAULT": {Rate: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		"READ":    {Rate: cfg.RateLimitRPS * 4, Burst: cfg.RateLimitBurst * 4},
	}
}

func healthHandler(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks, ok := svc.Status(c.Request.Context())
		if !ok {
			respond.Error(c, http.StatusServiceUnavailable, "unhealthy", "backing store unreachable", checks)
			return
		}
		respond.OK(c, gin.H{"ok": true, "checks": checks})
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
