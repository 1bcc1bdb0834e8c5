package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"mealplan-backend/internal/activity"
	"mealplan-backend/internal/plans"
	"mealplan-backend/internal/services/health"
	"mealplan-backend/internal/shared/config"
	"mealplan-backend/internal/shared/server"
	"mealplan-backend/internal/shared/server/middleware"
	"mealplan-backend/internal/shared/storage/db"
	"mealplan-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Redis           *redis.Client
	ActivityService *activity.Service
	Entitlements    plans.Provider
	ActivityHandler *activity.Handler
	PlansHandler    *plans.Handler
	Limiter         middleware.Limiter
}

// Build prepares shared dependencies and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := buildRedis(ctx, cfg)
	if err != nil {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Redis:  rdb,
	}
	buildServices(app)

	checks := map[string]health.Check{}
	if app.DB != nil {
		checks["postgres"] = app.DB.PingContext
	}
	if app.Redis != nil {
		rdb := app.Redis
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:   app.Config,
		Activity: app.ActivityHandler,
		Plans:    app.PlansHandler,
		Limiter:  app.Limiter,
		Health:   health.NewService(checks),
	})

	return app, nil
}

// Close releases pooled connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	// Deployed environments migrate through cmd/migrate.
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.local_rate_limit", map[string]any{"reason": "redis unreachable", "error": err.Error()})
			return nil, nil
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func buildServices(app *App) {
	cfg := app.Config
	opts := []activity.Option{activity.WithCountOnReset(cfg.CountOnReset)}

	fallback, err := plans.ParseTier(cfg.DefaultPlan)
	if err != nil {
		telemetry.Warn("bootstrap.default_plan_invalid", map[string]any{"plan": cfg.DefaultPlan})
		fallback = plans.TierFree
	}

	var provider plans.Provider
	if app.DB != nil {
		app.ActivityService = activity.NewPostgresService(activity.NewPGStore(app.DB), opts...)
		provider = plans.NewPGProvider(app.DB, fallback)
	} else {
		app.ActivityService = activity.NewService(opts...)
		provider = plans.NewStaticProvider(fallback)
	}
	app.Entitlements = plans.NewCachedProvider(provider, cfg.EntitlementCacheMax, cfg.EntitlementCacheTTL)

	if app.Redis != nil {
		app.Limiter = middleware.NewRedisLimiter(app.Redis)
	} else {
		app.Limiter = middleware.NewRateLimiter(nil)
	}

	app.ActivityHandler = activity.NewHandler(app.ActivityService, plans.Limits{Provider: app.Entitlements})
	app.PlansHandler = plans.NewHandler(app.Entitlements, app.ActivityService)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
