package bootstrap

import (
	"github.com/eleven-am/vision-backend/internal/audit"
	"github.com/eleven-am/vision-backend/internal/health"
	"github.com/eleven-am/vision-backend/internal/llm"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const version = "1.0.0"

func ProvideHealthHandler(cfg *Config, db *gorm.DB, redisClient *redis.Client, client llm.Client, store *audit.Store) *health.Handler {
	var probe health.ModelProbe
	if p, ok := client.(health.ModelProbe); ok {
		probe = p
	}

	var outcomes health.OutcomeSummarizer
	if store != nil {
		outcomes = store
	}

	return health.NewHandler(health.Config{
		Version:     version,
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		ScratchDir:  cfg.ScratchDir,
	}, db, redisClient, probe, outcomes)
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(h.Middleware())
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
