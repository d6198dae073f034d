package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/eleven-am/vision-backend/internal/audit"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ProvideRedisClient returns nil when REDIS_ADDR is unset. Live sequence
// tracking is then disabled.
func ProvideRedisClient(lc fx.Lifecycle, cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

// ProvideDatabase returns nil when DATABASE_DSN is unset. The audit ledger is
// then disabled.
func ProvideDatabase(cfg *Config) (*gorm.DB, error) {
	if cfg.DatabaseDSN == "" {
		return nil, nil
	}
	return gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func ProvideAuditStore(db *gorm.DB, log *slog.Logger) (*audit.Store, error) {
	if db == nil {
		log.Info("audit ledger disabled, DATABASE_DSN not set")
		return nil, nil
	}
	store := audit.NewStore(db)
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func PrepareScratchDir(cfg *Config) error {
	return os.MkdirAll(cfg.ScratchDir, 0o755)
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideRedisClient,
		ProvideDatabase,
		ProvideAuditStore,
	),
	fx.Invoke(PrepareScratchDir),
)
