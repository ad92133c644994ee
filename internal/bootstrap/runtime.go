// Package bootstrap wires the process-level resources the server and the
// admin CLI share.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"blogapi/internal/cache"
	"blogapi/internal/config"
	"blogapi/internal/database"
	"blogapi/internal/hashing"
	"blogapi/internal/observability"
	"blogapi/internal/repository"
	"blogapi/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis and makes sure the configured
// bootstrap admin exists. Redis is optional: when it cannot be reached the
// returned client is nil and the app falls back to in-memory sessions.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := cache.Connect(cfg.RedisURL, metrics, logger)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory sessions and no cache",
			slog.String("error", err.Error()),
		)
		rdb = nil
	}

	users := repository.NewUserRepository(db, cache.New(rdb))
	if err := EnsureAdmin(ctx, cfg, users, logger); err != nil {
		_ = database.Close(db)
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	return db, rdb, nil
}

// EnsureAdmin creates BOOTSTRAP_ADMIN_USERNAME as an admin, or promotes the
// account if it already exists. The password of an existing account is left
// alone. It is a no-op when no bootstrap username is configured.
func EnsureAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository, logger *slog.Logger) error {
	if cfg == nil || cfg.BootstrapAdminUsername == "" {
		return nil
	}

	existing, err := users.GetByUsername(ctx, cfg.BootstrapAdminUsername)
	if err != nil {
		return err
	}

	if existing == nil {
		hasher, err := hashing.NewBcryptHasher(cfg.BcryptCost)
		if err != nil {
			return err
		}
		existing, err = service.NewAuthService(users, hasher).Register(ctx, service.RegisterInput{
			Username: cfg.BootstrapAdminUsername,
			Password: cfg.BootstrapAdminPassword,
		})
		if err != nil {
			return err
		}
	} else if existing.IsAdmin {
		return nil
	}

	if err := users.SetAdmin(ctx, existing.ID, true); err != nil {
		return err
	}

	logger.Info("bootstrap admin ensured",
		slog.Uint64("user_id", uint64(existing.ID)),
		slog.String("username", existing.Username),
	)
	return nil
}
