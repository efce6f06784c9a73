package cli

import (
	"context"
	"fmt"

	"github.com/hammamikhairi/dagchef/internal/config"
	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/recipe"
	"github.com/hammamikhairi/dagchef/internal/storage"
)

// openStore connects the configured backend. The memory store is seeded
// with the built-in recipes so a fresh run has something to play.
func openStore(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (domain.RecipeStore, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		store := storage.NewMemoryStore(log)
		if err := recipe.Seed(ctx, store, log); err != nil {
			return nil, nil, fmt.Errorf("seeding built-in recipes: %w", err)
		}
		return store, nil, nil

	case config.BackendFile:
		store, err := storage.NewFileStore(cfg.Dir, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using file store in %s", cfg.Dir)
		return store, nil, nil

	case config.BackendRedis:
		store, err := storage.NewRedisStore(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, func(context.Context) error { return store.Close() }, nil

	case config.BackendMongo:
		store, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
