package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/config"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/db"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/redis"
)

// Deps carries the shared clients a backend may need.
type Deps struct {
	Redis *redis.Client
	DB    *db.Client
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, deps Deps, logg *logger.Logger) (Backend, error) {
	switch cfg.Normalized() {
	case config.StorageDriverMemory:
		return NewMemory(), nil
	case config.StorageDriverFile:
		return NewFile(cfg.Dir, cfg.WatchFiles, logg)
	case config.StorageDriverRedis:
		if deps.Redis == nil {
			return nil, errors.New("redis storage driver requires a redis client")
		}
		return OpenRedis(ctx, deps.Redis, logg)
	case config.StorageDriverSQL:
		if deps.DB == nil {
			return nil, errors.New("sql storage driver requires a database client")
		}
		return NewSQL(deps.DB), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
