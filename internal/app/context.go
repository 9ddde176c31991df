package app

import (
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/fashionjiok/internal/cache"
	"github.com/oggyb/fashionjiok/internal/config"
	"github.com/oggyb/fashionjiok/internal/db"
)

// AppContext carries the process-wide dependencies every service is built from.
// Tests pass nil for the pieces they do not exercise.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
}

func New(cfg *config.Config, database *gorm.DB, rdb *cache.RedisCache, log *slog.Logger) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         database,
		RedisCache: rdb,
		Logger:     log,
	}
}

// Close releases Redis and the database pool. Safe on a partially built context.
func (a *AppContext) Close() error {
	var errs []error
	if a.RedisCache != nil {
		if err := a.RedisCache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := db.Close(a.DB); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
