// Package status selects the dispatch status store named by configuration.
package status

import (
	"context"
	"fmt"
	"log/slog"

	"whatsapp-bulk-worker/internal/adapters/status/memory"
	"whatsapp-bulk-worker/internal/adapters/status/postgres"
	redisstore "whatsapp-bulk-worker/internal/adapters/status/redis"
	"whatsapp-bulk-worker/internal/config"
	"whatsapp-bulk-worker/internal/ports"
)

// Open returns the configured store and a func that releases it.
func Open(ctx context.Context, conf config.Config, log *slog.Logger) (ports.DispatchStore, func(), error) {
	switch conf.StatusStore {
	case "postgres":
		store, err := postgres.New(conf.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info("dispatch status store ready", "backend", "postgres")
		return store, func() { _ = store.Close() }, nil

	case "redis":
		store, err := redisstore.New(ctx, conf.RedisURL, redisstore.DefaultTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("dispatch status store ready", "backend", "redis")
		return store, func() { _ = store.Close() }, nil

	case "memory", "":
		log.Info("dispatch status store ready", "backend", "memory")
		return memory.New(memory.DefaultTTL, memory.DefaultMaxEntries), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown status store %q", conf.StatusStore)
}
