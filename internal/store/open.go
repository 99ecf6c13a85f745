package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options selects and tunes the store built by Open.
type Options struct {
	DatabaseURL string // empty selects the in-memory store
	RedisURL    string // empty disables the cache; ignored without a database
	CacheTTL    time.Duration
	Migrate     bool // apply the schema after connecting
}

// Open builds the configured store. The returned cleanup closes every
// connection Open made and is safe to call when err is nil.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	if opts.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		return NewMemoryStore(), func() {}, nil
	}

	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	pool, err := Connect(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup = append(cleanup, pool.Close)
	slog.Info("connected to PostgreSQL")

	if opts.Migrate {
		if err := Migrate(ctx, pool); err != nil {
			closeAll()
			return nil, nil, err
		}
		slog.Info("schema applied")
	}

	var st Store = NewPostgresStore(pool)

	if opts.RedisURL != "" {
		ropts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(ropts)
		cleanup = append(cleanup, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		st = NewCachedStore(st, rdb, opts.CacheTTL)
		slog.Info("Redis cache enabled", "ttl", opts.CacheTTL.String())
	}

	return st, closeAll, nil
}
