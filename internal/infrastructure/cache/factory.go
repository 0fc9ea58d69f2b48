package cache

import (
	"context"
	"fmt"

	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores bundles the key-value backed stores the service needs
type Stores struct {
	Idempotency shared.IdempotencyStore
	Client      *redis.Client // nil when running in memory
}

// Close releases the stores and the Redis client
func (s *Stores) Close() error {
	err := s.Idempotency.Close()
	if s.Client != nil {
		if cerr := s.Client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// FactoryOption configures NewStores
type FactoryOption func(*factory)

type factory struct {
	logger        *zap.Logger
	allowFallback bool
}

// WithLogger sets the logger used to report which backend was chosen
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *factory) { f.logger = logger }
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// in-memory stores instead of failing. Default true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) { f.allowFallback = allow }
}

// NewStores returns Redis-backed stores when Redis is configured and
// reachable, in-memory stores otherwise
func NewStores(ctx context.Context, cfg config.RedisConfig, opts ...FactoryOption) (*Stores, error) {
	f := &factory{logger: zap.NewNop(), allowFallback: true}
	for _, opt := range opts {
		opt(f)
	}

	if cfg.Host == "" {
		f.logger.Info("Redis not configured, using in-memory stores")
		return &Stores{Idempotency: NewInMemoryIdempotencyStore()}, nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		if !f.allowFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory stores; "+
			"duplicate webhooks may be applied once per instance",
			zap.Error(err))
		return &Stores{Idempotency: NewInMemoryIdempotencyStore()}, nil
	}

	f.logger.Info("using Redis stores", zap.String("addr", cfg.Addr()))
	return &Stores{
		Idempotency: NewRedisIdempotencyStore(client, defaultKeyPrefix),
		Client:      client,
	}, nil
}
