package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/logging"
)

const (
	defaultKeyPrefix  = "rewriter:claim:"
	connectionTimeout = 5 * time.Second
	releaseTimeout    = 2 * time.Second
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis is a Claimer shared by every process pointed at the same Redis.
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, logger: logging.Named(logger, "lock")}
}

// Dial parses a redis:// URL, pings the server and returns a Redis claimer.
func Dial(ctx context.Context, rawURL, prefix string, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(client, prefix, logger), nil
}

// Claim sets the article key with NX and a TTL. A held key yields article.ErrInProgress.
func (r *Redis) Claim(ctx context.Context, id string, ttl time.Duration) (func(), error) {
	key := r.prefix + id
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claim article %s: %w", id, err)
	}
	if !ok {
		return nil, article.ErrInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The work context may already be canceled; release on a fresh one.
			relCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			n, err := releaseScript.Run(relCtx, r.client, []string{key}, token).Int()
			switch {
			case err != nil && !errors.Is(err, redis.Nil):
				r.logger.Warn("release claim failed", zap.String("article_id", id), zap.Error(err))
			case n == 0:
				r.logger.Warn("claim expired before release", zap.String("article_id", id))
			}
		})
	}, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
