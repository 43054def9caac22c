package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/missedcall-flow/internal/config"
	"github.com/wolfman30/missedcall-flow/internal/sessions"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildSessionStore picks the session backend named by cfg.SessionBackend.
// "auto" prefers Postgres, then Redis, then the in-process store. The
// returned string names the backend that was chosen.
func BuildSessionStore(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *logging.Logger) (sessions.Store, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch backend := strings.ToLower(strings.TrimSpace(cfg.SessionBackend)); backend {
	case "postgres":
		if pool == nil {
			return nil, backend, fmt.Errorf("bootstrap: session backend postgres requires DATABASE_URL")
		}
		return sessions.NewPostgresStore(pool), backend, nil
	case "redis":
		if redisClient == nil {
			return nil, backend, fmt.Errorf("bootstrap: session backend redis requires a reachable REDIS_ADDR")
		}
		return sessions.NewRedisStore(redisClient, cfg.SessionTTL), backend, nil
	case "memory":
		return sessions.NewMemoryStore(), backend, nil
	case "", "auto":
		switch {
		case pool != nil:
			return sessions.NewPostgresStore(pool), "postgres", nil
		case redisClient != nil:
			return sessions.NewRedisStore(redisClient, cfg.SessionTTL), "redis", nil
		default:
			logger.Warn("no durable session backend configured; sessions are lost on restart")
			return sessions.NewMemoryStore(), "memory", nil
		}
	default:
		return nil, backend, fmt.Errorf("bootstrap: unknown session backend %q", cfg.SessionBackend)
	}
}
