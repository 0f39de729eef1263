package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"content-safety/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	TextVerdictKeyPattern = "safety:verdict:text:%s"

	DefaultTTL = 24 * time.Hour

	opTimeout = 200 * time.Millisecond
)

// Config for the Redis connection. An empty Addr disables caching.
type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// NewClient connects to Redis and pings it
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// VerdictCache keeps remote text verdicts in Redis. Failures are logged and
// treated as misses so the cache never affects a verdict.
type VerdictCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewVerdictCache wraps a Redis client
func NewVerdictCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *VerdictCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &VerdictCache{client: client, ttl: ttl, logger: logger}
}

// Key returns the Redis key for a text body
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf(TextVerdictKeyPattern, hex.EncodeToString(sum[:]))
}

func (c *VerdictCache) Get(ctx context.Context, text string) (models.Verdict, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, Key(text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Verdict{}, false
	}
	if err != nil {
		c.logger.Warn("Verdict cache read failed", zap.Error(err))
		return models.Verdict{}, false
	}

	var v models.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("Discarding malformed cached verdict", zap.Error(err))
		return models.Verdict{}, false
	}
	return v, true
}

func (c *VerdictCache) Set(ctx context.Context, text string, v models.Verdict) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode verdict", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, Key(text), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Verdict cache write failed", zap.Error(err))
	}
}
