// Package cache stores successful evaluation results in Redis so repeated
// submissions of the same idea do not hit the generator again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/idea-validator/internal/evaluator"
	"github.com/spigell/idea-validator/internal/logger"
)

const (
	DefaultTTL = 24 * time.Hour

	keyPrefix = "idea-validator:evaluation:"
)

// Config describes the Redis connection. An empty Address disables caching.
type Config struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

// NewClient builds a go-redis client from cfg.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// ResultCache keys results by the request and the criterion set, so changing
// criteria or weights never serves stale scores.
type ResultCache struct {
	client      *redis.Client
	ttl         time.Duration
	fingerprint string
	logger      *zap.Logger
}

// New returns a cache bound to criteria. ttl <= 0 uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration, criteria evaluator.Criteria, log *zap.Logger) (*ResultCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	encoded, err := json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("fingerprint criteria: %w", err)
	}
	sum := sha256.Sum256(encoded)

	return &ResultCache{
		client:      client,
		ttl:         ttl,
		fingerprint: hex.EncodeToString(sum[:8]),
		logger:      logger.WithFields(log),
	}, nil
}

// Key returns the Redis key for req.
func (c *ResultCache) Key(req evaluator.Request) string {
	h := sha256.New()
	h.Write([]byte(c.fingerprint))
	for _, field := range []string{req.Description, req.TargetMarket, req.Industry} {
		// NUL separates fields so values cannot shift across boundaries.
		h.Write([]byte{0})
		h.Write([]byte(normalize(field)))
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for req. A miss is (nil, false, nil).
func (c *ResultCache) Get(ctx context.Context, req evaluator.Request) (*evaluator.Result, bool, error) {
	key := c.Key(req)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached evaluation: %w", err)
	}

	var result evaluator.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		c.client.Del(ctx, key)
		return nil, false, nil
	}

	c.logger.Debug("evaluation cache hit", zap.String("key", key))
	return &result, true, nil
}

// Put stores result for req. Failed results are never cached.
func (c *ResultCache) Put(ctx context.Context, req evaluator.Request, result *evaluator.Result) error {
	if result.Failed() {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}

	if err := c.client.Set(ctx, c.Key(req), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("store evaluation: %w", err)
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
