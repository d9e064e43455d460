package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"intraday-scanner/internal/model"
)

const (
	keyPrefix       = "scan:"
	resultsChannel  = "scan:results"
	defaultCacheTTL = 30 * time.Second
)

// Config configures the Redis scan cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // lifetime of a cached scan, default 30s
}

// Cache stores the latest scan result per risk tier under scan:{TIER} and
// fans background scan results out over pub/sub.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// New creates a Cache and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return NewWithClient(client, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// TTL is how long a cached scan stays fresh.
func (c *Cache) TTL() time.Duration { return c.ttl }

func cacheKey(tier model.RiskTier) string {
	return keyPrefix + string(tier)
}

// Get returns the cached scan for tier. A missing or expired key is a miss, not an error.
func (c *Cache) Get(ctx context.Context, tier model.RiskTier) (model.ScanResult, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(tier)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.ScanResult{}, false, nil
	}
	if err != nil {
		return model.ScanResult{}, false, fmt.Errorf("redis get %s: %w", cacheKey(tier), err)
	}
	var res model.ScanResult
	if err := json.Unmarshal(raw, &res); err != nil {
		// A corrupt entry is treated as a miss and overwritten by the next scan.
		slog.Warn("scan cache entry unreadable", "key", cacheKey(tier), "err", err)
		return model.ScanResult{}, false, nil
	}
	return res, true, nil
}

// Set stores res under its tier with the configured TTL.
func (c *Cache) Set(ctx context.Context, res model.ScanResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal scan result: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(res.Risk), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", cacheKey(res.Risk), err)
	}
	return nil
}

// Publish announces a background scan to every subscribed instance.
func (c *Cache) Publish(ctx context.Context, res model.ScanResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal scan result: %w", err)
	}
	return c.client.Publish(ctx, resultsChannel, data).Err()
}

// Subscribe calls fn for each published scan result until ctx is cancelled.
// It returns once the subscription is confirmed; delivery runs in a goroutine.
func (c *Cache) Subscribe(ctx context.Context, fn func(model.ScanResult)) error {
	sub := c.client.Subscribe(ctx, resultsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var res model.ScanResult
				if err := json.Unmarshal([]byte(msg.Payload), &res); err != nil {
					slog.Warn("bad scan result on pub/sub", "err", err)
					continue
				}
				fn(res)
			}
		}
	}()
	return nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
