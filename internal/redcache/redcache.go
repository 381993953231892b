package redcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis for the shared image-payload cache. Every viewer of
// the same paper hits the same URLs, so encoded images are cached service-wide
// keyed by source URL. All operations are best-effort; callers treat errors as
// cache misses.
type Client struct {
	inner *redis.Client
	ttl   time.Duration
}

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

const defaultTTL = 6 * time.Hour

// New creates the redis client from app config.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client, ttl: defaultTTL}, nil
}

func imageKey(url string) string { return "examv2:image:" + url }

// GetImage fetches the cached encoded payload for a source URL.
func (c *Client) GetImage(ctx context.Context, url string) (string, error) {
	if c == nil || c.inner == nil {
		return "", errors.New("redis client not initialized")
	}
	return c.inner.Get(ctx, imageKey(url)).Result()
}

// SetImage stores the encoded payload for a source URL with the cache TTL.
func (c *Client) SetImage(ctx context.Context, url, encoded string) error {
	if c == nil || c.inner == nil {
		return errors.New("redis client not initialized")
	}
	return c.inner.Set(ctx, imageKey(url), encoded, c.ttl).Err()
}

// Del removes provided source URLs from the cache.
func (c *Client) Del(ctx context.Context, urls ...string) error {
	if c == nil || c.inner == nil {
		return errors.New("redis client not initialized")
	}
	if len(urls) == 0 {
		return nil
	}
	keys := make([]string, 0, len(urls))
	for _, u := range urls {
		keys = append(keys, imageKey(u))
	}
	return c.inner.Del(ctx, keys...).Err()
}

// Close closes the client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
