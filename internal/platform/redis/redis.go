package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"oilcatalog/internal/logger"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

type Options struct {
	Addr     string
	Password string
}

type Service struct {
	client *redisv8.Client
	log    *logger.Logger
}

func New(opts Options) (*Service, error) {
	c := redisv8.NewClient(&redisv8.Options{Addr: opts.Addr, Password: opts.Password})
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis %s: %w", opts.Addr, err)
	}
	return &Service{client: c, log: logger.New("Redis")}, nil
}

func (s *Service) Close() error            { return s.client.Close() }
func (s *Service) Client() *redisv8.Client { return s.client }

// HealthCheck pings and round-trips a short-lived key.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.log.LogErrorf("Redis health check failed: %v", err)
		return fmt.Errorf("redis ping failed: %w", err)
	}
	key := "health:test:" + time.Now().Format("20060102150405.000")
	if err := s.client.Set(ctx, key, "ok", 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write test failed: %w", err)
	}
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis read test failed: %w", err)
	}
	_ = s.client.Del(ctx, key).Err()
	if val != "ok" {
		return fmt.Errorf("redis value mismatch: got %s", val)
	}
	return nil
}

func (s *Service) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: s.client.Options().Addr, Password: s.client.Options().Password}
}

// CacheGet decodes the JSON value at key into dest.
func (s *Service) CacheGet(ctx context.Context, key string, dest interface{}) error {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func (s *Service) CacheSet(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, b, ttl).Err()
}

// PageCache stores rendered detail HTML keyed by URL.
type PageCache struct {
	svc *Service
	ttl time.Duration
}

func (s *Service) PageCache(ttl time.Duration) *PageCache {
	return &PageCache{svc: s, ttl: ttl}
}

func pageKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "page:" + hex.EncodeToString(sum[:])
}

// GetPage returns cached HTML; any redis error counts as a miss.
func (c *PageCache) GetPage(ctx context.Context, url string) (string, bool) {
	html, err := c.svc.client.Get(ctx, pageKey(url)).Result()
	if err != nil {
		if err != redisv8.Nil {
			c.svc.log.LogDebugf("page cache get %s: %v", url, err)
		}
		return "", false
	}
	return html, html != ""
}

func (c *PageCache) SetPage(ctx context.Context, url, html string) {
	if c.ttl <= 0 {
		return
	}
	if err := c.svc.client.Set(ctx, pageKey(url), html, c.ttl).Err(); err != nil {
		c.svc.log.LogDebugf("page cache set %s: %v", url, err)
	}
}
