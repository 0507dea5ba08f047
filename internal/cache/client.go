package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"companion_gateway/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps the redis connection with the handful of cache and counter
// primitives the gateway needs.
type Client struct {
	rdb  *redis.Client
	keys Keys
}

func New(addr, password string, db int, keys Keys) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		DialTimeout:  2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	logger.Info("cache connected", "addr", addr)
	return &Client{rdb: rdb, keys: keys}, nil
}

func (c *Client) Keys() Keys { return c.keys }

// Redis exposes the underlying connection for callers that need raw access
// (the Redlock shares the node pool).
func (c *Client) Redis() *redis.Client { return c.rdb }

func (c *Client) Close() error { return c.rdb.Close() }

// SetString stores value under key; ttl <= 0 means no expiry.
func (c *Client) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl > 0 {
		return c.rdb.Set(ctx, key, value, ttl).Err()
	}
	return c.rdb.Set(ctx, key, value, 0).Err()
}

// GetString returns (value, existed, error).
func (c *Client) GetString(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Incr(ctx context.Context, key string) error {
	return c.rdb.Incr(ctx, key).Err()
}

func (c *Client) Decr(ctx context.Context, key string) error {
	return c.rdb.Decr(ctx, key).Err()
}

// SAdd / SRem / SCard maintain the room membership mirrors.
func (c *Client) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.rdb.SAdd(ctx, key, args...).Err()
}

func (c *Client) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.rdb.SRem(ctx, key, args...).Err()
}

func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.SCard(ctx, key).Result()
}

// GetDailyToken returns the tokens remaining in a daily bucket without
// consuming one. A missing bucket is a full one.
func (c *Client) GetDailyToken(ctx context.Context, key string, total int) (int, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return total, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// TakeDailyToken consumes one token from the bucket and returns the new
// remainder. The bucket expires at the next local midnight so it refills on
// the natural day boundary.
func (c *Client) TakeDailyToken(ctx context.Context, key string, total int) (int, error) {
	remaining, err := c.GetDailyToken(ctx, key, total)
	if err != nil {
		return 0, err
	}
	if remaining <= 0 {
		return remaining, nil
	}
	remaining--
	ttl := time.Until(NextMidnight(time.Now()))
	if err := c.rdb.Set(ctx, key, remaining, ttl).Err(); err != nil {
		return 0, err
	}
	return remaining, nil
}

// NextMidnight returns the start of the next local day after t.
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
