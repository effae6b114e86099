package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zeptools/gw-docprint/db/kvdb"

	lowimpl "github.com/redis/go-redis/v9"
)

type Client struct {
	conf *kvdb.Conf

	// implementation details, not exported
	internal *lowimpl.Client
}

// Ensure redis.Client implements kvdb.Client interface
var _ kvdb.Client = (*Client)(nil)

// Register makes "redis" available to kvdb.New.
func Register() {
	kvdb.RegisterFactory("redis", func(conf *kvdb.Conf) (kvdb.Client, error) {
		if conf == nil {
			return nil, errors.New("redis: nil conf")
		}
		return &Client{conf: conf}, nil
	})
}

func (c *Client) Init() error {
	c.internal = lowimpl.NewClient(&lowimpl.Options{
		Addr:     fmt.Sprintf("%s:%d", c.conf.Host, c.conf.Port),
		Password: c.conf.PW,
		DB:       c.conf.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.internal.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	log.Println("[INFO] redis client initialized")
	return nil
}

func (c *Client) Close() error {
	if c.internal == nil {
		return nil
	}
	return c.internal.Close()
}

func (c *Client) Conf() *kvdb.Conf {
	return c.conf
}

//--- Key Ops ----

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.internal.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	return c.internal.Del(ctx, keys...).Result()
}

func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	// false if key does not exist
	return c.internal.Expire(ctx, key, expiration).Result()
}

func (c *Client) ScanKeys(ctx context.Context, pattern string, cursor any, scanBatchSize int) ([]string, any, error) {
	var cur uint64
	if cursor != nil {
		cur = cursor.(uint64)
	}
	if pattern == "" {
		pattern = "*"
	}
	keys, nextCursor, err := c.internal.Scan(ctx, cur, pattern, int64(scanBatchSize)).Result()
	if err != nil {
		return nil, nil, err
	}
	if nextCursor == 0 {
		return keys, nil, nil
	}
	return keys, nextCursor, nil
}

//---- Single-value Ops ----

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.internal.Get(ctx, key).Bytes()
	if errors.Is(err, lowimpl.Nil) {
		return nil, false, nil // redis.Nil -> ok: false, err: nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.internal.Set(ctx, key, value, expiration).Err()
}

//---- Hash Ops ----

// SetFields writes the hash and its expiration in one transaction.
func (c *Client) SetFields(ctx context.Context, key string, fields map[string]any, expiration time.Duration) error {
	_, err := c.internal.TxPipelined(ctx, func(pipe lowimpl.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if expiration > 0 {
			pipe.Expire(ctx, key, expiration)
		}
		return nil
	})
	return err
}

func (c *Client) GetAllFields(ctx context.Context, key string) (map[string]string, error) {
	return c.internal.HGetAll(ctx, key).Result()
}
