package kvdb

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Client interface {
	Init() error
	Close() error
	Conf() *Conf

	//---- Key Ops ----

	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Expire sets/updates expiration for a key
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) // found & updated, err
	// ScanKeys iterates over keys matching pattern in batches.
	// When nextCursor is nil, the scan is complete.
	ScanKeys(ctx context.Context, pattern string, cursor any, scanBatchSize int) ([]string, any, error)

	//---- Single-value Ops ----

	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error) // val, found, err

	//---- Hash Ops ----

	SetFields(ctx context.Context, key string, fields map[string]any, expiration time.Duration) error
	// GetAllFields returns an empty map when the key is not found
	GetAllFields(ctx context.Context, key string) (map[string]string, error)
}

var ErrNotSupported = errors.New("kvdb: operation not supported")

// ClientFactory is registered per kv database type and called by kvdb.New.
type ClientFactory func(conf *Conf) (Client, error)

var registry = map[string]ClientFactory{}

func RegisterFactory(dbType string, factory ClientFactory) {
	registry[dbType] = factory
}

func New(conf *Conf) (Client, error) {
	factory, ok := registry[conf.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported kv database type: %s", conf.Type)
	}
	return factory(conf)
}
