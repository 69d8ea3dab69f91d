package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/pokewar-server/internal/config"
	"github.com/pokewar-server/internal/store"
	"github.com/redis/go-redis/v9"
)

// Store is a store.Backend keeping each document in a Redis hash with a
// version field. Conditional writes use WATCH/MULTI.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStore connects to Redis and returns a backend over it
func NewStore(cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStoreWithClient(client, logger), nil
}

// NewStoreWithClient wraps an existing client
func NewStoreWithClient(client *redis.Client, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks that Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// entryKey returns the Redis key for a stored document
func (s *Store) entryKey(key string) string {
	return fmt.Sprintf("kv:%s", key)
}

// Get returns the document and version stored under key
func (s *Store) Get(ctx context.Context, key string) (store.Entry, error) {
	values, err := s.client.HMGet(ctx, s.entryKey(key), "data", "version").Result()
	if err != nil {
		return store.Entry{}, fmt.Errorf("getting %s: %w", key, err)
	}
	if values[0] == nil {
		return store.Entry{}, nil
	}

	data, _ := values[0].(string)
	var version int64
	if raw, ok := values[1].(string); ok {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return store.Entry{}, fmt.Errorf("parsing version of %s: %w", key, err)
		}
	}

	return store.Entry{Data: []byte(data), Version: version}, nil
}

// Put writes data if the stored version still equals expected
func (s *Store) Put(ctx context.Context, key string, data []byte, expected int64) (int64, error) {
	k := s.entryKey(key)
	var next int64

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, k, "version").Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("getting version: %w", err)
		}
		if expected != store.AnyVersion && current != expected {
			return store.ErrVersionConflict
		}

		next = current + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, "data", data, "version", next)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, k)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, store.ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return 0, err
		}
		return 0, fmt.Errorf("putting %s: %w", key, err)
	}
	return next, nil
}

// Delete removes a document
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.entryKey(key)).Err(); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Exists checks if a document is stored under key
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.entryKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return exists > 0, nil
}
