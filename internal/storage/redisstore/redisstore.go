// redisstore — storage.SecureStorage поверх Redis.
//
// Для инсталляций, где несколько экземпляров campus-sync делят одну сессию.
// Все ключи лежат полями одного Redis Hash, поэтому MultiSet и MultiRemove
// выполняются одной командой и атомарны. Защита данных — на стороне Redis
// (AUTH, TLS через схему rediss://).
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/campus-sync/internal/storage"
)

const defaultKey = "campus-sync:credentials"

// Storage хранит значения в Redis Hash по ключу key.
type Storage struct {
	rdb *redis.Client
	key string
}

// New подключается к Redis по URL (например, redis://:pass@host:6379/0).
// Если key пустой — используется "campus-sync:credentials".
func New(ctx context.Context, redisURL, key string) (*Storage, error) {
	const op = "storage.redisstore.New"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(rdb, key), nil
}

// NewWithClient оборачивает готовый клиент.
func NewWithClient(rdb *redis.Client, key string) *Storage {
	if key == "" {
		key = defaultKey
	}

	return &Storage{rdb: rdb, key: key}
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	const op = "storage.redisstore.GetItem"

	v, err := s.rdb.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	return v, true, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	return s.MultiSet(ctx, map[string]string{key: value})
}

func (s *Storage) MultiSet(ctx context.Context, items map[string]string) error {
	const op = "storage.redisstore.MultiSet"

	if len(items) == 0 {
		return nil
	}
	args := make([]any, 0, len(items)*2)
	for k, v := range items {
		if k == "" {
			return storage.ErrEmptyKey
		}
		args = append(args, k, v)
	}

	if err := s.rdb.HSet(ctx, s.key, args...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) MultiRemove(ctx context.Context, keys ...string) error {
	const op = "storage.redisstore.MultiRemove"

	if len(keys) == 0 {
		return nil
	}

	if err := s.rdb.HDel(ctx, s.key, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает клиент Redis.
func (s *Storage) Close() error { return s.rdb.Close() }
