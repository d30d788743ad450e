// memory — in-process реализация storage.SecureStorage.
// Используется в тестах и в окружении local, где долговечность не нужна.
package memory

import (
	"context"
	"sync"

	"github.com/pribylovaa/campus-sync/internal/storage"
)

// Storage хранит значения в map под мьютексом.
type Storage struct {
	mu    sync.RWMutex
	items map[string]string
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{items: make(map[string]string)}
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	return v, ok, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	return s.MultiSet(ctx, map[string]string{key: value})
}

func (s *Storage) MultiSet(ctx context.Context, items map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for k := range items {
		if k == "" {
			return storage.ErrEmptyKey
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range items {
		s.items[k] = v
	}

	return nil
}

func (s *Storage) MultiRemove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.items, k)
	}

	return nil
}

// Len возвращает число сохранённых ключей.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}
