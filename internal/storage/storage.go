// storage определяет контракт защищённого key-value хранилища, в котором
// клиент держит учётные данные между перезапусками процесса.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrCorrupted — содержимое хранилища не удалось расшифровать/разобрать.
	ErrCorrupted = errors.New("secure storage corrupted")
	// ErrEmptyKey — пустой ключ недопустим.
	ErrEmptyKey = errors.New("empty key")
)

// SecureStorage — долговечное защищённое хранилище строк по ключу.
//
// Контракт:
//   - GetItem возвращает (value, true, nil) для существующего ключа и ("", false, nil) для отсутствующего;
//   - MultiSet записывает все пары атомарно: после ошибки не видна ни одна из них;
//   - MultiRemove удаляет перечисленные ключи; отсутствующие ключи не считаются ошибкой;
//   - реализация безопасна для конкурентного использования.
type SecureStorage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	MultiSet(ctx context.Context, items map[string]string) error
	MultiRemove(ctx context.Context, keys ...string) error
}
