// agefile — реализация storage.SecureStorage поверх файла, зашифрованного age (X25519).
//
// Формат: JSON-объект {key: value}, целиком зашифрованный на recipient ключа идентичности.
// Запись выполняется через временный файл и rename, поэтому файл на диске всегда
// содержит либо старое, либо новое состояние.
package agefile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
	"github.com/pribylovaa/campus-sync/internal/storage"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// Storage — зашифрованное файловое хранилище.
// Расшифрованное содержимое кэшируется в памяти после первого чтения.
type Storage struct {
	mu       sync.Mutex
	path     string
	identity *age.X25519Identity

	cache  map[string]string
	loaded bool
}

// New открывает хранилище по пути path, используя ключ из identityPath.
// Если файла ключа нет, генерирует новый X25519-ключ и сохраняет его с правами 0600.
func New(path, identityPath string) (*Storage, error) {
	const op = "storage.agefile.New"

	id, err := LoadOrCreateIdentity(identityPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithIdentity(path, id), nil
}

// NewWithIdentity создаёт хранилище с уже загруженным ключом.
func NewWithIdentity(path string, id *age.X25519Identity) *Storage {
	return &Storage{path: path, identity: id}
}

// LoadOrCreateIdentity читает X25519-ключ из файла или создаёт новый.
func LoadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	const op = "storage.agefile.LoadOrCreateIdentity"

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		id, perr := age.ParseX25519Identity(firstKeyLine(string(raw)))
		if perr != nil {
			return nil, fmt.Errorf("%s: parse identity: %w", op, perr)
		}
		return id, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%s: read identity: %w", op, err)
	}

	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("%s: generate identity: %w", op, err)
	}

	if err := writeFileAtomic(path, []byte(id.String()+"\n")); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// firstKeyLine пропускает комментарии age-keygen ("# created: ...").
func firstKeyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	const op = "storage.agefile.GetItem"

	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	v, ok := s.cache[key]
	return v, ok, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	return s.MultiSet(ctx, map[string]string{key: value})
}

func (s *Storage) MultiSet(ctx context.Context, items map[string]string) error {
	const op = "storage.agefile.MultiSet"

	for k := range items {
		if k == "" {
			return fmt.Errorf("%s: %w", op, storage.ErrEmptyKey)
		}
	}

	return s.update(ctx, op, func(m map[string]string) {
		maps.Copy(m, items)
	})
}

func (s *Storage) MultiRemove(ctx context.Context, keys ...string) error {
	const op = "storage.agefile.MultiRemove"

	return s.update(ctx, op, func(m map[string]string) {
		for _, k := range keys {
			delete(m, k)
		}
	})
}

// update применяет fn к копии содержимого, сохраняет её на диск и только затем
// подменяет кэш. Ошибка записи оставляет и кэш, и файл в прежнем состоянии.
func (s *Storage) update(ctx context.Context, op string, fn func(map[string]string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	next := maps.Clone(s.cache)
	fn(next)

	if err := s.persist(next); err != nil {
		log.From(ctx).Error("secure_storage_write_failed",
			slog.String("op", op),
			slog.String("path", s.path),
			slog.Any("err", err),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	s.cache = next
	return nil
}

func (s *Storage) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	m, err := s.read()
	if err != nil {
		log.From(ctx).Error("secure_storage_read_failed",
			slog.String("path", s.path),
			slog.Any("err", err),
		)
		return err
	}

	s.cache = m
	s.loaded = true
	return nil
}

func (s *Storage) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %w", storage.ErrCorrupted, err)
	}

	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %w", storage.ErrCorrupted, err)
	}

	m := make(map[string]string)
	if err := json.Unmarshal(plain, &m); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", storage.ErrCorrupted, err)
	}
	// JSON null обнуляет карту: считаем такое хранилище пустым.
	if m == nil {
		m = make(map[string]string)
	}

	return m, nil
}

func (s *Storage) persist(m map[string]string) error {
	plain, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}

	return writeFileAtomic(s.path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}
