// tokens — стор учётных данных клиента поверх защищённого хранилища.
//
// Store — единственный владелец пары access/refresh и e-mail пользователя.
// Пишут в него только успешный refresh и успешная аутентификация,
// стирают — logout и неустранимый сбой refresh.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/storage"
)

// Ключи защищённого хранилища.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserEmail    = "user_email"
)

// ErrNoClaims — токен не является JWT или не содержит нужных claims.
var ErrNoClaims = errors.New("token has no readable claims")

// Store сериализует составные чтения/записи пары, чтобы читатель
// никогда не увидел access от одной пары и refresh от другой.
type Store struct {
	mu      sync.RWMutex
	storage storage.SecureStorage
}

// New создаёт стор токенов.
func New(s storage.SecureStorage) *Store {
	return &Store{storage: s}
}

// AccessToken возвращает текущий access-токен ("" если его нет).
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	const op = "tokens.Store.AccessToken"

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.get(ctx, KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// RefreshToken возвращает текущий refresh-токен ("" если его нет).
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	const op = "tokens.Store.RefreshToken"

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.get(ctx, KeyRefreshToken)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// Load читает пару целиком.
func (s *Store) Load(ctx context.Context) (models.TokenPair, error) {
	const op = "tokens.Store.Load"

	s.mu.RLock()
	defer s.mu.RUnlock()

	access, err := s.get(ctx, KeyAccessToken)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.get(ctx, KeyRefreshToken)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Save атомарно заменяет пару токенов.
func (s *Store) Save(ctx context.Context, pair models.TokenPair) error {
	const op = "tokens.Store.Save"

	if !pair.Complete() {
		return fmt.Errorf("%s: %w", op, apperrors.Validation("tokens", "both tokens are required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.MultiSet(ctx, map[string]string{
		KeyAccessToken:  pair.AccessToken,
		KeyRefreshToken: pair.RefreshToken,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SaveSession одной записью сохраняет пару и e-mail пользователя:
// после ошибки в хранилище не остаётся ни одного из трёх значений от этой попытки.
func (s *Store) SaveSession(ctx context.Context, pair models.TokenPair, email string) error {
	const op = "tokens.Store.SaveSession"

	if !pair.Complete() {
		return fmt.Errorf("%s: %w", op, apperrors.Validation("tokens", "both tokens are required"))
	}
	if email == "" {
		return fmt.Errorf("%s: %w", op, apperrors.Validation("email", "email is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.MultiSet(ctx, map[string]string{
		KeyAccessToken:  pair.AccessToken,
		KeyRefreshToken: pair.RefreshToken,
		KeyUserEmail:    email,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Identity восстанавливает пользователя из сохранённого e-mail.
// Для сессий, сохранённых без e-mail, пробует claim "email" из access-токена.
func (s *Store) Identity(ctx context.Context) (models.User, bool, error) {
	const op = "tokens.Store.Identity"

	s.mu.RLock()
	defer s.mu.RUnlock()

	email, err := s.get(ctx, KeyUserEmail)
	if err != nil {
		return models.User{}, false, fmt.Errorf("%s: %w", op, err)
	}

	if email == "" {
		access, err := s.get(ctx, KeyAccessToken)
		if err != nil {
			return models.User{}, false, fmt.Errorf("%s: %w", op, err)
		}

		if c, err := ReadClaims(access); err == nil {
			email = c.Email
		}
	}

	if email == "" {
		return models.User{}, false, nil
	}

	return models.NewUser(email), true, nil
}

// Clear удаляет пару и e-mail.
func (s *Store) Clear(ctx context.Context) error {
	const op = "tokens.Store.Clear"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.MultiRemove(ctx, KeyAccessToken, KeyRefreshToken, KeyUserEmail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	return v, nil
}

// Claims — то, что клиент может узнать из access-токена без ключа подписи.
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Expired сообщает, истёк ли токен к моменту now. Токен без exp не истекает.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type accessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// ReadClaims разбирает JWT без проверки подписи.
// Подпись проверяет только сервер; клиенту claims нужны как подсказка
// (срок жизни при восстановлении сессии, e-mail для старых записей).
func ReadClaims(token string) (Claims, error) {
	const op = "tokens.ReadClaims"

	if token == "" {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrNoClaims)
	}

	var ac accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &ac); err != nil {
		return Claims{}, fmt.Errorf("%s: %w: %w", op, ErrNoClaims, err)
	}

	c := Claims{UserID: ac.UserID, Email: ac.Email}
	if ac.ExpiresAt != nil {
		c.ExpiresAt = ac.ExpiresAt.Time
	}

	return c, nil
}
