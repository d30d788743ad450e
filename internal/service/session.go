package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
	"github.com/pribylovaa/campus-sync/internal/pkg/redact"
	"github.com/pribylovaa/campus-sync/internal/repository"
	"github.com/pribylovaa/campus-sync/internal/tokens"
)

// State — состояние конечного автомата сессии.
type State int

const (
	StateLoggedOut State = iota
	StateAuthenticating
	StateAuthenticated
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText — состояние в JSON отдаётся строкой.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SessionState — снимок сессии.
//
// Prev имеет смысл только для StateError: устойчивое состояние, из
// которого была начата неудавшаяся аутентификация.
// IsAuthenticated == true влечёт наличие пары токенов в TokenStore.
type SessionState struct {
	State           State
	Prev            State
	User            *models.User
	IsAuthenticated bool
	Err             error
}

// Session — стор сессии.
// Операции линеаризованы: в каждый момент выполняется не более одной.
type Session struct {
	auth      repository.AuthRepository
	tokens    TokenStore
	refresher Refresher
	now       func() time.Time

	opMu sync.Mutex

	mu        sync.RWMutex
	state     SessionState
	onSignOut []func()
}

// NewSession создаёт стор сессии в состоянии LoggedOut.
func NewSession(auth repository.AuthRepository, tokens TokenStore, refresher Refresher) *Session {
	return &Session{
		auth:      auth,
		tokens:    tokens,
		refresher: refresher,
		now:       time.Now,
	}
}

// OnSignOut регистрирует хук, вызываемый при любой локальной очистке сессии
// (logout, неудачный refresh, истечение). Используется, чтобы сбросить
// пользовательские коллекции.
func (s *Session) OnSignOut(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onSignOut = append(s.onSignOut, fn)
}

// Snapshot возвращает копию состояния.
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}

	return st
}

func (s *Session) set(fn func(st *SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
}

// Restore — предстартовая проверка: Authenticated, если в хранилище есть
// полная пара и идентичность пользователя, иначе LoggedOut.
// Просроченный по claim exp access-токен обновляется до перехода в Authenticated.
func (s *Session) Restore(ctx context.Context) SessionState {
	const op = "service.session.Restore"

	s.opMu.Lock()
	defer s.opMu.Unlock()

	lg := log.From(ctx).With(slog.String("op", op))

	pair, err := s.tokens.Load(ctx)
	if err != nil {
		lg.Error("session_restore_failed", slog.String("err", err.Error()))
		s.set(func(st *SessionState) { *st = SessionState{State: StateLoggedOut, Err: err} })
		return s.Snapshot()
	}

	if !pair.Complete() {
		lg.Info("session_not_found")
		s.set(func(st *SessionState) { *st = SessionState{State: StateLoggedOut} })
		return s.Snapshot()
	}

	user, ok, err := s.tokens.Identity(ctx)
	if err != nil || !ok {
		lg.Warn("session_identity_missing")
		s.set(func(st *SessionState) { *st = SessionState{State: StateLoggedOut, Err: err} })
		return s.Snapshot()
	}

	// Истёкший access обновляем сразу. Отказ refresh завершает сессию,
	// сетевой сбой — нет: пара цела, повтор случится на первом 401.
	if c, err := tokens.ReadClaims(pair.AccessToken); err == nil && c.Expired(s.now()) {
		lg.Info("access_token_expired_on_restore")

		if err := s.refresher.Refresh(ctx); err != nil {
			if apperrors.IsAuthExpired(err) {
				lg.Warn("session_restore_refresh_rejected", slog.String("err", err.Error()))
				s.set(func(st *SessionState) {
					*st = SessionState{State: StateLoggedOut, Err: fmt.Errorf("%s: %w", op, err)}
				})
				return s.Snapshot()
			}

			lg.Warn("session_restore_refresh_deferred", slog.String("err", err.Error()))
		}
	}

	lg.Info("session_restored", slog.String("email", redact.Email(user.Email)))
	s.set(func(st *SessionState) {
		*st = SessionState{State: StateAuthenticated, User: &user, IsAuthenticated: true}
	})

	return s.Snapshot()
}

// RequestLoginCode просит сервер выслать код входа. Состояние не меняется.
func (s *Session) RequestLoginCode(ctx context.Context, email string) error {
	const op = "service.session.RequestLoginCode"

	return s.remoteOnly(ctx, op, email, func(email string) error {
		return s.auth.RequestLoginCode(ctx, email)
	})
}

// Register регистрирует аккаунт; токены здесь не выдаются.
func (s *Session) Register(ctx context.Context, email string) error {
	const op = "service.session.Register"

	return s.remoteOnly(ctx, op, email, func(email string) error {
		return s.auth.Register(ctx, email)
	})
}

// ActivateAccount активирует аккаунт по токену из письма.
func (s *Session) ActivateAccount(ctx context.Context, token, email string) error {
	const op = "service.session.ActivateAccount"

	if strings.TrimSpace(token) == "" {
		err := fmt.Errorf("%s: %w", op, apperrors.Validation("token", "activation token is required"))
		s.set(func(st *SessionState) { st.Err = err })
		return err
	}

	return s.remoteOnly(ctx, op, email, func(email string) error {
		return s.auth.Activate(ctx, token, email)
	})
}

// remoteOnly — общий каркас операций, которые трогают только поле Err.
func (s *Session) remoteOnly(ctx context.Context, op, email string, call func(email string) error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.set(func(st *SessionState) { st.Err = nil })

	email = strings.TrimSpace(email)
	if email == "" {
		err := fmt.Errorf("%s: %w", op, apperrors.Validation("email", "email is required"))
		s.set(func(st *SessionState) { st.Err = err })
		return err
	}

	if err := call(email); err != nil {
		log.From(ctx).Warn("auth_call_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("err", err.Error()),
		)
		err = fmt.Errorf("%s: %w", op, err)
		s.set(func(st *SessionState) { st.Err = err })
		return err
	}

	return nil
}

// VerifyCode подтверждает код входа.
//
// Переходы: LoggedOut|Error -> Authenticating -> Authenticated | Error(prev).
// Пара токенов и e-mail пишутся одной записью: либо всё, либо ничего.
func (s *Session) VerifyCode(ctx context.Context, code, email string) error {
	const op = "service.session.VerifyCode"

	s.opMu.Lock()
	defer s.opMu.Unlock()

	lg := log.From(ctx).With(slog.String("op", op), slog.String("email", redact.Email(email)))

	cur := s.Snapshot()
	if cur.State == StateAuthenticated {
		err := fmt.Errorf("%s: %w", op, apperrors.Validation("session", "already signed in"))
		s.set(func(st *SessionState) { st.Err = err })
		return err
	}

	prev := cur.State
	if prev == StateError {
		prev = cur.Prev
	}

	code, email = strings.TrimSpace(code), strings.TrimSpace(email)
	if code == "" || email == "" {
		err := fmt.Errorf("%s: %w", op, apperrors.Validation("code", "code and email are required"))
		s.set(func(st *SessionState) { st.Err = err })
		return err
	}

	s.set(func(st *SessionState) {
		st.State = StateAuthenticating
		st.Err = nil
	})

	fail := func(err error) error {
		err = fmt.Errorf("%s: %w", op, err)
		lg.Warn("verify_code_failed", slog.String("err", err.Error()))
		s.set(func(st *SessionState) {
			*st = SessionState{State: StateError, Prev: prev, Err: err}
		})
		return err
	}

	res, err := s.auth.VerifyCode(ctx, code, email)
	if err != nil {
		return fail(err)
	}

	if err := s.tokens.SaveSession(ctx, res.Pair, res.Email); err != nil {
		return fail(err)
	}

	user := models.NewUser(res.Email)
	lg.Info("session_authenticated")
	s.set(func(st *SessionState) {
		*st = SessionState{State: StateAuthenticated, User: &user, IsAuthenticated: true}
	})

	return nil
}

// RefreshSilently обновляет пару токенов. Любой сбой приводит к полной
// локальной очистке, как при logout.
func (s *Session) RefreshSilently(ctx context.Context) error {
	const op = "service.session.RefreshSilently"

	s.opMu.Lock()
	defer s.opMu.Unlock()

	lg := log.From(ctx).With(slog.String("op", op))
	s.set(func(st *SessionState) { st.Err = nil })

	rt, err := s.tokens.RefreshToken(ctx)
	if err == nil && (rt == "" || s.Snapshot().User == nil) {
		err = apperrors.Validation("session", "missing refresh token or email")
	}
	if err == nil {
		err = s.refresher.Refresh(ctx)
	}

	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		lg.Warn("silent_refresh_failed", slog.String("err", err.Error()))
		s.signOut(ctx, err)
		return err
	}

	lg.Info("silent_refresh_succeeded")
	s.set(func(st *SessionState) {
		st.State = StateAuthenticated
		st.IsAuthenticated = true
	})

	return nil
}

// Logout завершает сессию на сервере и всегда очищает её локально.
// Ошибка удалённого вызова записывается в Err и возвращается, но очистку
// не отменяет.
func (s *Session) Logout(ctx context.Context) error {
	const op = "service.session.Logout"

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.set(func(st *SessionState) { st.Err = nil })

	var remoteErr error
	if err := s.auth.Logout(ctx); err != nil {
		remoteErr = fmt.Errorf("%s: %w", op, err)
		log.From(ctx).Warn("remote_logout_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	s.signOut(ctx, remoteErr)
	log.From(ctx).Info("session_logged_out", slog.String("op", op))

	return remoteErr
}

// Expire — локальная очистка после ErrAuthExpired, пойманного другим стором.
func (s *Session) Expire(ctx context.Context) {
	const op = "service.session.Expire"

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !s.Snapshot().IsAuthenticated {
		return
	}

	log.From(ctx).Info("session_expired", slog.String("op", op))
	s.signOut(ctx, fmt.Errorf("%s: %w", op, apperrors.ErrAuthExpired))
}

// signOut стирает учётные данные, сбрасывает зависимые сторы и переводит
// сессию в LoggedOut. Выполняется и при отменённом ctx.
func (s *Session) signOut(ctx context.Context, cause error) {
	cctx := context.WithoutCancel(ctx)

	if err := s.tokens.Clear(cctx); err != nil {
		log.From(ctx).Error("credentials_clear_failed", slog.String("err", err.Error()))
		if cause == nil {
			cause = err
		}
	}

	s.mu.Lock()
	s.state = SessionState{State: StateLoggedOut, Err: cause}
	hooks := append([]func(){}, s.onSignOut...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
