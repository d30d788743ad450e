package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pribylovaa/campus-sync/internal/apiclient"
	"github.com/pribylovaa/campus-sync/internal/models"
)

// Auth — HTTP-реализация AuthRepository.
type Auth struct {
	ex Executor
}

// NewAuth создаёт репозиторий аутентификации.
func NewAuth(ex Executor) *Auth {
	return &Auth{ex: ex}
}

func (r *Auth) RequestLoginCode(ctx context.Context, email string) error {
	const op = "repository.auth.RequestLoginCode"

	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   emailRequest{Email: email},
	}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Auth) VerifyCode(ctx context.Context, code, email string) (AuthResult, error) {
	const op = "repository.auth.VerifyCode"

	var out authResponse
	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodPost,
		Path:   "/auth/verify",
		Query:  url.Values{"code": {code}},
		Body:   emailRequest{Email: email},
	}, &out); err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	res := AuthResult{
		Pair:  models.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken},
		Email: out.Email,
	}
	if res.Email == "" {
		res.Email = email
	}

	return res, nil
}

func (r *Auth) Register(ctx context.Context, email string) error {
	const op = "repository.auth.Register"

	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   emailRequest{Email: email},
	}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Auth) Activate(ctx context.Context, token, email string) error {
	const op = "repository.auth.Activate"

	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodPost,
		Path:   "/auth/activate",
		Body:   activateRequest{Token: token, Email: email},
	}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Auth) Logout(ctx context.Context) error {
	const op = "repository.auth.Logout"

	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Auth:   true,
	}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
