// apiclient — аутентифицированный исполнитель запросов к бэкенду.
//
// Executor прикладывает access-токен, при 401 один раз проходит протокол
// обновления пары (общий для всех конкурентных запросов) и повторяет запрос.
// Результат всегда одна из ошибок таксономии internal/errors либо nil.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/campus-sync/internal/clients"
	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
)

const defaultRefreshTimeout = 15 * time.Second

// TokenStore — то, что исполнителю нужно от стора учётных данных.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	Save(ctx context.Context, pair models.TokenPair) error
	Clear(ctx context.Context) error
}

// Call описывает один логический запрос.
type Call struct {
	Method string
	Path   string
	Body   any
	Query  url.Values
	Auth   bool
}

// Options — параметры исполнителя.
type Options struct {
	// BaseURL — префикс всех путей, например "https://api.example.com/api".
	BaseURL string
	// RefreshTimeout ограничивает вызов /auth/refresh-token.
	RefreshTimeout time.Duration
	// Registerer — куда зарегистрировать метрики (nil — не регистрировать).
	Registerer prometheus.Registerer
}

// Executor — исполнитель запросов. Безопасен для конкурентного использования.
type Executor struct {
	transport      clients.Transport
	tokens         TokenStore
	baseURL        string
	refreshTimeout time.Duration

	sf      singleflight.Group
	metrics *metrics
}

// New создаёт исполнитель.
func New(transport clients.Transport, tokens TokenStore, opts Options) *Executor {
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}

	return &Executor{
		transport:      transport,
		tokens:         tokens,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		refreshTimeout: opts.RefreshTimeout,
		metrics:        newMetrics(opts.Registerer),
	}
}

// Execute выполняет запрос и декодирует JSON-ответ в out (out может быть nil).
//
// Порядок:
//  1. call.Auth — приложить текущий access-токен (если он есть);
//  2. 401 на авторизованном запросе — протокол refresh и ровно один повтор;
//  3. повторный 401 или отказ refresh — apperrors.ErrAuthExpired;
//     сетевой сбой refresh — *apperrors.NetworkError, пара остаётся;
//  4. 204 — успех без тела; иной не-2xx — *apperrors.HTTPError;
//  5. тело 2xx, не являющееся JSON, — *apperrors.MalformedResponseError.
func (e *Executor) Execute(ctx context.Context, call Call, out any) error {
	const op = "apiclient.Executor.Execute"

	body, err := encodeBody(call.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var token string
	if call.Auth {
		token, err = e.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	resp, err := e.send(ctx, call, body, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if call.Auth && resp.Status == http.StatusUnauthorized {
		log.From(ctx).Info("access_token_rejected",
			slog.String("op", op),
			slog.String("path", call.Path),
		)

		if err := e.refresh(ctx, token); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		token, err = e.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		resp, err = e.send(ctx, call, body, token)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if resp.Status == http.StatusUnauthorized {
			log.From(ctx).Warn("retry_unauthorized",
				slog.String("op", op),
				slog.String("path", call.Path),
			)
			return fmt.Errorf("%s: %w", op, apperrors.ErrAuthExpired)
		}
	}

	if err := decode(resp, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (e *Executor) send(ctx context.Context, call Call, body []byte, token string) (*clients.Response, error) {
	u := e.baseURL + call.Path
	if len(call.Query) > 0 {
		u += "?" + call.Query.Encode()
	}

	req := &clients.Request{
		Method: call.Method,
		URL:    u,
		Header: make(http.Header),
		Body:   body,
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := e.transport.Send(ctx, req)
	e.metrics.observe(call.Method, resp, time.Since(start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, &apperrors.NetworkError{Err: err}
	}

	return resp, nil
}

func encodeBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Validation("body", "request body is not serializable: "+err.Error())
	}

	return data, nil
}

// decode разбирает ответ без 401-ветки.
func decode(resp *clients.Response, out any) error {
	switch {
	case resp.Status == http.StatusNoContent:
		return nil
	case resp.Status < 200 || resp.Status > 299:
		return &apperrors.HTTPError{Status: resp.Status, Body: string(resp.Body)}
	}

	if out == nil {
		if !json.Valid(resp.Body) {
			return &apperrors.MalformedResponseError{Err: fmt.Errorf("status %d: body is not valid json", resp.Status)}
		}
		return nil
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &apperrors.MalformedResponseError{Err: err}
	}

	return nil
}
