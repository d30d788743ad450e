package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
	"github.com/pribylovaa/campus-sync/internal/pkg/redact"
)

const (
	refreshPath = "/auth/refresh-token"
	refreshKey  = "refresh"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh принудительно обновляет пару токенов.
// Конкурентные вызовы (и refresh из Execute) разделяют один сетевой запрос.
func (e *Executor) Refresh(ctx context.Context) error {
	const op = "apiclient.Executor.Refresh"

	if err := e.shared(ctx, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// refresh вызывается после 401 на запросе, ушедшем с токеном stale.
// Если текущий токен уже другой, истечение обработал кто-то раньше,
// и запрос можно сразу повторить.
func (e *Executor) refresh(ctx context.Context, stale string) error {
	rotated, err := e.rotated(ctx, stale)
	if err != nil {
		return err
	}
	if rotated {
		e.metrics.refreshes.WithLabelValues("skipped").Inc()
		return nil
	}

	return e.shared(ctx, stale)
}

func (e *Executor) rotated(ctx context.Context, stale string) (bool, error) {
	if stale == "" {
		return false, nil
	}

	current, err := e.tokens.AccessToken(ctx)
	if err != nil {
		return false, err
	}

	if current != "" && current != stale {
		log.From(ctx).Debug("refresh_skipped_token_rotated",
			slog.String("token", redact.TokenTail(current)),
		)
		return true, nil
	}

	return false, nil
}

// shared присоединяется к текущему refresh или становится лидером.
// Сам вызов отвязан от отмены ctx лидера: отменённый лидер не должен
// уронить ожидающих. Вызывающий при этом может перестать ждать.
//
// Лидер повторно сверяет stale внутри полёта: предыдущий полёт мог
// завершиться между проверкой в refresh и вызовом DoChan.
func (e *Executor) shared(ctx context.Context, stale string) error {
	detached := log.Into(context.WithoutCancel(ctx), log.From(ctx))

	ch := e.sf.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(detached, e.refreshTimeout)
		defer cancel()

		rotated, err := e.rotated(rctx, stale)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrAuthExpired, err)
		}
		if rotated {
			e.metrics.refreshes.WithLabelValues("skipped").Inc()
			return nil, nil
		}

		return nil, e.doRefresh(rctx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Shared {
			e.metrics.refreshes.WithLabelValues("shared").Inc()
		}
		return res.Err
	}
}

// doRefresh — единственный сетевой вызов протокола.
//
// Исходы:
//   - нет refresh-токена, не-2xx, неразборчивое тело — пара стирается, ErrAuthExpired;
//   - сетевой сбой — *apperrors.NetworkError без ErrAuthExpired: сессия
//     не признана недействительной, пара сохраняется до следующей попытки;
//   - успех — новая пара атомарно сохраняется.
func (e *Executor) doRefresh(ctx context.Context) error {
	const op = "apiclient.Executor.doRefresh"

	lg := log.From(ctx).With(slog.String("op", op))
	lg.Info("refresh_started")

	refreshToken, err := e.tokens.RefreshToken(ctx)
	if err != nil {
		e.metrics.refreshes.WithLabelValues("storage_error").Inc()
		return fmt.Errorf("%w: %w", apperrors.ErrAuthExpired, err)
	}
	if refreshToken == "" {
		lg.Warn("refresh_token_missing")
		return e.expire(ctx, lg, "missing")
	}

	resp, err := e.send(ctx, Call{Method: http.MethodPost, Path: refreshPath}, mustJSON(refreshRequest{RefreshToken: refreshToken}), "")
	if err != nil {
		lg.Warn("refresh_network_failed", slog.String("err", err.Error()))
		e.metrics.refreshes.WithLabelValues("network_error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	if resp.Status < 200 || resp.Status > 299 {
		lg.Warn("refresh_rejected", slog.Int("status", resp.Status))
		return e.expire(ctx, lg, "rejected")
	}

	var out refreshResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		lg.Warn("refresh_malformed_response", slog.String("err", err.Error()))
		return e.expire(ctx, lg, "malformed")
	}

	pair := models.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	if !pair.Complete() {
		lg.Warn("refresh_malformed_response", slog.String("err", "token missing in response"))
		return e.expire(ctx, lg, "malformed")
	}

	if err := e.tokens.Save(ctx, pair); err != nil {
		lg.Error("refresh_save_failed", slog.String("err", err.Error()))
		e.metrics.refreshes.WithLabelValues("storage_error").Inc()
		return fmt.Errorf("%w: %w", apperrors.ErrAuthExpired, err)
	}

	lg.Info("refresh_succeeded", slog.String("token", redact.TokenTail(pair.AccessToken)))
	e.metrics.refreshes.WithLabelValues("ok").Inc()

	return nil
}

// expire стирает пару: сессию восстановить нельзя.
func (e *Executor) expire(ctx context.Context, lg *slog.Logger, result string) error {
	e.metrics.refreshes.WithLabelValues(result).Inc()

	if err := e.tokens.Clear(ctx); err != nil {
		lg.Error("refresh_clear_failed", slog.String("err", err.Error()))
		return errors.Join(apperrors.ErrAuthExpired, err)
	}

	return apperrors.ErrAuthExpired
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return data
}
