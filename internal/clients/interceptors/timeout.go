package interceptors

import (
	"context"
	"time"

	"github.com/pribylovaa/campus-sync/internal/clients"
)

// ClientWithTimeout навешивает таймаут d на исходящий вызов, если у контекста
// ещё нет дедлайна.
//
// Контракт:
//  1. d <= 0 — контекст не меняется;
//  2. у ctx уже есть deadline — он сохраняется;
//  3. иначе — ctx оборачивается через context.WithTimeout(ctx, d).
//
// Базовый вызов транспорта читает тело ответа до возврата, поэтому cancel()
// после next безопасен.
func ClientWithTimeout(d time.Duration) clients.Interceptor {
	return func(ctx context.Context, req *clients.Request, next clients.Invoker) (*clients.Response, error) {
		if d <= 0 {
			return next(ctx, req)
		}
		if _, ok := ctx.Deadline(); ok {
			return next(ctx, req)
		}

		cctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return next(cctx, req)
	}
}
