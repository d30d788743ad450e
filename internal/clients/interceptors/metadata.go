// interceptors предоставляет интерсепторы исходящих HTTP-вызовов клиента.
package interceptors

import (
	"context"

	"github.com/pribylovaa/campus-sync/internal/clients"
)

// HeaderRequestID — заголовок корреляции запросов.
const HeaderRequestID = "X-Request-Id"

type ctxKey struct{}

// WithRequestID кладёт request id в контекст: исходящие вызовы в рамках
// этого контекста понесут его в X-Request-Id.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxKey{}, rid)
}

// RequestIDFrom достаёт request id из контекста ("" если его нет).
func RequestIDFrom(ctx context.Context) string {
	rid, _ := ctx.Value(ctxKey{}).(string)
	return rid
}

// ClientWithMetadata добавляет в исходящий запрос заголовки:
//   - X-Request-Id (если есть в контексте и не выставлен вызывающим);
//   - User-Agent (если передан параметром).
func ClientWithMetadata(userAgent string) clients.Interceptor {
	return func(ctx context.Context, req *clients.Request, next clients.Invoker) (*clients.Response, error) {
		if rid := RequestIDFrom(ctx); rid != "" && req.Header.Get(HeaderRequestID) == "" {
			req.Header.Set(HeaderRequestID, rid)
		}
		if userAgent != "" {
			req.Header.Set("User-Agent", userAgent)
		}

		return next(ctx, req)
	}
}
