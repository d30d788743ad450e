package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/campus-sync/internal/pkg/log"
)

// HeaderRequestTimeout — клиент инспектора может сузить бюджет запроса,
// например "X-Request-Timeout: 2s". Расширить бюджет сверх d нельзя.
const HeaderRequestTimeout = "X-Request-Timeout"

// Timeout ограничивает запрос к инспектору бюджетом d: обработчики
// ждут ответа API и, возможно, обновления токенов. d <= 0 отключает лимит,
// но заголовок по-прежнему учитывается.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			budget := d
			if v := r.Header.Get(HeaderRequestTimeout); v != "" {
				if hd, err := time.ParseDuration(v); err == nil && hd > 0 && (budget <= 0 || hd < budget) {
					budget = hd
				}
			}
			if budget <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), budget)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if ctx.Err() == context.DeadlineExceeded {
				log.From(ctx).Warn("request_budget_exhausted",
					slog.String("path", r.URL.Path),
					slog.Duration("budget", budget),
				)
			}
		})
	}
}
