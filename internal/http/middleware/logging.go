package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/campus-sync/internal/clients/interceptors"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
)

// Logging кладёт request-scoped логгер в контекст и пишет запись "http".
// 4xx пишутся с уровнем Warn, 5xx — Error.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := r.Header.Get(interceptors.HeaderRequestID); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}
			r = r.WithContext(log.Into(r.Context(), reqLogger))

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			log.From(r.Context()).LogAttrs(r.Context(), sw.level(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
			)
		})
	}
}
