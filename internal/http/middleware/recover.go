package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
)

// Recover превращает panic обработчика в 500/internal. Детали паники
// остаются в логе.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.From(r.Context()).
						LogAttrs(r.Context(), slog.LevelError, "panic",
							slog.String("path", r.URL.Path),
							slog.Any("reason", rec),
						)
					apperrors.WriteError(w, r, fmt.Errorf("panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
