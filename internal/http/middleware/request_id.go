package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/campus-sync/internal/clients/interceptors"
)

// RequestID обеспечивает наличие X-Request-Id:
//  1. берёт заголовок запроса, если он есть, иначе генерирует UUID;
//  2. кладёт id в заголовки ответа и запроса;
//  3. кладёт id в контекст: исходящие вызовы к API понесут тот же id.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(interceptors.HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(interceptors.HeaderRequestID, id)
			}
			w.Header().Set(interceptors.HeaderRequestID, id)

			ctx := interceptors.WithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
