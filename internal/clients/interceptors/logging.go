package interceptors

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/campus-sync/internal/clients"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
)

// ClientLogging — логирование исходящих вызовов.
// Поведение:
//   - берёт X-Request-Id из заголовков (или генерирует UUID и выставляет его);
//   - добавляет поля method/path, прокладывает обогащённый логгер в контекст;
//   - пишет одну финальную запись: msg="http", status, dur (и err при сбое транспорта).
//
// Безопасность: не логирует тело, query и заголовок Authorization.
// В query у /auth/verify лежит одноразовый код.
func ClientLogging(base *slog.Logger) clients.Interceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, req *clients.Request, next clients.Invoker) (*clients.Response, error) {
		start := time.Now()

		rid := req.Header.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
			req.Header.Set(HeaderRequestID, rid)
		}

		l := base.With(
			slog.String("request_id", rid),
			slog.String("method", req.Method),
			slog.String("path", pathOf(req.URL)),
		)
		ctx = log.Into(ctx, l)

		resp, err := next(ctx, req)
		if err != nil {
			l.Warn("http",
				slog.Int("status", 0),
				slog.Duration("dur", time.Since(start)),
				slog.String("err", err.Error()),
			)
			return nil, err
		}

		l.Info("http",
			slog.Int("status", resp.Status),
			slog.Duration("dur", time.Since(start)),
		)

		return resp, nil
	}
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "-"
	}

	return u.Path
}
