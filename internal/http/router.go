// http собирает роутер локального инспектора: снимки сторов и управляющие
// ручки поверх chi.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/campus-sync/internal/http/handlers"
	"github.com/pribylovaa/campus-sync/internal/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(h *handlers.Handlers, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования: id попадает в логгер запроса
		middleware.Logging(opts.Logger),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	registerRoutes(root, h)

	return root
}

func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// session
	r.Get("/session", h.GetSession)
	r.Post("/session/login-code", h.RequestLoginCode)
	r.Post("/session/register", h.Register)
	r.Post("/session/activate", h.Activate)
	r.Post("/session/verify", h.VerifyCode)
	r.Post("/session/refresh", h.RefreshSession)
	r.Post("/session/logout", h.Logout)

	// events
	r.Get("/events", h.ListEvents)
	r.Post("/events", h.CreateEvent)
	r.Post("/events/next", h.NextEvents)
	r.Post("/events/refresh", h.RefreshEvents)
	r.Post("/events/filter", h.SetFilter)

	// chats
	r.Get("/chats", h.ListChats)
	r.Post("/chats/next", h.NextChats)
	r.Post("/chats/refresh", h.RefreshChats)

	// profile
	r.Get("/profile", h.GetProfile)
	r.Post("/profile/fetch", h.FetchProfile)
	r.Put("/profile", h.UpdateProfile)
}
