package rest

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/citygate/internal/identity"
	"github.com/dmitrijs2005/citygate/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds the HTTP surface. loginRateLimit is the number of
// login/register requests allowed per client IP per minute; zero disables
// throttling.
func NewRouter(h *Handler, loginRateLimit int, log logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	throttle := func(next http.Handler) http.Handler { return next }
	if loginRateLimit > 0 {
		throttle = httprate.LimitByIP(loginRateLimit, time.Minute)
	}

	routes := func(r chi.Router) {
		r.With(throttle).Post("/login", h.login)
		r.With(throttle).Post("/register", h.register)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireUsername)
			r.Get("/profile", h.getProfile)
			r.Put("/profile", h.updateProfile)
			r.Put("/change-password", h.changePassword)
		})
	}

	r.Route("/auth", routes)
	r.Route("/api/auth", routes)

	return r
}

func accessLog(log logging.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logging.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
