package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"enhancebot/internal/http/handlers"
	"enhancebot/internal/infra"
	"enhancebot/internal/middleware"
)

// NewRouter mounts health, metrics and, when webhookPath is set, the update
// webhook.
func NewRouter(app *handlers.App, webhookPath string, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", app.Metrics())
	if webhookPath != "" {
		r.Post(webhookPath, app.Webhook)
	}

	return r
}
