package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mycloset/internal/http/handlers"
	"mycloset/internal/middleware"
)

// NewRouter wires every API route. Everything under /v1 except the health
// probe requires a bearer token.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Healthz)

	// Serves filesystem-store results in development. With S3 configured the
	// presigned URLs bypass the API entirely.
	if app.Config.S3Bucket == "" {
		static := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Config.StoragePath)))
		r.Get("/static/*", static.ServeHTTP)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Config.JWTSecret))

		r.Route("/try-on/sessions", func(r chi.Router) {
			r.Post("/", app.CreateSession)
			r.Get("/", app.ListSessions)
			r.Get("/{id}", app.GetSession)
			r.Put("/{id}", app.UpdateSession)
			r.Delete("/{id}", app.DeleteSession)
			r.Post("/{id}/process", app.ProcessSession)
		})

		r.Route("/clothing-items", func(r chi.Router) {
			r.Get("/", app.ListClothingItems)
			r.Post("/analyze", app.AnalyzeClothing)
		})

		r.Get("/base-photos", app.ListBasePhotos)
		r.Get("/usage", app.UsageSummary)

		r.Post("/internal/cleanup", app.CleanupSessions)
	})

	return r
}
