package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"mycloset/internal/domain"
	"mycloset/internal/infra"
	"mycloset/internal/middleware"
	"mycloset/internal/providers/genai"
	"mycloset/internal/tryon"
)

// Detector classifies an uploaded image. *genai.Client satisfies it.
type Detector interface {
	DetectClothing(ctx context.Context, img genai.ImagePart) (domain.ClothingDetection, error)
}

// App is the handler container. All collaborators are injected; nothing here
// is process-global.
type App struct {
	SQL       infra.SQLExecutor
	Config    *infra.Config
	Logger    zerolog.Logger
	Validate  *validatorv10.Validate
	Processor *tryon.Processor
	Detector  Detector
	Fetcher   tryon.Downloader
}

func NewApp(sql infra.SQLExecutor, cfg *infra.Config, logger zerolog.Logger, v *validatorv10.Validate, proc *tryon.Processor, det Detector, fetch tryon.Downloader) *App {
	return &App{
		SQL:       sql,
		Config:    cfg,
		Logger:    logger,
		Validate:  v,
		Processor: proc,
		Detector:  det,
		Fetcher:   fetch,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{"success": false, "code": code, "error": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) currentTier(r *http.Request) domain.Tier {
	return domain.TierFromPlan(middleware.PlanFromContext(r.Context()))
}
