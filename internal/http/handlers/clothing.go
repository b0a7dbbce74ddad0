package handlers

import (
	"net/http"

	"mycloset/internal/domain"
	"mycloset/internal/imagefetch"
	"mycloset/internal/providers/genai"
	"mycloset/internal/sqlinline"
	"mycloset/internal/validation"
)

type analyzeClothingRequest struct {
	ImageURL string `json:"image_url" validate:"required,url"`
}

// ListClothingItems pages through the caller's active closet entries.
func (a *App) ListClothingItems(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)

	var category *string
	if c := r.URL.Query().Get("category"); c != "" {
		if !domain.ValidCategory(domain.ClothingCategory(c)) {
			a.error(w, http.StatusBadRequest, "invalid_category", "unknown clothing category "+c)
			return
		}
		category = &c
	}
	limit := queryInt(r, "limit", 50)
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	rows, err := a.SQL.Query(r.Context(), sqlinline.QListClothingItems, userID, category, limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list clothing items")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not list clothing items")
		return
	}
	defer rows.Close()

	items := make([]domain.ClothingItem, 0, limit)
	for rows.Next() {
		var (
			it        domain.ClothingItem
			thumbnail *string
		)
		if err := rows.Scan(&it.ID, &it.UserID, &it.Category, &it.Name, &it.ImageURL,
			&thumbnail, &it.IsActive, &it.CreatedAt, &it.Metadata); err != nil {
			a.Logger.Error().Err(err).Msg("handlers: scan clothing item")
			a.error(w, http.StatusInternalServerError, "internal_error", "could not list clothing items")
			return
		}
		if thumbnail != nil {
			it.ThumbnailURL = *thumbnail
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list clothing items")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not list clothing items")
		return
	}

	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// AnalyzeClothing downloads the given image and asks the model whether it is
// wearable clothing, which category it belongs to, and whether the shot is
// good enough for generation.
func (a *App) AnalyzeClothing(w http.ResponseWriter, r *http.Request) {
	var req analyzeClothingRequest
	if err := validation.BindAndValidate(w, r, &req, a.Validate); err != nil {
		return
	}

	data, mime, err := a.Fetcher.Fetch(r.Context(), req.ImageURL)
	if err != nil {
		a.Logger.Warn().Err(err).Str("url", req.ImageURL).Msg("handlers: analyze fetch")
		a.error(w, http.StatusBadGateway, "download_failed", "could not download image")
		return
	}

	// Reject non-images and tiny thumbnails before spending model quota.
	if _, _, _, err := imagefetch.ValidateImage(data); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_image", err.Error())
		return
	}

	detection, err := a.Detector.DetectClothing(r.Context(), genai.ImagePart{Data: data, MIME: mime})
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: clothing detection")
		a.error(w, http.StatusBadGateway, "analysis_failed", "clothing analysis failed")
		return
	}
	a.json(w, http.StatusOK, detection)
}
