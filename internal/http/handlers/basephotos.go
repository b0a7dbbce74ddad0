package handlers

import (
	"net/http"

	"mycloset/internal/domain"
	"mycloset/internal/sqlinline"
)

// ListBasePhotos returns the caller's reference photos, newest first. The
// newest active one is the generation subject.
func (a *App) ListBasePhotos(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)

	rows, err := a.SQL.Query(r.Context(), sqlinline.QListBasePhotos, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list base photos")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not list base photos")
		return
	}
	defer rows.Close()

	photos := make([]domain.BasePhoto, 0, 4)
	for rows.Next() {
		var p domain.BasePhoto
		if err := rows.Scan(&p.ID, &p.UserID, &p.ImageURL, &p.IsActive, &p.CreatedAt); err != nil {
			a.Logger.Error().Err(err).Msg("handlers: scan base photo")
			a.error(w, http.StatusInternalServerError, "internal_error", "could not list base photos")
			return
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list base photos")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not list base photos")
		return
	}

	a.json(w, http.StatusOK, map[string]any{"items": photos})
}
