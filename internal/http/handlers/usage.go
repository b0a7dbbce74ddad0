package handlers

import (
	"net/http"

	"mycloset/internal/sqlinline"
)

type usageSummary struct {
	Tier         string `json:"tier"`
	MonthlyLimit int    `json:"monthly_limit"`
	Used         int    `json:"used"`
	Remaining    int    `json:"remaining"`
}

// UsageSummary reports the caller's try-on consumption for the current
// calendar month against their plan limit.
func (a *App) UsageSummary(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	tier := a.currentTier(r)

	var used int
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QMonthlyUsage, userID).Scan(&used); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: usage summary")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not load usage")
		return
	}

	limit := tier.MonthlyTryOnLimit()
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	a.json(w, http.StatusOK, usageSummary{
		Tier:         string(tier),
		MonthlyLimit: limit,
		Used:         used,
		Remaining:    remaining,
	})
}
