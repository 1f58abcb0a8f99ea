package handlers

import (
	"net/http"
	"strconv"

	"github.com/qconnect/qconnect/internal/apperr"
)

type submitScoreRequest struct {
	Name           *string `json:"name"`
	Score          *int    `json:"score"`
	TotalQuestions *int    `json:"total_questions"`
}

func (a *API) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(a.Logger, w, r, err)
		return
	}

	sub, err := a.Ledger.Submit(r.Context(), req.Name, req.Score, req.TotalQuestions)
	if err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Score saved successfully",
		"name":            sub.Name,
		"score":           sub.Score,
		"total_questions": sub.TotalQuestions,
	})
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := a.LeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(a.Logger, w, r, apperr.Invalid("limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	ranked, err := a.Ledger.Ranked(r.Context(), limit)
	if err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (a *API) handleAllLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Ledger.All(r.Context())
	if err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
