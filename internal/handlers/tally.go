package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/qconnect/qconnect/internal/apperr"
)

type submitOptionRequest struct {
	QuestionID  *int `json:"question_id"`
	OptionIndex *int `json:"option_index"`
}

func (a *API) handleSubmitOption(w http.ResponseWriter, r *http.Request) {
	var req submitOptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	if req.QuestionID == nil || req.OptionIndex == nil {
		respondError(a.Logger, w, r, apperr.Invalid("", "Missing question_id or option_index"))
		return
	}

	vote, err := a.Tally.Vote(r.Context(), *req.QuestionID, *req.OptionIndex)
	if err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"step":         "submitted",
		"question_id":  vote.QuestionID,
		"option_index": vote.OptionIndex,
		"existing_row": vote.WasExisting,
	})
}

func (a *API) handlePercentages(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.Atoi(chi.URLParam(r, "question_id"))
	if err != nil {
		respondError(a.Logger, w, r, apperr.Invalid("question_id", "question_id must be an integer"))
		return
	}

	pct, err := a.Tally.Percentages(r.Context(), questionID)
	if err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pct)
}

func (a *API) handleViewStats(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Tally.Raw(r.Context())
	if err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
