package handlers

import "net/http"

type liveScoreRequest struct {
	Name  *string `json:"name"`
	Score *int    `json:"score"`
}

func (a *API) handleLiveScores(w http.ResponseWriter, r *http.Request) {
	scores, err := a.LiveScores.List(r.Context())
	if err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (a *API) handleUpdateLiveScore(w http.ResponseWriter, r *http.Request) {
	var req liveScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	if err := a.LiveScores.Update(r.Context(), req.Name, req.Score); err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Live score updated"})
}
