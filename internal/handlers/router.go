// Package handlers exposes the quiz backend over HTTP and WebSocket.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/qconnect/qconnect/internal/accounts"
	"github.com/qconnect/qconnect/internal/leaderboard"
	"github.com/qconnect/qconnect/internal/livescore"
	"github.com/qconnect/qconnect/internal/middleware"
	"github.com/qconnect/qconnect/internal/realtime"
	"github.com/qconnect/qconnect/internal/tally"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the router serves.
type Deps struct {
	Logger     *logrus.Logger
	Store      Pinger
	Ledger     *leaderboard.Ledger
	Tally      *tally.Tally
	Accounts   *accounts.Directory
	LiveScores *livescore.Tracker
	Hub        *realtime.Hub

	AllowedOrigins []string
	// LeaderboardLimit caps GET /leaderboard when no ?limit= is given. 0 means all rows.
	LeaderboardLimit int
}

type API struct {
	Deps
}

// NewRouter wires every route onto a chi router.
func NewRouter(d Deps) http.Handler {
	a := &API{Deps: d}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins))
	r.Use(chimw.GetHead)

	r.Get("/", a.handleRoot)
	r.Get("/healthz", a.handleHealth)

	r.Post("/leaderboard", a.handleSubmitScore)
	r.Get("/leaderboard", a.handleLeaderboard)
	r.Get("/all-leaderboard", a.handleAllLeaderboard)

	r.Post("/signup", a.handleSignup)
	r.Post("/login", a.handleLogin)
	r.Get("/get-users", a.handleUsers)

	r.Post("/submit-option", a.handleSubmitOption)
	r.Get("/get-percentages/{question_id:-?[0-9]+}", a.handlePercentages)
	r.Get("/view-stats", a.handleViewStats)

	r.Get("/live-scores", a.handleLiveScores)
	r.Post("/update-live-score", a.handleUpdateLiveScore)

	r.Get("/ws", RealtimeWSHandler(d.Logger, d.Hub, d.AllowedOrigins))

	return r
}

func (a *API) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("QCONNECT API CONNECTED"))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.Store.Ping(ctx); err != nil {
		a.Logger.Warnf("health check: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
