package handlers

import (
	"errors"
	"net/http"

	"github.com/qconnect/qconnect/internal/accounts"
	"github.com/qconnect/qconnect/internal/apperr"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req accounts.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(a.Logger, w, r, err)
		return
	}

	res, err := a.Accounts.Signup(r.Context(), req)
	if err != nil {
		a.accountFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(a.Logger, w, r, err)
		return
	}

	res, err := a.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.accountFailure(w, r, err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// accountFailure keeps {"error"} for missing fields and the
// {success:false,message} shape for everything else.
func (a *API) accountFailure(w http.ResponseWriter, r *http.Request, err error) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	}
	status, msg := clientMessage(a.Logger, r, err)
	failResult(w, status, msg)
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Accounts.Users(r.Context())
	if err != nil {
		respondError(a.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
