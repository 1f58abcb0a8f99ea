package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/qconnect/qconnect/internal/apperr"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return apperr.Invalid("body", "Invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

// failResult is the {success:false,message} shape used by the account routes.
func failResult(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// clientMessage is the text a caller may see for err. Server-side failures
// are logged and reported generically.
func clientMessage(logger *logrus.Logger, r *http.Request, err error) (int, string) {
	status := apperr.HTTPStatus(err)
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return status, ve.Message
	case errors.Is(err, apperr.ErrDuplicateEmail):
		return status, "Email already registered"
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return status, "Invalid email or password"
	case status >= http.StatusInternalServerError:
		logger.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Errorf("request failed: %v", err)
		return status, "internal server error"
	default:
		return status, err.Error()
	}
}

func respondError(logger *logrus.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, msg := clientMessage(logger, r, err)
	writeError(w, status, msg)
}
