package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	storeDown := errors.New("connection refused")

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Invalid("name", "is required"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("submit: %w", Invalid("score", "is required")), http.StatusBadRequest},
		{"duplicate email", fmt.Errorf("insert user: %w", ErrDuplicateEmail), http.StatusBadRequest},
		{"bad credentials", ErrInvalidCredentials, http.StatusBadRequest},
		{"persistence", Persistence("list leaderboard", storeDown), http.StatusInternalServerError},
		{"unclassified", storeDown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestPersistenceKeepsSpecificErrors(t *testing.T) {
	dup := fmt.Errorf("insert user: %w", ErrDuplicateEmail)
	assert.Same(t, dup, Persistence("signup", dup))

	storeDown := errors.New("connection refused")
	err := Persistence("signup", storeDown)
	var pe *PersistenceError
	assert.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, storeDown)
	assert.Equal(t, "signup", pe.Op)

	assert.NoError(t, Persistence("noop", nil))
}
