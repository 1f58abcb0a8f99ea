// Package testutil holds shared fixtures for store-backed tests.
package testutil

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/qconnect/qconnect/internal/database"
	"github.com/sirupsen/logrus"
)

// Logger returns a logger that discards output.
func Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// SetupSQLite creates a fresh, migrated SQLite store under t.TempDir and
// closes it when the test ends.
func SetupSQLite(t *testing.T) *database.SQLite {
	t.Helper()

	ctx := context.Background()
	store, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "qconnect.db"), Logger())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return store
}
