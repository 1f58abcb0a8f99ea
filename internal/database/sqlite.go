// internal/database/sqlite.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qconnect/qconnect/internal/apperr"
	"github.com/qconnect/qconnect/internal/models"
	"github.com/sirupsen/logrus"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLite is the embedded Store used for local runs and tests.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(ctx context.Context, path string, logger *logrus.Logger) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite has a single writer; one connection keeps upserts strictly serialized.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	logger.Infof("Opened sqlite database at %s", path)
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() { _ = s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range sqliteSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) UpsertBestScore(ctx context.Context, name string, score int) error {
	_, err := s.db.ExecContext(ctx, liteUpsertBestScore, name, score)
	return err
}

func (s *SQLite) ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	q := `SELECT id, name, score FROM leaderboard ORDER BY score DESC, id ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryEntries(ctx, q, args...)
}

func (s *SQLite) ListLeaderboardRows(ctx context.Context) ([]models.LeaderboardEntry, error) {
	return s.queryEntries(ctx, `SELECT id, name, score FROM leaderboard ORDER BY id`)
}

func (s *SQLite) queryEntries(ctx context.Context, q string, args ...any) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Score); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLite) IncrementOption(ctx context.Context, questionID, optionIndex int) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, liteIncrementOption, questionID, optionIndex).Scan(&count); err != nil {
		return false, err
	}
	return count > 1, nil
}

func (s *SQLite) ListQuestionTallies(ctx context.Context, questionID int) ([]models.OptionTally, error) {
	return s.queryTallies(ctx, `
		SELECT question_id, option_index, count
		FROM question_stats
		WHERE question_id = ?
		ORDER BY option_index
	`, questionID)
}

func (s *SQLite) ListAllTallies(ctx context.Context) ([]models.OptionTally, error) {
	return s.queryTallies(ctx, `
		SELECT question_id, option_index, count
		FROM question_stats
		ORDER BY question_id, option_index
	`)
}

func (s *SQLite) queryTallies(ctx context.Context, q string, args ...any) ([]models.OptionTally, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tallies := []models.OptionTally{}
	for rows.Next() {
		var t models.OptionTally
		if err := rows.Scan(&t.QuestionID, &t.OptionIndex, &t.Count); err != nil {
			return nil, err
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

func (s *SQLite) InsertUser(ctx context.Context, u *models.User) error {
	q := `
		INSERT INTO users (name, email, password, phone, role)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, q, u.Name, u.Email, u.Password, u.Phone, u.Role).Scan(&u.ID)
	if err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("insert user: %w", apperr.ErrDuplicateEmail)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `SELECT id, name, email, password, phone, role FROM users WHERE email = ?`
	err := s.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Phone, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLite) UpdateUserPassword(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *SQLite) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, phone, role FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLite) InsertQuizEvents(ctx context.Context, events []models.QuizEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := `INSERT INTO quiz_events (event, room, sender, payload, recorded_at) VALUES (?, ?, ?, ?, ?)`
	for _, ev := range events {
		var payload any
		if len(ev.Payload) > 0 {
			payload = string(ev.Payload)
		}
		if _, err := tx.ExecContext(ctx, q, ev.Event, ev.Room, ev.Sender, payload, ev.Timestamp); err != nil {
			return fmt.Errorf("insert quiz event: %w", err)
		}
	}
	return tx.Commit()
}

// CountQuizEvents reports how many journaled events are stored.
func (s *SQLite) CountQuizEvents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_events`).Scan(&n)
	return n, err
}

func isUniqueConstraint(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
