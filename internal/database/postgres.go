// internal/database/postgres.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qconnect/qconnect/internal/apperr"
	"github.com/qconnect/qconnect/internal/models"
	"github.com/sirupsen/logrus"
)

const pgUniqueViolation = "23505"

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pool for url and verifies it with a ping.
func OpenPostgres(ctx context.Context, url string, logger *logrus.Logger) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	logger.Infof("Connected to database at %s", redact(url))
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// Migrate creates every table idempotently inside one transaction.
func (p *Postgres) Migrate(ctx context.Context) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range postgresSchema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}

// UpsertBestScore inserts name or raises its score when score beats the stored one.
func (p *Postgres) UpsertBestScore(ctx context.Context, name string, score int) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, pgUpsertBestScore, name, score)
		return err
	})
}

// ListLeaderboard returns entries by score descending; limit <= 0 means all.
func (p *Postgres) ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	q := `SELECT id, name, score FROM leaderboard ORDER BY score DESC, id ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	return p.queryEntries(ctx, q, args...)
}

// ListLeaderboardRows returns every row in storage order.
func (p *Postgres) ListLeaderboardRows(ctx context.Context) ([]models.LeaderboardEntry, error) {
	return p.queryEntries(ctx, `SELECT id, name, score FROM leaderboard ORDER BY id`)
}

func (p *Postgres) queryEntries(ctx context.Context, q string, args ...any) ([]models.LeaderboardEntry, error) {
	rows, err := p.pool.Query(ctx, q, args...)
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

// IncrementOption adds one vote and reports whether the row already existed.
func (p *Postgres) IncrementOption(ctx context.Context, questionID, optionIndex int) (bool, error) {
	var count int
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, pgIncrementOption, questionID, optionIndex).Scan(&count)
	})
	if err != nil {
		return false, err
	}
	return count > 1, nil
}

func (p *Postgres) ListQuestionTallies(ctx context.Context, questionID int) ([]models.OptionTally, error) {
	return p.queryTallies(ctx, `
		SELECT question_id, option_index, count
		FROM question_stats
		WHERE question_id = $1
		ORDER BY option_index
	`, questionID)
}

func (p *Postgres) ListAllTallies(ctx context.Context) ([]models.OptionTally, error) {
	return p.queryTallies(ctx, `
		SELECT question_id, option_index, count
		FROM question_stats
		ORDER BY question_id, option_index
	`)
}

func (p *Postgres) queryTallies(ctx context.Context, q string, args ...any) ([]models.OptionTally, error) {
	rows, err := p.pool.Query(ctx, q, args...)
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

// InsertUser stores u and sets its ID. A taken email yields apperr.ErrDuplicateEmail.
func (p *Postgres) InsertUser(ctx context.Context, u *models.User) error {
	q := `
		INSERT INTO users (name, email, password, phone, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, u.Name, u.Email, u.Password, u.Phone, u.Role).Scan(&u.ID)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("insert user: %w", apperr.ErrDuplicateEmail)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `SELECT id, name, email, password, phone, role FROM users WHERE email = $1`
	err := p.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Phone, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserPassword replaces the stored hash of user id.
func (p *Postgres) UpdateUserPassword(ctx context.Context, id int64, hash string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE users SET password = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, email, phone, role FROM users ORDER BY id`)
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

// InsertQuizEvents persists a historian batch in one transaction.
func (p *Postgres) InsertQuizEvents(ctx context.Context, events []models.QuizEvent) error {
	q := `
		INSERT INTO quiz_events (event, room, sender, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range events {
			var payload []byte
			if len(ev.Payload) > 0 {
				payload = ev.Payload
			}
			if _, err := tx.Exec(ctx, q, ev.Event, ev.Room, ev.Sender, payload, time.UnixMilli(ev.Timestamp).UTC()); err != nil {
				return fmt.Errorf("insert quiz event: %w", err)
			}
		}
		return nil
	})
}
