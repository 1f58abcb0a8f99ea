// internal/database/schema.go
package database

// Duplicate leaderboard rows predate the unique name index (older
// deployments inserted a new row per submission). Keep the best row per
// name: highest score, then lowest id. The statement is valid in both dialects.
const dedupeLeaderboard = `
DELETE FROM leaderboard
WHERE EXISTS (
	SELECT 1 FROM leaderboard b
	WHERE b.name = leaderboard.name
	  AND (b.score > leaderboard.score OR (b.score = leaderboard.score AND b.id < leaderboard.id))
)`

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS leaderboard (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		score INTEGER NOT NULL
	)`,
	dedupeLeaderboard,
	`CREATE UNIQUE INDEX IF NOT EXISTS leaderboard_name_key ON leaderboard (name)`,
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		phone TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user'
	)`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS role TEXT NOT NULL DEFAULT 'user'`,
	`CREATE TABLE IF NOT EXISTS question_stats (
		question_id INTEGER,
		option_index INTEGER,
		count INTEGER DEFAULT 0,
		PRIMARY KEY (question_id, option_index)
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_events (
		id BIGSERIAL PRIMARY KEY,
		event TEXT NOT NULL,
		room TEXT NOT NULL,
		sender TEXT NOT NULL,
		payload JSONB,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS leaderboard (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		score INTEGER NOT NULL
	)`,
	dedupeLeaderboard,
	`CREATE UNIQUE INDEX IF NOT EXISTS leaderboard_name_key ON leaderboard (name)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		phone TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user'
	)`,
	`CREATE TABLE IF NOT EXISTS question_stats (
		question_id INTEGER,
		option_index INTEGER,
		count INTEGER DEFAULT 0,
		PRIMARY KEY (question_id, option_index)
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event TEXT NOT NULL,
		room TEXT NOT NULL,
		sender TEXT NOT NULL,
		payload TEXT,
		recorded_at INTEGER NOT NULL
	)`,
}

// Leaderboard and tally upserts are single statements so that concurrent
// submissions for the same key serialize on the unique constraint.
const (
	pgUpsertBestScore = `
		INSERT INTO leaderboard (name, score)
		VALUES ($1, $2)
		ON CONFLICT (name)
		DO UPDATE SET score = EXCLUDED.score
		WHERE EXCLUDED.score > leaderboard.score
	`
	pgIncrementOption = `
		INSERT INTO question_stats (question_id, option_index, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (question_id, option_index)
		DO UPDATE SET count = question_stats.count + 1
		RETURNING count
	`

	liteUpsertBestScore = `
		INSERT INTO leaderboard (name, score)
		VALUES (?, ?)
		ON CONFLICT (name)
		DO UPDATE SET score = excluded.score
		WHERE excluded.score > leaderboard.score
	`
	liteIncrementOption = `
		INSERT INTO question_stats (question_id, option_index, count)
		VALUES (?, ?, 1)
		ON CONFLICT (question_id, option_index)
		DO UPDATE SET count = question_stats.count + 1
		RETURNING count
	`
)
