package models

// LeaderboardEntry is one player's personal-best score. Name is unique.
type LeaderboardEntry struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// RankedEntry is a leaderboard row with its dense 1-based position.
type RankedEntry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// ScoreSubmission echoes an accepted submission back to the caller.
// TotalQuestions is never persisted.
type ScoreSubmission struct {
	Name           string `json:"name"`
	Score          int    `json:"score"`
	TotalQuestions *int   `json:"total_questions"`
}

// LiveScore is a player's running score during an ongoing quiz.
type LiveScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}
