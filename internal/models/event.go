package models

import "encoding/json"

// QuizEvent is a journaled realtime broadcast, consumed by the historian.
type QuizEvent struct {
	Event     string          `json:"event"`
	Room      string          `json:"room"`
	Sender    string          `json:"sender"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}
