package realtime

import "encoding/json"

// Inbound event names.
const (
	EventJoin         = "join"
	EventStartQuiz    = "start_quiz"
	EventNextQuestion = "next_question"
)

// Outbound event names.
const (
	EventMessage        = "message"
	EventQuizStarted    = "quiz_started"
	EventQuestionUpdate = "question_update"
	EventAck            = "ack"
	EventError          = "error"
)

// Inbound is a frame read from a client. ID, when set, is echoed back as the
// AckID of the acknowledgment.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    *int64          `json:"id,omitempty"`
}

// Outbound is a frame written to a client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	AckID *int64 `json:"ack_id,omitempty"`
}

type joinData struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

type chatMessage struct {
	Msg string `json:"msg"`
}

type ackData struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
}

var emptyObject = json.RawMessage(`{}`)

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// validQuestion reports whether payload carries a questionData object with
// question, options and answer all present.
func validQuestion(payload json.RawMessage) bool {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(payload, &outer); err != nil {
		return false
	}
	qd, ok := outer["questionData"]
	if !ok || isNull(qd) {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(qd, &fields); err != nil {
		return false
	}
	for _, key := range []string{"question", "options", "answer"} {
		if v, ok := fields[key]; !ok || isNull(v) {
			return false
		}
	}
	return true
}
