package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeWatchQuiz   = "watch_quiz"
	TypeUnwatchQuiz = "unwatch_quiz"

	// Server -> Client
	TypeWatchAck         = "watch_ack"
	TypeAttemptSubmitted = "attempt_submitted"
	TypeResultsUpdate    = "results_update"
	TypeError            = "error"
	TypePing             = "ping"
	TypePong             = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

type WatchQuizPayload struct {
	QuizID string `json:"quiz_id"`
}

type UnwatchQuizPayload struct {
	QuizID string `json:"quiz_id"`
}

// Server Messages (outgoing)

type WatchAckPayload struct {
	QuizID   string `json:"quiz_id"`
	Watching bool   `json:"watching"`
}

type AttemptSubmittedPayload struct {
	QuizID      string `json:"quiz_id"`
	AttemptID   string `json:"attempt_id"`
	StudentName string `json:"student_name"`
	Score       int    `json:"score"`
	MaxScore    int    `json:"max_score"`
	Pending     int    `json:"pending_review"`
	SubmittedAt string `json:"submitted_at"`
}

type ResultsUpdatePayload struct {
	QuizID string         `json:"quiz_id"`
	Top    []ResultsEntry `json:"top"`
}

type ResultsEntry struct {
	Rank        int    `json:"rank"`
	AttemptID   string `json:"attempt_id"`
	StudentName string `json:"student_name"`
	Score       int    `json:"score"`
	MaxScore    int    `json:"max_score"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
