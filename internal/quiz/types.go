package quiz

import (
	"time"

	"github.com/google/uuid"
)

// Question type constants.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeFillBlank      = "fill_blank"
	TypeEssay          = "essay"
)

// ValidQuestionType reports whether t is a supported question type.
func ValidQuestionType(t string) bool {
	switch t {
	case TypeMultipleChoice, TypeFillBlank, TypeEssay:
		return true
	}
	return false
}

// Passage is an optional reading passage questions can reference.
type Passage struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Question is a single generated quiz item. Answer and Explanation are
// stripped before the quiz is shown to students.
type Question struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options,omitempty"`
	Answer       string   `json:"answer,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
	PassageID    string   `json:"passage_id,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	ImagePending bool     `json:"image_pending,omitempty"`
}

// Quiz is the full owner-side view.
type Quiz struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"-"`
	Title         string     `json:"title"`
	Topic         string     `json:"topic"`
	GradeLevel    string     `json:"grade_level"`
	QuestionType  string     `json:"question_type"`
	QuestionCount int        `json:"question_count"`
	WithImages    bool       `json:"with_images"`
	Questions     []Question `json:"questions"`
	Passages      []Passage  `json:"passages,omitempty"`
	ShareToken    string     `json:"share_token"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// GenerateRequest carries the teacher's generation parameters.
type GenerateRequest struct {
	Topic         string `json:"topic"`
	GradeLevel    string `json:"grade_level"`
	QuestionCount int    `json:"question_count"`
	QuestionType  string `json:"question_type"`
	WithPassage   bool   `json:"with_passage"`
	WithImages    bool   `json:"with_images"`
}

// GeneratedQuiz is the validated output of the content generator.
type GeneratedQuiz struct {
	Title     string
	Questions []Question
	Passages  []Passage
}

// StudentQuestion is the answer-stripped view served through a share link.
type StudentQuestion struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options,omitempty"`
	PassageID string   `json:"passage_id,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
}

// StudentQuiz is the public view behind a share token.
type StudentQuiz struct {
	QuizID        string            `json:"quiz_id"`
	Title         string            `json:"title"`
	Topic         string            `json:"topic"`
	GradeLevel    string            `json:"grade_level"`
	QuestionType  string            `json:"question_type"`
	QuestionCount int               `json:"question_count"`
	Questions     []StudentQuestion `json:"questions"`
	Passages      []Passage         `json:"passages,omitempty"`
}

// SubmitRequest is a student submission through a share link.
type SubmitRequest struct {
	StudentName string            `json:"student_name"`
	Answers     map[string]string `json:"answers"` // question_id -> answer
}

// AttemptResult is what a student gets back after submitting.
type AttemptResult struct {
	AttemptID     string           `json:"attempt_id"`
	QuizID        string           `json:"quiz_id"`
	StudentName   string           `json:"student_name"`
	Score         int              `json:"score"`
	MaxScore      int              `json:"max_score"`
	PendingReview int              `json:"pending_review"`
	Breakdown     []QuestionResult `json:"breakdown"`
	SubmittedAt   time.Time        `json:"submitted_at"`
}

// QuestionResult is the per-question grading outcome.
type QuestionResult struct {
	QuestionID    string `json:"question_id"`
	Correct       bool   `json:"correct"`
	PendingReview bool   `json:"pending_review,omitempty"`
	Expected      string `json:"expected,omitempty"`
	Given         string `json:"given,omitempty"`
}
