package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Attempt is a persisted quiz submission.
type Attempt struct {
	AttemptID     uuid.UUID
	QuizID        uuid.UUID
	StudentName   string
	Answers       []byte
	Score         int
	MaxScore      int
	PendingReview int
	SubmittedAt   time.Time
}

// AttemptRepository wraps attempt persistence.
type AttemptRepository struct {
	db Querier
}

func NewAttemptRepository(db Querier) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Insert stores a graded submission.
func (r *AttemptRepository) Insert(ctx context.Context, a Attempt) (Attempt, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO attempts (attempt_id, quiz_id, student_name, answers, score, max_score, pending_review)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING attempt_id, quiz_id, student_name, answers, score, max_score, pending_review, submitted_at`,
		a.AttemptID, a.QuizID, a.StudentName, a.Answers, a.Score, a.MaxScore, a.PendingReview)
	var out Attempt
	err := row.Scan(&out.AttemptID, &out.QuizID, &out.StudentName, &out.Answers,
		&out.Score, &out.MaxScore, &out.PendingReview, &out.SubmittedAt)
	return out, err
}

// ListByQuiz returns submissions for a quiz, newest first.
func (r *AttemptRepository) ListByQuiz(ctx context.Context, quizID uuid.UUID, limit int) ([]Attempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT attempt_id, quiz_id, student_name, answers, score, max_score, pending_review, submitted_at
		FROM attempts WHERE quiz_id = $1 ORDER BY submitted_at DESC LIMIT $2`,
		quizID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.AttemptID, &a.QuizID, &a.StudentName, &a.Answers,
			&a.Score, &a.MaxScore, &a.PendingReview, &a.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByQuiz reports how many submissions a quiz has received.
func (r *AttemptRepository) CountByQuiz(ctx context.Context, quizID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM attempts WHERE quiz_id = $1`, quizID).Scan(&n)
	return n, err
}
