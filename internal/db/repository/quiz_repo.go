package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Quiz is the persisted quiz row. Questions and Passages are stored as
// jsonb documents; decoding into domain types happens in the quiz service.
type Quiz struct {
	QuizID        uuid.UUID
	OwnerID       uuid.UUID
	Title         string
	Topic         string
	GradeLevel    string
	QuestionType  string
	QuestionCount int
	WithImages    bool
	Questions     []byte
	Passages      []byte
	ShareToken    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// QuizSummary is the list-view projection of a quiz.
type QuizSummary struct {
	QuizID        uuid.UUID
	Title         string
	Topic         string
	GradeLevel    string
	QuestionType  string
	QuestionCount int
	ShareToken    string
	CreatedAt     time.Time
}

// QuizRepository wraps quiz persistence. Every read or write that targets a
// specific quiz carries an owner_id predicate; callers without ownership
// only ever reach quizzes through the share-token lookup.
type QuizRepository struct {
	db Querier
}

func NewQuizRepository(db Querier) *QuizRepository {
	return &QuizRepository{db: db}
}

const quizColumns = `quiz_id, owner_id, title, topic, grade_level, question_type,
	question_count, with_images, questions, passages, share_token, created_at, updated_at`

// Insert stores a freshly generated quiz.
func (r *QuizRepository) Insert(ctx context.Context, q Quiz) (Quiz, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO quizzes (quiz_id, owner_id, title, topic, grade_level, question_type,
			question_count, with_images, questions, passages, share_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+quizColumns,
		q.QuizID, q.OwnerID, q.Title, q.Topic, q.GradeLevel, q.QuestionType,
		q.QuestionCount, q.WithImages, q.Questions, q.Passages, q.ShareToken)
	return scanQuiz(row)
}

// GetByID fetches a quiz without an ownership check. Reserved for
// internal jobs such as the image backfill worker.
func (r *QuizRepository) GetByID(ctx context.Context, quizID uuid.UUID) (Quiz, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE quiz_id = $1`, quizID)
	return scanQuiz(row)
}

// GetByOwner fetches a quiz visible to its owner.
func (r *QuizRepository) GetByOwner(ctx context.Context, quizID, ownerID uuid.UUID) (Quiz, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE quiz_id = $1 AND owner_id = $2`,
		quizID, ownerID)
	return scanQuiz(row)
}

// GetByShareToken fetches a quiz through its public share token.
func (r *QuizRepository) GetByShareToken(ctx context.Context, token string) (Quiz, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE share_token = $1`, token)
	return scanQuiz(row)
}

// ListByOwner returns quiz summaries for the owner, newest first.
func (r *QuizRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]QuizSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT quiz_id, title, topic, grade_level, question_type, question_count, share_token, created_at
		FROM quizzes WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QuizSummary
	for rows.Next() {
		var s QuizSummary
		if err := rows.Scan(&s.QuizID, &s.Title, &s.Topic, &s.GradeLevel,
			&s.QuestionType, &s.QuestionCount, &s.ShareToken, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteByOwner removes a quiz and its attempts (cascade).
func (r *QuizRepository) DeleteByOwner(ctx context.Context, quizID, ownerID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM quizzes WHERE quiz_id = $1 AND owner_id = $2`, quizID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateShareToken rotates the public token, invalidating old links.
func (r *QuizRepository) UpdateShareToken(ctx context.Context, quizID, ownerID uuid.UUID, token string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quizzes SET share_token = $3, updated_at = now()
		WHERE quiz_id = $1 AND owner_id = $2`, quizID, ownerID, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateQuestions rewrites the question document (image backfill).
func (r *QuizRepository) UpdateQuestions(ctx context.Context, quizID uuid.UUID, questions []byte) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quizzes SET questions = $2, updated_at = now() WHERE quiz_id = $1`,
		quizID, questions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanQuiz(row pgx.Row) (Quiz, error) {
	var q Quiz
	err := row.Scan(&q.QuizID, &q.OwnerID, &q.Title, &q.Topic, &q.GradeLevel, &q.QuestionType,
		&q.QuestionCount, &q.WithImages, &q.Questions, &q.Passages, &q.ShareToken,
		&q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quiz{}, ErrNotFound
	}
	return q, err
}
