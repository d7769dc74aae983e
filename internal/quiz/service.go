// Package quiz implements quiz generation, sharing and attempt handling.
package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/config"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/db/repository"
)

var (
	ErrNotFound          = errors.New("quiz not found")
	ErrInvalidShareToken = errors.New("invalid share token")
	ErrValidation        = errors.New("invalid request")
)

// QuizStore is the persistence surface the service needs for quizzes.
type QuizStore interface {
	Insert(ctx context.Context, q repository.Quiz) (repository.Quiz, error)
	GetByID(ctx context.Context, quizID uuid.UUID) (repository.Quiz, error)
	GetByOwner(ctx context.Context, quizID, ownerID uuid.UUID) (repository.Quiz, error)
	GetByShareToken(ctx context.Context, token string) (repository.Quiz, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]repository.QuizSummary, error)
	DeleteByOwner(ctx context.Context, quizID, ownerID uuid.UUID) error
	UpdateShareToken(ctx context.Context, quizID, ownerID uuid.UUID, token string) error
	UpdateQuestions(ctx context.Context, quizID uuid.UUID, questions []byte) error
}

// AttemptStore is the persistence surface for student attempts.
type AttemptStore interface {
	Insert(ctx context.Context, a repository.Attempt) (repository.Attempt, error)
	ListByQuiz(ctx context.Context, quizID uuid.UUID, limit int) ([]repository.Attempt, error)
	CountByQuiz(ctx context.Context, quizID uuid.UUID) (int, error)
}

// Generator produces quiz content from a generation request.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GeneratedQuiz, error)
}

// ImageAttacher decorates questions with illustration URLs.
type ImageAttacher interface {
	Attach(ctx context.Context, questions []Question, topic, gradeLevel string) []Question
	RetryPending(ctx context.Context, questions []Question, topic, gradeLevel string) bool
}

// AttemptSink receives graded attempts, feeding live results views,
// and drops a quiz's result board when the quiz is deleted.
type AttemptSink interface {
	RecordAttempt(ctx context.Context, quizID uuid.UUID, result AttemptResult)
	Forget(ctx context.Context, quizID uuid.UUID)
}

// Service owns the quiz lifecycle from generation to attempt grading.
type Service struct {
	quizRepo    QuizStore
	attemptRepo AttemptStore
	generator   Generator
	imager      ImageAttacher
	signer      *ShareTokenSigner
	cache       *ShareCache
	sink        AttemptSink
	retryC      chan imageRetry
	cfg         config.Quiz
	logger      zerolog.Logger
}

// imageRetry is one backfill pass over a quiz's pending images.
type imageRetry struct {
	quizID  uuid.UUID
	attempt int
}

func NewService(
	quizRepo QuizStore,
	attemptRepo AttemptStore,
	generator Generator,
	imager ImageAttacher,
	signer *ShareTokenSigner,
	cache *ShareCache,
	sink AttemptSink,
	retryQueue int,
	cfg config.Quiz,
	logger zerolog.Logger,
) *Service {
	return &Service{
		quizRepo:    quizRepo,
		attemptRepo: attemptRepo,
		generator:   generator,
		imager:      imager,
		signer:      signer,
		cache:       cache,
		sink:        sink,
		retryC:      make(chan imageRetry, retryQueue),
		cfg:         cfg,
		logger:      logger.With().Str("component", "quiz").Logger(),
	}
}

func (s *Service) normalizeRequest(req *GenerateRequest) error {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return fmt.Errorf("%w: topic is required", ErrValidation)
	}
	req.GradeLevel = strings.TrimSpace(req.GradeLevel)
	if req.QuestionCount <= 0 {
		req.QuestionCount = s.cfg.DefaultQuestionCount
	}
	if req.QuestionCount > s.cfg.MaxQuestionCount {
		return fmt.Errorf("%w: question_count exceeds %d", ErrValidation, s.cfg.MaxQuestionCount)
	}
	if req.QuestionType == "" {
		req.QuestionType = TypeMultipleChoice
	}
	if !ValidQuestionType(req.QuestionType) {
		return fmt.Errorf("%w: unknown question_type %q", ErrValidation, req.QuestionType)
	}
	return nil
}

// Generate creates a quiz for ownerID, with images attached when asked
// for, and persists it together with a fresh share token.
func (s *Service) Generate(ctx context.Context, ownerID uuid.UUID, req GenerateRequest) (*Quiz, error) {
	if err := s.normalizeRequest(&req); err != nil {
		return nil, err
	}

	generated, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	if req.WithImages {
		generated.Questions = s.imager.Attach(ctx, generated.Questions, req.Topic, req.GradeLevel)
	}

	token, err := s.signer.Mint()
	if err != nil {
		return nil, err
	}

	questionsJSON, err := json.Marshal(generated.Questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	passagesJSON, err := json.Marshal(generated.Passages)
	if err != nil {
		return nil, fmt.Errorf("encode passages: %w", err)
	}

	row, err := s.quizRepo.Insert(ctx, repository.Quiz{
		QuizID:        uuid.New(),
		OwnerID:       ownerID,
		Title:         generated.Title,
		Topic:         req.Topic,
		GradeLevel:    req.GradeLevel,
		QuestionType:  req.QuestionType,
		QuestionCount: len(generated.Questions),
		WithImages:    req.WithImages,
		Questions:     questionsJSON,
		Passages:      passagesJSON,
		ShareToken:    token,
	})
	if err != nil {
		return nil, fmt.Errorf("store quiz: %w", err)
	}

	quiz, err := fromRow(row)
	if err != nil {
		return nil, err
	}

	if hasPendingImages(quiz.Questions) {
		s.enqueueImageRetry(quiz.ID, 1)
	}

	s.logger.Info().
		Str("quiz_id", quiz.ID.String()).
		Str("topic", req.Topic).
		Str("question_type", req.QuestionType).
		Int("question_count", quiz.QuestionCount).
		Msg("quiz generated")
	return quiz, nil
}

// Get returns the owner-side quiz, answers included.
func (s *Service) Get(ctx context.Context, quizID, ownerID uuid.UUID) (*Quiz, error) {
	row, err := s.quizRepo.GetByOwner(ctx, quizID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromRow(row)
}

// List returns the owner's quizzes, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]repository.QuizSummary, error) {
	return s.quizRepo.ListByOwner(ctx, ownerID)
}

// Delete removes a quiz, drops its cached share view and its live
// result board. Attempts go with it via the foreign key cascade.
func (s *Service) Delete(ctx context.Context, quizID, ownerID uuid.UUID) error {
	row, err := s.quizRepo.GetByOwner(ctx, quizID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.quizRepo.DeleteByOwner(ctx, quizID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.cache.Invalidate(ctx, row.ShareToken)
	if s.sink != nil {
		s.sink.Forget(ctx, quizID)
	}
	return nil
}

// RotateShareToken replaces the share token, invalidating every link
// handed out so far.
func (s *Service) RotateShareToken(ctx context.Context, quizID, ownerID uuid.UUID) (string, error) {
	row, err := s.quizRepo.GetByOwner(ctx, quizID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	token, err := s.signer.Mint()
	if err != nil {
		return "", err
	}
	if err := s.quizRepo.UpdateShareToken(ctx, quizID, ownerID, token); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	s.cache.Invalidate(ctx, row.ShareToken)
	return token, nil
}

// GetShared resolves a share token to the answer-stripped student view.
func (s *Service) GetShared(ctx context.Context, token string) (*StudentQuiz, error) {
	if !s.signer.Verify(token) {
		return nil, ErrInvalidShareToken
	}
	if view, ok := s.cache.Get(ctx, token); ok {
		return view, nil
	}

	row, err := s.quizRepo.GetByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidShareToken
		}
		return nil, err
	}
	quiz, err := fromRow(row)
	if err != nil {
		return nil, err
	}

	view := studentView(quiz)
	s.cache.Set(ctx, token, view)
	return view, nil
}

// SubmitAttempt grades a student submission against the quiz behind
// token and persists the attempt.
func (s *Service) SubmitAttempt(ctx context.Context, token string, req SubmitRequest) (*AttemptResult, error) {
	if !s.signer.Verify(token) {
		return nil, ErrInvalidShareToken
	}
	req.StudentName = strings.TrimSpace(req.StudentName)
	if req.StudentName == "" {
		return nil, fmt.Errorf("%w: student_name is required", ErrValidation)
	}

	row, err := s.quizRepo.GetByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidShareToken
		}
		return nil, err
	}
	quiz, err := fromRow(row)
	if err != nil {
		return nil, err
	}

	summary := Grade(quiz.Questions, req.Answers)

	answersJSON, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	stored, err := s.attemptRepo.Insert(ctx, repository.Attempt{
		AttemptID:     uuid.New(),
		QuizID:        quiz.ID,
		StudentName:   req.StudentName,
		Answers:       answersJSON,
		Score:         summary.Score,
		MaxScore:      summary.MaxScore,
		PendingReview: summary.PendingReview,
	})
	if err != nil {
		return nil, fmt.Errorf("store attempt: %w", err)
	}

	result := &AttemptResult{
		AttemptID:     stored.AttemptID.String(),
		QuizID:        quiz.ID.String(),
		StudentName:   stored.StudentName,
		Score:         summary.Score,
		MaxScore:      summary.MaxScore,
		PendingReview: summary.PendingReview,
		Breakdown:     summary.Breakdown,
		SubmittedAt:   stored.SubmittedAt,
	}

	if s.sink != nil {
		s.sink.RecordAttempt(ctx, quiz.ID, *result)
	}

	s.logger.Info().
		Str("quiz_id", quiz.ID.String()).
		Str("attempt_id", result.AttemptID).
		Int("score", result.Score).
		Int("max_score", result.MaxScore).
		Msg("attempt submitted")
	return result, nil
}

// ListAttempts returns recent attempts for an owner's quiz.
func (s *Service) ListAttempts(ctx context.Context, quizID, ownerID uuid.UUID, limit int) ([]repository.Attempt, int, error) {
	if _, err := s.quizRepo.GetByOwner(ctx, quizID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	attempts, err := s.attemptRepo.ListByQuiz(ctx, quizID, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.attemptRepo.CountByQuiz(ctx, quizID)
	if err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

// OwnsQuiz reports whether ownerID owns quizID, used by the websocket
// watch handshake.
func (s *Service) OwnsQuiz(ctx context.Context, quizID, ownerID uuid.UUID) bool {
	_, err := s.quizRepo.GetByOwner(ctx, quizID, ownerID)
	return err == nil
}

// maxImageRetryPasses caps backfill attempts per quiz; a quiz whose
// image backend stays down keeps its placeholders.
const maxImageRetryPasses = 3

func (s *Service) enqueueImageRetry(quizID uuid.UUID, attempt int) {
	if attempt > maxImageRetryPasses {
		s.logger.Warn().Str("quiz_id", quizID.String()).Msg("image backfill gave up, keeping placeholders")
		return
	}
	select {
	case s.retryC <- imageRetry{quizID: quizID, attempt: attempt}:
	default:
		s.logger.Warn().Str("quiz_id", quizID.String()).Msg("image retry queue full, dropping")
	}
}

// retryImages re-resolves placeholder images for one quiz and persists
// any progress. Called from the background worker.
func (s *Service) retryImages(ctx context.Context, job imageRetry) error {
	row, err := s.quizRepo.GetByID(ctx, job.quizID)
	if err != nil {
		return err
	}
	quiz, err := fromRow(row)
	if err != nil {
		return err
	}
	if !hasPendingImages(quiz.Questions) {
		return nil
	}
	if !s.imager.RetryPending(ctx, quiz.Questions, quiz.Topic, quiz.GradeLevel) {
		s.enqueueImageRetry(job.quizID, job.attempt+1)
		return nil
	}

	questionsJSON, err := json.Marshal(quiz.Questions)
	if err != nil {
		return err
	}
	if err := s.quizRepo.UpdateQuestions(ctx, job.quizID, questionsJSON); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, row.ShareToken)

	if hasPendingImages(quiz.Questions) {
		s.enqueueImageRetry(job.quizID, job.attempt+1)
	}
	return nil
}

func hasPendingImages(questions []Question) bool {
	for _, q := range questions {
		if q.ImagePending {
			return true
		}
	}
	return false
}

func fromRow(row repository.Quiz) (*Quiz, error) {
	q := &Quiz{
		ID:            row.QuizID,
		OwnerID:       row.OwnerID,
		Title:         row.Title,
		Topic:         row.Topic,
		GradeLevel:    row.GradeLevel,
		QuestionType:  row.QuestionType,
		QuestionCount: row.QuestionCount,
		WithImages:    row.WithImages,
		ShareToken:    row.ShareToken,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if len(row.Questions) > 0 {
		if err := json.Unmarshal(row.Questions, &q.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	}
	if len(row.Passages) > 0 {
		if err := json.Unmarshal(row.Passages, &q.Passages); err != nil {
			return nil, fmt.Errorf("decode passages: %w", err)
		}
	}
	return q, nil
}

func studentView(q *Quiz) *StudentQuiz {
	view := &StudentQuiz{
		QuizID:        q.ID.String(),
		Title:         q.Title,
		Topic:         q.Topic,
		GradeLevel:    q.GradeLevel,
		QuestionType:  q.QuestionType,
		QuestionCount: q.QuestionCount,
		Passages:      q.Passages,
		Questions:     make([]StudentQuestion, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		view.Questions = append(view.Questions, StudentQuestion{
			ID:        question.ID,
			Type:      question.Type,
			Prompt:    question.Prompt,
			Options:   question.Options,
			PassageID: question.PassageID,
			ImageURL:  question.ImageURL,
		})
	}
	return view
}

// ShareURL builds the public link for a share token.
func ShareURL(baseURL, token string) string {
	return fmt.Sprintf("%s/quiz/%s", strings.TrimRight(baseURL, "/"), token)
}
