package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/config"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/db/repository"
)

type memQuizStore struct {
	quizzes map[uuid.UUID]repository.Quiz
}

func newMemQuizStore() *memQuizStore {
	return &memQuizStore{quizzes: map[uuid.UUID]repository.Quiz{}}
}

func (s *memQuizStore) Insert(_ context.Context, q repository.Quiz) (repository.Quiz, error) {
	s.quizzes[q.QuizID] = q
	return q, nil
}

func (s *memQuizStore) GetByID(_ context.Context, quizID uuid.UUID) (repository.Quiz, error) {
	q, ok := s.quizzes[quizID]
	if !ok {
		return repository.Quiz{}, repository.ErrNotFound
	}
	return q, nil
}

func (s *memQuizStore) GetByOwner(_ context.Context, quizID, ownerID uuid.UUID) (repository.Quiz, error) {
	q, ok := s.quizzes[quizID]
	if !ok || q.OwnerID != ownerID {
		return repository.Quiz{}, repository.ErrNotFound
	}
	return q, nil
}

func (s *memQuizStore) GetByShareToken(_ context.Context, token string) (repository.Quiz, error) {
	for _, q := range s.quizzes {
		if q.ShareToken == token {
			return q, nil
		}
	}
	return repository.Quiz{}, repository.ErrNotFound
}

func (s *memQuizStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]repository.QuizSummary, error) {
	var out []repository.QuizSummary
	for _, q := range s.quizzes {
		if q.OwnerID == ownerID {
			out = append(out, repository.QuizSummary{QuizID: q.QuizID, Title: q.Title, ShareToken: q.ShareToken})
		}
	}
	return out, nil
}

func (s *memQuizStore) DeleteByOwner(_ context.Context, quizID, ownerID uuid.UUID) error {
	q, ok := s.quizzes[quizID]
	if !ok || q.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.quizzes, quizID)
	return nil
}

func (s *memQuizStore) UpdateShareToken(_ context.Context, quizID, ownerID uuid.UUID, token string) error {
	q, ok := s.quizzes[quizID]
	if !ok || q.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	q.ShareToken = token
	s.quizzes[quizID] = q
	return nil
}

func (s *memQuizStore) UpdateQuestions(_ context.Context, quizID uuid.UUID, questions []byte) error {
	q, ok := s.quizzes[quizID]
	if !ok {
		return repository.ErrNotFound
	}
	q.Questions = questions
	s.quizzes[quizID] = q
	return nil
}

type memAttemptStore struct {
	attempts []repository.Attempt
}

func (s *memAttemptStore) Insert(_ context.Context, a repository.Attempt) (repository.Attempt, error) {
	s.attempts = append(s.attempts, a)
	return a, nil
}

func (s *memAttemptStore) ListByQuiz(_ context.Context, quizID uuid.UUID, _ int) ([]repository.Attempt, error) {
	var out []repository.Attempt
	for _, a := range s.attempts {
		if a.QuizID == quizID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memAttemptStore) CountByQuiz(_ context.Context, quizID uuid.UUID) (int, error) {
	n := 0
	for _, a := range s.attempts {
		if a.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

type stubGenerator struct {
	result *GeneratedQuiz
	err    error
}

func (g *stubGenerator) Generate(_ context.Context, _ GenerateRequest) (*GeneratedQuiz, error) {
	return g.result, g.err
}

type stubImager struct {
	attached bool
}

func (i *stubImager) Attach(_ context.Context, questions []Question, _, _ string) []Question {
	i.attached = true
	for idx := range questions {
		questions[idx].ImageURL = "https://img.example/" + questions[idx].ID
	}
	return questions
}

func (i *stubImager) RetryPending(_ context.Context, _ []Question, _, _ string) bool {
	return false
}

type recordingSink struct {
	quizID    uuid.UUID
	results   []AttemptResult
	forgotten []uuid.UUID
}

func (s *recordingSink) RecordAttempt(_ context.Context, quizID uuid.UUID, result AttemptResult) {
	s.quizID = quizID
	s.results = append(s.results, result)
}

func (s *recordingSink) Forget(_ context.Context, quizID uuid.UUID) {
	s.forgotten = append(s.forgotten, quizID)
}

func defaultGenerated() *GeneratedQuiz {
	return &GeneratedQuiz{
		Title: "Fractions",
		Questions: []Question{
			{ID: "q1", Type: TypeMultipleChoice, Prompt: "1/2 + 1/2 = ?",
				Options: []string{"1", "2"}, Answer: "1", Explanation: "Halves sum to a whole."},
			{ID: "q2", Type: TypeMultipleChoice, Prompt: "1/4 + 1/4 = ?",
				Options: []string{"1/2", "1"}, Answer: "1/2"},
		},
	}
}

func newTestService(store *memQuizStore, attempts *memAttemptStore, gen Generator, imager ImageAttacher, sink AttemptSink) *Service {
	return NewService(
		store,
		attempts,
		gen,
		imager,
		NewShareTokenSigner("test-secret"),
		NewShareCache(nil, 0, zerolog.Nop()),
		sink,
		8,
		config.Quiz{DefaultQuestionCount: 5, MaxQuestionCount: 20, ResultsTopN: 50},
		zerolog.Nop(),
	)
}

func TestGeneratePersistsQuizWithShareToken(t *testing.T) {
	store := newMemQuizStore()
	svc := newTestService(store, &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)

	ownerID := uuid.New()
	q, err := svc.Generate(context.Background(), ownerID, GenerateRequest{
		Topic:         "fractions",
		GradeLevel:    "4th grade",
		QuestionCount: 2,
		QuestionType:  TypeMultipleChoice,
	})
	require.NoError(t, err)
	assert.Equal(t, "Fractions", q.Title)
	assert.Equal(t, ownerID, q.OwnerID)
	assert.Len(t, q.Questions, 2)
	assert.True(t, svc.signer.Verify(q.ShareToken))

	stored, err := store.GetByOwner(context.Background(), q.ID, ownerID)
	require.NoError(t, err)
	var storedQs []Question
	require.NoError(t, json.Unmarshal(stored.Questions, &storedQs))
	assert.Equal(t, "1", storedQs[0].Answer)
}

func TestGenerateValidatesRequest(t *testing.T) {
	svc := newTestService(newMemQuizStore(), &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)

	_, err := svc.Generate(context.Background(), uuid.New(), GenerateRequest{Topic: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Generate(context.Background(), uuid.New(), GenerateRequest{Topic: "x", QuestionCount: 99})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Generate(context.Background(), uuid.New(), GenerateRequest{Topic: "x", QuestionType: "true_false"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGenerateSkipsImagesUnlessRequested(t *testing.T) {
	imager := &stubImager{}
	svc := newTestService(newMemQuizStore(), &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, imager, nil)

	_, err := svc.Generate(context.Background(), uuid.New(), GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	require.NoError(t, err)
	assert.False(t, imager.attached)
}

func TestGenerateSurfacesGeneratorFailure(t *testing.T) {
	svc := newTestService(newMemQuizStore(), &memAttemptStore{}, &stubGenerator{err: errors.New("upstream down")}, &stubImager{}, nil)

	_, err := svc.Generate(context.Background(), uuid.New(), GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestGetSharedStripsAnswers(t *testing.T) {
	store := newMemQuizStore()
	svc := newTestService(store, &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)

	q, err := svc.Generate(context.Background(), uuid.New(), GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	require.NoError(t, err)

	view, err := svc.GetShared(context.Background(), q.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, q.ID.String(), view.QuizID)
	require.Len(t, view.Questions, 2)
	for _, sq := range view.Questions {
		assert.NotEmpty(t, sq.Prompt)
		assert.NotEmpty(t, sq.Options)
	}

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "answer")
	assert.NotContains(t, string(raw), "explanation")
}

func TestGetSharedRejectsForgedToken(t *testing.T) {
	svc := newTestService(newMemQuizStore(), &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)

	_, err := svc.GetShared(context.Background(), "forged.token")
	assert.ErrorIs(t, err, ErrInvalidShareToken)
}

func TestSubmitAttemptGradesAndRecords(t *testing.T) {
	store := newMemQuizStore()
	attempts := &memAttemptStore{}
	sink := &recordingSink{}
	svc := newTestService(store, attempts, &stubGenerator{result: defaultGenerated()}, &stubImager{}, sink)

	q, err := svc.Generate(context.Background(), uuid.New(), GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	require.NoError(t, err)

	result, err := svc.SubmitAttempt(context.Background(), q.ShareToken, SubmitRequest{
		StudentName: "Alex",
		Answers:     map[string]string{"q1": "1", "q2": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 2, result.MaxScore)
	assert.Equal(t, 0, result.PendingReview)
	assert.Len(t, result.Breakdown, 2)

	require.Len(t, attempts.attempts, 1)
	assert.Equal(t, q.ID, attempts.attempts[0].QuizID)

	require.Len(t, sink.results, 1)
	assert.Equal(t, q.ID, sink.quizID)
	assert.Equal(t, "Alex", sink.results[0].StudentName)
}

func TestSubmitAttemptRequiresStudentName(t *testing.T) {
	svc := newTestService(newMemQuizStore(), &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)

	q, err := svc.Generate(context.Background(), uuid.New(), GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	require.NoError(t, err)

	_, err = svc.SubmitAttempt(context.Background(), q.ShareToken, SubmitRequest{StudentName: "  "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRotateShareTokenInvalidatesOldLink(t *testing.T) {
	store := newMemQuizStore()
	svc := newTestService(store, &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)

	ownerID := uuid.New()
	q, err := svc.Generate(context.Background(), ownerID, GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	require.NoError(t, err)

	newToken, err := svc.RotateShareToken(context.Background(), q.ID, ownerID)
	require.NoError(t, err)
	assert.NotEqual(t, q.ShareToken, newToken)

	_, err = svc.GetShared(context.Background(), q.ShareToken)
	assert.ErrorIs(t, err, ErrInvalidShareToken)

	view, err := svc.GetShared(context.Background(), newToken)
	require.NoError(t, err)
	assert.Equal(t, q.ID.String(), view.QuizID)
}

func TestRotateShareTokenWrongOwner(t *testing.T) {
	svc := newTestService(newMemQuizStore(), &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)

	q, err := svc.Generate(context.Background(), uuid.New(), GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	require.NoError(t, err)

	_, err = svc.RotateShareToken(context.Background(), q.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesQuiz(t *testing.T) {
	store := newMemQuizStore()
	svc := newTestService(store, &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)

	ownerID := uuid.New()
	q, err := svc.Generate(context.Background(), ownerID, GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), q.ID, ownerID))
	_, err = svc.Get(context.Background(), q.ID, ownerID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), q.ID, ownerID), ErrNotFound)
}

func TestDeleteDropsResultBoard(t *testing.T) {
	store := newMemQuizStore()
	sink := &recordingSink{}
	svc := newTestService(store, &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, sink)

	ownerID := uuid.New()
	q, err := svc.Generate(context.Background(), ownerID, GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), q.ID, ownerID))
	require.Len(t, sink.forgotten, 1)
	assert.Equal(t, q.ID, sink.forgotten[0])
}

func TestOwnsQuiz(t *testing.T) {
	svc := newTestService(newMemQuizStore(), &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)

	ownerID := uuid.New()
	q, err := svc.Generate(context.Background(), ownerID, GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice,
	})
	require.NoError(t, err)

	assert.True(t, svc.OwnsQuiz(context.Background(), q.ID, ownerID))
	assert.False(t, svc.OwnsQuiz(context.Background(), q.ID, uuid.New()))
}

func TestShareTokenFromAnotherDeploymentRejected(t *testing.T) {
	// a token minted under a different secret must not verify
	other := NewShareTokenSigner("other-secret")
	token, err := other.Mint()
	require.NoError(t, err)

	svc := newTestService(newMemQuizStore(), &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, &stubImager{}, nil)
	_, err = svc.GetShared(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidShareToken)
}

type pendingImager struct {
	retries int
}

func (i *pendingImager) Attach(_ context.Context, questions []Question, _, _ string) []Question {
	for idx := range questions {
		questions[idx].ImageURL = "data:image/png;base64,AAAA"
		questions[idx].ImagePending = true
	}
	return questions
}

func (i *pendingImager) RetryPending(_ context.Context, _ []Question, _, _ string) bool {
	i.retries++
	return false
}

func TestImageBackfillGivesUpAfterBoundedPasses(t *testing.T) {
	store := newMemQuizStore()
	imager := &pendingImager{}
	svc := newTestService(store, &memAttemptStore{}, &stubGenerator{result: defaultGenerated()}, imager, nil)

	_, err := svc.Generate(context.Background(), uuid.New(), GenerateRequest{
		Topic: "fractions", QuestionCount: 2, QuestionType: TypeMultipleChoice, WithImages: true,
	})
	require.NoError(t, err)

	passes := 0
	for {
		select {
		case job := <-svc.retryC:
			passes++
			require.NoError(t, svc.retryImages(context.Background(), job))
		default:
			assert.Equal(t, maxImageRetryPasses, passes)
			assert.Equal(t, maxImageRetryPasses, imager.retries)
			return
		}
	}
}
