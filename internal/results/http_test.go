package results

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth/jwt"
)

type stubOwners struct {
	quizID  uuid.UUID
	ownerID uuid.UUID
}

func (o *stubOwners) OwnsQuiz(_ context.Context, quizID, ownerID uuid.UUID) bool {
	return quizID == o.quizID && ownerID == o.ownerID
}

func resultsRequest(t *testing.T, quizID uuid.UUID, claims *jwt.Claims) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/v1/quizzes/"+quizID.String()+"/results", nil)
	r.SetPathValue("id", quizID.String())
	if claims != nil {
		r = r.WithContext(auth.ContextWithClaims(r.Context(), claims))
	}
	return r
}

func TestHandleGetResponseShape(t *testing.T) {
	quizID := uuid.New()
	ownerID := uuid.New()
	handler := NewHTTPHandler(
		NewService(nil, zerolog.Nop(), ServiceOptions{}),
		&stubOwners{quizID: quizID, ownerID: ownerID},
		zerolog.Nop(),
	)

	rec := httptest.NewRecorder()
	handler.HandleGet(rec, resultsRequest(t, quizID, &jwt.Claims{UserID: ownerID}))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"quiz_id"`)
	assert.Contains(t, body, `"top"`)
	assert.Contains(t, body, `"retrieved_at"`)
}

func TestHandleGetRequiresAuth(t *testing.T) {
	quizID := uuid.New()
	handler := NewHTTPHandler(
		NewService(nil, zerolog.Nop(), ServiceOptions{}),
		&stubOwners{quizID: quizID},
		zerolog.Nop(),
	)

	rec := httptest.NewRecorder()
	handler.HandleGet(rec, resultsRequest(t, quizID, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleGetHidesForeignQuiz(t *testing.T) {
	quizID := uuid.New()
	handler := NewHTTPHandler(
		NewService(nil, zerolog.Nop(), ServiceOptions{}),
		&stubOwners{quizID: quizID, ownerID: uuid.New()},
		zerolog.Nop(),
	)

	rec := httptest.NewRecorder()
	handler.HandleGet(rec, resultsRequest(t, quizID, &jwt.Claims{UserID: uuid.New()}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
