package quiz

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth/jwt"
	httperrors "github.com/Vinandra-Adam-Saputra/quizgen/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for quiz operations.
type HTTPHandlers struct {
	service *Service
	baseURL string
	logger  zerolog.Logger
}

func NewHTTPHandlers(service *Service, publicBaseURL string, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		baseURL: publicBaseURL,
		logger:  logger.With().Str("component", "quiz_http").Logger(),
	}
}

func (h *HTTPHandlers) claims(w http.ResponseWriter, r *http.Request) (*jwt.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return nil, false
	}
	return claims, true
}

func (h *HTTPHandlers) quizID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidQuizID, "Invalid quiz id")
		return uuid.Nil, false
	}
	return id, true
}

type quizResponse struct {
	Quiz     *Quiz  `json:"quiz"`
	ShareURL string `json:"share_url"`
}

// Generate handles POST /v1/quizzes.
func (h *HTTPHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	quiz, err := h.service.Generate(r.Context(), claims.UserID, req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("topic", req.Topic).Msg("quiz generation failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeQuizGenerationFailed, "Quiz generation failed, please try again")
		return
	}

	httperrors.RespondJSON(w, http.StatusCreated, quizResponse{
		Quiz:     quiz,
		ShareURL: ShareURL(h.baseURL, quiz.ShareToken),
	})
}

// List handles GET /v1/quizzes.
func (h *HTTPHandlers) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	summaries, err := h.service.List(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("quiz list failed")
		httperrors.RespondInternalError(w, "Could not list quizzes")
		return
	}

	type summaryResponse struct {
		ID            string    `json:"id"`
		Title         string    `json:"title"`
		Topic         string    `json:"topic"`
		GradeLevel    string    `json:"grade_level"`
		QuestionType  string    `json:"question_type"`
		QuestionCount int       `json:"question_count"`
		ShareURL      string    `json:"share_url"`
		CreatedAt     time.Time `json:"created_at"`
	}
	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, summaryResponse{
			ID:            s.QuizID.String(),
			Title:         s.Title,
			Topic:         s.Topic,
			GradeLevel:    s.GradeLevel,
			QuestionType:  s.QuestionType,
			QuestionCount: s.QuestionCount,
			ShareURL:      ShareURL(h.baseURL, s.ShareToken),
			CreatedAt:     s.CreatedAt,
		})
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{"quizzes": out})
}

// Get handles GET /v1/quizzes/{id}.
func (h *HTTPHandlers) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.quizID(w, r)
	if !ok {
		return
	}

	quiz, err := h.service.Get(r.Context(), id, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
			return
		}
		h.logger.Error().Err(err).Str("quiz_id", id.String()).Msg("quiz fetch failed")
		httperrors.RespondInternalError(w, "Could not fetch quiz")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, quizResponse{
		Quiz:     quiz,
		ShareURL: ShareURL(h.baseURL, quiz.ShareToken),
	})
}

// Delete handles DELETE /v1/quizzes/{id}.
func (h *HTTPHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.quizID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, claims.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
			return
		}
		h.logger.Error().Err(err).Str("quiz_id", id.String()).Msg("quiz delete failed")
		httperrors.RespondInternalError(w, "Could not delete quiz")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateShare handles POST /v1/quizzes/{id}/share.
func (h *HTTPHandlers) RotateShare(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.quizID(w, r)
	if !ok {
		return
	}

	token, err := h.service.RotateShareToken(r.Context(), id, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
			return
		}
		h.logger.Error().Err(err).Str("quiz_id", id.String()).Msg("share rotation failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeShareRotationFailed, "Could not rotate share link")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]string{
		"share_token": token,
		"share_url":   ShareURL(h.baseURL, token),
	})
}

// ListAttempts handles GET /v1/quizzes/{id}/attempts.
func (h *HTTPHandlers) ListAttempts(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.quizID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	attempts, total, err := h.service.ListAttempts(r.Context(), id, claims.UserID, limit)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
			return
		}
		h.logger.Error().Err(err).Str("quiz_id", id.String()).Msg("attempt list failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeAttemptFetchFailed, "Could not fetch attempts")
		return
	}

	type attemptResponse struct {
		AttemptID     string    `json:"attempt_id"`
		StudentName   string    `json:"student_name"`
		Score         int       `json:"score"`
		MaxScore      int       `json:"max_score"`
		PendingReview int       `json:"pending_review"`
		SubmittedAt   time.Time `json:"submitted_at"`
	}
	out := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptResponse{
			AttemptID:     a.AttemptID.String(),
			StudentName:   a.StudentName,
			Score:         a.Score,
			MaxScore:      a.MaxScore,
			PendingReview: a.PendingReview,
			SubmittedAt:   a.SubmittedAt,
		})
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": out,
		"total":    total,
	})
}

// GetShared handles GET /v1/shared/{token}. No authentication: share
// tokens are the credential.
func (h *HTTPHandlers) GetShared(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	view, err := h.service.GetShared(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInvalidShareToken) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeInvalidShareToken, "Quiz not found")
			return
		}
		h.logger.Error().Err(err).Msg("shared quiz fetch failed")
		httperrors.RespondInternalError(w, "Could not load quiz")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, view)
}

// SubmitAttempt handles POST /v1/shared/{token}/attempts.
func (h *HTTPHandlers) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	result, err := h.service.SubmitAttempt(r.Context(), token, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidShareToken):
			httperrors.RespondNotFound(w, httperrors.ErrCodeInvalidShareToken, "Quiz not found")
		case errors.Is(err, ErrValidation):
			httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
		default:
			h.logger.Error().Err(err).Msg("attempt submit failed")
			httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeSubmitFailed, "Could not submit attempt")
		}
		return
	}
	httperrors.RespondJSON(w, http.StatusCreated, result)
}
