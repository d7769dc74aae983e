package results

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth"
	httperrors "github.com/Vinandra-Adam-Saputra/quizgen/pkg/http/errors"
)

// OwnershipChecker guards result boards behind quiz ownership.
type OwnershipChecker interface {
	OwnsQuiz(ctx context.Context, quizID, ownerID uuid.UUID) bool
}

// HTTPHandler exposes REST access to quiz result boards.
type HTTPHandler struct {
	svc    *Service
	owners OwnershipChecker
	logger zerolog.Logger
}

func NewHTTPHandler(svc *Service, owners OwnershipChecker, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		owners: owners,
		logger: logger.With().Str("component", "results_http").Logger(),
	}
}

// HandleGet responds with the current result board for an owned quiz.
// Route: GET /v1/quizzes/{id}/results?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	quizID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidQuizID, "Invalid quiz id")
		return
	}
	if !h.owners.OwnsQuiz(r.Context(), quizID, claims.UserID) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	entries, err := h.svc.Top(r.Context(), quizID, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("result board fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeResultsFetchFailed, "Could not fetch results")
		return
	}

	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"quiz_id":      quizID.String(),
		"top":          entries,
		"retrieved_at": time.Now().UTC().Format(time.RFC3339),
	})
}
