package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth"
	httperrors "github.com/Vinandra-Adam-Saputra/quizgen/pkg/http/errors"
	ws "github.com/Vinandra-Adam-Saputra/quizgen/pkg/http/ws"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the HTTP layer
	},
}

// WSHandler lets quiz owners watch attempts arrive in real time.
type WSHandler struct {
	service *Service
	hub     *ws.Hub
	authSvc *auth.Service
	logger  zerolog.Logger
}

func NewWSHandler(service *Service, hub *ws.Hub, authSvc *auth.Service, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		authSvc: authSvc,
		logger:  logger.With().Str("component", "quiz_ws").Logger(),
	}
}

// HandleWebSocket upgrades the connection. The JWT rides in a query
// parameter because browsers cannot set headers on websocket dials.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	claims, err := h.authSvc.ValidateToken(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.handleConnection(conn, claims.UserID)
}

func (h *WSHandler) handleConnection(conn *websocket.Conn, userID uuid.UUID) {
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(userID, wsConn)

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), userID, msg)
	})

	h.hub.UnregisterConnection(userID)
}

func (h *WSHandler) handleMessage(ctx context.Context, userID uuid.UUID, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeWatchQuiz:
		return h.handleWatch(ctx, userID, msg.Payload)
	case ws.TypeUnwatchQuiz:
		return h.handleUnwatch(userID, msg.Payload)
	case ws.TypePing:
		return h.hub.SendToUser(userID, ws.Message{Type: ws.TypePong})
	default:
		return h.sendError(userID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *WSHandler) handleWatch(ctx context.Context, userID uuid.UUID, payload json.RawMessage) error {
	var req ws.WatchQuizPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(userID, httperrors.ErrCodeInvalidPayload, "Invalid watch_quiz payload")
	}
	quizID, err := uuid.Parse(req.QuizID)
	if err != nil {
		return h.sendError(userID, httperrors.ErrCodeInvalidPayload, "Invalid quiz_id")
	}

	// only the quiz owner may watch its submissions
	if !h.service.OwnsQuiz(ctx, quizID, userID) {
		return h.sendError(userID, httperrors.ErrCodeForbidden, "Not your quiz")
	}

	h.hub.WatchQuiz(quizID, userID)
	return h.sendAck(userID, req.QuizID, true)
}

func (h *WSHandler) handleUnwatch(userID uuid.UUID, payload json.RawMessage) error {
	var req ws.UnwatchQuizPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(userID, httperrors.ErrCodeInvalidPayload, "Invalid unwatch_quiz payload")
	}
	quizID, err := uuid.Parse(req.QuizID)
	if err != nil {
		return h.sendError(userID, httperrors.ErrCodeInvalidPayload, "Invalid quiz_id")
	}

	h.hub.UnwatchQuiz(quizID, userID)
	return h.sendAck(userID, req.QuizID, false)
}

func (h *WSHandler) sendAck(userID uuid.UUID, quizID string, watching bool) error {
	raw, err := json.Marshal(ws.WatchAckPayload{QuizID: quizID, Watching: watching})
	if err != nil {
		return err
	}
	return h.hub.SendToUser(userID, ws.Message{Type: ws.TypeWatchAck, Payload: raw})
}

func (h *WSHandler) sendError(userID uuid.UUID, code, message string) error {
	raw, err := json.Marshal(ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	return h.hub.SendToUser(userID, ws.Message{Type: ws.TypeError, Payload: raw})
}
