package results

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/Vinandra-Adam-Saputra/quizgen/pkg/http/ws"
)

// Broadcaster listens for Pub/Sub result events and forwards them to the
// owners watching the affected quiz. Pub/Sub keeps this working across
// multiple API instances: the instance holding the websocket does not
// have to be the one that took the attempt.
type Broadcaster struct {
	redis   *redis.Client
	hub     *ws.Hub
	channel string
	logger  zerolog.Logger
}

func NewBroadcaster(redis *redis.Client, hub *ws.Hub, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = defaultChannel
	}
	return &Broadcaster{
		redis:   redis,
		hub:     hub,
		channel: channel,
		logger:  logger.With().Str("component", "results_broadcaster").Logger(),
	}
}

// Run subscribes to the update channel and blocks until the context is
// cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("result event decode failed")
		return
	}
	quizID, err := uuid.Parse(evt.QuizID)
	if err != nil {
		b.logger.Warn().Err(err).Msg("result event carries invalid quiz_id")
		return
	}

	if raw, err := json.Marshal(evt.Attempt); err == nil {
		if err := b.hub.BroadcastToQuiz(quizID, ws.Message{Type: ws.TypeAttemptSubmitted, Payload: raw}); err != nil {
			b.logger.Warn().Err(err).Msg("attempt broadcast failed")
		}
	}

	if len(evt.Top) == 0 {
		return
	}
	raw, err := json.Marshal(ws.ResultsUpdatePayload{QuizID: evt.QuizID, Top: evt.Top})
	if err != nil {
		return
	}
	if err := b.hub.BroadcastToQuiz(quizID, ws.Message{Type: ws.TypeResultsUpdate, Payload: raw}); err != nil {
		b.logger.Warn().Err(err).Msg("results broadcast failed")
	}
}
