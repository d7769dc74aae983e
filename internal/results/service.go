// Package results maintains per-quiz live result boards in Redis and
// fans updates out to watching owners over Pub/Sub.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/quiz"
	ws "github.com/Vinandra-Adam-Saputra/quizgen/pkg/http/ws"
)

const defaultChannel = "results:updates"

// Entry is one row of a quiz result board.
type Entry struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	StudentName   string    `json:"student_name"`
	Score         int       `json:"score"`
	MaxScore      int       `json:"max_score"`
	PendingReview int       `json:"pending_review"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Event is the Pub/Sub envelope published on each graded attempt.
type Event struct {
	QuizID  string                     `json:"quiz_id"`
	Attempt ws.AttemptSubmittedPayload `json:"attempt"`
	Top     []ws.ResultsEntry          `json:"top"`
}

// ServiceOptions configures result board behavior.
type ServiceOptions struct {
	TopN           int
	PubSubChannel  string
	EntryTTL       time.Duration
	RedisKeyPrefix string
}

// Service keeps a sorted set per quiz with the best scores on top.
type Service struct {
	redis    *redis.Client
	logger   zerolog.Logger
	topN     int
	channel  string
	entryTTL time.Duration
	prefix   string
}

func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	channel := opts.PubSubChannel
	if channel == "" {
		channel = defaultChannel
	}
	ttl := opts.EntryTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "results"
	}
	return &Service{
		redis:    redis,
		logger:   logger.With().Str("component", "results").Logger(),
		topN:     topN,
		channel:  channel,
		entryTTL: ttl,
		prefix:   prefix,
	}
}

// RecordAttempt stores the graded attempt on the quiz board and emits a
// Pub/Sub event. Implements the attempt sink consumed by the quiz
// service; failures are logged, never surfaced to the student.
func (s *Service) RecordAttempt(ctx context.Context, quizID uuid.UUID, result quiz.AttemptResult) {
	if s.redis == nil {
		return
	}

	zKey := s.boardKey(quizID)
	metaKey := s.metaKey(quizID, result.AttemptID)

	pipe := s.redis.TxPipeline()
	pipe.ZAdd(ctx, zKey, redis.Z{Score: float64(result.Score), Member: result.AttemptID})
	pipe.HSet(ctx, metaKey, map[string]interface{}{
		"student_name":   result.StudentName,
		"max_score":      result.MaxScore,
		"pending_review": result.PendingReview,
		"submitted_at":   result.SubmittedAt.UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, zKey, s.entryTTL)
	pipe.Expire(ctx, metaKey, s.entryTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("result board update failed")
		return
	}

	go s.publishUpdate(context.Background(), quizID, result)
}

// Top returns the best scoring attempts for a quiz.
func (s *Service) Top(ctx context.Context, quizID uuid.UUID, limit int) ([]Entry, error) {
	if s.redis == nil {
		return nil, nil
	}
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	zKey := s.boardKey(quizID)
	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch result board: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		attemptID, err := uuid.Parse(z.Member.(string))
		if err != nil {
			continue
		}
		entry, err := s.readMeta(ctx, quizID, attemptID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("result metadata read failed")
			continue
		}
		entry.Score = int(z.Score)
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (s *Service) publishUpdate(ctx context.Context, quizID uuid.UUID, result quiz.AttemptResult) {
	top, err := s.Top(ctx, quizID, 10)
	if err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("result update collection failed")
		return
	}

	evt := Event{
		QuizID: quizID.String(),
		Attempt: ws.AttemptSubmittedPayload{
			QuizID:      quizID.String(),
			AttemptID:   result.AttemptID,
			StudentName: result.StudentName,
			Score:       result.Score,
			MaxScore:    result.MaxScore,
			Pending:     result.PendingReview,
			SubmittedAt: result.SubmittedAt.UTC().Format(time.RFC3339),
		},
		Top: toWSEntries(top),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn().Err(err).Msg("result event marshal failed")
		return
	}
	if err := s.redis.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("result event publish failed")
	}
}

// Forget drops the board and per-attempt metadata for a deleted quiz.
func (s *Service) Forget(ctx context.Context, quizID uuid.UUID) {
	if s.redis == nil {
		return
	}

	members, err := s.redis.ZRange(ctx, s.boardKey(quizID), 0, -1).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("result board read failed")
	}

	keys := make([]string, 0, len(members)+1)
	for _, attemptID := range members {
		keys = append(keys, s.metaKey(quizID, attemptID))
	}
	keys = append(keys, s.boardKey(quizID))

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("result board delete failed")
	}
}

func (s *Service) readMeta(ctx context.Context, quizID, attemptID uuid.UUID) (*Entry, error) {
	data, err := s.redis.HGetAll(ctx, s.metaKey(quizID, attemptID.String())).Result()
	if err != nil {
		return nil, err
	}
	entry := &Entry{AttemptID: attemptID}
	if len(data) == 0 {
		return entry, nil
	}
	entry.StudentName = data["student_name"]
	entry.MaxScore = parseInt(data["max_score"])
	entry.PendingReview = parseInt(data["pending_review"])
	if raw := data["submitted_at"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			entry.SubmittedAt = t
		}
	}
	return entry, nil
}

func (s *Service) boardKey(quizID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", s.prefix, quizID.String())
}

func (s *Service) metaKey(quizID uuid.UUID, attemptID string) string {
	return fmt.Sprintf("%s:%s:meta:%s", s.prefix, quizID.String(), attemptID)
}

func toWSEntries(entries []Entry) []ws.ResultsEntry {
	out := make([]ws.ResultsEntry, 0, len(entries))
	for i, e := range entries {
		out = append(out, ws.ResultsEntry{
			Rank:        i + 1,
			AttemptID:   e.AttemptID.String(),
			StudentName: e.StudentName,
			Score:       e.Score,
			MaxScore:    e.MaxScore,
		})
	}
	return out
}

func parseInt(raw string) int {
	v, _ := strconv.Atoi(raw)
	return v
}
