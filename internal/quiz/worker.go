package quiz

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ImageWorker drains the retry queue and backfills real images for
// quizzes that shipped with placeholders.
type ImageWorker struct {
	service   *Service
	timeout   time.Duration
	delay     time.Duration
	logger    zerolog.Logger
	shutdownC chan struct{}
}

func NewImageWorker(service *Service, timeout time.Duration, logger zerolog.Logger) *ImageWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ImageWorker{
		service:   service,
		timeout:   timeout,
		delay:     15 * time.Second,
		logger:    logger.With().Str("component", "image_worker").Logger(),
		shutdownC: make(chan struct{}),
	}
}

func (w *ImageWorker) Run() {
	for {
		select {
		case <-w.shutdownC:
			w.logger.Info().Msg("image worker stopping")
			return
		case job := <-w.service.retryC:
			w.handle(job)
			// space out retries so a flapping image backend is not hammered
			select {
			case <-w.shutdownC:
			case <-time.After(w.delay):
			}
		}
	}
}

func (w *ImageWorker) handle(job imageRetry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.service.retryImages(ctx, job); err != nil {
		w.logger.Warn().Err(err).Str("quiz_id", job.quizID.String()).Msg("image backfill failed")
	}
}

func (w *ImageWorker) Stop() {
	close(w.shutdownC)
}
