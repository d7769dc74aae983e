// Package app bootstraps and runs the API service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth/jwt"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/config"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/db/repository"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/logging"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/quiz"
	quizgen "github.com/Vinandra-Adam-Saputra/quizgen/internal/quiz/gen"
	quizimage "github.com/Vinandra-Adam-Saputra/quizgen/internal/quiz/image"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/results"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/server"
	ws "github.com/Vinandra-Adam-Saputra/quizgen/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	broadcaster *results.Broadcaster
	imageWorker *quiz.ImageWorker
	bgCancels   []context.CancelFunc
}

// New bootstraps config, logger, Postgres, Redis and every service the
// HTTP server needs.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	userRepo := repository.NewUserRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY must be configured")
	}

	var emailSvc *auth.EmailService
	if cfg.SMTP.Host != "" {
		emailSvc = auth.NewEmailService(auth.EmailConfig{
			SMTPHost:     cfg.SMTP.Host,
			SMTPPort:     cfg.SMTP.Port,
			SMTPUsername: cfg.SMTP.Username,
			SMTPPassword: cfg.SMTP.Password,
			FromEmail:    cfg.SMTP.FromEmail,
			BaseURL:      cfg.PublicBaseURL,
		}, logger)
	} else {
		logger.Warn().Msg("SMTP not configured; password reset emails disabled")
	}

	authSvc := auth.NewService(userRepo, auth.ServiceOptions{
		TokenConfig: jwt.TokenConfig{
			AccessSecret:  []byte(cfg.Security.JWTSecret),
			RefreshSecret: []byte(cfg.Security.JWTSecret + "_refresh"),
			Issuer:        cfg.Name,
		},
		Redis:    redisClient,
		EmailSvc: emailSvc,
	}, logger)

	var oauthSvc *auth.OAuthService
	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		redirectURL := cfg.OAuth.GoogleRedirectURL
		if redirectURL == "" {
			redirectURL = fmt.Sprintf("http://%s/v1/oauth/google/callback", cfg.HTTPAddr)
		}
		oauthSvc = auth.NewOAuthService(
			cfg.OAuth.GoogleClientID,
			cfg.OAuth.GoogleClientSecret,
			redirectURL,
			logger,
		)
	} else {
		logger.Warn().Msg("OAuth not configured (missing GOOGLE_OAUTH_CLIENT_ID or GOOGLE_OAUTH_CLIENT_SECRET)")
	}
	authHandlers := auth.NewHTTPHandlers(authSvc, oauthSvc, logger)

	generator := quizgen.NewClient(cfg.Gemini, logger)
	imageClient := quizimage.NewClient(cfg.Images, logger)
	shareSigner := quiz.NewShareTokenSigner(cfg.Security.ShareHMACSecret)
	shareCache := quiz.NewShareCache(redisClient, cfg.Quiz.ShareCacheTTL, logger)
	resultsSvc := results.NewService(redisClient, logger, results.ServiceOptions{
		TopN: cfg.Quiz.ResultsTopN,
	})

	quizSvc := quiz.NewService(
		quizRepo,
		attemptRepo,
		generator,
		imageClient,
		shareSigner,
		shareCache,
		resultsSvc,
		cfg.Images.RetryQueue,
		cfg.Quiz,
		logger,
	)

	wsHub := ws.NewHub(logger)
	quizWSHandler := quiz.NewWSHandler(quizSvc, wsHub, authSvc, logger)
	quizHandlers := quiz.NewHTTPHandlers(quizSvc, cfg.PublicBaseURL, logger)
	resultsHandler := results.NewHTTPHandler(resultsSvc, quizSvc, logger)
	broadcaster := results.NewBroadcaster(redisClient, wsHub, "", logger)
	imageWorker := quiz.NewImageWorker(quizSvc, cfg.Images.HTTPTimeout, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient,
		authSvc, authHandlers, quizHandlers, quizWSHandler.HandleWebSocket, resultsHandler)

	return &Application{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redis:       redisClient,
		http:        apiServer,
		broadcaster: broadcaster,
		imageWorker: imageWorker,
		bgCancels:   make([]context.CancelFunc, 0, 2),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.imageWorker.Stop()
	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.broadcaster != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.broadcaster.Run(bgCtx); err != nil && err != context.Canceled {
				a.logger.Warn().Err(err).Msg("results broadcaster stopped")
			}
		}()
	}

	if a.imageWorker != nil {
		go a.imageWorker.Run()
	}
}
