// Package server assembles the HTTP surface of the API service.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/config"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/logging"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/quiz"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/results"
)

// NewHTTPServer wires all routes for the API service. The auth
// middleware only attaches claims; per-handler checks decide which
// routes actually require them, so share-link routes stay public.
func NewHTTPServer(
	cfg *config.App,
	logger zerolog.Logger,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	authSvc *auth.Service,
	authHandlers *auth.HTTPHandlers,
	quizHandlers *quiz.HTTPHandlers,
	quizWSHandler http.HandlerFunc,
	resultsHandler *results.HTTPHandler,
) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.IntoContext(r.Context(), logger)
		if err := pingDependencies(ctx, pool, redisClient); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	// Auth endpoints
	if authHandlers != nil {
		mux.HandleFunc("POST /v1/auth/register", authHandlers.Register)
		mux.HandleFunc("POST /v1/auth/login", authHandlers.Login)
		mux.HandleFunc("POST /v1/auth/refresh", authHandlers.RefreshToken)
		mux.HandleFunc("POST /v1/auth/forgot-password", authHandlers.ForgotPassword)
		mux.HandleFunc("POST /v1/auth/reset-password", authHandlers.ResetPassword)
		mux.HandleFunc("GET /v1/oauth/{provider}/start", authHandlers.OAuthStart)
		mux.HandleFunc("GET /v1/oauth/{provider}/callback", authHandlers.OAuthCallback)
		mux.HandleFunc("GET /v1/users/me", authHandlers.GetMe)
	}

	// Quiz management (owner-side)
	if quizHandlers != nil {
		mux.HandleFunc("POST /v1/quizzes", quizHandlers.Generate)
		mux.HandleFunc("GET /v1/quizzes", quizHandlers.List)
		mux.HandleFunc("GET /v1/quizzes/{id}", quizHandlers.Get)
		mux.HandleFunc("DELETE /v1/quizzes/{id}", quizHandlers.Delete)
		mux.HandleFunc("POST /v1/quizzes/{id}/share", quizHandlers.RotateShare)
		mux.HandleFunc("GET /v1/quizzes/{id}/attempts", quizHandlers.ListAttempts)

		// Student-side share link routes, no authentication
		mux.HandleFunc("GET /v1/shared/{token}", quizHandlers.GetShared)
		mux.HandleFunc("POST /v1/shared/{token}/attempts", quizHandlers.SubmitAttempt)
	}

	if resultsHandler != nil {
		mux.HandleFunc("GET /v1/quizzes/{id}/results", resultsHandler.HandleGet)
	}

	// WebSocket endpoint for live submission watching
	if quizWSHandler != nil {
		mux.HandleFunc("/ws/quizzes", quizWSHandler)
	}

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})

	var handler http.Handler = mux
	handler = auth.Middleware(authSvc, logger)(handler)
	handler = corsMiddleware.Handler(handler)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redisClient *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}
	return nil
}
