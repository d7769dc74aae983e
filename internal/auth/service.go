package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/auth/jwt"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/db/repository"
)

// UserStore defines the persistence surface auth needs (implemented by
// repository.UserRepository).
type UserStore interface {
	Create(ctx context.Context, params repository.CreateUserParams) (repository.User, error)
	GetByEmail(ctx context.Context, email string) (repository.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (repository.User, error)
	UpdateLogin(ctx context.Context, userID uuid.UUID) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// Service handles authentication and account management.
type Service struct {
	userRepo UserStore
	tokenMgr *jwt.Manager
	redis    *redis.Client
	emailSvc *EmailService
	logger   zerolog.Logger
}

// ServiceOptions configures the auth service.
type ServiceOptions struct {
	TokenConfig jwt.TokenConfig
	Redis       *redis.Client
	EmailSvc    *EmailService
}

// NewService creates an authentication service.
func NewService(userRepo UserStore, opts ServiceOptions, logger zerolog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		tokenMgr: jwt.NewManager(opts.TokenConfig),
		redis:    opts.Redis,
		emailSvc: opts.EmailSvc,
		logger:   logger,
	}
}

// Register creates a new teacher account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, *TokenPair, error) {
	if req.Email == "" {
		return nil, nil, fmt.Errorf("email required")
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, nil, fmt.Errorf("email already registered")
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Email
	}

	dbUser, err := s.userRepo.Create(ctx, repository.CreateUserParams{
		Email:        &req.Email,
		PasswordHash: &passwordHash,
		DisplayName:  displayName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	user := toDomain(dbUser)
	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("email", req.Email).Msg("user registered")
	return user, tokens, nil
}

// Login authenticates a user with email/password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*User, *TokenPair, error) {
	dbUser, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid credentials")
	}

	if dbUser.PasswordHash == nil {
		// OAuth-only account
		return nil, nil, fmt.Errorf("invalid credentials")
	}
	if err := VerifyPassword(*dbUser.PasswordHash, req.Password); err != nil {
		return nil, nil, fmt.Errorf("invalid credentials")
	}

	user := toDomain(dbUser)

	_ = s.userRepo.UpdateLogin(ctx, user.ID)

	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return user, tokens, nil
}

// RefreshToken generates a new access token from a refresh token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokenMgr.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	dbUser, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}

	return s.generateTokenPair(*toDomain(dbUser))
}

// ValidateToken validates an access token and returns user claims.
func (s *Service) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return s.tokenMgr.ValidateAccessToken(tokenString)
}

// GetUser fetches the account behind a validated token.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	dbUser, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toDomain(dbUser), nil
}

// RequestPasswordReset generates a reset token and sends reset email.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if s.redis == nil {
		return fmt.Errorf("redis not configured for password reset")
	}
	if s.emailSvc == nil {
		return fmt.Errorf("email service not configured")
	}

	dbUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		// Don't reveal whether the account exists
		return nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	tokenJSON, _ := json.Marshal(map[string]string{
		"user_id": dbUser.UserID.String(),
		"email":   email,
	})

	key := fmt.Sprintf("password_reset:%s", token)
	if err := s.redis.Set(ctx, key, tokenJSON, time.Hour).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.emailSvc.SendPasswordResetEmail(ctx, email, token); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info().Str("email", email).Msg("password reset requested")
	return nil
}

// ResetPassword validates the single-use token and updates the password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if s.redis == nil {
		return fmt.Errorf("redis not configured for password reset")
	}

	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	key := fmt.Sprintf("password_reset:%s", token)
	tokenDataJSON, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("invalid or expired reset token")
	}
	if err != nil {
		return fmt.Errorf("get reset token: %w", err)
	}

	var tokenData map[string]string
	if err := json.Unmarshal([]byte(tokenDataJSON), &tokenData); err != nil {
		return fmt.Errorf("decode token data: %w", err)
	}

	userID, err := uuid.Parse(tokenData["user_id"])
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to delete reset token")
	}

	s.logger.Info().Str("user_id", userID.String()).Msg("password reset completed")
	return nil
}

func (s *Service) generateTokenPair(user User) (*TokenPair, error) {
	jwtUser := jwt.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}

	accessToken, err := s.tokenMgr.GenerateAccessToken(jwtUser)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokenMgr.GenerateRefreshToken(jwtUser)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenMgr.AccessTTL().Seconds()),
	}, nil
}

func toDomain(u repository.User) *User {
	return &User{
		ID:          u.UserID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
	}
}
