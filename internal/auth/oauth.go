package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/db/repository"
)

// OAuthUserInfo contains user data from the OAuth provider.
type OAuthUserInfo struct {
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// OAuthService handles OAuth flows with full token exchange.
type OAuthService struct {
	googleConfig *oauth2.Config
	logger       zerolog.Logger
	httpClient   *http.Client
}

// NewOAuthService creates an OAuth service with provider credentials.
func NewOAuthService(googleClientID, googleClientSecret, googleRedirectURI string, logger zerolog.Logger) *OAuthService {
	config := &oauth2.Config{
		ClientID:     googleClientID,
		ClientSecret: googleClientSecret,
		RedirectURL:  googleRedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}

	return &OAuthService{
		googleConfig: config,
		logger:       logger,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// StartOAuthFlow generates the authorization URL for Google OAuth.
func (s *OAuthService) StartOAuthFlow(provider, state string) (string, error) {
	if provider != OAuthProviderGoogle {
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	if s.googleConfig == nil || s.googleConfig.ClientID == "" {
		return "", fmt.Errorf("OAuth not configured (missing GOOGLE_OAUTH_CLIENT_ID)")
	}

	authURL := s.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	return authURL, nil
}

// HandleOAuthCallback processes the OAuth callback and exchanges code for user info.
func (s *OAuthService) HandleOAuthCallback(ctx context.Context, provider, code, state string) (*OAuthUserInfo, error) {
	if provider != OAuthProviderGoogle {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	if s.googleConfig == nil {
		return nil, fmt.Errorf("OAuth not configured")
	}

	token, err := s.googleConfig.Exchange(ctx, code)
	if err != nil {
		s.logger.Error().Err(err).Msg("OAuth token exchange failed")
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	userInfoURL := "https://www.googleapis.com/oauth2/v2/userinfo"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info API returned status %d", resp.StatusCode)
	}

	var googleUser struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}

	return &OAuthUserInfo{
		ProviderID: googleUser.ID,
		Email:      googleUser.Email,
		Name:       googleUser.Name,
		AvatarURL:  googleUser.Picture,
	}, nil
}

// CreateOrGetOAuthUser creates an account from OAuth info or returns the existing one.
func (s *OAuthService) CreateOrGetOAuthUser(ctx context.Context, authSvc *Service, provider string, info *OAuthUserInfo) (*User, *TokenPair, error) {
	if info.Email == "" {
		return nil, nil, fmt.Errorf("OAuth provider did not return email")
	}

	if dbUser, err := authSvc.userRepo.GetByEmail(ctx, info.Email); err == nil {
		user := toDomain(dbUser)
		tokens, err := authSvc.generateTokenPair(*user)
		if err != nil {
			return nil, nil, fmt.Errorf("generate tokens: %w", err)
		}
		s.logger.Info().Str("user_id", user.ID.String()).Str("provider", provider).Msg("OAuth user logged in")
		return user, tokens, nil
	}

	metadata, _ := json.Marshal(map[string]string{
		"oauth_provider": provider,
		"oauth_id":       info.ProviderID,
		"avatar_url":     info.AvatarURL,
	})

	displayName := info.Name
	if displayName == "" {
		displayName = info.Email
	}

	dbUser, err := authSvc.userRepo.Create(ctx, repository.CreateUserParams{
		Email:       &info.Email,
		DisplayName: displayName,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create OAuth user: %w", err)
	}

	user := toDomain(dbUser)
	tokens, err := authSvc.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("provider", provider).Msg("OAuth user created")
	return user, tokens, nil
}
