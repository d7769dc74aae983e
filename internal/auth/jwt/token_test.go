package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		Issuer:        "quizgen-test",
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	mgr := testManager()
	email := "teacher@example.com"
	user := User{ID: uuid.New(), Email: &email, DisplayName: "Ms. Frizzle"}

	token, err := mgr.GenerateAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, email, claims.Email)
	assert.Equal(t, "Ms. Frizzle", claims.DisplayName)
	assert.Equal(t, "quizgen-test", claims.Issuer)
}

func TestRefreshTokenNotValidAsAccess(t *testing.T) {
	mgr := testManager()
	user := User{ID: uuid.New(), DisplayName: "Teacher"}

	refresh, err := mgr.GenerateRefreshToken(user)
	require.NoError(t, err)

	_, err = mgr.ValidateAccessToken(refresh)
	assert.Error(t, err)

	claims, err := mgr.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestExpiredTokenRejected(t *testing.T) {
	mgr := NewManager(TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     -time.Minute,
	})

	token, err := mgr.GenerateAccessToken(User{ID: uuid.New(), DisplayName: "Teacher"})
	require.NoError(t, err)

	_, err = mgr.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestTamperedTokenRejected(t *testing.T) {
	mgr := testManager()
	token, err := mgr.GenerateAccessToken(User{ID: uuid.New(), DisplayName: "Teacher"})
	require.NoError(t, err)

	_, err = mgr.ValidateAccessToken(token + "x")
	assert.Error(t, err)
}
