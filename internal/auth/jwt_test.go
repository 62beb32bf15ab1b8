package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lembas/internal/config"
	"lembas/internal/models"
)

var testAuthCfg = config.AuthConfig{
	JWTSecretKey: "test-secret",
	JWTExpiry:    time.Hour,
}

type memoryBlacklist struct {
	revoked map[string]bool
}

func (b *memoryBlacklist) Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error {
	b.revoked[jti] = true
	return nil
}

func (b *memoryBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return b.revoked[jti], nil
}

func testUser() *models.User {
	user := &models.User{Username: "alice", Role: models.RoleAdmin}
	user.ID = 42
	return user
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(testUser(), testAuthCfg)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, nil)
	require.NoError(t, err)

	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)

	actor := claims.Actor()
	assert.Equal(t, uint(42), actor.ID)
	assert.False(t, actor.Anonymous())
}

func TestValidateToken_WrongKey(t *testing.T) {
	token, err := GenerateToken(testUser(), testAuthCfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, "a-different-key", nil)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	expiredCfg := config.AuthConfig{JWTSecretKey: testAuthCfg.JWTSecretKey, JWTExpiry: -time.Minute}
	token, err := GenerateToken(testUser(), expiredCfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, nil)
	assert.Error(t, err)
}

func TestValidateToken_Revoked(t *testing.T) {
	blacklist := &memoryBlacklist{revoked: make(map[string]bool)}

	token, err := GenerateToken(testUser(), testAuthCfg)
	require.NoError(t, err)

	claims, err := ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, blacklist)
	require.NoError(t, err)

	require.NoError(t, blacklist.Add(context.Background(), claims.ID, claims.ExpiresAt.Time))

	_, err = ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, blacklist)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.True(t, CheckPasswordHash("correct horse battery", hash))
	assert.False(t, CheckPasswordHash("wrong password", hash))
	assert.False(t, CheckPasswordHash("", hash))
}
