package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lembas/internal/auth"
	"lembas/internal/config"
	"lembas/internal/models"
)

var testAuthCfg = config.AuthConfig{
	JWTSecretKey: "test-secret",
	JWTExpiry:    time.Hour,
}

// fakeBlacklist records revoked JTIs in memory.
type fakeBlacklist struct {
	revoked map[string]bool
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]bool)}
}

func (b *fakeBlacklist) Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error {
	b.revoked[jti] = true
	return nil
}

func (b *fakeBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return b.revoked[jti], nil
}

func newAuthFixture(t *testing.T) (*fakeStore, *fakeBlacklist, AuthService) {
	t.Helper()
	store := newFakeStore()
	blacklist := newFakeBlacklist()
	return store, blacklist, NewAuthService(store, blacklist, testAuthCfg)
}

func seedJoinCode(store *fakeStore, code string, role models.Role, maxUses int) *models.JoinCode {
	record := &models.JoinCode{Code: code, Role: role, MaxUses: maxUses}
	store.joinCodes[code] = record
	return record
}

func TestNormalizeJoinCode(t *testing.T) {
	assert.Equal(t, "ABC1234", NormalizeJoinCode("abc-1234"))
	assert.Equal(t, "ABC1234", NormalizeJoinCode(" ABC 1234 "))
	assert.Equal(t, "", NormalizeJoinCode("---"))
}

func TestGenerateJoinCode(t *testing.T) {
	code, err := GenerateJoinCode()
	require.NoError(t, err)
	assert.Len(t, code, models.JoinCodeLength)
	assert.Equal(t, code, NormalizeJoinCode(code))
}

func TestSignup(t *testing.T) {
	store, _, svc := newAuthFixture(t)
	seedJoinCode(store, "ABC1234", models.RoleUser, 1)

	// The code survives dashes and lowercase as typed by humans.
	user, token, err := svc.Signup(context.Background(), "alice", "longenough", "abc-1234")
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "longenough", user.PasswordHash)

	claims, err := auth.ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, nil)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)

	// A single-use code is gone after consumption.
	assert.NotContains(t, store.joinCodes, "ABC1234")
}

func TestSignup_CodeGrantsItsRole(t *testing.T) {
	store, _, svc := newAuthFixture(t)
	seedJoinCode(store, "ADMCODE", models.RoleAdmin, 1)

	user, _, err := svc.Signup(context.Background(), "root", "longenough", "ADMCODE")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestSignup_MultiUseCodeSurvives(t *testing.T) {
	store, _, svc := newAuthFixture(t)
	seedJoinCode(store, "ABC1234", models.RoleUser, 2)

	_, _, err := svc.Signup(context.Background(), "alice", "longenough", "ABC1234")
	require.NoError(t, err)
	assert.Contains(t, store.joinCodes, "ABC1234")
	assert.Equal(t, 1, store.joinCodes["ABC1234"].UsedCount)

	_, _, err = svc.Signup(context.Background(), "bob", "longenough", "ABC1234")
	require.NoError(t, err)
	assert.NotContains(t, store.joinCodes, "ABC1234")
}

func TestSignup_Validation(t *testing.T) {
	store, _, svc := newAuthFixture(t)
	seedJoinCode(store, "ABC1234", models.RoleUser, 1)

	_, _, err := svc.Signup(context.Background(), "   ", "longenough", "ABC1234")
	assert.ErrorIs(t, err, ErrUsernameRequired)

	_, _, err = svc.Signup(context.Background(), "alice", "short", "ABC1234")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, _, err = svc.Signup(context.Background(), "alice", "longenough", "WRONG77")
	assert.ErrorIs(t, err, ErrInvalidJoinCode)

	_, _, err = svc.Signup(context.Background(), "alice", "longenough", "tooshort-to-be-a-code-after-stripping!!!!")
	assert.ErrorIs(t, err, ErrInvalidJoinCode)
}

func TestSignup_ExpiredAndExhaustedCodes(t *testing.T) {
	store, _, svc := newAuthFixture(t)

	past := time.Now().Add(-time.Hour)
	expired := seedJoinCode(store, "EXPIRED", models.RoleUser, 1)
	expired.ExpiresAt = &past

	exhausted := seedJoinCode(store, "USEDUP7", models.RoleUser, 1)
	exhausted.UsedCount = 1

	_, _, err := svc.Signup(context.Background(), "alice", "longenough", "EXPIRED")
	assert.ErrorIs(t, err, ErrInvalidJoinCode)

	_, _, err = svc.Signup(context.Background(), "alice", "longenough", "USEDUP7")
	assert.ErrorIs(t, err, ErrInvalidJoinCode)
}

func TestSignup_UsernameTaken(t *testing.T) {
	store, _, svc := newAuthFixture(t)
	store.addUser("alice", models.RoleUser)
	seedJoinCode(store, "ABC1234", models.RoleUser, 1)

	_, _, err := svc.Signup(context.Background(), "alice", "longenough", "ABC1234")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// The code must not be consumed by the failed attempt.
	assert.Contains(t, store.joinCodes, "ABC1234")
	assert.Equal(t, 0, store.joinCodes["ABC1234"].UsedCount)
}

func TestLogin(t *testing.T) {
	store, _, svc := newAuthFixture(t)
	seedJoinCode(store, "ABC1234", models.RoleUser, 1)
	_, _, err := svc.Signup(context.Background(), "alice", "longenough", "ABC1234")
	require.NoError(t, err)

	user, token, err := svc.Login(context.Background(), "alice", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, token)

	// Unknown username and wrong password are indistinguishable.
	_, _, err = svc.Login(context.Background(), "alice", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "nobody", "longenough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogout_RevokesToken(t *testing.T) {
	store, blacklist, svc := newAuthFixture(t)
	seedJoinCode(store, "ABC1234", models.RoleUser, 1)
	_, token, err := svc.Signup(context.Background(), "alice", "longenough", "ABC1234")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, blacklist)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), claims))

	_, err = auth.ValidateToken(context.Background(), token, testAuthCfg.JWTSecretKey, blacklist)
	assert.Error(t, err)
}

func TestEnsureOwnerJoinCode(t *testing.T) {
	store, _, svc := newAuthFixture(t)

	code, needed, err := svc.EnsureOwnerJoinCode(context.Background())
	require.NoError(t, err)
	assert.True(t, needed)
	assert.Len(t, code, models.JoinCodeLength)
	require.Contains(t, store.joinCodes, code)
	assert.Equal(t, models.RoleOwner, store.joinCodes[code].Role)

	// Calling again reuses the existing code instead of minting another.
	again, needed, err := svc.EnsureOwnerJoinCode(context.Background())
	require.NoError(t, err)
	assert.True(t, needed)
	assert.Equal(t, code, again)

	// Once an owner exists, bootstrap no longer applies.
	store.addUser("admin", models.RoleOwner)
	_, needed, err = svc.EnsureOwnerJoinCode(context.Background())
	require.NoError(t, err)
	assert.False(t, needed)
}

func TestCreateJoinCode_Guards(t *testing.T) {
	_, _, svc := newAuthFixture(t)
	ownerActor := models.Actor{ID: 1, Role: models.RoleOwner}
	adminActor := models.Actor{ID: 2, Role: models.RoleAdmin}
	userActor := models.Actor{ID: 3, Role: models.RoleUser}

	_, err := svc.CreateJoinCode(context.Background(), userActor, models.RoleUser, 1, nil)
	assert.ErrorIs(t, err, ErrAdminOnly)

	_, err = svc.CreateJoinCode(context.Background(), ownerActor, models.Role("superuser"), 1, nil)
	assert.ErrorIs(t, err, ErrInvalidRole)

	// Admins may invite regular users, not other admins.
	_, err = svc.CreateJoinCode(context.Background(), adminActor, models.RoleAdmin, 1, nil)
	assert.ErrorIs(t, err, ErrOwnerOnly)

	code, err := svc.CreateJoinCode(context.Background(), adminActor, models.RoleUser, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, code.MaxUses)
	require.NotNil(t, code.CreatedBy)
	assert.Equal(t, adminActor.ID, *code.CreatedBy)

	elevated, err := svc.CreateJoinCode(context.Background(), ownerActor, models.RoleAdmin, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, elevated.Role)
	assert.Equal(t, 5, elevated.MaxUses)
}

func TestListAndDeleteJoinCodes(t *testing.T) {
	store, _, svc := newAuthFixture(t)
	seedJoinCode(store, "ABC1234", models.RoleUser, 1)
	adminActor := models.Actor{ID: 1, Role: models.RoleAdmin}
	userActor := models.Actor{ID: 2, Role: models.RoleUser}

	_, err := svc.ListJoinCodes(context.Background(), userActor)
	assert.ErrorIs(t, err, ErrAdminOnly)

	codes, err := svc.ListJoinCodes(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Len(t, codes, 1)

	assert.ErrorIs(t, svc.DeleteJoinCode(context.Background(), userActor, "ABC1234"), ErrAdminOnly)

	// Deletion normalizes the code the same way signup does.
	require.NoError(t, svc.DeleteJoinCode(context.Background(), adminActor, "abc-1234"))
	assert.NotContains(t, store.joinCodes, "ABC1234")
}
