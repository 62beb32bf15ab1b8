package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"lembas/internal/auth"
	"lembas/internal/config"
	"lembas/internal/models"
	"lembas/internal/storage"
)

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	ErrInvalidJoinCode    = errors.New("join code is invalid, expired or exhausted")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidRole        = errors.New("invalid role")
)

// AuthService defines the interface for account and join-code operations.
type AuthService interface {
	Signup(ctx context.Context, username, password, joinCode string) (*models.User, string, error)
	Login(ctx context.Context, username, password string) (*models.User, string, error)
	Logout(ctx context.Context, claims *auth.Claims) error

	// EnsureOwnerJoinCode guarantees a way into an empty instance: when no
	// owner account exists, it returns a valid owner join code (creating
	// one if needed). The second return reports whether bootstrap applies.
	EnsureOwnerJoinCode(ctx context.Context) (string, bool, error)

	CreateJoinCode(ctx context.Context, actor models.Actor, role models.Role, maxUses int, expiresAt *time.Time) (*models.JoinCode, error)
	ListJoinCodes(ctx context.Context, actor models.Actor) ([]models.JoinCode, error)
	DeleteJoinCode(ctx context.Context, actor models.Actor, code string) error
}

type authService struct {
	store     storage.Store
	blacklist auth.TokenBlacklist
	authCfg   config.AuthConfig
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(store storage.Store, blacklist auth.TokenBlacklist, authCfg config.AuthConfig) AuthService {
	return &authService{store: store, blacklist: blacklist, authCfg: authCfg}
}

var joinCodeStripper = regexp.MustCompile(`[^A-Z0-9]`)

// NormalizeJoinCode uppercases the input and strips everything outside
// A-Z0-9, so codes survive being read over the phone with dashes or spaces.
func NormalizeJoinCode(raw string) string {
	return joinCodeStripper.ReplaceAllString(strings.ToUpper(raw), "")
}

const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateJoinCode mints a random 7-character invite code.
func GenerateJoinCode() (string, error) {
	buf := make([]byte, models.JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate join code: %w", err)
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf), nil
}

// Signup creates an account using a join code. The code determines the new
// account's role and is consumed atomically with the account creation;
// exhausted codes are removed.
func (s *authService) Signup(ctx context.Context, username, password, joinCode string) (*models.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, "", ErrUsernameRequired
	}
	if len(password) < auth.MinPasswordLength {
		return nil, "", ErrPasswordTooShort
	}

	code := NormalizeJoinCode(joinCode)
	if len(code) != models.JoinCodeLength {
		return nil, "", ErrInvalidJoinCode
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Username: username, PasswordHash: hash}
	txErr := s.store.Transaction(ctx, func(tx storage.Store) error {
		record, err := tx.JoinCodes().GetByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to look up join code: %w", err)
		}
		if record == nil || record.Exhausted() || record.Expired(time.Now()) {
			return ErrInvalidJoinCode
		}

		existing, err := tx.Users().GetByUsername(ctx, username)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check username availability: %w", err)
		}
		if existing != nil {
			return ErrUsernameTaken
		}

		user.Role = record.Role
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		if err := tx.JoinCodes().IncrementUse(ctx, code); err != nil {
			return fmt.Errorf("failed to consume join code: %w", err)
		}
		if record.UsedCount+1 >= record.MaxUses {
			if err := tx.JoinCodes().Delete(ctx, code); err != nil {
				return fmt.Errorf("failed to remove exhausted join code: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, "", txErr
	}

	token, err := auth.GenerateToken(user, s.authCfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token after signup: %w", err)
	}

	log.Printf("New %s account %q (id %d) signed up", user.Role, user.Username, user.ID)
	return user, token, nil
}

// Login verifies credentials and issues a JWT. Unknown username and wrong
// password are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.store.Users().GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to load user for login: %w", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user, s.authCfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}

// Logout revokes the session's JWT by blacklisting its JTI until the token
// would have expired on its own.
func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *authService) EnsureOwnerJoinCode(ctx context.Context) (string, bool, error) {
	owners, err := s.store.Users().CountByRole(ctx, models.RoleOwner)
	if err != nil {
		return "", false, fmt.Errorf("failed to count owner accounts: %w", err)
	}
	if owners > 0 {
		return "", false, nil
	}

	existing, err := s.store.JoinCodes().ListByRole(ctx, models.RoleOwner)
	if err != nil {
		return "", false, fmt.Errorf("failed to list owner join codes: %w", err)
	}
	now := time.Now()
	for i := range existing {
		if !existing[i].Exhausted() && !existing[i].Expired(now) {
			return existing[i].Code, true, nil
		}
	}

	code, err := GenerateJoinCode()
	if err != nil {
		return "", false, err
	}
	record := &models.JoinCode{Code: code, Role: models.RoleOwner, MaxUses: 1}
	if err := s.store.JoinCodes().Create(ctx, record); err != nil {
		return "", false, fmt.Errorf("failed to create owner join code: %w", err)
	}
	return code, true, nil
}

func (s *authService) CreateJoinCode(ctx context.Context, actor models.Actor, role models.Role, maxUses int, expiresAt *time.Time) (*models.JoinCode, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	// Only the owner may mint codes that grant elevated roles.
	if role != models.RoleUser && actor.Role != models.RoleOwner {
		return nil, ErrOwnerOnly
	}
	if maxUses <= 0 {
		maxUses = 1
	}

	code, err := GenerateJoinCode()
	if err != nil {
		return nil, err
	}
	createdBy := actor.ID
	record := &models.JoinCode{
		Code:      code,
		Role:      role,
		CreatedBy: &createdBy,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
	}
	if err := s.store.JoinCodes().Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create join code: %w", err)
	}
	return record, nil
}

func (s *authService) ListJoinCodes(ctx context.Context, actor models.Actor) ([]models.JoinCode, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrAdminOnly
	}
	codes, err := s.store.JoinCodes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list join codes: %w", err)
	}
	return codes, nil
}

func (s *authService) DeleteJoinCode(ctx context.Context, actor models.Actor, code string) error {
	if !actor.Role.IsAdmin() {
		return ErrAdminOnly
	}
	if err := s.store.JoinCodes().Delete(ctx, NormalizeJoinCode(code)); err != nil {
		return fmt.Errorf("failed to delete join code: %w", err)
	}
	return nil
}
