package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slotswapper/slotswapper-api/internal/models"
)

type userRepoStub struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (r *userRepoStub) Create(ctx context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (r *userRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	r.tokens[token.Token] = token
	return nil
}

func (r *userRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := r.tokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (r *userRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range r.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *userRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, token := range r.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func newTestAuthService(repo *userRepoStub) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "slotswapper-test",
	})
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)

	registered, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, registered.AccessToken)
	require.NotEmpty(t, registered.RefreshToken)
	require.Equal(t, "Alice", registered.User.Name)

	loggedIn, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, loggedIn.AccessToken)

	claims, err := svc.ValidateToken(loggedIn.AccessToken)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, claims.UserID)
	require.Equal(t, "alice@example.com", claims.Email)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Impostor",
		Email:    "alice@example.com",
		Password: "hunter22",
	})
	requireCode(t, err, "CONFLICT")
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	requireCode(t, err, "INVALID_CREDENTIALS")
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newTestAuthService(newUserRepoStub())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	requireCode(t, err, "INVALID_CREDENTIALS")
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)

	registered, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: registered.RefreshToken,
	})
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	// The consumed token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: registered.RefreshToken,
	})
	requireCode(t, err, "UNAUTHORIZED")
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)

	registered, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(registered.AccessToken + "x")
	requireCode(t, err, "UNAUTHORIZED")
}

func TestAuthServiceMe(t *testing.T) {
	repo := newUserRepoStub()
	svc := newTestAuthService(repo)

	registered, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	info, err := svc.Me(context.Background(), registered.User.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", info.Name)

	_, err = svc.Me(context.Background(), "missing")
	requireCode(t, err, "NOT_FOUND")
}
