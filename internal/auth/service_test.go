package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/ridelink/internal/auth/session"
	"github.com/example/ridelink/internal/user"
	"github.com/example/ridelink/internal/validate"
)

func newTestService(t *testing.T) (*Service, *session.MemoryStore) {
	t.Helper()
	sessions := session.NewMemoryStore()
	svc := NewService(user.NewMemoryRepository(), newTestTokens(), sessions)
	return svc, sessions
}

func TestSignupIssuesTokensAndSavesSession(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret!", Role: "passenger"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	ok, err := sessions.Validate(ctx, "alice", pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Signup(context.Background(), SignupRequest{Username: "al", Password: "short", Role: "pilot"})
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "username")
	require.Contains(t, verr.Fields, "password")
	require.Contains(t, verr.Fields, "role")
}

func TestSignupRequiresSpecialCharacter(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Signup(context.Background(), SignupRequest{Username: "alice", Password: "longenough", Role: "passenger"})
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields["password"], "special character")
}

func TestSignupDuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret!", Role: "passenger"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret!", Role: "driver"})
	require.ErrorIs(t, err, user.ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret!", Role: "passenger"})
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "alice", "secret!")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "secret!")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()

	first, err := svc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret!", Role: "passenger"})
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// Rotation invalidates the previous refresh token.
	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	ok, err := sessions.Validate(ctx, "alice", second.RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRejectsSupersededSession(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret!", Role: "passenger"})
	require.NoError(t, err)

	// Another device logged in and became the current session.
	require.NoError(t, sessions.Save(ctx, "alice", "newer-token", time.Hour))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}
