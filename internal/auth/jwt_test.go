package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/ridelink/internal/user"
)

func newTestTokens() *TokenService {
	return NewTokenService("access-secret", "refresh-secret", time.Hour, 2*time.Hour)
}

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	tokens := newTestTokens()
	pair, err := tokens.Issue("alice", user.RolePassenger)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := tokens.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, string(user.RolePassenger), claims.Role)
}

func TestIssuedPairsAreUnique(t *testing.T) {
	tokens := newTestTokens()
	first, err := tokens.Issue("alice", user.RolePassenger)
	require.NoError(t, err)
	second, err := tokens.Issue("alice", user.RolePassenger)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestSecretsAreNotInterchangeable(t *testing.T) {
	tokens := newTestTokens()
	pair, err := tokens.Issue("alice", user.RolePassenger)
	require.NoError(t, err)

	_, err = tokens.Verify(pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.VerifyRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	claims, err := tokens.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tokens := NewTokenService("access-secret", "refresh-secret", -time.Minute, time.Hour)
	pair, err := tokens.Issue("alice", user.RolePassenger)
	require.NoError(t, err)

	_, err = tokens.Verify(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	other := NewTokenService("other-secret", "other-refresh", time.Hour, time.Hour)
	pair, err := other.Issue("alice", user.RolePassenger)
	require.NoError(t, err)

	_, err = newTestTokens().Verify(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareEnforcesAuthAndRole(t *testing.T) {
	tokens := newTestTokens()
	handler := tokens.Middleware(user.RoleDriver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"username": claims.Username})
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		pair, err := tokens.Issue("alice", user.RolePassenger)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("allowed role", func(t *testing.T) {
		pair, err := tokens.Issue("dave", user.RoleDriver)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"username":"dave"}`, rec.Body.String())
	})
}
