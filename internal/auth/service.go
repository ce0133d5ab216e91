package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/ridelink/internal/user"
	"github.com/example/ridelink/internal/validate"
)

// ErrInvalidCredentials is returned for a wrong username or password. The
// message never says which, to avoid leaking which usernames exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionStore keeps the refresh token currently valid for each user, so a
// stolen refresh token stops working once the legitimate session rotates.
type SessionStore interface {
	Save(ctx context.Context, username, refreshToken string, ttl time.Duration) error
	Validate(ctx context.Context, username, refreshToken string) (bool, error)
	Delete(ctx context.Context, username string) error
}

// Service implements signup, login and refresh-token rotation.
type Service struct {
	users    user.Repository
	tokens   *TokenService
	sessions SessionStore
}

// NewService constructs the auth service.
func NewService(users user.Repository, tokens *TokenService, sessions SessionStore) *Service {
	return &Service{users: users, tokens: tokens, sessions: sessions}
}

// SignupRequest is the signup payload before validation.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Signup registers a new account and returns its first token pair.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (TokenPair, error) {
	if err := validateSignup(req); err != nil {
		return TokenPair{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	u := user.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         user.Role(req.Role),
	}
	if _, err := s.users.Insert(ctx, u); err != nil {
		return TokenPair{}, err
	}
	return s.issue(ctx, u.Username, u.Role)
}

// Login verifies credentials and returns a fresh token pair.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issue(ctx, u.Username, u.Role)
}

// Refresh rotates a valid refresh token into a new pair. The presented
// token must match the stored session; rotation invalidates it.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	ok, err := s.sessions.Validate(ctx, claims.Username, refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("validate session: %w", err)
	}
	if !ok {
		return TokenPair{}, ErrInvalidToken
	}
	return s.issue(ctx, claims.Username, user.Role(claims.Role))
}

func (s *Service) issue(ctx context.Context, username string, role user.Role) (TokenPair, error) {
	pair, err := s.tokens.Issue(username, role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.sessions.Save(ctx, username, pair.RefreshToken, s.tokens.RefreshTTL()); err != nil {
		return TokenPair{}, fmt.Errorf("save session: %w", err)
	}
	return pair, nil
}

func validateSignup(req SignupRequest) error {
	fields := make(map[string]string)
	if len(req.Username) < 3 {
		fields["username"] = "must be at least 3 characters long"
	}
	if len(req.Password) < 6 {
		fields["password"] = "must be at least 6 characters long"
	} else if !strings.ContainsAny(req.Password, `!@#$%^&*(),.?":{}|<>`) {
		fields["password"] = "must contain at least one special character"
	}
	if !user.Role(req.Role).Valid() {
		fields["role"] = "must be passenger or driver"
	}
	if len(fields) > 0 {
		return &validate.Error{Fields: fields}
	}
	return nil
}
