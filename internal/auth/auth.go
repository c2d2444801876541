// Package auth issues and validates the tokens that identify a user. Other
// packages only ever see the user ID that comes out of ValidateAccessToken.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailTaken         = errors.New("email already registered")
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// EventKind names a session lifecycle transition.
type EventKind string

const (
	EventRegistered     EventKind = "registered"
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
)

// Event is emitted after a successful lifecycle transition.
type Event struct {
	Kind   EventKind
	UserID uuid.UUID
	At     time.Time
}

// Listener receives lifecycle events. It runs synchronously on the caller's
// goroutine and must not block.
type Listener func(Event)

// Store is the persistence the auth service needs.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveRefreshToken(ctx context.Context, rt *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string, at time.Time) error
}

var _ Store = (*storage.DB)(nil)

type Claims struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// Tokens is the pair handed to a client after sign-in.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Service struct {
	store      Store
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *slog.Logger
	listeners  []Listener
	now        func() time.Time
}

func NewService(store Store, secret string, accessTTL, refreshTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		store:      store,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log,
		now:        time.Now,
	}
}

// OnEvent registers l for lifecycle events.
func (s *Service) OnEvent(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Service) emit(kind EventKind, userID uuid.UUID) {
	ev := Event{Kind: kind, UserID: userID, At: s.now()}
	for _, l := range s.listeners {
		l(ev)
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, Tokens, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, Tokens{}, fmt.Errorf("%w: email and password required", models.ErrInvalid)
	}
	if len(req.Password) < 8 {
		return nil, Tokens{}, fmt.Errorf("%w: password must be at least 8 characters", models.ErrInvalid)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Tokens{}, fmt.Errorf("hashing password: %w", err)
	}

	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, Tokens{}, ErrEmailTaken
		}
		s.log.Error("registering user", "email", email, "error", err)
		return nil, Tokens{}, err
	}

	tokens, err := s.issue(ctx, u.ID)
	if err != nil {
		return nil, Tokens{}, err
	}
	s.emit(EventRegistered, u.ID)
	return u, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*models.User, Tokens, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, Tokens{}, ErrInvalidCredentials
	}
	if err != nil {
		return nil, Tokens{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, Tokens{}, ErrInvalidCredentials
	}

	tokens, err := s.issue(ctx, u.ID)
	if err != nil {
		return nil, Tokens{}, err
	}
	s.emit(EventSignedIn, u.ID)
	return u, tokens, nil
}

// Refresh exchanges a live refresh token for a new pair and revokes the old one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	userID, err := s.checkRefresh(ctx, refreshToken)
	if err != nil {
		return Tokens{}, err
	}
	if err := s.store.RevokeRefreshToken(ctx, refreshToken, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Tokens{}, ErrInvalidToken
		}
		return Tokens{}, err
	}

	tokens, err := s.issue(ctx, userID)
	if err != nil {
		return Tokens{}, err
	}
	s.emit(EventTokenRefreshed, userID)
	return tokens, nil
}

// Logout revokes a refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	userID, err := s.checkRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.store.RevokeRefreshToken(ctx, refreshToken, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	s.emit(EventSignedOut, userID)
	return nil
}

// User returns the account behind userID.
func (s *Service) User(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.store.GetUser(ctx, userID)
}

// ValidateAccessToken returns the user an access token was issued to.
func (s *Service) ValidateAccessToken(token string) (uuid.UUID, error) {
	claims, err := s.parseToken(token, kindAccess)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.UserID)
}

func (s *Service) checkRefresh(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := s.parseToken(token, kindRefresh)
	if err != nil {
		return uuid.Nil, err
	}
	rt, err := s.store.GetRefreshToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return uuid.Nil, ErrInvalidToken
	}
	if err != nil {
		return uuid.Nil, err
	}
	if rt.RevokedAt != nil || s.now().After(rt.ExpiresAt) || rt.UserID.String() != claims.UserID {
		return uuid.Nil, ErrInvalidToken
	}
	return rt.UserID, nil
}

func (s *Service) issue(ctx context.Context, userID uuid.UUID) (Tokens, error) {
	access, err := s.signToken(userID, kindAccess, s.accessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.signToken(userID, kindRefresh, s.refreshTTL)
	if err != nil {
		return Tokens{}, err
	}

	if err := s.store.SaveRefreshToken(ctx, &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     refresh,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}); err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) signToken(userID uuid.UUID, kind string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID.String(),
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (s *Service) parseToken(token, kind string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
