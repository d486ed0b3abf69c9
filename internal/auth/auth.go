// Package auth signs users up and in, and manages the explicit Session object
// that every ledger operation receives.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smartledger/internal/core"
	"smartledger/internal/log"
	"smartledger/internal/ports"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

var (
	ErrEmailInUse        = errors.New("email already in use")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrWeakPassword      = errors.New("weak password")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidSession    = errors.New("invalid or expired session")
)

// Session is the authenticated context of one signed-in user. It is created
// by SignUp/SignIn/Restore and invalidated by SignOut.
type Session struct {
	ID        string    `json:"-"`
	User      core.User `json:"user"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserID is a nil-safe accessor for the session owner.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.User.ID
}

type Service struct {
	users    ports.UserStore
	sessions ports.SessionStore
	secret   []byte
	ttl      time.Duration
	cost     int
	now      func() time.Time
	logger   *log.Logger
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users ports.UserStore, sessions ports.SessionStore, secret []byte, ttl time.Duration, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Service{
		users:    users,
		sessions: sessions,
		secret:   secret,
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SignUp registers a user and opens a session. The display name defaults to
// the local part of the email.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	rec := ports.UserRecord{
		User: core.User{
			ID:    uuid.NewString(),
			Email: email,
			Name:  core.DisplayNameFor(name, email),
		},
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, rec); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "User signed up", log.FieldUserID, rec.ID)
	return s.open(ctx, rec.User)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	rec, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, rec.ID)
	return s.open(ctx, rec.User)
}

func (s *Service) open(ctx context.Context, u core.User) (*Session, error) {
	now := s.now()
	rec := ports.SessionRecord{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        rec.ID,
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(rec.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
	}).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := s.sessions.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{ID: rec.ID, User: u, Token: token, IssuedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, nil
}

// Restore rebuilds the session a token refers to. Tokens whose session row is
// gone (signed out or purged) are rejected even when their signature is valid.
func (s *Service) Restore(ctx context.Context, token string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	rec, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec.UserID != claims.Subject || !s.now().Before(rec.ExpiresAt) {
		return nil, ErrInvalidSession
	}
	user, err := s.users.UserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &Session{ID: rec.ID, User: user.User, Token: token, IssuedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, nil
}

// SignOut invalidates the session. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.InfoContext(ctx, "User signed out", log.FieldUserID, sess.User.ID)
	return nil
}

// PurgeExpired drops expired session rows.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, s.now())
}

// UserMessage maps an authentication error to the fixed text shown to users.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmailInUse):
		return "This email is already registered."
	case errors.Is(err, ErrInvalidCredential):
		return "Invalid email or password."
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 6 characters."
	default:
		return "Authentication failed. Please try again."
	}
}

type sessionKey struct{}

// WithSession stores the session in ctx. Only the HTTP layer uses this to hand
// the session from middleware to handlers.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored by WithSession.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
