package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/obs"
)

// Notifier delivers out-of-band messages such as password reset links.
type Notifier interface {
	Send(ctx context.Context, to, kind string, payload map[string]string) error
}

// NotifyPasswordReset is the notification kind for reset links.
const NotifyPasswordReset = "password-reset"

// TokenPair represents access and refresh tokens along with their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Tokens    TokenPair
	Principal Principal
	Remember  bool
}

// AccessGrant is returned by a successful refresh.
type AccessGrant struct {
	AccessToken string
	ExpiresAt   time.Time
	// Remember mirrors the flag recorded at login so cookies keep the same lifetime.
	Remember bool
}

// SessionManager runs the login, logout, refresh and password flows.
type SessionManager struct {
	store    Store
	tokens   *TokenService
	hasher   PasswordHasher
	notifier Notifier
	now      func() time.Time
	random   io.Reader
	log      logrus.FieldLogger
}

// SessionOption configures SessionManager behavior.
type SessionOption func(*SessionManager)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithLogger overrides the logger used for best-effort failures.
func WithLogger(l logrus.FieldLogger) SessionOption {
	return func(m *SessionManager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithRandom overrides the entropy source for reset tokens.
func WithRandom(r io.Reader) SessionOption {
	return func(m *SessionManager) {
		if r != nil {
			m.random = r
		}
	}
}

// NewSessionManager wires the session flows over store, tokens, hasher and notifier.
func NewSessionManager(store Store, tokens *TokenService, hasher PasswordHasher, notifier Notifier, opts ...SessionOption) (*SessionManager, error) {
	if store == nil || tokens == nil || hasher == nil {
		return nil, errors.New("auth: store, token service and hasher are required")
	}
	m := &SessionManager{
		store:    store,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		now:      time.Now,
		random:   rand.Reader,
		log:      obs.Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Login authenticates credentials and starts a session. The new refresh token
// replaces any stored one, which revokes every earlier refresh token.
func (m *SessionManager) Login(ctx context.Context, email, password string, remember bool) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, BadRequest("email and password are required")
	}
	acc, err := m.store.FindByEmail(ctx, email, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, Unauthorized(MsgInvalidCredentials)
		}
		return LoginResult{}, Internal("lookup account", err)
	}
	if err := m.hasher.Verify(acc.PasswordHash, password); err != nil {
		return LoginResult{}, Unauthorized(MsgInvalidCredentials)
	}
	if !acc.IsActive {
		return LoginResult{}, Forbidden(MsgAccountDeactivated)
	}

	access, accessExp, err := m.tokens.IssueAccess(acc.ID, identityOf(acc))
	if err != nil {
		return LoginResult{}, Internal("issue access token", err)
	}
	refresh, refreshExp, err := m.tokens.IssueRefresh(acc.ID)
	if err != nil {
		return LoginResult{}, Internal("issue refresh token", err)
	}

	now := m.now().UTC()
	if err := m.store.Update(ctx, acc.ID, AccountUpdate{
		RefreshToken: ptr(refresh),
		LastLogin:    ptr(now),
		IsLoggedIn:   ptr(true),
		IsRemember:   ptr(remember),
	}); err != nil {
		return LoginResult{}, Internal("persist session", err)
	}
	acc.LastLogin = now

	locations, err := m.store.ResolveLocations(ctx, acc.LocationIDs)
	if err != nil {
		return LoginResult{}, Internal("resolve locations", err)
	}
	return LoginResult{
		Tokens: TokenPair{
			AccessToken:      access,
			RefreshToken:     refresh,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: refreshExp,
		},
		Principal: NewPrincipal(acc, locations),
		Remember:  remember,
	}, nil
}

// Logout ends the session bound to refreshToken. It never fails: storage
// errors are logged and the caller clears client cookies regardless.
func (m *SessionManager) Logout(ctx context.Context, refreshToken string) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return
	}
	acc, err := m.store.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.WithError(err).Warn("logout: lookup by refresh token failed")
		}
		return
	}
	if err := m.store.Update(ctx, acc.ID, AccountUpdate{
		RefreshToken: ptr(""),
		IsLoggedIn:   ptr(false),
		IsRemember:   ptr(false),
		LastLogout:   ptr(m.now().UTC()),
	}); err != nil {
		m.log.WithError(err).WithField("account_id", acc.ID).Warn("logout: clearing session failed")
	}
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (AccessGrant, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AccessGrant{}, Unauthorized("refresh token not provided")
	}
	claims, err := m.tokens.Verify(refreshToken, RefreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return AccessGrant{}, Unauthorized(MsgTokenExpired)
		}
		return AccessGrant{}, Forbidden(MsgInvalidToken)
	}
	acc, err := m.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AccessGrant{}, Unauthorized(MsgRefreshReused)
		}
		return AccessGrant{}, Internal("lookup account", err)
	}
	if acc.IsDeleted || !tokensEqual(acc.RefreshToken, refreshToken) {
		return AccessGrant{}, Unauthorized(MsgRefreshReused)
	}
	if !acc.IsActive {
		return AccessGrant{}, Forbidden(MsgAccountDeactivated)
	}
	access, exp, err := m.tokens.IssueAccess(acc.ID, identityOf(acc))
	if err != nil {
		return AccessGrant{}, Internal("issue access token", err)
	}
	return AccessGrant{AccessToken: access, ExpiresAt: exp, Remember: acc.IsRemember}, nil
}

// ChangePassword replaces the password hash after verifying the old password.
// Session and refresh state are left untouched.
func (m *SessionManager) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return BadRequest("old and new password are required")
	}
	acc, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotFound("account not found")
		}
		return Internal("lookup account", err)
	}
	if err := m.hasher.Verify(acc.PasswordHash, oldPassword); err != nil {
		return BadRequest("old password is incorrect")
	}
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return Internal("hash password", err)
	}
	if err := m.store.Update(ctx, acc.ID, AccountUpdate{PasswordHash: ptr(hash)}); err != nil {
		return Internal("update password", err)
	}
	return nil
}

func identityOf(acc *Account) Identity {
	return Identity{Email: acc.Email, Name: acc.Name, Role: acc.Role}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func tokensEqual(stored, presented string) bool {
	if stored == "" || len(stored) != len(presented) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
