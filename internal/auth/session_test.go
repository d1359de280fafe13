package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type captureNotifier struct {
	mu      sync.Mutex
	to      []string
	payload []map[string]string
	err     error
}

func (n *captureNotifier) Send(_ context.Context, to, kind string, payload map[string]string) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.to = append(n.to, to)
	n.payload = append(n.payload, payload)
	return nil
}

type testEnv struct {
	store    *InMemoryStore
	tokens   *TokenService
	sessions *SessionManager
	accounts *Accounts
	clock    *fakeClock
	notifier *captureNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	store := NewInMemoryStore()
	tokens, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "test",
	}, WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	hasher := NewBcryptHasher(4)
	notifier := &captureNotifier{}
	sessions, err := NewSessionManager(store, tokens, hasher, notifier, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	accounts, err := NewAccounts(store, hasher)
	if err != nil {
		t.Fatalf("NewAccounts: %v", err)
	}
	return &testEnv{store: store, tokens: tokens, sessions: sessions, accounts: accounts, clock: clock, notifier: notifier}
}

func (e *testEnv) createAccount(t *testing.T, email string, role Role) *Account {
	t.Helper()
	acc, err := e.accounts.CreateAccount(context.Background(), NewAccount{
		Email:    email,
		Name:     "Test User",
		Password: "s3cret",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return acc
}

func wantError(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error %q, got nil", kind, msg)
	}
	if !errors.Is(err, &Error{Kind: kind, Message: msg}) {
		t.Fatalf("expected %s error %q, got %v", kind, msg, err)
	}
}

func TestLoginPersistsRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "Ops@Example.com", RoleSupervisor)

	res, err := env.sessions.Login(context.Background(), "ops@example.com", "s3cret", true)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", res.Tokens)
	}
	if !res.Remember {
		t.Fatalf("expected remember flag to be echoed")
	}
	stored, err := env.store.FindByID(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.RefreshToken != res.Tokens.RefreshToken {
		t.Fatalf("stored refresh token mismatch")
	}
	if !stored.IsLoggedIn || !stored.IsRemember || !stored.LastLogin.Equal(env.clock.Now()) {
		t.Fatalf("session flags not persisted: %+v", stored)
	}
	if res.Principal.ID != acc.ID || res.Principal.Role != RoleSupervisor {
		t.Fatalf("unexpected principal: %+v", res.Principal)
	}

	raw, err := json.Marshal(res.Principal)
	if err != nil {
		t.Fatalf("marshal principal: %v", err)
	}
	for _, secret := range []string{stored.PasswordHash, stored.RefreshToken} {
		if strings.Contains(string(raw), secret) {
			t.Fatalf("principal leaks secret material: %s", raw)
		}
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "ops@example.com", RoleUser)

	_, err := env.sessions.Login(context.Background(), "nobody@example.com", "s3cret", false)
	wantError(t, err, KindUnauthorized, MsgInvalidCredentials)

	_, err = env.sessions.Login(context.Background(), "ops@example.com", "wrong", false)
	wantError(t, err, KindUnauthorized, MsgInvalidCredentials)

	_, err = env.sessions.Login(context.Background(), "", "", false)
	wantError(t, err, KindBadRequest, "")
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "ops@example.com", RoleAdmin)
	if err := env.accounts.SetActive(context.Background(), acc.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	_, err := env.sessions.Login(context.Background(), "ops@example.com", "s3cret", false)
	wantError(t, err, KindForbidden, MsgAccountDeactivated)
}

func TestSecondLoginRevokesFirstRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "ops@example.com", RoleUser)
	ctx := context.Background()

	first, err := env.sessions.Login(ctx, "ops@example.com", "s3cret", false)
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	second, err := env.sessions.Login(ctx, "ops@example.com", "s3cret", false)
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if first.Tokens.RefreshToken == second.Tokens.RefreshToken {
		t.Fatalf("expected distinct refresh tokens within the same second")
	}

	_, err = env.sessions.Refresh(ctx, first.Tokens.RefreshToken)
	wantError(t, err, KindUnauthorized, MsgRefreshReused)

	grant, err := env.sessions.Refresh(ctx, second.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if grant.AccessToken == "" || !grant.ExpiresAt.After(env.clock.Now()) {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	if _, err := env.tokens.Verify(grant.AccessToken, AccessToken); err != nil {
		t.Fatalf("refreshed access token does not verify: %v", err)
	}
}

func TestRefreshFailures(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "ops@example.com", RoleUser)
	ctx := context.Background()
	res, err := env.sessions.Login(ctx, "ops@example.com", "s3cret", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err = env.sessions.Refresh(ctx, "")
	wantError(t, err, KindUnauthorized, "")

	_, err = env.sessions.Refresh(ctx, res.Tokens.AccessToken)
	wantError(t, err, KindForbidden, MsgInvalidToken)

	_, err = env.sessions.Refresh(ctx, "not-a-jwt")
	wantError(t, err, KindForbidden, MsgInvalidToken)

	env.clock.Advance(24*time.Hour + time.Second)
	_, err = env.sessions.Refresh(ctx, res.Tokens.RefreshToken)
	wantError(t, err, KindUnauthorized, MsgTokenExpired)
}

func TestRefreshAfterDeactivation(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "ops@example.com", RoleUser)
	ctx := context.Background()
	res, err := env.sessions.Login(ctx, "ops@example.com", "s3cret", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := env.accounts.SetActive(ctx, acc.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	_, err = env.sessions.Refresh(ctx, res.Tokens.RefreshToken)
	wantError(t, err, KindUnauthorized, MsgRefreshReused)
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "ops@example.com", RoleUser)
	ctx := context.Background()
	res, err := env.sessions.Login(ctx, "ops@example.com", "s3cret", true)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	env.clock.Advance(time.Minute)
	env.sessions.Logout(ctx, res.Tokens.RefreshToken)

	stored, err := env.store.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.RefreshToken != "" || stored.IsLoggedIn || stored.IsRemember {
		t.Fatalf("session not cleared: %+v", stored)
	}
	if !stored.LastLogout.Equal(env.clock.Now()) {
		t.Fatalf("expected lastLogout %v, got %v", env.clock.Now(), stored.LastLogout)
	}

	_, err = env.sessions.Refresh(ctx, res.Tokens.RefreshToken)
	wantError(t, err, KindUnauthorized, MsgRefreshReused)

	// Unknown and empty tokens are no-ops.
	env.sessions.Logout(ctx, "unknown")
	env.sessions.Logout(ctx, "")
}

// brokenStore fails selected operations of the wrapped store.
type brokenStore struct {
	Store
	lookupErr error
	updateErr error
}

func (s *brokenStore) FindByRefreshToken(ctx context.Context, token string) (*Account, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.Store.FindByRefreshToken(ctx, token)
}

func (s *brokenStore) Update(ctx context.Context, id string, upd AccountUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.Store.Update(ctx, id, upd)
}

func TestLogoutLogsStoreFailures(t *testing.T) {
	cases := []struct {
		name      string
		lookupErr error
		updateErr error
		wantMsg   string
	}{
		{"lookup fails", errors.New("connection reset"), nil, "logout: lookup by refresh token failed"},
		{"update fails", nil, errors.New("statement timeout"), "logout: clearing session failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.createAccount(t, "ops@example.com", RoleUser)
			ctx := context.Background()
			res, err := env.sessions.Login(ctx, "ops@example.com", "s3cret", false)
			if err != nil {
				t.Fatalf("Login: %v", err)
			}

			logger, hook := logtest.NewNullLogger()
			broken := &brokenStore{Store: env.store, lookupErr: tc.lookupErr, updateErr: tc.updateErr}
			sessions, err := NewSessionManager(broken, env.tokens, NewBcryptHasher(4), env.notifier,
				WithClock(env.clock.Now), WithLogger(logger))
			if err != nil {
				t.Fatalf("NewSessionManager: %v", err)
			}

			sessions.Logout(ctx, res.Tokens.RefreshToken)

			entry := hook.LastEntry()
			if entry == nil {
				t.Fatalf("expected a log entry")
			}
			if entry.Level != logrus.WarnLevel || entry.Message != tc.wantMsg {
				t.Fatalf("unexpected entry %v %q", entry.Level, entry.Message)
			}
			if _, ok := entry.Data[logrus.ErrorKey]; !ok {
				t.Fatalf("expected error field on log entry")
			}
		})
	}
}

func TestLogoutUnknownTokenDoesNotLog(t *testing.T) {
	env := newTestEnv(t)
	logger, hook := logtest.NewNullLogger()
	sessions, err := NewSessionManager(env.store, env.tokens, NewBcryptHasher(4), env.notifier, WithLogger(logger))
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	sessions.Logout(context.Background(), "unknown")
	if n := len(hook.AllEntries()); n != 0 {
		t.Fatalf("expected no log entries, got %d", n)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "ops@example.com", RoleUser)
	ctx := context.Background()
	res, err := env.sessions.Login(ctx, "ops@example.com", "s3cret", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	err = env.sessions.ChangePassword(ctx, acc.ID, "wrong", "n3w")
	wantError(t, err, KindBadRequest, "old password is incorrect")

	if err := env.sessions.ChangePassword(ctx, acc.ID, "s3cret", "n3w"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := env.sessions.Refresh(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh after password change: %v", err)
	}
	_, err = env.sessions.Login(ctx, "ops@example.com", "s3cret", false)
	wantError(t, err, KindUnauthorized, MsgInvalidCredentials)
	if _, err := env.sessions.Login(ctx, "ops@example.com", "n3w", false); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAdminScenario(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "admin@example.com", RoleAdmin)

	want := RolePermissions(RoleAdmin)
	if len(acc.Permissions) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(acc.Permissions))
	}
	for i := range want {
		if acc.Permissions[i] != want[i] {
			t.Fatalf("rule %d: expected %+v, got %+v", i, want[i], acc.Permissions[i])
		}
	}

	res, err := env.sessions.Login(context.Background(), "admin@example.com", "s3cret", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := Check(res.Principal, ActionMasters); err == nil {
		t.Fatalf("expected masters to be denied for admin")
	}
	if err := Check(res.Principal, ActionDashboard); err != nil {
		t.Fatalf("expected dashboard to be allowed: %v", err)
	}
}
