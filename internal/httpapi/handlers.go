package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/obs"
)

const serviceName = "asset-admin-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe checks that the credential store answers.
type ReadyProbe struct {
	Store auth.Store
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// Config carries the collaborators the HTTP layer is built from.
type Config struct {
	Sessions       *auth.SessionManager
	Accounts       *auth.Accounts
	Authenticator  *auth.Authenticator
	Cookies        CookieConfig
	Ready          readinessChecker
	Version        string
	AllowedOrigins []string
	// AllowLocalOrigins admits http://localhost origins for CORS; off in production.
	AllowLocalOrigins bool
	// TrustedProxies are CIDRs or addresses whose X-Forwarded-For is honoured.
	TrustedProxies []string
	// Login, forgot and reset endpoints share this per-IP budget.
	LoginRatePerSec float64
	LoginRateBurst  int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	sessions   *auth.SessionManager
	accounts   *auth.Accounts
	authn      *auth.Authenticator
	cookies    CookieConfig
	readyProbe readinessChecker
	version    string
	origins    []string
	allowLocal bool
	proxies    TrustedProxies
	ratePerSec float64
	rateBurst  int
}

func New(cfg Config) (*API, error) {
	if cfg.Sessions == nil || cfg.Accounts == nil || cfg.Authenticator == nil {
		return nil, errors.New("httpapi: sessions, accounts and authenticator are required")
	}
	proxies, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	a := &API{
		mux:        http.NewServeMux(),
		sessions:   cfg.Sessions,
		accounts:   cfg.Accounts,
		authn:      cfg.Authenticator,
		cookies:    cfg.Cookies,
		readyProbe: cfg.Ready,
		version:    cfg.Version,
		origins:    cfg.AllowedOrigins,
		allowLocal: cfg.AllowLocalOrigins,
		proxies:    proxies,
		ratePerSec: cfg.LoginRatePerSec,
		rateBurst:  cfg.LoginRateBurst,
	}
	if a.readyProbe == nil {
		a.readyProbe = ReadyProbe{}
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 1
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 5
	}
	a.routes()
	return a, nil
}

func (a *API) routes() {
	// health/ready/metrics
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	// session lifecycle
	a.mux.Handle("POST /v1/auth/login", a.limited(a.handleLogin))
	a.mux.HandleFunc("POST /v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("POST /v1/auth/refresh", a.handleRefresh)
	a.mux.Handle("POST /v1/auth/password/forgot", a.limited(a.handleForgotPassword))
	a.mux.Handle("POST /v1/auth/password/reset", a.limited(a.handleResetPassword))
	a.mux.HandleFunc("GET /v1/auth/password/reset", a.handleResetLanding)
	a.mux.Handle("POST /v1/auth/password/change", a.authGate(http.HandlerFunc(a.handleChangePassword)))
	a.mux.Handle("GET /v1/auth/me", a.authGate(http.HandlerFunc(a.handleMe)))
	a.mux.Handle("GET /v1/permissions/catalog", a.authGate(http.HandlerFunc(a.handleCatalog)))

	// account administration
	a.mux.Handle("POST /v1/users", a.protect(a.handleCreateUser, auth.ActionUserMaster))
	a.mux.Handle("PUT /v1/users/{id}/permissions", a.protect(a.handleSetPermissions, auth.ActionUserMaster))
	a.mux.Handle("POST /v1/users/{id}/permissions/reapply", a.protect(a.handleReapplyPermissions, auth.ActionUserMaster))
	a.mux.Handle("PATCH /v1/users/{id}/status", a.protect(a.handleSetStatus, auth.ActionUserMaster))

	a.mux.Handle("GET /v1/dashboard", a.protect(a.handleDashboard, auth.ActionDashboard))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h, a.origins, a.allowLocal)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = ClientIP(h, a.proxies)
	return obs.Instrument(h)
}

func (a *API) limited(h http.HandlerFunc) http.Handler {
	return RateLimit(h, a.rateBurst, a.ratePerSec)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		obs.Logger().WithError(err).Warn("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	respond(w, http.StatusOK, map[string]any{
		"account":   principal.ID,
		"locations": principal.Locations,
	}, "dashboard")
}
