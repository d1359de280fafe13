package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/audit"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type loginResponse struct {
	AccessToken      string         `json:"accessToken"`
	RefreshToken     string         `json:"refreshToken"`
	AccessExpiresAt  time.Time      `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time      `json:"refreshExpiresAt"`
	User             auth.Principal `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type catalogResponse struct {
	Actions []string                            `json:"actions"`
	Roles   map[auth.Role][]auth.PermissionRule `json:"roles"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.sessions.Login(r.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		obs.ObserveLogin(auth.KindOf(err).String())
		_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{
			"email":  strings.ToLower(strings.TrimSpace(req.Email)),
			"reason": auth.KindOf(err).String(),
			"ip":     clientIP(r),
		})
		writeAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("success")
	ctx := auth.ContextWithPrincipal(r.Context(), res.Principal)
	_ = audit.LogEvent(ctx, audit.EventLoginSucceeded, map[string]any{
		"remember": res.Remember,
		"ip":       clientIP(r),
	})

	a.cookies.setSession(w, res.Tokens.AccessToken, res.Tokens.RefreshToken, res.Remember)
	respond(w, http.StatusOK, loginResponse{
		AccessToken:      res.Tokens.AccessToken,
		RefreshToken:     res.Tokens.RefreshToken,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
		User:             res.Principal,
	}, "logged in")
}

// handleLogout always succeeds and always clears cookies.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = decodeOptionalJSON(w, r, &req)
	token := req.RefreshToken
	if c, err := r.Cookie(refreshCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		token = c.Value
	}
	a.sessions.Logout(r.Context(), token)
	_ = audit.LogEvent(r.Context(), audit.EventLogout, map[string]any{"ip": clientIP(r)})

	a.cookies.clearSession(w)
	respond(w, http.StatusOK, nil, "logged out")
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token := req.RefreshToken
	if c, err := r.Cookie(refreshCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		token = c.Value
	}

	grant, err := a.sessions.Refresh(r.Context(), token)
	if err != nil {
		obs.ObserveRefresh(auth.KindOf(err).String())
		_ = audit.LogEvent(r.Context(), audit.EventRefreshRejected, map[string]any{
			"reason": auth.KindOf(err).String(),
			"ip":     clientIP(r),
		})
		writeAuthError(w, r, err)
		return
	}
	obs.ObserveRefresh("success")
	_ = audit.LogEvent(r.Context(), audit.EventRefreshed, map[string]any{"ip": clientIP(r)})

	a.cookies.setAccess(w, grant.AccessToken, grant.Remember)
	respond(w, http.StatusOK, refreshResponse{
		AccessToken: grant.AccessToken,
		ExpiresAt:   grant.ExpiresAt,
	}, "access token refreshed")
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.sessions.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventResetRequested, map[string]any{
		"email": strings.ToLower(strings.TrimSpace(req.Email)),
	})
	respond(w, http.StatusOK, nil, "password reset link sent")
}

// handleResetLanding is the target of the e-mailed link. It only confirms the
// token is well formed and still redeemable.
func (a *API) handleResetLanding(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := a.sessions.VerifyResetToken(r.Context(), token); err != nil {
		writeAuthError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"token": token}, "reset token is valid")
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.sessions.ConsumePasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventResetCompleted, nil)
	respond(w, http.StatusOK, nil, "password has been reset")
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := a.sessions.ChangePassword(r.Context(), principal.ID, req.OldPassword, req.NewPassword); err != nil {
		writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPasswordChanged, nil)
	respond(w, http.StatusOK, nil, "password changed")
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	respond(w, http.StatusOK, principal, "current user")
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	roles := make(map[auth.Role][]auth.PermissionRule, len(auth.Roles))
	for _, role := range auth.Roles {
		roles[role] = auth.RolePermissions(role)
	}
	respond(w, http.StatusOK, catalogResponse{
		Actions: append([]string(nil), auth.ActionCatalog...),
		Roles:   roles,
	}, "permission catalog")
}
