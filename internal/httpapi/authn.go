package httpapi

import (
	"net/http"
	"strings"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// authGate resolves the access token into a principal and attaches it to the
// request context. It never mutates persisted state.
func (a *API) authGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractAccessToken(r)
		principal, err := a.authn.Authenticate(r.Context(), token)
		if err != nil {
			obs.ObserveDenied("auth", denyReason(err))
			writeAuthError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

// requireActions builds the AccessGate for a route: every action must be allowed.
func requireActions(actions ...string) func(http.Handler) http.Handler {
	required := append([]string(nil), actions...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				obs.ObserveDenied("access", "no_principal")
				writeAuthError(w, r, auth.Unauthorized(auth.MsgTokenNotProvided))
				return
			}
			if err := auth.Check(principal, required...); err != nil {
				obs.ObserveDenied("access", "action")
				writeAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// protect chains AuthGate and AccessGate in front of h.
func (a *API) protect(h http.HandlerFunc, actions ...string) http.Handler {
	return a.authGate(requireActions(actions...)(h))
}

// extractAccessToken prefers the accessToken cookie over the Authorization header.
func extractAccessToken(r *http.Request) string {
	if c, err := r.Cookie(accessCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	return bearerToken(r.Header.Get(authHeader))
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}

func denyReason(err error) string {
	switch auth.KindOf(err) {
	case auth.KindUnauthorized:
		return "unauthorized"
	case auth.KindForbidden:
		return "forbidden"
	default:
		return "error"
	}
}
