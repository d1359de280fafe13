package httpapi

import (
	"net/http"
	"strings"
	"time"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// CookieConfig controls the attributes of the session cookies.
type CookieConfig struct {
	Secure         bool
	HTTPOnly       bool
	SameSite       http.SameSite
	RememberMaxAge time.Duration
	Path           string
}

// ParseSameSite maps "strict" or "lax" to the cookie mode; anything else is strict.
func ParseSameSite(v string) http.SameSite {
	if strings.EqualFold(strings.TrimSpace(v), "lax") {
		return http.SameSiteLaxMode
	}
	return http.SameSiteStrictMode
}

func (c CookieConfig) cookie(name, value string, remember bool) *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	sameSite := c.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteStrictMode
	}
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
	// Without remember the cookie lives for the browser session.
	if remember && c.RememberMaxAge > 0 {
		ck.MaxAge = int(c.RememberMaxAge / time.Second)
	}
	return ck
}

func (c CookieConfig) setSession(w http.ResponseWriter, accessToken, refreshToken string, remember bool) {
	http.SetCookie(w, c.cookie(accessCookieName, accessToken, remember))
	http.SetCookie(w, c.cookie(refreshCookieName, refreshToken, remember))
}

func (c CookieConfig) setAccess(w http.ResponseWriter, accessToken string, remember bool) {
	http.SetCookie(w, c.cookie(accessCookieName, accessToken, remember))
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	for _, name := range []string{accessCookieName, refreshCookieName} {
		ck := c.cookie(name, "", false)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(w, ck)
	}
}
