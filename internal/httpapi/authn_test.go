package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer   abc  ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := bearerToken(tc.header); got != tc.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestExtractAccessTokenPrefersCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	if got := extractAccessToken(req); got != "header-token" {
		t.Fatalf("expected header token, got %q", got)
	}
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: "cookie-token"})
	if got := extractAccessToken(req); got != "cookie-token" {
		t.Fatalf("expected cookie token, got %q", got)
	}
}

func TestRequireActions(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	gate := requireActions(auth.ActionAssetMaster, auth.ActionReports)(ok)

	rr := httptest.NewRecorder()
	gate.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without principal, got %d", rr.Code)
	}

	cases := []struct {
		name  string
		rules []auth.PermissionRule
		code  int
	}{
		{"both allowed", []auth.PermissionRule{
			{Action: auth.ActionAssetMaster, Effect: auth.Allow},
			{Action: auth.ActionReports, Effect: auth.Allow},
		}, http.StatusOK},
		{"one denied", []auth.PermissionRule{
			{Action: auth.ActionAssetMaster, Effect: auth.Allow},
			{Action: auth.ActionReports, Effect: auth.Deny},
		}, http.StatusForbidden},
		{"one missing", []auth.PermissionRule{
			{Action: auth.ActionAssetMaster, Effect: auth.Allow},
		}, http.StatusForbidden},
		{"no permissions", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.ContextWithPrincipal(req.Context(), auth.Principal{ID: "acc-1", Permissions: tc.rules}))
		rr := httptest.NewRecorder()
		gate.ServeHTTP(rr, req)
		if rr.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.code, rr.Code)
		}
	}
}
