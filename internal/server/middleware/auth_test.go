package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuth(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		path     string
		user     string
		pass     string
		setAuth  bool
		expected int
	}{
		{name: "disabled", enabled: false, path: "/v1/models", expected: http.StatusOK},
		{name: "valid credentials", enabled: true, path: "/v1/models", user: "admin", pass: "secret", setAuth: true, expected: http.StatusOK},
		{name: "wrong password", enabled: true, path: "/v1/models", user: "admin", pass: "nope", setAuth: true, expected: http.StatusUnauthorized},
		{name: "wrong user", enabled: true, path: "/v1/models", user: "root", pass: "secret", setAuth: true, expected: http.StatusUnauthorized},
		{name: "no credentials", enabled: true, path: "/v1/models", expected: http.StatusUnauthorized},
		{name: "excluded exact path", enabled: true, path: "/health", expected: http.StatusOK},
		{name: "excluded prefix", enabled: true, path: "/public/docs", expected: http.StatusOK},
		{name: "other path protected", enabled: true, path: "/status", expected: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &AuthConfig{Enabled: tt.enabled, User: "admin", Password: "secret"}
			handler := Auth(config, "/health", "/public/*")(okHandler())

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, w.Code)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestAuth_Update(t *testing.T) {
	config := &AuthConfig{Enabled: false}
	handler := Auth(config)(okHandler())

	config.Update(true, "admin", "secret")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected updated config to require auth, got %d", w.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name     string
		config   *AdminAuthConfig
		prepare  func(r *http.Request)
		expected int
	}{
		{
			name:     "valid bearer token",
			config:   &AdminAuthConfig{Token: "tok"},
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok") },
			expected: http.StatusOK,
		},
		{
			name:     "wrong bearer token",
			config:   &AdminAuthConfig{Token: "tok"},
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			expected: http.StatusForbidden,
		},
		{
			name:     "basic auth instead of token",
			config:   &AdminAuthConfig{Token: "tok", Basic: &AuthConfig{Enabled: true, User: "a", Password: "b"}},
			prepare:  func(r *http.Request) { r.SetBasicAuth("a", "b") },
			expected: http.StatusForbidden,
		},
		{
			name:     "basic fallback valid",
			config:   &AdminAuthConfig{Basic: &AuthConfig{Enabled: true, User: "a", Password: "b"}},
			prepare:  func(r *http.Request) { r.SetBasicAuth("a", "b") },
			expected: http.StatusOK,
		},
		{
			name:     "basic fallback missing",
			config:   &AdminAuthConfig{Basic: &AuthConfig{Enabled: true, User: "a", Password: "b"}},
			prepare:  func(r *http.Request) {},
			expected: http.StatusUnauthorized,
		},
		{
			name:     "nothing configured, remote client",
			config:   &AdminAuthConfig{Basic: &AuthConfig{}},
			prepare:  func(r *http.Request) { r.RemoteAddr = "203.0.113.5:4242" },
			expected: http.StatusForbidden,
		},
		{
			name:     "nothing configured, loopback client",
			config:   &AdminAuthConfig{},
			prepare:  func(r *http.Request) { r.RemoteAddr = "127.0.0.1:4242" },
			expected: http.StatusOK,
		},
		{
			name:     "nothing configured, ipv6 loopback",
			config:   &AdminAuthConfig{},
			prepare:  func(r *http.Request) { r.RemoteAddr = "[::1]:4242" },
			expected: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/reload", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()

			AdminAuth(tt.config)(okHandler()).ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}
