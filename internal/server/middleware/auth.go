package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
)

// AuthConfig holds basic auth credentials.
// Safe for concurrent reads and updates, so a config reload can swap them in place.
type AuthConfig struct {
	mu       sync.RWMutex
	Enabled  bool
	User     string
	Password string
}

// Update replaces the credentials.
func (c *AuthConfig) Update(enabled bool, user, password string) {
	c.mu.Lock()
	c.Enabled = enabled
	c.User = user
	c.Password = password
	c.mu.Unlock()
}

func (c *AuthConfig) get() (enabled bool, user, password string) {
	c.mu.RLock()
	enabled = c.Enabled
	user = c.User
	password = c.Password
	c.mu.RUnlock()
	return
}

// check reports whether r carries the configured basic auth credentials.
func (c *AuthConfig) check(r *http.Request) bool {
	_, configUser, configPass := c.get()

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}

	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(configUser)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(configPass)) == 1
	return userMatch && passMatch
}

// pathSet matches exact paths and "prefix*" patterns.
type pathSet struct {
	exact    map[string]bool
	prefixes []string
}

func newPathSet(paths []string) pathSet {
	ps := pathSet{exact: make(map[string]bool)}
	for _, path := range paths {
		if strings.HasSuffix(path, "*") {
			ps.prefixes = append(ps.prefixes, strings.TrimSuffix(path, "*"))
		} else {
			ps.exact[path] = true
		}
	}
	return ps
}

func (ps pathSet) match(path string) bool {
	if ps.exact[path] {
		return true
	}
	for _, prefix := range ps.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Auth creates a Basic Auth middleware.
// Paths in excludePaths skip authentication; a trailing "*" marks a prefix.
func Auth(config *AuthConfig, excludePaths ...string) Middleware {
	excluded := newPathSet(excludePaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enabled, _, _ := config.get()

			if !enabled || excluded.match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if !config.check(r) {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="cplxfox"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
