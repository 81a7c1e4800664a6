package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
)

// AdminAuthConfig protects endpoints that change server state, such as model reload.
type AdminAuthConfig struct {
	// Token enables Bearer authentication when set.
	Token string
	// Basic is consulted when Token is empty.
	Basic *AuthConfig
}

// AdminAuth guards administrative endpoints.
// With a token, only "Authorization: Bearer <token>" is accepted.
// Without a token but with basic auth enabled, basic credentials are required.
// With neither, only loopback clients are allowed.
func AdminAuth(config *AdminAuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.Token != "" {
				if checkBearerToken(r, config.Token) {
					next.ServeHTTP(w, r)
					return
				}
				forbidden(w)
				return
			}

			if config.Basic != nil {
				if enabled, _, _ := config.Basic.get(); enabled {
					if !config.Basic.check(r) {
						unauthorized(w)
						return
					}
					next.ServeHTTP(w, r)
					return
				}
			}

			if !isLoopback(r.RemoteAddr) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkBearerToken(r *http.Request, expectedToken string) bool {
	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func forbidden(w http.ResponseWriter) {
	http.Error(w, "Forbidden - admin authentication required", http.StatusForbidden)
}
