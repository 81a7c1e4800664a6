package middleware

import (
	"net/http"
)

// DefaultMaxBody is used when no positive limit is configured.
const DefaultMaxBody = 1 << 20

// MaxBody caps request bodies of POST, PUT and PATCH requests.
// Reads past the limit fail with *http.MaxBytesError.
func MaxBody(maxSize int64) Middleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBody
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}
