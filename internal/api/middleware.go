// Package api implements the read-only HTTP API using chi.
package api

import "net/http"

// AttachmentCacheControl is sent with every attachment response.
const AttachmentCacheControl = "public, max-age=86400"

// CacheControl returns middleware that sets the Cache-Control header on
// every response it wraps.
func CacheControl(value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}
