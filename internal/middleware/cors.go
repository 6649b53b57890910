// Package middleware provides the HTTP middleware of the wine catalogue API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// NewCORSHandler returns a middleware that applies CORS headers for the
// given browser origins. Each entry must be a full origin (scheme + host, no
// trailing slash). Methods cover the catalogue routes, including photo
// uploads, and preflight results are cached for five minutes.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length", "Last-Modified"},
		MaxAge:         300,
	})
	return c.Handler
}
