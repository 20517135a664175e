package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORSOptions carries the browser origins allowed to call the API.
type CORSOptions struct {
	AllowedOrigins    []string
	IdempotencyHeader string
	MaxAge            int
}

// CORS lets tenant checkout pages call the API from the browser. Without
// allowed origins it returns a pass-through, so cross-origin requests get no
// CORS headers.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	idempotencyHeader := strings.TrimSpace(opts.IdempotencyHeader)
	if idempotencyHeader == "" {
		idempotencyHeader = DefaultIdempotencyHeader
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", ServiceIDHeader, requestIDHeader, idempotencyHeader},
		ExposedHeaders: []string{requestIDHeader, replayedHeader},
		MaxAge:         opts.MaxAge,
	}).Handler
}
