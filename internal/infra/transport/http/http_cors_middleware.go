package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORSConfig lists the browser origins allowed to call the API with credentials.
type CORSConfig struct {
	// AllowedOrigins is a comma separated list of origins; empty disables CORS
	AllowedOrigins string `env:"ALLOWED_ORIGINS" default:""`
	// MaxAge is the preflight cache lifetime in seconds
	MaxAge int `env:"MAX_AGE" default:"300"`
}

// Origins returns the configured origins without blanks.
func (c CORSConfig) Origins() []string {
	var origins []string

	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return origins
}

// CORSMiddleware answers preflight requests and adds credentialed CORS headers
// for the configured origins. Without configured origins it is a no-op.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.Origins()
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	//nolint:exhaustruct
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", TraceIDHeader},
		ExposedHeaders:   []string{TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           cfg.MaxAge,
	})
}
