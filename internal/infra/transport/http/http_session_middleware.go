package http

import (
	"net/http"
	"strings"

	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc/authclient"
)

// SessionCookieName is the cookie carrying the session token for browser clients.
const SessionCookieName = "session"

// SessionToken extracts the session token from the Authorization header
// (Bearer scheme) or, failing that, from the session cookie.
func SessionToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(token)
		}

		return ""
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}

	return ""
}

// SessionMiddleware creates middleware that resolves the caller of a request.
// Requests without a valid token pass through anonymously and the handlers
// decide whether a session is required, so a stale cookie does not block login.
// On success the principal and the raw token are added to the request context.
func SessionMiddleware(
	next http.Handler,
	authClient authclient.AuthClient,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := SessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)

			return
		}

		principal, ok, err := authClient.Validate(r.Context(), token)
		if err != nil {
			log.ErrorContext(r.Context(), "validate session failed", "error", err)
			WriteError(w, r, err)

			return
		} else if !ok {
			log.DebugContext(r.Context(), "unknown or expired session token")
			next.ServeHTTP(w, r)

			return
		}

		ctx := context_.WithPrincipal(r.Context(), principal)
		ctx = context_.WithSessionToken(ctx, token)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
