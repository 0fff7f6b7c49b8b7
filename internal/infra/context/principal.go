package context

import (
	"context"

	"github.com/mkrupp/homecase-lending/internal/domain"
)

const (
	contextKeyPrincipal    = contextKey("principal")
	contextKeySessionToken = contextKey("sessionToken")
)

// PrincipalFromContext extracts the resolved caller from the context.
// Returns the principal and true if present, or a zero principal and false if the
// request is anonymous.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(contextKeyPrincipal).(domain.Principal)

	return principal, ok
}

// WithPrincipal creates a new context carrying the caller resolved for the current request.
// The value must not outlive the request it was resolved for.
func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, principal)
}

// SessionTokenFromContext extracts the raw session token the caller presented.
func SessionTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKeySessionToken).(string)

	return token, ok && token != ""
}

// WithSessionToken stores the raw session token so that end-session can revoke it.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeySessionToken, token)
}
