package authclient

import (
	"context"

	"github.com/mkrupp/homecase-lending/internal/domain"
)

// AuthClient resolves session tokens to principals.
type AuthClient interface {
	// Validate checks whether the token belongs to a live session.
	// Returns the principal of the session, whether the token is valid,
	// and any error encountered during validation. Unknown and expired tokens
	// are reported as (zero, false, nil).
	Validate(ctx context.Context, token string) (domain.Principal, bool, error)
}
