package authsvc

import (
	"context"

	"github.com/mkrupp/homecase-lending/internal/domain"
	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
)

// RequireSession returns the principal of the current request.
// Returns domain.ErrUnauthorized for anonymous requests.
func RequireSession(ctx context.Context) (domain.Principal, error) {
	principal, ok := context_.PrincipalFromContext(ctx)
	if !ok {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	return principal, nil
}

// RequireAdmin returns the principal of the current request if it is an
// administrator. Returns domain.ErrUnauthorized for anonymous requests and
// domain.ErrNotAdministrator for everyone else.
func RequireAdmin(ctx context.Context) (domain.Principal, error) {
	principal, err := RequireSession(ctx)
	if err != nil {
		return domain.Principal{}, err
	}

	if !principal.IsAdmin() {
		return domain.Principal{}, domain.ErrNotAdministrator
	}

	return principal, nil
}
