package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a call has no valid session or lacks the required role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotAdministrator is returned when an administrator-only operation is called by
	// an ordinary account. It matches ErrUnauthorized with errors.Is.
	ErrNotAdministrator = fmt.Errorf("%w: administrator role required", ErrUnauthorized)
	// ErrNoSessionToken is returned when a session token is required but not provided.
	ErrNoSessionToken = errors.New("no session token")
)

// Session binds the hash of an opaque token to an account for a limited time.
type Session struct {
	TokenHash []byte
	AccountID AccountID
	CreatedAt int64 // Unix timestamp
	ExpiresAt int64 // Unix timestamp
}

// SessionGrant is returned to a caller after successful authentication.
// Token is only ever known to the caller; the store keeps its hash.
type SessionGrant struct {
	Token     string    `json:"token"`
	AccountID AccountID `json:"accountId"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	ExpiresAt int64     `json:"expiresAt"`
}

// Principal is the caller of a single request, resolved fresh for every call.
type Principal struct {
	AccountID AccountID `json:"accountId"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
}

// IsAdmin reports whether the principal holds the administrator role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// PrincipalFromAccount builds the principal view of an account.
func PrincipalFromAccount(a Account) Principal {
	return Principal{
		AccountID: a.ID,
		Name:      a.Name,
		Role:      a.Role,
		Active:    a.Active,
	}
}
