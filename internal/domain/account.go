package domain

import (
	"errors"
	"strconv"
)

var (
	// ErrDuplicateIdentity is returned when registering a name that is already taken.
	ErrDuplicateIdentity = errors.New("duplicate identity")
	// ErrInvalidCredential is returned when the name/secret combination does not verify.
	// Unknown names and wrong secrets both produce this error.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrAccountInactive is returned when a deactivated account tries to borrow.
	ErrAccountInactive = errors.New("account inactive")
)

// AccountID identifies an account.
type AccountID int64

func (id AccountID) String() string { return strconv.FormatInt(int64(id), 10) }

// Role is the privilege level of an account. It is fixed at creation.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// Account is a registered identity. Verifier holds the one-way credential
// verifier, never the secret itself.
type Account struct {
	ID        AccountID `json:"id"`
	Name      string    `json:"name"`
	Verifier  []byte    `json:"-"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt int64     `json:"createdAt"` // Unix timestamp of registration
}

// IsAdmin reports whether the account holds the administrator role.
func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// ParseAccountID parses a decimal account id.
func ParseAccountID(s string) (AccountID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidInput
	}

	return AccountID(id), nil
}
