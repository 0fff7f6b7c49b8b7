package lending

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/homecase-lending/internal/domain"
)

// ErrUnknownDriver is returned when the configured storage driver is not supported.
var ErrUnknownDriver = errors.New("unknown storage driver")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AccountRepository persists accounts. Accounts are never deleted.
type AccountRepository interface {
	// CreateAccount inserts a new active account.
	// Returns domain.ErrDuplicateIdentity if the name is already taken.
	CreateAccount(ctx context.Context, name string, verifier []byte, role domain.Role) (domain.AccountID, error)

	// GetAccountByName looks up an account by its exact, case-sensitive name.
	// Returns false if no such account exists.
	GetAccountByName(ctx context.Context, name string) (*domain.Account, bool, error)

	// GetAccountByID looks up an account by id. Returns false if no such account exists.
	GetAccountByID(ctx context.Context, id domain.AccountID) (*domain.Account, bool, error)

	// DeactivateAccount clears the active flag. Calling it on an inactive account succeeds.
	// Returns domain.ErrNotFound if the account does not exist.
	DeactivateAccount(ctx context.Context, id domain.AccountID) error

	// ListActiveAccounts returns all active accounts in registration order.
	ListActiveAccounts(ctx context.Context) ([]domain.Account, error)
}

// SessionRepository persists session token hashes.
type SessionRepository interface {
	// CreateSession stores a new session.
	CreateSession(ctx context.Context, session domain.Session) error

	// GetSession looks up a session by token hash, regardless of expiry.
	// Returns false if no such session exists.
	GetSession(ctx context.Context, tokenHash []byte) (*domain.Session, bool, error)

	// DeleteSession removes a session. Deleting an unknown session succeeds.
	DeleteSession(ctx context.Context, tokenHash []byte) error

	// DeleteExpiredSessions removes every session that expired at or before now
	// and returns the number of removed sessions.
	DeleteExpiredSessions(ctx context.Context, now int64) (int64, error)
}

// ItemRepository persists catalog items.
type ItemRepository interface {
	// CreateItem inserts a new item in circulation.
	CreateItem(ctx context.Context, title, creator string) (domain.ItemID, error)

	// GetItem looks up an item, withdrawn or not, with Borrowed derived from open loans.
	// Returns false if no such item exists.
	GetItem(ctx context.Context, id domain.ItemID) (*domain.Item, bool, error)

	// ListItems returns items in creation order. Withdrawn items are only
	// included if includeWithdrawn is set.
	ListItems(ctx context.Context, includeWithdrawn bool) ([]domain.Item, error)

	// WithdrawItem flags an item as withdrawn. The open-loan check and the update
	// commit atomically. Withdrawing a withdrawn item succeeds.
	// Returns domain.ErrNotFound or domain.ErrItemCurrentlyLoaned.
	WithdrawItem(ctx context.Context, id domain.ItemID) error
}

// LoanRepository persists loans and enforces the borrow/return transitions.
type LoanRepository interface {
	// OpenLoan creates an open loan in one transaction, checking in this order:
	// account active (domain.ErrAccountInactive), item exists and is not withdrawn
	// (domain.ErrNotFound), no open loan for the pair (domain.ErrAlreadyOpen).
	OpenLoan(ctx context.Context, accountID domain.AccountID, itemID domain.ItemID) (domain.BorrowReceipt, error)

	// CloseLoan closes an open loan owned by accountID.
	// Returns domain.ErrNotFoundOrAlreadyClosed otherwise.
	CloseLoan(ctx context.Context, loanID domain.LoanID, accountID domain.AccountID) error

	// GetLoan looks up a loan by id. Returns false if no such loan exists.
	GetLoan(ctx context.Context, id domain.LoanID) (*domain.Loan, bool, error)

	// HasOpenLoan reports whether any open loan references the item.
	HasOpenLoan(ctx context.Context, itemID domain.ItemID) (bool, error)

	// ListOpenLoansByAccount returns the account's open loans on items still in circulation.
	ListOpenLoansByAccount(ctx context.Context, accountID domain.AccountID) ([]domain.AccountLoan, error)

	// ListOpenLoans returns every open loan with its item and holder.
	ListOpenLoans(ctx context.Context) ([]domain.HolderLoan, error)

	// ListLoansByItem returns every loan, open or closed, for the item in opening order.
	ListLoansByItem(ctx context.Context, itemID domain.ItemID) ([]domain.Loan, error)
}

// Repository is the durable store behind all lending services.
type Repository interface {
	AccountRepository
	SessionRepository
	ItemRepository
	LoanRepository

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func(ctx context.Context) (Repository, error)

// RepositoryConfig selects and configures the storage engine.
type RepositoryConfig struct {
	// Driver is either "sqlite" or "postgres"
	Driver string `env:"DRIVER" default:"sqlite"`

	SQLite   SQLiteRepositoryConfig   `envPrefix:"SQLITE_"`
	Postgres PostgresRepositoryConfig `envPrefix:"POSTGRES_"`
}

// NewRepositoryFactory returns the factory for the configured driver.
func NewRepositoryFactory(cfg RepositoryConfig) (RepositoryFactory, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return SQLiteRepositoryFactory(cfg.SQLite), nil
	case DriverPostgres:
		return PostgresRepositoryFactory(cfg.Postgres), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// storageError classifies an unexpected driver failure as domain.ErrStorage.
func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStorage, err))
}
