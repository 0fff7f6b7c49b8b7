package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/homecase-lending/internal/domain"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
)

// SQLiteRepositoryConfig holds configuration for the SQLite repository.
type SQLiteRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/lending.db"`

	// BusyTimeout is how long a connection waits for a competing writer
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" default:"5s"`
}

// SQLiteRepository implements Repository using SQLite as the storage backend.
type SQLiteRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepositoryFactory creates a factory function that returns a new SQLiteRepository.
// The factory function implements the RepositoryFactory type.
func SQLiteRepositoryFactory(cfg SQLiteRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLiteRepository(ctx, cfg)
	}
}

// NewSQLiteRepository opens (or creates) the database at cfg.DatabasePath and
// applies the schema. WAL mode, foreign keys and the busy timeout are set per
// connection through the DSN.
func NewSQLiteRepository(ctx context.Context, cfg SQLiteRepositoryConfig) (*SQLiteRepository, error) {
	log := logging.GetLogger("repo.lending.sqlite_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		cfg.DatabasePath,
		cfg.BusyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeSQLiteDB(ctx, db); err != nil {
		db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	log.DebugContext(ctx, "sqlite repository opened")

	return &SQLiteRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}

	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// CreateAccount implements AccountRepository.CreateAccount using SQLite.
func (r *SQLiteRepository) CreateAccount(
	ctx context.Context,
	name string,
	verifier []byte,
	role domain.Role,
) (domain.AccountID, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO accounts (name, verifier, role, active, created_at) VALUES (?, ?, ?, 1, ?)",
		name,
		verifier,
		string(role),
		time.Now().Unix(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return 0, fmt.Errorf("insert account: %w", errors.Join(domain.ErrDuplicateIdentity, err))
		}

		return 0, storageError("insert account", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageError("last insert id", err)
	}

	return domain.AccountID(id), nil
}

const sqliteAccountColumns = "id, name, verifier, role, active, created_at"

func scanAccount(row interface{ Scan(dest ...any) error }) (*domain.Account, error) {
	var (
		account domain.Account
		role    string
	)

	if err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Verifier,
		&role,
		&account.Active,
		&account.CreatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}

	account.Role = domain.Role(role)

	return &account, nil
}

// GetAccountByName implements AccountRepository.GetAccountByName using SQLite.
func (r *SQLiteRepository) GetAccountByName(ctx context.Context, name string) (*domain.Account, bool, error) {
	return r.getAccount(ctx, "SELECT "+sqliteAccountColumns+" FROM accounts WHERE name = ?", name)
}

// GetAccountByID implements AccountRepository.GetAccountByID using SQLite.
func (r *SQLiteRepository) GetAccountByID(ctx context.Context, id domain.AccountID) (*domain.Account, bool, error) {
	return r.getAccount(ctx, "SELECT "+sqliteAccountColumns+" FROM accounts WHERE id = ?", int64(id))
}

func (r *SQLiteRepository) getAccount(ctx context.Context, query string, arg any) (*domain.Account, bool, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, storageError("query account", err)
	}

	return account, true, nil
}

// DeactivateAccount implements AccountRepository.DeactivateAccount using SQLite.
func (r *SQLiteRepository) DeactivateAccount(ctx context.Context, id domain.AccountID) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx, "UPDATE accounts SET active = 0 WHERE id = ?", int64(id))
	if err != nil {
		return storageError("update account", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageError("rows affected", err)
	}

	if n == 0 {
		return fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListActiveAccounts implements AccountRepository.ListActiveAccounts using SQLite.
func (r *SQLiteRepository) ListActiveAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sqliteAccountColumns+" FROM accounts WHERE active = 1 ORDER BY id",
	)
	if err != nil {
		return nil, storageError("query accounts", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, storageError("scan account", err)
		}

		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate accounts", err)
	}

	return accounts, nil
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// CreateSession implements SessionRepository.CreateSession using SQLite.
func (r *SQLiteRepository) CreateSession(ctx context.Context, session domain.Session) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (token_hash, account_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		session.TokenHash,
		int64(session.AccountID),
		session.CreatedAt,
		session.ExpiresAt,
	); err != nil {
		return storageError("insert session", err)
	}

	return nil
}

// GetSession implements SessionRepository.GetSession using SQLite.
func (r *SQLiteRepository) GetSession(ctx context.Context, tokenHash []byte) (*domain.Session, bool, error) {
	var session domain.Session

	err := r.db.QueryRowContext(ctx,
		"SELECT token_hash, account_id, created_at, expires_at FROM sessions WHERE token_hash = ?",
		tokenHash,
	).Scan(&session.TokenHash, &session.AccountID, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, storageError("query session", err)
	}

	return &session, true, nil
}

// DeleteSession implements SessionRepository.DeleteSession using SQLite.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, tokenHash []byte) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = ?", tokenHash); err != nil {
		return storageError("delete session", err)
	}

	return nil
}

// DeleteExpiredSessions implements SessionRepository.DeleteExpiredSessions using SQLite.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now int64) (int64, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now)
	if err != nil {
		return 0, storageError("delete sessions", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("rows affected", err)
	}

	return n, nil
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

const sqliteItemSelect = `
	SELECT i.id, i.title, i.creator, i.withdrawn, i.created_at,
	       EXISTS (SELECT 1 FROM loans l WHERE l.item_id = i.id AND l.status = 'open')
	FROM items i`

func scanItem(row interface{ Scan(dest ...any) error }) (*domain.Item, error) {
	var item domain.Item

	if err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Creator,
		&item.Withdrawn,
		&item.CreatedAt,
		&item.Borrowed,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &item, nil
}

// CreateItem implements ItemRepository.CreateItem using SQLite.
func (r *SQLiteRepository) CreateItem(ctx context.Context, title, creator string) (domain.ItemID, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO items (title, creator, withdrawn, created_at) VALUES (?, ?, 0, ?)",
		title,
		creator,
		time.Now().Unix(),
	)
	if err != nil {
		return 0, storageError("insert item", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageError("last insert id", err)
	}

	return domain.ItemID(id), nil
}

// GetItem implements ItemRepository.GetItem using SQLite.
func (r *SQLiteRepository) GetItem(ctx context.Context, id domain.ItemID) (*domain.Item, bool, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, sqliteItemSelect+" WHERE i.id = ?", int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, storageError("query item", err)
	}

	return item, true, nil
}

// ListItems implements ItemRepository.ListItems using SQLite.
func (r *SQLiteRepository) ListItems(ctx context.Context, includeWithdrawn bool) ([]domain.Item, error) {
	query := sqliteItemSelect
	if !includeWithdrawn {
		query += " WHERE i.withdrawn = 0"
	}

	rows, err := r.db.QueryContext(ctx, query+" ORDER BY i.id")
	if err != nil {
		return nil, storageError("query items", err)
	}
	defer rows.Close()

	items := []domain.Item{}

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storageError("scan item", err)
		}

		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate items", err)
	}

	return items, nil
}

// WithdrawItem implements ItemRepository.WithdrawItem using SQLite.
func (r *SQLiteRepository) WithdrawItem(ctx context.Context, id domain.ItemID) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var withdrawn bool

	err = tx.QueryRowContext(ctx, "SELECT withdrawn FROM items WHERE id = ?", int64(id)).Scan(&withdrawn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
		}

		return storageError("query item", err)
	}

	if withdrawn {
		return nil
	}

	var loaned bool

	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM loans WHERE item_id = ? AND status = 'open')",
		int64(id),
	).Scan(&loaned); err != nil {
		return storageError("query open loans", err)
	}

	if loaned {
		return fmt.Errorf("item %d: %w", id, domain.ErrItemCurrentlyLoaned)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE items SET withdrawn = 1 WHERE id = ?", int64(id)); err != nil {
		return storageError("update item", err)
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit", err)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

// OpenLoan implements LoanRepository.OpenLoan using SQLite.
//
//nolint:cyclop
func (r *SQLiteRepository) OpenLoan(
	ctx context.Context,
	accountID domain.AccountID,
	itemID domain.ItemID,
) (domain.BorrowReceipt, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.BorrowReceipt{}, storageError("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// (b) account is active
	var active bool

	err = tx.QueryRowContext(ctx, "SELECT active FROM accounts WHERE id = ?", int64(accountID)).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BorrowReceipt{}, fmt.Errorf("account %d: %w", accountID, domain.ErrUnauthorized)
		}

		return domain.BorrowReceipt{}, storageError("query account", err)
	}

	if !active {
		return domain.BorrowReceipt{}, fmt.Errorf("account %d: %w", accountID, domain.ErrAccountInactive)
	}

	// (c) item exists and is in circulation
	var (
		title     string
		withdrawn bool
	)

	err = tx.QueryRowContext(ctx, "SELECT title, withdrawn FROM items WHERE id = ?", int64(itemID)).
		Scan(&title, &withdrawn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BorrowReceipt{}, fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
		}

		return domain.BorrowReceipt{}, storageError("query item", err)
	}

	if withdrawn {
		return domain.BorrowReceipt{}, fmt.Errorf("item %d withdrawn: %w", itemID, domain.ErrNotFound)
	}

	// (d) no open loan for the pair; the partial unique index backs this check
	var open bool

	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM loans WHERE account_id = ? AND item_id = ? AND status = 'open')",
		int64(accountID),
		int64(itemID),
	).Scan(&open); err != nil {
		return domain.BorrowReceipt{}, storageError("query open loan", err)
	}

	if open {
		return domain.BorrowReceipt{}, fmt.Errorf("item %d: %w", itemID, domain.ErrAlreadyOpen)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO loans (account_id, item_id, status, opened_at) VALUES (?, ?, 'open', ?)",
		int64(accountID),
		int64(itemID),
		time.Now().Unix(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return domain.BorrowReceipt{}, fmt.Errorf("insert loan: %w", errors.Join(domain.ErrAlreadyOpen, err))
		}

		return domain.BorrowReceipt{}, storageError("insert loan", err)
	}

	loanID, err := res.LastInsertId()
	if err != nil {
		return domain.BorrowReceipt{}, storageError("last insert id", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.BorrowReceipt{}, storageError("commit", err)
	}

	return domain.BorrowReceipt{LoanID: domain.LoanID(loanID), Title: title}, nil
}

// CloseLoan implements LoanRepository.CloseLoan using SQLite.
func (r *SQLiteRepository) CloseLoan(ctx context.Context, loanID domain.LoanID, accountID domain.AccountID) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx,
		"UPDATE loans SET status = 'closed', closed_at = ? WHERE id = ? AND account_id = ? AND status = 'open'",
		time.Now().Unix(),
		int64(loanID),
		int64(accountID),
	)
	if err != nil {
		return storageError("update loan", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageError("rows affected", err)
	}

	if n == 0 {
		return fmt.Errorf("loan %d: %w", loanID, domain.ErrNotFoundOrAlreadyClosed)
	}

	return nil
}

func scanLoan(row interface{ Scan(dest ...any) error }) (*domain.Loan, error) {
	var (
		loan     domain.Loan
		status   string
		closedAt sql.NullInt64
	)

	if err := row.Scan(&loan.ID, &loan.AccountID, &loan.ItemID, &status, &loan.OpenedAt, &closedAt); err != nil {
		return nil, err //nolint:wrapcheck
	}

	loan.Status = domain.LoanStatus(status)
	loan.ClosedAt = closedAt.Int64

	return &loan, nil
}

// GetLoan implements LoanRepository.GetLoan using SQLite.
func (r *SQLiteRepository) GetLoan(ctx context.Context, id domain.LoanID) (*domain.Loan, bool, error) {
	loan, err := scanLoan(r.db.QueryRowContext(ctx,
		"SELECT id, account_id, item_id, status, opened_at, closed_at FROM loans WHERE id = ?",
		int64(id),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, storageError("query loan", err)
	}

	return loan, true, nil
}

// HasOpenLoan implements LoanRepository.HasOpenLoan using SQLite.
func (r *SQLiteRepository) HasOpenLoan(ctx context.Context, itemID domain.ItemID) (bool, error) {
	var open bool

	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM loans WHERE item_id = ? AND status = 'open')",
		int64(itemID),
	).Scan(&open); err != nil {
		return false, storageError("query open loan", err)
	}

	return open, nil
}

// ListOpenLoansByAccount implements LoanRepository.ListOpenLoansByAccount using SQLite.
func (r *SQLiteRepository) ListOpenLoansByAccount(
	ctx context.Context,
	accountID domain.AccountID,
) ([]domain.AccountLoan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, i.id, i.title, i.creator, l.opened_at
		FROM loans l
		JOIN items i ON i.id = l.item_id
		WHERE l.account_id = ? AND l.status = 'open' AND i.withdrawn = 0
		ORDER BY l.id`,
		int64(accountID),
	)
	if err != nil {
		return nil, storageError("query loans", err)
	}
	defer rows.Close()

	loans := []domain.AccountLoan{}

	for rows.Next() {
		var loan domain.AccountLoan

		if err := rows.Scan(&loan.LoanID, &loan.ItemID, &loan.Title, &loan.Creator, &loan.OpenedAt); err != nil {
			return nil, storageError("scan loan", err)
		}

		loans = append(loans, loan)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate loans", err)
	}

	return loans, nil
}

// ListOpenLoans implements LoanRepository.ListOpenLoans using SQLite.
func (r *SQLiteRepository) ListOpenLoans(ctx context.Context) ([]domain.HolderLoan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, i.id, i.title, i.creator, a.id, a.name, l.opened_at
		FROM loans l
		JOIN items i ON i.id = l.item_id
		JOIN accounts a ON a.id = l.account_id
		WHERE l.status = 'open'
		ORDER BY l.id`,
	)
	if err != nil {
		return nil, storageError("query loans", err)
	}
	defer rows.Close()

	loans := []domain.HolderLoan{}

	for rows.Next() {
		var loan domain.HolderLoan

		if err := rows.Scan(
			&loan.LoanID,
			&loan.ItemID,
			&loan.Title,
			&loan.Creator,
			&loan.HolderID,
			&loan.HolderName,
			&loan.OpenedAt,
		); err != nil {
			return nil, storageError("scan loan", err)
		}

		loans = append(loans, loan)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate loans", err)
	}

	return loans, nil
}

// ListLoansByItem implements LoanRepository.ListLoansByItem using SQLite.
func (r *SQLiteRepository) ListLoansByItem(ctx context.Context, itemID domain.ItemID) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, account_id, item_id, status, opened_at, closed_at FROM loans WHERE item_id = ? ORDER BY id",
		int64(itemID),
	)
	if err != nil {
		return nil, storageError("query loans", err)
	}
	defer rows.Close()

	loans := []domain.Loan{}

	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, storageError("scan loan", err)
		}

		loans = append(loans, *loan)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate loans", err)
	}

	return loans, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
