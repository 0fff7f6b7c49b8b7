package ledgersvc

import (
	"context"
	"fmt"

	"github.com/mkrupp/homecase-lending/internal/domain"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
	"github.com/mkrupp/homecase-lending/internal/repo/lending"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc"
	"github.com/mkrupp/homecase-lending/internal/svc/catalogsvc"
)

// Repository is the part of the lending store the ledger needs.
type Repository interface {
	lending.LoanRepository

	GetItem(ctx context.Context, id domain.ItemID) (*domain.Item, bool, error)
}

// LedgerService records who holds which item.
type LedgerService struct {
	repo Repository
	log  logging.Logger
}

var _ catalogsvc.OpenLoanChecker = (*LedgerService)(nil)

// NewLedgerService creates a new LedgerService backed by repo.
func NewLedgerService(repo Repository) *LedgerService {
	return &LedgerService{
		repo: repo,
		log:  logging.GetLogger("svc.ledgersvc.ledger_service"),
	}
}

// Borrow opens a loan of the item for the calling account. Failures are
// checked in this order: no session (domain.ErrUnauthorized), account inactive
// (domain.ErrAccountInactive), item missing or withdrawn (domain.ErrNotFound),
// loan already open (domain.ErrAlreadyOpen).
func (s *LedgerService) Borrow(ctx context.Context, itemID domain.ItemID) (_ domain.BorrowReceipt, err error) {
	log := s.log.With(logging.Group("item", "id", itemID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "borrow failed", "error", err)
		} else {
			log.DebugContext(ctx, "item borrowed")
		}
	}()

	principal, err := authsvc.RequireSession(ctx)
	if err != nil {
		return domain.BorrowReceipt{}, err
	}

	log = log.With(logging.Group("account", "id", principal.AccountID))

	receipt, err := s.repo.OpenLoan(ctx, principal.AccountID, itemID)
	if err != nil {
		return domain.BorrowReceipt{}, fmt.Errorf("open loan: %w", err)
	}

	log = log.With(logging.Group("loan", "id", receipt.LoanID))

	return receipt, nil
}

// Return closes a loan held by the calling account. Loans that do not exist,
// belong to someone else or are already closed all yield
// domain.ErrNotFoundOrAlreadyClosed. Administrators get no bypass.
func (s *LedgerService) Return(ctx context.Context, loanID domain.LoanID) (loan domain.Loan, err error) {
	log := s.log.With(logging.Group("loan", "id", loanID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "return failed", "error", err)
		} else {
			log.DebugContext(ctx, "item returned", "item", loan.ItemID)
		}
	}()

	principal, err := authsvc.RequireSession(ctx)
	if err != nil {
		return domain.Loan{}, err
	}

	if err := s.repo.CloseLoan(ctx, loanID, principal.AccountID); err != nil {
		return domain.Loan{}, fmt.Errorf("close loan: %w", err)
	}

	// the loan is closed at this point, so a failed read-back must not turn
	// into an error the caller would retry
	closed, ok, err := s.repo.GetLoan(ctx, loanID)
	if err != nil || !ok {
		log.WarnContext(ctx, "reading closed loan failed", "error", err)

		return domain.Loan{ID: loanID, AccountID: principal.AccountID, Status: domain.LoanClosed}, nil
	}

	return *closed, nil
}

// ListOpenForAccount returns the open loans of the calling account on items
// still in circulation.
func (s *LedgerService) ListOpenForAccount(ctx context.Context) ([]domain.AccountLoan, error) {
	principal, err := authsvc.RequireSession(ctx)
	if err != nil {
		return nil, err
	}

	loans, err := s.repo.ListOpenLoansByAccount(ctx, principal.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	return loans, nil
}

// ListOpenAll returns every open loan with its holder. Only administrators may call it.
func (s *LedgerService) ListOpenAll(ctx context.Context) ([]domain.HolderLoan, error) {
	if _, err := authsvc.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	loans, err := s.repo.ListOpenLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	return loans, nil
}

// HasOpenLoan implements catalogsvc.OpenLoanChecker.
func (s *LedgerService) HasOpenLoan(ctx context.Context, itemID domain.ItemID) (bool, error) {
	open, err := s.repo.HasOpenLoan(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("has open loan: %w", err)
	}

	return open, nil
}

// ItemHistory returns every loan of an item, open and closed, in opening order.
// Only administrators may call it.
func (s *LedgerService) ItemHistory(ctx context.Context, itemID domain.ItemID) ([]domain.Loan, error) {
	if _, err := authsvc.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	if _, ok, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
	}

	loans, err := s.repo.ListLoansByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	return loans, nil
}
