package domain

import (
	"errors"
	"strconv"
)

var (
	// ErrAlreadyOpen is returned when the account already holds an open loan for the item.
	ErrAlreadyOpen = errors.New("loan already open")
	// ErrNotFoundOrAlreadyClosed is returned when a loan does not exist, belongs to
	// another account, or has already been returned. The cases are not distinguished.
	ErrNotFoundOrAlreadyClosed = errors.New("loan not found or already closed")
)

// LoanID identifies a loan record.
type LoanID int64

func (id LoanID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseLoanID parses a decimal loan id.
func ParseLoanID(s string) (LoanID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidInput
	}

	return LoanID(id), nil
}

// LoanStatus is the lifecycle state of a loan. Closed is terminal.
type LoanStatus string

const (
	LoanOpen   LoanStatus = "open"
	LoanClosed LoanStatus = "closed"
)

// Loan links one account to one item. AccountID and ItemID never change after creation.
type Loan struct {
	ID        LoanID     `json:"id"`
	AccountID AccountID  `json:"accountId"`
	ItemID    ItemID     `json:"itemId"`
	Status    LoanStatus `json:"status"`
	OpenedAt  int64      `json:"openedAt"`
	ClosedAt  int64      `json:"closedAt,omitempty"` // zero while open
}

// AccountLoan is an open loan of the calling account joined with its item.
type AccountLoan struct {
	LoanID   LoanID `json:"loanId"`
	ItemID   ItemID `json:"itemId"`
	Title    string `json:"title"`
	Creator  string `json:"creator"`
	OpenedAt int64  `json:"openedAt"`
}

// HolderLoan is an open loan joined with its item and the holding account.
type HolderLoan struct {
	LoanID     LoanID    `json:"loanId"`
	ItemID     ItemID    `json:"itemId"`
	Title      string    `json:"title"`
	Creator    string    `json:"creator"`
	HolderID   AccountID `json:"holderId"`
	HolderName string    `json:"holderName"`
	OpenedAt   int64     `json:"openedAt"`
}

// BorrowReceipt is the result of a successful borrow.
type BorrowReceipt struct {
	LoanID LoanID `json:"loanId"`
	Title  string `json:"title"`
}
