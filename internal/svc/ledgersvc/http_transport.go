package ledgersvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/homecase-lending/internal/domain"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
	http_ "github.com/mkrupp/homecase-lending/internal/infra/transport/http"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc"
)

// HTTPTransport handles HTTP requests for the ledger.
type HTTPTransport struct {
	ledgerSvc *LedgerService
	log       logging.Logger
}

// NewHTTPTransport creates a new HTTPTransport for the given ledger.
func NewHTTPTransport(ledgerSvc *LedgerService) *HTTPTransport {
	return &HTTPTransport{
		ledgerSvc: ledgerSvc,
		log:       logging.GetLogger("svc.ledgersvc.http_transport"),
	}
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// RegisterRoutes implements http_.HTTPTransport:
// - POST /items/{id}/borrow: borrow an item
// - POST /loans/{id}/return: return a loan
// - GET /loans: list the caller's open loans
// - GET /admin/loans: list all open loans
// - GET /admin/items/{id}/loans: list the loan history of an item.
func (ht *HTTPTransport) RegisterRoutes(r chi.Router) {
	r.Post("/items/{id}/borrow", ht.HandleBorrow)
	r.Post("/loans/{id}/return", ht.HandleReturn)
	r.Get("/loans", ht.HandleListLoans)
	r.Get("/admin/loans", ht.HandleListAllLoans)
	r.Get("/admin/items/{id}/loans", ht.HandleItemHistory)
}

func (ht *HTTPTransport) fail(ctx context.Context, w http.ResponseWriter, r *http.Request, msg string, err error) {
	ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String())).
		WarnContext(ctx, msg, "error", err)
	http_.WriteError(w, r, err)
}

// HandleBorrow borrows the item named in the path for the caller.
func (ht *HTTPTransport) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleBorrow(w, r)
}

func (ht *HTTPTransport) handleBorrow(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if err != nil {
			ht.fail(r.Context(), w, r, "borrow failed", err)
		}
	}()

	// an anonymous caller is unauthorized whatever the path says
	if _, err := authsvc.RequireSession(r.Context()); err != nil {
		return err
	}

	id, err := domain.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}

	receipt, err := ht.ledgerSvc.Borrow(r.Context(), id)
	if err != nil {
		return err
	}

	return http_.WriteJSON(w, http.StatusOK, receipt)
}

// HandleReturn closes the caller's loan named in the path.
func (ht *HTTPTransport) HandleReturn(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleReturn(w, r)
}

func (ht *HTTPTransport) handleReturn(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if err != nil {
			ht.fail(r.Context(), w, r, "return failed", err)
		}
	}()

	if _, err := authsvc.RequireSession(r.Context()); err != nil {
		return err
	}

	id, err := domain.ParseLoanID(chi.URLParam(r, "id"))
	if err != nil {
		return fmt.Errorf("parse loan id: %w", err)
	}

	loan, err := ht.ledgerSvc.Return(r.Context(), id)
	if err != nil {
		return err
	}

	return http_.WriteJSON(w, http.StatusOK, loan)
}

// HandleListLoans lists the caller's open loans.
func (ht *HTTPTransport) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := ht.ledgerSvc.ListOpenForAccount(r.Context())
	if err != nil {
		ht.fail(r.Context(), w, r, "list loans failed", err)

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, loans)
}

// HandleListAllLoans lists every open loan. Administrators only.
func (ht *HTTPTransport) HandleListAllLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := ht.ledgerSvc.ListOpenAll(r.Context())
	if err != nil {
		ht.fail(r.Context(), w, r, "list all loans failed", err)

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, loans)
}

// HandleItemHistory lists every loan of the item named in the path. Administrators only.
func (ht *HTTPTransport) HandleItemHistory(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleItemHistory(w, r)
}

func (ht *HTTPTransport) handleItemHistory(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if err != nil {
			ht.fail(r.Context(), w, r, "item history failed", err)
		}
	}()

	if _, err := authsvc.RequireAdmin(r.Context()); err != nil {
		return err
	}

	id, err := domain.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}

	loans, err := ht.ledgerSvc.ItemHistory(r.Context(), id)
	if err != nil {
		return err
	}

	return http_.WriteJSON(w, http.StatusOK, loans)
}
