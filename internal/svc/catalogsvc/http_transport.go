package catalogsvc

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

// ItemRequest is the body of an add-item request.
type ItemRequest struct {
	Title   string `json:"title"`
	Creator string `json:"creator"`
}

// HTTPTransport handles HTTP requests for the catalog.
type HTTPTransport struct {
	catalogSvc *CatalogService
	log        logging.Logger
}

// NewHTTPTransport creates a new HTTPTransport for the given catalog.
func NewHTTPTransport(catalogSvc *CatalogService) *HTTPTransport {
	return &HTTPTransport{
		catalogSvc: catalogSvc,
		log:        logging.GetLogger("svc.catalogsvc.http_transport"),
	}
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// RegisterRoutes implements http_.HTTPTransport:
// - GET /items: list items in circulation
// - GET /items/{id}: get one item
// - POST /items: add an item
// - GET /admin/items: list all items
// - POST /admin/items/{id}/withdraw: withdraw an item.
func (ht *HTTPTransport) RegisterRoutes(r chi.Router) {
	r.Get("/items", ht.HandleListItems)
	r.Get("/items/{id}", ht.HandleGetItem)
	r.Post("/items", ht.HandleAddItem)
	r.Get("/admin/items", ht.HandleListAllItems)
	r.Post("/admin/items/{id}/withdraw", ht.HandleWithdrawItem)
}

func (ht *HTTPTransport) fail(ctx context.Context, w http.ResponseWriter, r *http.Request, msg string, err error) {
	ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String())).
		WarnContext(ctx, msg, "error", err)
	http_.WriteError(w, r, err)
}

// HandleListItems lists the items in circulation.
func (ht *HTTPTransport) HandleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := ht.catalogSvc.ListActive(r.Context())
	if err != nil {
		ht.fail(r.Context(), w, r, "list items failed", err)

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, items)
}

// HandleListAllItems lists every item including withdrawn ones. Administrators only.
func (ht *HTTPTransport) HandleListAllItems(w http.ResponseWriter, r *http.Request) {
	items, err := ht.catalogSvc.ListAll(r.Context())
	if err != nil {
		ht.fail(r.Context(), w, r, "list all items failed", err)

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, items)
}

// HandleGetItem returns the item named in the path.
func (ht *HTTPTransport) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGetItem(w, r)
}

func (ht *HTTPTransport) handleGetItem(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if err != nil {
			ht.fail(r.Context(), w, r, "get item failed", err)
		}
	}()

	id, err := domain.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}

	item, err := ht.catalogSvc.GetItem(r.Context(), id)
	if err != nil {
		return err
	}

	return http_.WriteJSON(w, http.StatusOK, item)
}

// HandleAddItem adds an item. Expects a JSON body with title and creator.
// Administrators only.
func (ht *HTTPTransport) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleAddItem(w, r)
}

func (ht *HTTPTransport) handleAddItem(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if err != nil {
			ht.fail(r.Context(), w, r, "add item failed", err)
		}
	}()

	if _, err := authsvc.RequireAdmin(r.Context()); err != nil {
		return err
	}

	var req ItemRequest
	if err := http_.ReadJSON(w, r, &req); err != nil {
		return err
	}

	id, err := ht.catalogSvc.AddItem(r.Context(), req.Title, req.Creator)
	if err != nil {
		return err
	}

	return http_.WriteJSON(w, http.StatusCreated, domain.ItemIDResponse{ItemID: id})
}

// HandleWithdrawItem withdraws the item named in the path. Administrators only.
func (ht *HTTPTransport) HandleWithdrawItem(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleWithdrawItem(w, r)
}

func (ht *HTTPTransport) handleWithdrawItem(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if err != nil {
			ht.fail(r.Context(), w, r, "withdraw item failed", err)
		}
	}()

	if _, err := authsvc.RequireAdmin(r.Context()); err != nil {
		return err
	}

	id, err := domain.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}

	if err := ht.catalogSvc.Withdraw(r.Context(), id); err != nil {
		return err
	}

	return http_.WriteJSON(w, http.StatusOK, domain.MessageResponse{Message: "item withdrawn"})
}
