package catalogsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkrupp/homecase-lending/internal/domain"
	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
	"github.com/mkrupp/homecase-lending/internal/infra/logging"
	"github.com/mkrupp/homecase-lending/internal/repo/lending"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc"
)

// OpenLoanChecker reports whether an item is currently lent out.
// The ledger implements it; the catalog does not track loans itself.
type OpenLoanChecker interface {
	HasOpenLoan(ctx context.Context, itemID domain.ItemID) (bool, error)
}

// CatalogService manages the items available for lending.
type CatalogService struct {
	repo  lending.ItemRepository
	loans OpenLoanChecker
	log   logging.Logger
}

// NewCatalogService creates a new CatalogService. loans is consulted before an
// item is withdrawn.
func NewCatalogService(repo lending.ItemRepository, loans OpenLoanChecker) *CatalogService {
	return &CatalogService{
		repo:  repo,
		loans: loans,
		log:   logging.GetLogger("svc.catalogsvc.catalog_service"),
	}
}

// AddItem puts a new item into circulation. Only administrators may call it.
// Title and creator are trimmed and must not be empty.
func (s *CatalogService) AddItem(ctx context.Context, title, creator string) (_ domain.ItemID, err error) {
	title, creator = strings.TrimSpace(title), strings.TrimSpace(creator)
	log := s.log.With(logging.Group("item", "title", title, "creator", creator))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "add item failed", "error", err)
		} else {
			log.DebugContext(ctx, "item added")
		}
	}()

	if _, err := authsvc.RequireAdmin(ctx); err != nil {
		return 0, err
	}

	if title == "" || creator == "" {
		return 0, fmt.Errorf("title and creator are required: %w", domain.ErrInvalidInput)
	}

	id, err := s.repo.CreateItem(ctx, title, creator)
	if err != nil {
		return 0, fmt.Errorf("create item: %w", err)
	}

	log = log.With(logging.Group("item", "id", id))

	return id, nil
}

// ListActive returns the items in circulation in creation order.
func (s *CatalogService) ListActive(ctx context.Context) ([]domain.Item, error) {
	items, err := s.repo.ListItems(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return items, nil
}

// ListAll returns every item including withdrawn ones. Only administrators may call it.
func (s *CatalogService) ListAll(ctx context.Context) ([]domain.Item, error) {
	if _, err := authsvc.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	items, err := s.repo.ListItems(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return items, nil
}

// GetItem returns one item. Withdrawn items are only visible to administrators;
// everyone else gets domain.ErrNotFound.
func (s *CatalogService) GetItem(ctx context.Context, id domain.ItemID) (*domain.Item, error) {
	item, ok, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}

	if item.Withdrawn {
		if principal, ok := context_.PrincipalFromContext(ctx); !ok || !principal.IsAdmin() {
			return nil, fmt.Errorf("item %d withdrawn: %w", id, domain.ErrNotFound)
		}
	}

	return item, nil
}

// Withdraw removes an item from circulation for good. Only administrators may
// call it. Items with an open loan cannot be withdrawn; the check is repeated
// by the repository in the same transaction as the update. Withdrawing a
// withdrawn item succeeds.
func (s *CatalogService) Withdraw(ctx context.Context, id domain.ItemID) (err error) {
	log := s.log.With(logging.Group("item", "id", id))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "withdraw item failed", "error", err)
		} else {
			log.InfoContext(ctx, "item withdrawn")
		}
	}()

	if _, err := authsvc.RequireAdmin(ctx); err != nil {
		return err
	}

	item, ok, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}

	if !ok {
		return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}

	if item.Withdrawn {
		return nil
	}

	loaned, err := s.loans.HasOpenLoan(ctx, id)
	if err != nil {
		return fmt.Errorf("check open loans: %w", err)
	}

	if loaned {
		return fmt.Errorf("item %d: %w", id, domain.ErrItemCurrentlyLoaned)
	}

	if err := s.repo.WithdrawItem(ctx, id); err != nil {
		return fmt.Errorf("withdraw item: %w", err)
	}

	return nil
}
