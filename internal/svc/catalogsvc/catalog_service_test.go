package catalogsvc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mkrupp/homecase-lending/internal/domain"
	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
	"github.com/mkrupp/homecase-lending/internal/svc/catalogsvc"
)

// mockItemRepository implements lending.ItemRepository for testing.
type mockItemRepository struct {
	items     []domain.Item
	err       error
	withdrawn []domain.ItemID
	m         sync.Mutex
}

func (m *mockItemRepository) CreateItem(_ context.Context, title, creator string) (domain.ItemID, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return 0, m.err
	}

	id := domain.ItemID(len(m.items) + 1)
	m.items = append(m.items, domain.Item{ID: id, Title: title, Creator: creator, CreatedAt: time.Now().Unix()})

	return id, nil
}

func (m *mockItemRepository) GetItem(_ context.Context, id domain.ItemID) (*domain.Item, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}

	if id < 1 || int(id) > len(m.items) {
		return nil, false, nil
	}

	item := m.items[id-1]

	return &item, true, nil
}

func (m *mockItemRepository) ListItems(_ context.Context, includeWithdrawn bool) ([]domain.Item, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	var items []domain.Item

	for _, item := range m.items {
		if includeWithdrawn || !item.Withdrawn {
			items = append(items, item)
		}
	}

	return items, nil
}

func (m *mockItemRepository) WithdrawItem(_ context.Context, id domain.ItemID) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	m.items[id-1].Withdrawn = true
	m.withdrawn = append(m.withdrawn, id)

	return nil
}

// mockLoanChecker implements catalogsvc.OpenLoanChecker for testing.
type mockLoanChecker struct {
	open map[domain.ItemID]bool
	err  error
}

func (m *mockLoanChecker) HasOpenLoan(_ context.Context, itemID domain.ItemID) (bool, error) {
	return m.open[itemID], m.err
}

var ErrRepoError = errors.New("repository error")

func withRole(role domain.Role) context.Context {
	return context_.WithPrincipal(context.Background(), domain.Principal{
		AccountID: 1,
		Name:      "someone",
		Role:      role,
		Active:    true,
	})
}

func TestCatalogService_AddItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ctx     context.Context //nolint:containedctx
		title   string
		creator string
		repoErr error
		wantErr error
	}{
		{
			name:    "administrator adds item",
			ctx:     withRole(domain.RoleAdmin),
			title:   "  Dune ",
			creator: "Herbert",
		},
		{
			name:    "member is refused",
			ctx:     withRole(domain.RoleMember),
			title:   "Dune",
			creator: "Herbert",
			wantErr: domain.ErrNotAdministrator,
		},
		{
			name:    "anonymous is refused",
			ctx:     context.Background(),
			title:   "Dune",
			creator: "Herbert",
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:    "blank title",
			ctx:     withRole(domain.RoleAdmin),
			title:   "   ",
			creator: "Herbert",
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "missing creator",
			ctx:     withRole(domain.RoleAdmin),
			title:   "Dune",
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "repository error",
			ctx:     withRole(domain.RoleAdmin),
			title:   "Dune",
			creator: "Herbert",
			repoErr: ErrRepoError,
			wantErr: ErrRepoError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &mockItemRepository{err: tt.repoErr}
			svc := catalogsvc.NewCatalogService(repo, &mockLoanChecker{})

			id, err := svc.AddItem(tt.ctx, tt.title, tt.creator)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddItem() error = %v, wantErr %v", err, tt.wantErr)
			}

			if err != nil {
				return
			}

			if repo.items[id-1].Title != "Dune" {
				t.Errorf("AddItem() stored title %q, want trimmed %q", repo.items[id-1].Title, "Dune")
			}
		})
	}
}

func TestCatalogService_Withdraw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		ctx          context.Context //nolint:containedctx
		item         domain.ItemID
		alreadyGone  bool
		loaned       bool
		checkErr     error
		wantErr      error
		wantWithdraw bool
	}{
		{
			name:         "free item",
			ctx:          withRole(domain.RoleAdmin),
			item:         1,
			wantWithdraw: true,
		},
		{
			name:    "loaned item",
			ctx:     withRole(domain.RoleAdmin),
			item:    1,
			loaned:  true,
			wantErr: domain.ErrItemCurrentlyLoaned,
		},
		{
			name:        "already withdrawn",
			ctx:         withRole(domain.RoleAdmin),
			item:        1,
			alreadyGone: true,
		},
		{
			name:    "unknown item",
			ctx:     withRole(domain.RoleAdmin),
			item:    7,
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "member on unknown item",
			ctx:     withRole(domain.RoleMember),
			item:    7,
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:     "ledger failure",
			ctx:      withRole(domain.RoleAdmin),
			item:     1,
			checkErr: ErrRepoError,
			wantErr:  ErrRepoError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &mockItemRepository{
				items: []domain.Item{{ID: 1, Title: "Dune", Creator: "Herbert", Withdrawn: tt.alreadyGone}},
			}
			checker := &mockLoanChecker{open: map[domain.ItemID]bool{1: tt.loaned}, err: tt.checkErr}
			svc := catalogsvc.NewCatalogService(repo, checker)

			err := svc.Withdraw(tt.ctx, tt.item)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Withdraw() error = %v, wantErr %v", err, tt.wantErr)
			}

			if got := len(repo.withdrawn) == 1; got != tt.wantWithdraw {
				t.Errorf("Withdraw() reached the repository = %v, want %v", got, tt.wantWithdraw)
			}
		})
	}
}

func TestCatalogService_Visibility(t *testing.T) {
	t.Parallel()

	repo := &mockItemRepository{
		items: []domain.Item{
			{ID: 1, Title: "Dune", Creator: "Herbert"},
			{ID: 2, Title: "Gone", Creator: "Nobody", Withdrawn: true},
		},
	}
	svc := catalogsvc.NewCatalogService(repo, &mockLoanChecker{})

	active, err := svc.ListActive(context.Background())
	if err != nil || len(active) != 1 {
		t.Fatalf("ListActive() = %v, %v; want one item", active, err)
	}

	all, err := svc.ListAll(withRole(domain.RoleAdmin))
	if err != nil || len(all) != 2 {
		t.Fatalf("ListAll() = %v, %v; want two items", all, err)
	}

	if _, err := svc.GetItem(context.Background(), 2); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetItem() of withdrawn item error = %v, want not found", err)
	}

	if item, err := svc.GetItem(withRole(domain.RoleAdmin), 2); err != nil || !item.Withdrawn {
		t.Errorf("GetItem() as administrator = %v, %v", item, err)
	}

	if _, err := svc.GetItem(context.Background(), 3); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetItem() of unknown item error = %v, want not found", err)
	}
}
