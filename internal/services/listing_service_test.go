package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/pagination"
	"github.com/catalogsync/api/internal/repositories"
)

type memoryListingRepository struct {
	mu       sync.Mutex
	listings map[string]domain.MarketplaceListing
	failWith error
}

func newMemoryListingRepository() *memoryListingRepository {
	return &memoryListingRepository{listings: map[string]domain.MarketplaceListing{}}
}

func (r *memoryListingRepository) Create(_ context.Context, listing domain.MarketplaceListing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	for _, existing := range r.listings {
		if existing.ProductID == listing.ProductID && existing.Marketplace == listing.Marketplace {
			return stubRepoError{conflict: true}
		}
	}
	r.listings[listing.ID] = listing
	return nil
}

func (r *memoryListingRepository) Get(_ context.Context, id string) (domain.MarketplaceListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return domain.MarketplaceListing{}, errStubNotFound
	}
	return l, nil
}

func (r *memoryListingRepository) Update(_ context.Context, listing domain.MarketplaceListing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[listing.ID]; !ok {
		return errStubNotFound
	}
	r.listings[listing.ID] = listing
	return nil
}

func (r *memoryListingRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[id]; !ok {
		return errStubNotFound
	}
	delete(r.listings, id)
	return nil
}

func (r *memoryListingRepository) List(_ context.Context, filter repositories.ListingFilter) ([]domain.MarketplaceListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.MarketplaceListing
	for _, l := range r.listings {
		if filter.Marketplace != "" && l.Marketplace != filter.Marketplace {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.ProductID != "" && l.ProductID != filter.ProductID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryListingRepository) ListByProduct(ctx context.Context, productID string) ([]domain.MarketplaceListing, error) {
	return r.List(ctx, repositories.ListingFilter{ProductID: productID})
}

func (r *memoryListingRepository) ListedProductIDs(_ context.Context, marketplace string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := map[string]struct{}{}
	for _, l := range r.listings {
		if l.Marketplace == marketplace {
			ids[l.ProductID] = struct{}{}
		}
	}
	return ids, nil
}

func newTestListingService(t *testing.T, listings *memoryListingRepository, products *memoryProductRepository) ListingService {
	t.Helper()
	svc, err := NewListingService(ListingServiceDeps{
		Listings: listings,
		Products: products,
		Clock:    fixedClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)),
		IDGen:    sequenceIDs("lst"),
	})
	if err != nil {
		t.Fatalf("NewListingService: %v", err)
	}
	return svc
}

func catalogProducts() *memoryProductRepository {
	return newMemoryProductRepository(
		domain.Product{
			ID:            "p1",
			Name:          "Fone Bluetooth",
			Price:         150,
			StockQuantity: 8,
			CreatedBy:     "owner-1",
			Images:        []string{"https://cdn.example.com/p1.jpg"},
			Attributes:    []domain.Attribute{{ID: "BRAND", Name: "Marca", Values: []domain.AttributeValue{}}},
		},
		domain.Product{ID: "p2", Name: "Carregador", Price: 40},
		domain.Product{ID: "p3", Name: "Cabo", Price: 15},
	)
}

func TestListingServiceCreateProjectsProduct(t *testing.T) {
	svc := newTestListingService(t, newMemoryListingRepository(), catalogProducts())

	listing, err := svc.Create(context.Background(), ListingInput{
		Listing: domain.MarketplaceListing{ProductID: "p1", Marketplace: " MercadoLivre "},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if listing.ID != "lst-1" || listing.Marketplace != "mercadolivre" {
		t.Fatalf("unexpected identity %+v", listing)
	}
	if listing.Title != "Fone Bluetooth" || listing.Price != 150 || listing.StockQuantity != 8 {
		t.Fatalf("expected product projection, got %+v", listing)
	}
	if listing.Status != domain.ListingStatusDraft || listing.UserID != "owner-1" {
		t.Fatalf("unexpected defaults %+v", listing)
	}
	if len(listing.Attributes) != 1 || len(listing.Images) != 1 {
		t.Fatalf("expected attributes and images copied, got %+v", listing)
	}
}

func TestListingServiceCreateDuplicateIsConflict(t *testing.T) {
	svc := newTestListingService(t, newMemoryListingRepository(), catalogProducts())
	ctx := context.Background()

	if _, err := svc.Create(ctx, ListingInput{Listing: domain.MarketplaceListing{ProductID: "p1", Marketplace: "shopee"}}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := svc.Create(ctx, ListingInput{Listing: domain.MarketplaceListing{ProductID: "p1", Marketplace: "SHOPEE"}})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if Message(err) == "" {
		t.Fatalf("expected message naming the conflicting pair")
	}
	if _, err := svc.Create(ctx, ListingInput{Listing: domain.MarketplaceListing{ProductID: "p1", Marketplace: "amazon"}}); err != nil {
		t.Fatalf("other marketplace must be allowed: %v", err)
	}
}

func TestListingServiceCreateValidation(t *testing.T) {
	svc := newTestListingService(t, newMemoryListingRepository(), catalogProducts())
	ctx := context.Background()

	cases := []struct {
		name  string
		input ListingInput
		kind  error
	}{
		{"missing product", ListingInput{Listing: domain.MarketplaceListing{Marketplace: "shopee"}}, ErrInvalidInput},
		{"missing marketplace", ListingInput{Listing: domain.MarketplaceListing{ProductID: "p1"}}, ErrInvalidInput},
		{"unknown product", ListingInput{Listing: domain.MarketplaceListing{ProductID: "zz", Marketplace: "shopee"}}, ErrNotFound},
		{"promo above price", ListingInput{Listing: domain.MarketplaceListing{ProductID: "p2", Marketplace: "shopee", PromotionalPrice: floatPtr(50)}}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.input); !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestListingServiceCreateBulkReportsPerItem(t *testing.T) {
	listings := newMemoryListingRepository()
	svc := newTestListingService(t, listings, catalogProducts())

	results, err := svc.CreateBulk(context.Background(), []ListingInput{
		{Listing: domain.MarketplaceListing{ProductID: "p1", Marketplace: "shopee"}},
		{Listing: domain.MarketplaceListing{ProductID: "p1", Marketplace: "shopee"}},
		{Listing: domain.MarketplaceListing{ProductID: "missing", Marketplace: "shopee"}},
		{Listing: domain.MarketplaceListing{ProductID: "p2", Marketplace: "shopee"}},
	})
	if err != nil {
		t.Fatalf("CreateBulk: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected four results, got %d", len(results))
	}
	want := []bool{true, false, false, true}
	for i, r := range results {
		if r.Success != want[i] || r.Index != i {
			t.Fatalf("result %d: unexpected %+v", i, r)
		}
		if !r.Success && r.Error == "" {
			t.Fatalf("result %d: expected error message", i)
		}
	}

	if _, err := svc.CreateBulk(context.Background(), nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty bulk, got %v", err)
	}
}

func TestListingServiceCreateBulkHidesInternalErrors(t *testing.T) {
	listings := newMemoryListingRepository()
	listings.failWith = errors.New("deadline exceeded talking to firestore")
	svc := newTestListingService(t, listings, catalogProducts())

	results, err := svc.CreateBulk(context.Background(), []ListingInput{
		{Listing: domain.MarketplaceListing{ProductID: "p1", Marketplace: "shopee"}},
	})
	if err != nil {
		t.Fatalf("CreateBulk: %v", err)
	}
	if results[0].Success || results[0].Error != internalFailureMessage {
		t.Fatalf("expected generic message, got %+v", results[0])
	}
}

func TestListingServiceUnpublished(t *testing.T) {
	svc := newTestListingService(t, newMemoryListingRepository(), catalogProducts())
	ctx := context.Background()

	if _, err := svc.Create(ctx, ListingInput{Listing: domain.MarketplaceListing{ProductID: "p2", Marketplace: "shopee"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	page, err := svc.Unpublished(ctx, "Shopee", pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("Unpublished: %v", err)
	}
	if page.Meta.Total != 2 || page.Items[0].ID != "p1" || page.Items[1].ID != "p3" {
		t.Fatalf("unexpected unpublished page %+v", page.Items)
	}

	if _, err := svc.Unpublished(ctx, " ", pagination.Params{Limit: 10}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input without marketplace, got %v", err)
	}
}

func TestListingServiceUpdateAndDelete(t *testing.T) {
	svc := newTestListingService(t, newMemoryListingRepository(), catalogProducts())
	ctx := context.Background()

	created, err := svc.Create(ctx, ListingInput{Listing: domain.MarketplaceListing{ProductID: "p1", Marketplace: "shopee"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.Update(ctx, UpdateListingCommand{
		ListingID: created.ID,
		Patch: ListingPatch{
			Title:            stringPtr("Fone BT Pro"),
			PromotionalPrice: floatPtr(129.9),
			Status:           stringPtr("Active"),
		},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Fone BT Pro" || updated.Status != "active" || *updated.PromotionalPrice != 129.9 {
		t.Fatalf("patch not applied %+v", updated)
	}
	if updated.Marketplace != "shopee" || updated.ProductID != "p1" {
		t.Fatalf("identity fields must not change")
	}

	byProduct, err := svc.ListByProduct(ctx, "p1")
	if err != nil || len(byProduct) != 1 {
		t.Fatalf("ListByProduct: %v %+v", err, byProduct)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
}

func TestListingServiceListFilters(t *testing.T) {
	svc := newTestListingService(t, newMemoryListingRepository(), catalogProducts())
	ctx := context.Background()
	for _, pid := range []string{"p1", "p2", "p3"} {
		if _, err := svc.Create(ctx, ListingInput{Listing: domain.MarketplaceListing{ProductID: pid, Marketplace: "shopee"}}); err != nil {
			t.Fatalf("Create %s: %v", pid, err)
		}
	}
	if _, err := svc.Create(ctx, ListingInput{Listing: domain.MarketplaceListing{ProductID: "p1", Marketplace: "amazon"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	page, err := svc.List(ctx, ListingListFilter{Marketplace: "SHOPEE", Pagination: pagination.Params{Limit: 2, Offset: 2}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Meta.Total != 3 || len(page.Items) != 1 || page.Meta.HasNext || !page.Meta.HasPrev {
		t.Fatalf("unexpected page %+v", page)
	}
}
