package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string {
	return fmt.Sprintf("repo error (notFound=%t conflict=%t)", e.notFound, e.conflict)
}
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

var errStubNotFound = stubRepoError{notFound: true}

type memoryProductRepository struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	writes    int
	createErr error
	listErr   error
	lastList  repositories.ProductFilter
}

func newMemoryProductRepository(products ...domain.Product) *memoryProductRepository {
	repo := &memoryProductRepository{products: map[string]domain.Product{}}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *memoryProductRepository) Create(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, exists := r.products[product.ID]; exists {
		return stubRepoError{conflict: true}
	}
	r.products[product.ID] = product
	r.writes++
	return nil
}

func (r *memoryProductRepository) Get(_ context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, errStubNotFound
	}
	return cloneProduct(p), nil
}

func (r *memoryProductRepository) Mutate(_ context.Context, id string, fn repositories.ProductMutation) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, errStubNotFound
	}
	working := cloneProduct(p)
	if err := fn(&working); err != nil {
		return domain.Product{}, err
	}
	working.ID = id
	working.SyncVariationFlag()
	r.products[id] = working
	r.writes++
	return cloneProduct(working), nil
}

func (r *memoryProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return errStubNotFound
	}
	delete(r.products, id)
	r.writes++
	return nil
}

func (r *memoryProductRepository) List(_ context.Context, filter repositories.ProductFilter) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastList = filter
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sortProductsByID(out)
	return out, nil
}

func (r *memoryProductRepository) ListPending(_ context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.products {
		if p.ApprovalStatus == domain.ApprovalStatusPending {
			out = append(out, cloneProduct(p))
		}
	}
	sortProductsByID(out)
	return out, nil
}

func (r *memoryProductRepository) stored(id string) domain.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneProduct(r.products[id])
}

func cloneProduct(p domain.Product) domain.Product {
	p.Attributes = append([]domain.Attribute(nil), p.Attributes...)
	p.Variations = append([]domain.Variation(nil), p.Variations...)
	p.Images = append([]string(nil), p.Images...)
	return p
}

func sortProductsByID(products []domain.Product) {
	for i := 1; i < len(products); i++ {
		for j := i; j > 0 && products[j].ID < products[j-1].ID; j-- {
			products[j], products[j-1] = products[j-1], products[j]
		}
	}
}

type stubHistoryRepository struct {
	mu      sync.Mutex
	entries []domain.ApprovalHistoryEntry
	err     error
}

func (s *stubHistoryRepository) Append(_ context.Context, entry domain.ApprovalHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubHistoryRepository) ListByProduct(_ context.Context, productID string) ([]domain.ApprovalHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ApprovalHistoryEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ProductID == productID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func stringPtr(v string) *string  { return &v }
