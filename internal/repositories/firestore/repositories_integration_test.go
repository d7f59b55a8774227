//go:build integration

package firestore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/api/internal/domain"
	pconfig "github.com/catalogsync/api/internal/platform/config"
	pfirestore "github.com/catalogsync/api/internal/platform/firestore"
	"github.com/catalogsync/api/internal/repositories"
)

func emulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "catalog-test", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func TestProductMutateSerialisesVariationInserts(t *testing.T) {
	provider := emulatorProvider(t)
	repo, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("NewProductRepository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	id := uuid.NewString()
	if err := repo.Create(ctx, domain.Product{ID: id, Name: "Tênis", Price: 100, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}

	errDuplicate := errors.New("duplicate")
	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Mutate(ctx, id, func(p *domain.Product) error {
				if p.VariationIndex("X1") >= 0 {
					return errDuplicate
				}
				p.Variations = append(p.Variations, domain.Variation{SKU: "X1", Price: p.Price})
				return nil
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, errDuplicate) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one winning insert, got %d", successes)
	}
	stored, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Variations) != 1 || !stored.HasVariations {
		t.Fatalf("unexpected stored variations %+v", stored.Variations)
	}
}

func TestListingCreateRejectsDuplicatePair(t *testing.T) {
	provider := emulatorProvider(t)
	repo, err := NewListingRepository(provider)
	if err != nil {
		t.Fatalf("NewListingRepository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	productID := uuid.NewString()
	first := domain.MarketplaceListing{ID: uuid.NewString(), ProductID: productID, Marketplace: "mercadolivre", CreatedAt: time.Now()}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	second := first
	second.ID = uuid.NewString()
	err = repo.Create(ctx, second)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("expected claim to be released after delete, got %v", err)
	}
}
