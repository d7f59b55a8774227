package firestore

import (
	"context"
	"errors"
	"slices"

	"cloud.google.com/go/firestore"

	"github.com/catalogsync/api/internal/domain"
	pfirestore "github.com/catalogsync/api/internal/platform/firestore"
	"github.com/catalogsync/api/internal/repositories"
)

const productsCollection = "products"

// ProductRepository stores products as single documents with nested attributes and variations.
type ProductRepository struct {
	provider *pfirestore.Provider
	coll     *pfirestore.Collection[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository: firestore provider is required")
	}
	return &ProductRepository{
		provider: provider,
		coll:     pfirestore.NewCollection[productDocument](provider, productsCollection),
	}, nil
}

// Create inserts a new product; an existing ID is a conflict.
func (r *ProductRepository) Create(ctx context.Context, product domain.Product) error {
	return r.coll.Create(ctx, product.ID, encodeProduct(product))
}

// Get loads a product by ID.
func (r *ProductRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	doc, err := r.coll.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(doc.ID, doc.Data), nil
}

// Mutate applies fn to the stored product inside a transaction so concurrent variation writers
// cannot both pass the SKU uniqueness check.
func (r *ProductRepository) Mutate(ctx context.Context, id string, fn repositories.ProductMutation) (domain.Product, error) {
	var result domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.coll.Ref(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("products.mutate", err)
		}
		doc, err := pfirestore.Decode[productDocument](snap)
		if err != nil {
			return err
		}
		product := decodeProduct(doc.ID, doc.Data)
		if err := fn(&product); err != nil {
			return err
		}
		product.ID = id
		product.SyncVariationFlag()
		if err := tx.Set(ref, encodeProduct(product)); err != nil {
			return err
		}
		result = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return result, nil
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	return r.coll.Delete(ctx, id)
}

// List returns products matching the store-side filter, newest first.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductFilter) ([]domain.Product, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Active != nil {
			q = q.Where("active", "==", *filter.Active)
		}
		if filter.Featured != nil {
			q = q.Where("featured", "==", *filter.Featured)
		}
		if filter.CategoryID != "" {
			q = q.Where("category_id", "==", filter.CategoryID)
		}
		if filter.MinPrice != nil {
			q = q.Where("price", ">=", *filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			q = q.Where("price", "<=", *filter.MaxPrice)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	return decodeProducts(docs), nil
}

// ListPending returns products awaiting an approval decision, newest first.
func (r *ProductRepository) ListPending(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("approval_status", "==", string(domain.ApprovalStatusPending))
	})
	if err != nil {
		return nil, err
	}
	return decodeProducts(docs), nil
}

// Ordering happens in memory so range filters on price do not need a composite index.
func decodeProducts(docs []pfirestore.Document[productDocument]) []domain.Product {
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, decodeProduct(doc.ID, doc.Data))
	}
	slices.SortStableFunc(products, func(a, b domain.Product) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return products
}
