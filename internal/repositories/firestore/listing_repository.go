package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/catalogsync/api/internal/domain"
	pfirestore "github.com/catalogsync/api/internal/platform/firestore"
	"github.com/catalogsync/api/internal/repositories"
)

const (
	listingsCollection      = "marketplaceProducts"
	listingClaimsCollection = "marketplaceProductClaims"
)

// ListingRepository stores marketplace listings. Each listing owns a claim document keyed by
// (productId, marketplace); creating the claim inside the same transaction makes the pair unique.
type ListingRepository struct {
	provider *pfirestore.Provider
	listings *pfirestore.Collection[listingDocument]
	claims   *pfirestore.Collection[listingClaimDocument]
}

type listingDocument struct {
	ProductID        string              `firestore:"product_id"`
	UserID           string              `firestore:"user_id"`
	Marketplace      string              `firestore:"marketplace"`
	Title            string              `firestore:"title"`
	Price            float64             `firestore:"price"`
	PromotionalPrice *float64            `firestore:"promotional_price"`
	CategoryID       string              `firestore:"category_id"`
	CategoryName     string              `firestore:"category_name"`
	Attributes       []attributeDocument `firestore:"attributes"`
	Variations       []variationDocument `firestore:"variations"`
	StockQuantity    int                 `firestore:"stock_quantity"`
	Images           []string            `firestore:"images"`
	Status           string              `firestore:"status"`
	ListingType      string              `firestore:"listing_type"`
	Metadata         map[string]any      `firestore:"metadata"`
	CreatedAt        time.Time           `firestore:"created_at"`
	UpdatedAt        time.Time           `firestore:"updated_at"`
}

type listingClaimDocument struct {
	ListingID   string    `firestore:"listing_id"`
	ProductID   string    `firestore:"product_id"`
	Marketplace string    `firestore:"marketplace"`
	CreatedAt   time.Time `firestore:"created_at"`
}

// NewListingRepository constructs a Firestore-backed listing repository.
func NewListingRepository(provider *pfirestore.Provider) (*ListingRepository, error) {
	if provider == nil {
		return nil, errors.New("listing repository: firestore provider is required")
	}
	return &ListingRepository{
		provider: provider,
		listings: pfirestore.NewCollection[listingDocument](provider, listingsCollection),
		claims:   pfirestore.NewCollection[listingClaimDocument](provider, listingClaimsCollection),
	}, nil
}

func claimID(productID, marketplace string) string {
	return productID + "_" + strings.ToLower(marketplace)
}

// Create inserts the listing and its uniqueness claim atomically.
func (r *ListingRepository) Create(ctx context.Context, listing domain.MarketplaceListing) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimRef, err := r.claims.Ref(ctx, claimID(listing.ProductID, listing.Marketplace))
		if err != nil {
			return err
		}
		listingRef, err := r.listings.Ref(ctx, listing.ID)
		if err != nil {
			return err
		}

		_, err = tx.Get(claimRef)
		switch {
		case err == nil:
			return pfirestore.WrapError("marketplaceProducts.create", status.Error(codes.AlreadyExists,
				fmt.Sprintf("product %s already listed on %s", listing.ProductID, listing.Marketplace)))
		case status.Code(err) != codes.NotFound:
			return pfirestore.WrapError("marketplaceProducts.create", err)
		}

		if err := tx.Create(claimRef, listingClaimDocument{
			ListingID:   listing.ID,
			ProductID:   listing.ProductID,
			Marketplace: listing.Marketplace,
			CreatedAt:   listing.CreatedAt.UTC(),
		}); err != nil {
			return err
		}
		return tx.Create(listingRef, encodeListing(listing))
	})
}

// Get loads a listing by ID.
func (r *ListingRepository) Get(ctx context.Context, id string) (domain.MarketplaceListing, error) {
	doc, err := r.listings.Get(ctx, id)
	if err != nil {
		return domain.MarketplaceListing{}, err
	}
	return decodeListing(doc.ID, doc.Data), nil
}

// Update overwrites an existing listing. ProductID and Marketplace are immutable.
func (r *ListingRepository) Update(ctx context.Context, listing domain.MarketplaceListing) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.listings.Ref(ctx, listing.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(ref); err != nil {
			return pfirestore.WrapError("marketplaceProducts.update", err)
		}
		return tx.Set(ref, encodeListing(listing))
	})
}

// Delete removes the listing and releases its claim. A missing listing is not found.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.listings.Ref(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("marketplaceProducts.delete", err)
		}
		doc, err := pfirestore.Decode[listingDocument](snap)
		if err != nil {
			return err
		}
		claimRef, err := r.claims.Ref(ctx, claimID(doc.Data.ProductID, doc.Data.Marketplace))
		if err != nil {
			return err
		}
		if err := tx.Delete(claimRef); err != nil {
			return err
		}
		return tx.Delete(ref)
	})
}

// List returns listings matching filter, newest first.
func (r *ListingRepository) List(ctx context.Context, filter repositories.ListingFilter) ([]domain.MarketplaceListing, error) {
	docs, err := r.listings.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Marketplace != "" {
			q = q.Where("marketplace", "==", filter.Marketplace)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", filter.Status)
		}
		if filter.ProductID != "" {
			q = q.Where("product_id", "==", filter.ProductID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id", "==", filter.UserID)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	listings := make([]domain.MarketplaceListing, 0, len(docs))
	for _, doc := range docs {
		listings = append(listings, decodeListing(doc.ID, doc.Data))
	}
	slices.SortStableFunc(listings, func(a, b domain.MarketplaceListing) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return listings, nil
}

// ListByProduct returns every listing of a product across marketplaces.
func (r *ListingRepository) ListByProduct(ctx context.Context, productID string) ([]domain.MarketplaceListing, error) {
	return r.List(ctx, repositories.ListingFilter{ProductID: productID})
}

// ListedProductIDs reads the claim documents of marketplace.
func (r *ListingRepository) ListedProductIDs(ctx context.Context, marketplace string) (map[string]struct{}, error) {
	docs, err := r.claims.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("marketplace", "==", marketplace)
	})
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		ids[doc.Data.ProductID] = struct{}{}
	}
	return ids, nil
}

func encodeListing(l domain.MarketplaceListing) listingDocument {
	return listingDocument{
		ProductID:        l.ProductID,
		UserID:           l.UserID,
		Marketplace:      l.Marketplace,
		Title:            l.Title,
		Price:            l.Price,
		PromotionalPrice: l.PromotionalPrice,
		CategoryID:       l.CategoryID,
		CategoryName:     l.CategoryName,
		Attributes:       encodeAttributes(l.Attributes),
		Variations:       encodeVariations(l.Variations),
		StockQuantity:    l.StockQuantity,
		Images:           l.Images,
		Status:           l.Status,
		ListingType:      l.ListingType,
		Metadata:         l.Metadata,
		CreatedAt:        l.CreatedAt.UTC(),
		UpdatedAt:        l.UpdatedAt.UTC(),
	}
}

func decodeListing(id string, doc listingDocument) domain.MarketplaceListing {
	images := doc.Images
	if images == nil {
		images = []string{}
	}
	return domain.MarketplaceListing{
		ID:               id,
		ProductID:        doc.ProductID,
		UserID:           doc.UserID,
		Marketplace:      doc.Marketplace,
		Title:            doc.Title,
		Price:            doc.Price,
		PromotionalPrice: doc.PromotionalPrice,
		CategoryID:       doc.CategoryID,
		CategoryName:     doc.CategoryName,
		Attributes:       decodeAttributes(doc.Attributes),
		Variations:       decodeVariations(doc.Variations),
		StockQuantity:    doc.StockQuantity,
		Images:           images,
		Status:           doc.Status,
		ListingType:      doc.ListingType,
		Metadata:         doc.Metadata,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}
