package services

import (
	"context"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/pagination"
)

// APIKeyService authenticates callers against the permission store.
type APIKeyService interface {
	// Authenticate resolves a presented secret. ok is false when no key matches.
	Authenticate(ctx context.Context, secret string) (key domain.APIKey, ok bool, err error)
	// MarkUsed bumps lastUsedAt in the background; failures are only logged.
	MarkUsed(ctx context.Context, key domain.APIKey)
}

// ProductService manages catalog products and their nested attributes and variations.
type ProductService interface {
	Create(ctx context.Context, cmd CreateProductCommand) (domain.Product, error)
	Get(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (Page[domain.Product], error)
	ListPending(ctx context.Context) ([]domain.Product, error)
	Update(ctx context.Context, cmd UpdateProductCommand) (domain.Product, error)
	UpsertAttribute(ctx context.Context, productID string, raw domain.RawAttribute) (domain.Product, error)
	AddVariation(ctx context.Context, productID string, raw domain.RawVariation) (domain.Product, error)
	UpdateVariation(ctx context.Context, cmd UpdateVariationCommand) (domain.Product, error)
	DeleteVariation(ctx context.Context, productID, sku string) (domain.Product, error)
}

// ApprovalService drives the approval lifecycle and its audit trail.
type ApprovalService interface {
	Approve(ctx context.Context, cmd ApproveProductCommand) (domain.Product, error)
	Reject(ctx context.Context, cmd RejectProductCommand) (domain.Product, error)
	Delete(ctx context.Context, cmd DeleteProductCommand) error
	History(ctx context.Context, productID string) ([]domain.ApprovalHistoryEntry, error)
}

// ListingService manages per-marketplace projections of products.
type ListingService interface {
	Create(ctx context.Context, cmd ListingInput) (domain.MarketplaceListing, error)
	CreateBulk(ctx context.Context, items []ListingInput) ([]BulkListingResult, error)
	Get(ctx context.Context, listingID string) (domain.MarketplaceListing, error)
	List(ctx context.Context, filter ListingListFilter) (Page[domain.MarketplaceListing], error)
	ListByProduct(ctx context.Context, productID string) ([]domain.MarketplaceListing, error)
	Unpublished(ctx context.Context, marketplace string, params pagination.Params) (Page[domain.Product], error)
	Update(ctx context.Context, cmd UpdateListingCommand) (domain.MarketplaceListing, error)
	Delete(ctx context.Context, listingID string) error
}

// TokenMonitorService computes the expiring OAuth token view.
type TokenMonitorService interface {
	ExpiringTokens(ctx context.Context, query TokenExpiryQuery) ([]domain.TokenExpiry, error)
}

// NotificationService records in-app notifications and hands them to the send pipeline.
type NotificationService interface {
	Notify(ctx context.Context, notification domain.Notification) error
}

// RequestLogger persists one entry per gateway request without ever failing the caller.
type RequestLogger interface {
	Log(ctx context.Context, entry domain.RequestLogEntry)
	Close(ctx context.Context) error
}

// SystemService exposes readiness information.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}

// Page is a window over a filtered collection.
type Page[T any] struct {
	Items []T
	Meta  pagination.Meta
}

// ProductListFilter combines store predicates with free-text search and pagination.
type ProductListFilter struct {
	Active     *bool
	Featured   *bool
	CategoryID string
	MinPrice   *float64
	MaxPrice   *float64
	Search     string
	Pagination pagination.Params
}

// CreateProductCommand carries a new product. Attributes and variations arrive un-normalized.
type CreateProductCommand struct {
	Product    domain.Product
	Attributes []domain.RawAttribute
	Variations []domain.RawVariation
	// ActiveSet reports whether the caller sent an explicit active flag.
	ActiveSet bool
	CreatedBy string
}

// ProductPatch lists the fields a product update may change. Nil fields are left untouched.
type ProductPatch struct {
	Name           *string
	Description    *string
	SKU            *string
	GTINEAN13      *string
	Brand          *string
	Condition      *string
	Price          *float64
	OriginalPrice  *float64
	CostPrice      *float64
	UseAutoPricing *bool
	StockQuantity  *int
	MinStockLevel  *int
	LowStockAlert  *bool
	ImageURL       *string
	MainImageURL   *string
	Images         *[]string
	CategoryID     *string
	SubcategoryID  *string
	DomainID       *string
	Specifications *map[string]string
	Active         *bool
	Featured       *bool
	ReferenceAdURL *string
	Attributes     *[]domain.RawAttribute
	Variations     *[]domain.RawVariation
}

// UpdateProductCommand applies a patch to an existing product.
type UpdateProductCommand struct {
	ProductID string
	Patch     ProductPatch
}

// VariationPatch lists the mutable fields of a variation.
type VariationPatch struct {
	Attributes *map[string]string
	Stock      *int
	Price      *float64
	GTIN       *string
	Images     *[]string
}

// UpdateVariationCommand edits the variation identified by SKU.
type UpdateVariationCommand struct {
	ProductID string
	SKU       string
	Patch     VariationPatch
}

// ApproveProductCommand moves a product to approved.
type ApproveProductCommand struct {
	ProductID         string
	CostPrice         *float64
	ApproveAsInactive bool
	Notes             string
	PerformedBy       string
}

// RejectProductCommand moves a product to rejected with a structured reason.
type RejectProductCommand struct {
	ProductID      string
	ReferenceURL   string
	SuggestedPrice float64
	Notes          string
	PerformedBy    string
}

// DeleteProductCommand hard-deletes a product after recording the audit row.
type DeleteProductCommand struct {
	ProductID   string
	Notes       string
	PerformedBy string
}

// ListingInput carries a listing to create.
type ListingInput struct {
	Listing domain.MarketplaceListing
	// Attributes arrive un-normalized and replace Listing.Attributes when present.
	Attributes []domain.RawAttribute
	Variations []domain.RawVariation
}

// BulkListingResult reports the outcome of one item of a bulk create.
type BulkListingResult struct {
	Index     int                        `json:"index"`
	ProductID string                     `json:"productId"`
	Success   bool                       `json:"success"`
	Listing   *domain.MarketplaceListing `json:"data,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// ListingListFilter narrows listing queries.
type ListingListFilter struct {
	Marketplace string
	Status      string
	ProductID   string
	UserID      string
	Pagination  pagination.Params
}

// ListingPatch lists the mutable listing fields. Nil fields are left untouched.
type ListingPatch struct {
	Title            *string
	Price            *float64
	PromotionalPrice *float64
	CategoryID       *string
	CategoryName     *string
	StockQuantity    *int
	Images           *[]string
	Status           *string
	ListingType      *string
	Metadata         *map[string]any
	Attributes       *[]domain.RawAttribute
	Variations       *[]domain.RawVariation
}

// UpdateListingCommand applies a patch to an existing listing.
type UpdateListingCommand struct {
	ListingID string
	Patch     ListingPatch
}

// TokenExpiryQuery parameterises the expiring-token view.
type TokenExpiryQuery struct {
	Minutes        int
	IncludeExpired bool
}
