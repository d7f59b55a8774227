package repositories

import (
	"context"
	"time"

	"github.com/catalogsync/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// APIKeyRepository reads the permission store.
type APIKeyRepository interface {
	// FindByHash returns the key whose SHA-256 digest equals hash, or a not-found error.
	FindByHash(ctx context.Context, hash string) (domain.APIKey, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// ProductMutation edits a product loaded inside a transaction. Returning an error aborts the write.
type ProductMutation func(product *domain.Product) error

// ProductRepository persists products together with their nested attributes and variations.
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) error
	Get(ctx context.Context, id string) (domain.Product, error)
	// Mutate reads the product, applies fn and writes the result atomically.
	Mutate(ctx context.Context, id string, fn ProductMutation) (domain.Product, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	ListPending(ctx context.Context) ([]domain.Product, error)
}

// ProductFilter captures the store-side predicates of a product listing. Free-text search and
// pagination are applied by the service.
type ProductFilter struct {
	Active     *bool
	Featured   *bool
	CategoryID string
	MinPrice   *float64
	MaxPrice   *float64
}

// ApprovalHistoryRepository is the append-only audit trail.
type ApprovalHistoryRepository interface {
	Append(ctx context.Context, entry domain.ApprovalHistoryEntry) error
	ListByProduct(ctx context.Context, productID string) ([]domain.ApprovalHistoryEntry, error)
}

// ListingRepository persists marketplace listings. Create enforces (productId, marketplace)
// uniqueness and fails with a conflict error on duplicates.
type ListingRepository interface {
	Create(ctx context.Context, listing domain.MarketplaceListing) error
	Get(ctx context.Context, id string) (domain.MarketplaceListing, error)
	Update(ctx context.Context, listing domain.MarketplaceListing) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListingFilter) ([]domain.MarketplaceListing, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.MarketplaceListing, error)
	// ListedProductIDs returns the IDs of products already listed on marketplace.
	ListedProductIDs(ctx context.Context, marketplace string) (map[string]struct{}, error)
}

// ListingFilter narrows listing queries.
type ListingFilter struct {
	Marketplace string
	Status      string
	ProductID   string
	UserID      string
}

// IntegrationRepository reads OAuth integration records.
type IntegrationRepository interface {
	// ListActiveExpiringBefore returns active integrations whose token expires before cutoff.
	ListActiveExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.OAuthIntegration, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Append(ctx context.Context, notification domain.Notification) error
}

// RequestLogRepository is the write-once request log sink.
type RequestLogRepository interface {
	Append(ctx context.Context, entry domain.RequestLogEntry) error
}

// HealthRepository aggregates dependency health for the readiness endpoint.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
