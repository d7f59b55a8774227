package domain

import (
	"time"
)

// ApprovalStatus enumerates the lifecycle states of a product's approval workflow.
type ApprovalStatus string

const (
	// ApprovalStatusDraft marks products created without an approval requirement.
	ApprovalStatusDraft ApprovalStatus = "draft"
	// ApprovalStatusPending marks supplier products awaiting a decision.
	ApprovalStatusPending ApprovalStatus = "pending_approval"
	// ApprovalStatusApproved marks products accepted for sale.
	ApprovalStatusApproved ApprovalStatus = "approved"
	// ApprovalStatusRejected marks products refused with a structured reason.
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// ApprovalStatusDeleted is only ever recorded in audit rows; products never carry it.
const ApprovalStatusDeleted ApprovalStatus = "deleted"

// Valid reports whether the status is one of the persisted product states.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalStatusDraft, ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

// ApprovalAction names the transition recorded in an approval history row.
type ApprovalAction string

const (
	ApprovalActionApproved ApprovalAction = "approved"
	ApprovalActionRejected ApprovalAction = "rejected"
	ApprovalActionDeleted  ApprovalAction = "deleted"
)

// APIKey identifies an external caller and carries its permission matrix.
type APIKey struct {
	ID          string
	Name        string
	KeyHash     string
	OwnerUserID string
	Active      bool
	Permissions PermissionMatrix
	LastUsedAt  *time.Time
	CreatedAt   time.Time
}

// AttributeValue is a single option of an attribute.
type AttributeValue struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// Attribute is the canonical attribute shape produced by NormalizeAttributes.
type Attribute struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	ValueID   *string          `json:"valueId"`
	ValueName *string          `json:"valueName"`
	Values    []AttributeValue `json:"values"`
}

// Variation is a sellable variant of a product, unique by SKU within it.
type Variation struct {
	SKU        string            `json:"sku"`
	Attributes map[string]string `json:"attributes"`
	Stock      int               `json:"stock"`
	Price      float64           `json:"price"`
	GTIN       *string           `json:"gtin,omitempty"`
	Images     []string          `json:"images"`
}

// RejectionReason stores the structured justification of a rejection.
type RejectionReason struct {
	ReferenceURL   string  `json:"referenceUrl"`
	SuggestedPrice float64 `json:"suggestedPrice"`
	Notes          string  `json:"notes,omitempty"`
}

// Product is the primary catalog record fronted by the gateway.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SKU         string `json:"sku"`
	GTINEAN13   string `json:"gtinEan13,omitempty"`
	Brand       string `json:"brand,omitempty"`
	Condition   string `json:"condition,omitempty"`

	Price          float64 `json:"price"`
	OriginalPrice  float64 `json:"originalPrice,omitempty"`
	CostPrice      float64 `json:"costPrice,omitempty"`
	UseAutoPricing bool    `json:"useAutoPricing"`

	StockQuantity int  `json:"stockQuantity"`
	MinStockLevel int  `json:"minStockLevel"`
	LowStockAlert bool `json:"lowStockAlert"`

	ImageURL     string   `json:"imageUrl,omitempty"`
	MainImageURL string   `json:"mainImageUrl,omitempty"`
	Images       []string `json:"images"`

	CategoryID    string `json:"categoryId,omitempty"`
	SubcategoryID string `json:"subcategoryId,omitempty"`
	DomainID      string `json:"domainId,omitempty"`

	Attributes     []Attribute       `json:"attributes"`
	Variations     []Variation       `json:"variations"`
	HasVariations  bool              `json:"hasVariations"`
	Specifications map[string]string `json:"specifications"`

	Active   bool `json:"active"`
	Featured bool `json:"featured"`

	ApprovalStatus   ApprovalStatus   `json:"approvalStatus"`
	RequiresApproval bool             `json:"requiresApproval"`
	ApprovedBy       string           `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time       `json:"approvedAt,omitempty"`
	RejectedAt       *time.Time       `json:"rejectedAt,omitempty"`
	RejectionReason  *RejectionReason `json:"rejectionReason,omitempty"`

	SupplierID     string `json:"supplierId,omitempty"`
	CreatedBy      string `json:"createdBy,omitempty"`
	ReferenceAdURL string `json:"referenceAdUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SyncVariationFlag recomputes HasVariations from the current variation list.
func (p *Product) SyncVariationFlag() {
	p.HasVariations = len(p.Variations) > 0
}

// VariationIndex returns the position of the variation with the given SKU or -1.
func (p Product) VariationIndex(sku string) int {
	for i, v := range p.Variations {
		if v.SKU == sku {
			return i
		}
	}
	return -1
}

// ApprovalHistoryEntry is an immutable audit row, one per transition.
type ApprovalHistoryEntry struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"productId"`
	Action         ApprovalAction `json:"action"`
	PerformedBy    string         `json:"performedBy"`
	PreviousStatus ApprovalStatus `json:"previousStatus"`
	NewStatus      ApprovalStatus `json:"newStatus"`
	Notes          string         `json:"notes,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// RequestLogEntry is written once per gateway request and never updated.
type RequestLogEntry struct {
	ID              string
	FunctionName    string
	Method          string
	Path            string
	APIKeyID        string
	UserID          string
	IPAddress       string
	QueryParams     map[string]string
	RequestBody     string
	StatusCode      int
	ResponseSummary string
	ErrorMessage    string
	DurationMs      int64
	Timestamp       time.Time
}

// MarketplaceListing is a per-marketplace projection of a product.
type MarketplaceListing struct {
	ID               string         `json:"id"`
	ProductID        string         `json:"productId"`
	UserID           string         `json:"userId"`
	Marketplace      string         `json:"marketplace"`
	Title            string         `json:"title"`
	Price            float64        `json:"price"`
	PromotionalPrice *float64       `json:"promotionalPrice,omitempty"`
	CategoryID       string         `json:"categoryId,omitempty"`
	CategoryName     string         `json:"categoryName,omitempty"`
	Attributes       []Attribute    `json:"attributes"`
	Variations       []Variation    `json:"variations"`
	StockQuantity    int            `json:"stockQuantity"`
	Images           []string       `json:"images"`
	Status           string         `json:"status"`
	ListingType      string         `json:"listingType,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// ListingStatusDraft is assigned to listings created without an explicit status.
const ListingStatusDraft = "draft"

// OAuthIntegration links a user to a marketplace account through an expiring token.
type OAuthIntegration struct {
	ID                string
	UserID            string
	Provider          string
	MarketplaceUserID string
	Nickname          string
	ExpiresAt         time.Time
	Active            bool
}

// TokenExpiry is the computed view returned by the expiring-token monitor.
type TokenExpiry struct {
	IntegrationID          string    `json:"integrationId"`
	UserID                 string    `json:"userId"`
	Provider               string    `json:"provider"`
	MarketplaceUserID      string    `json:"marketplaceUserId,omitempty"`
	Nickname               string    `json:"nickname,omitempty"`
	ExpiresAt              time.Time `json:"expiresAt"`
	MinutesUntilExpiration int       `json:"minutesUntilExpiration"`
	IsExpired              bool      `json:"isExpired"`
}

// NotificationType categorises in-app notifications.
type NotificationType string

const (
	NotificationProductApproved NotificationType = "product_approved"
	NotificationProductRejected NotificationType = "product_rejected"
	NotificationProductDeleted  NotificationType = "product_deleted"
	NotificationTokenExpiring   NotificationType = "token_expiring"
)

// Notification is an in-app message for a user, also fanned out to the send pipeline.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]any
	Read      bool
	CreatedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates a dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency check.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for readiness.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
