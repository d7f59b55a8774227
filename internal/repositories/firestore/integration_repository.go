package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/catalogsync/api/internal/domain"
	pfirestore "github.com/catalogsync/api/internal/platform/firestore"
)

const integrationsCollection = "marketplaceIntegrations"

// IntegrationRepository reads marketplace OAuth integrations.
type IntegrationRepository struct {
	coll *pfirestore.Collection[integrationDocument]
}

type integrationDocument struct {
	UserID            string    `firestore:"user_id"`
	Provider          string    `firestore:"provider"`
	MarketplaceUserID string    `firestore:"marketplace_user_id"`
	Nickname          string    `firestore:"nickname"`
	ExpiresAt         time.Time `firestore:"expires_at"`
	Active            bool      `firestore:"is_active"`
}

// NewIntegrationRepository constructs a Firestore-backed integration repository.
func NewIntegrationRepository(provider *pfirestore.Provider) (*IntegrationRepository, error) {
	if provider == nil {
		return nil, errors.New("integration repository: firestore provider is required")
	}
	return &IntegrationRepository{coll: pfirestore.NewCollection[integrationDocument](provider, integrationsCollection)}, nil
}

// ListActiveExpiringBefore returns active integrations whose token expires before cutoff,
// soonest first.
func (r *IntegrationRepository) ListActiveExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.OAuthIntegration, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("is_active", "==", true).
			Where("expires_at", "<", cutoff.UTC()).
			OrderBy("expires_at", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.OAuthIntegration, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.OAuthIntegration{
			ID:                doc.ID,
			UserID:            doc.Data.UserID,
			Provider:          doc.Data.Provider,
			MarketplaceUserID: doc.Data.MarketplaceUserID,
			Nickname:          doc.Data.Nickname,
			ExpiresAt:         doc.Data.ExpiresAt,
			Active:            doc.Data.Active,
		})
	}
	return out, nil
}
