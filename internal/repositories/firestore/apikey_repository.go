package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/catalogsync/api/internal/domain"
	pfirestore "github.com/catalogsync/api/internal/platform/firestore"
)

const apiKeysCollection = "apiKeys"

// APIKeyRepository reads API keys from Firestore. Keys are provisioned out of band.
type APIKeyRepository struct {
	coll *pfirestore.Collection[apiKeyDocument]
}

type permissionDocument struct {
	Read  bool `firestore:"read"`
	Write bool `firestore:"write"`
}

type apiKeyDocument struct {
	Name        string                        `firestore:"name"`
	KeyHash     string                        `firestore:"keyHash"`
	OwnerUserID string                        `firestore:"userId"`
	Active      bool                          `firestore:"isActive"`
	Permissions map[string]permissionDocument `firestore:"permissions"`
	LastUsedAt  *time.Time                    `firestore:"lastUsedAt"`
	CreatedAt   time.Time                     `firestore:"createdAt"`
}

// NewAPIKeyRepository constructs a Firestore-backed API key repository.
func NewAPIKeyRepository(provider *pfirestore.Provider) (*APIKeyRepository, error) {
	if provider == nil {
		return nil, errors.New("api key repository: firestore provider is required")
	}
	return &APIKeyRepository{coll: pfirestore.NewCollection[apiKeyDocument](provider, apiKeysCollection)}, nil
}

// FindByHash returns the key whose digest equals hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("keyHash", "==", hash).Limit(1)
	})
	if err != nil {
		return domain.APIKey{}, err
	}
	if len(docs) == 0 {
		return domain.APIKey{}, pfirestore.NotFound("apiKeys.findByHash", "api key")
	}
	return decodeAPIKey(docs[0]), nil
}

// TouchLastUsed records the time the key was last accepted.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	return r.coll.Update(ctx, id, []firestore.Update{{Path: "lastUsedAt", Value: at.UTC()}})
}

func decodeAPIKey(doc pfirestore.Document[apiKeyDocument]) domain.APIKey {
	raw := make(map[string]domain.PermissionSet, len(doc.Data.Permissions))
	for name, perm := range doc.Data.Permissions {
		raw[name] = domain.PermissionSet{Read: perm.Read, Write: perm.Write}
	}
	return domain.APIKey{
		ID:          doc.ID,
		Name:        doc.Data.Name,
		KeyHash:     doc.Data.KeyHash,
		OwnerUserID: doc.Data.OwnerUserID,
		Active:      doc.Data.Active,
		Permissions: domain.NewPermissionMatrix(raw),
		LastUsedAt:  doc.Data.LastUsedAt,
		CreatedAt:   doc.Data.CreatedAt,
	}
}
