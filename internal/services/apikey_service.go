package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/repositories"
)

// APIKeyServiceDeps bundles collaborators required by the API key service.
type APIKeyServiceDeps struct {
	Keys       repositories.APIKeyRepository
	Background *BackgroundTasks
	Clock      func() time.Time
	Logger     *zap.Logger
}

type apiKeyService struct {
	keys       repositories.APIKeyRepository
	background *BackgroundTasks
	clock      func() time.Time
	logger     *zap.Logger
}

var _ APIKeyService = (*apiKeyService)(nil)

// NewAPIKeyService constructs the service that resolves presented API keys.
func NewAPIKeyService(deps APIKeyServiceDeps) (APIKeyService, error) {
	if deps.Keys == nil {
		return nil, errors.New("api key service: key repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	background := deps.Background
	if background == nil {
		background = NewBackgroundTasks(0)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &apiKeyService{
		keys:       deps.Keys,
		background: background,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger.Named("apikeys"),
	}, nil
}

// HashAPIKey returns the hex SHA-256 digest stored as keyHash.
func HashAPIKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (s *apiKeyService) Authenticate(ctx context.Context, secret string) (domain.APIKey, bool, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return domain.APIKey{}, false, nil
	}
	key, err := s.keys.FindByHash(ctx, HashAPIKey(secret))
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.APIKey{}, false, nil
		}
		return domain.APIKey{}, false, err
	}
	return key, true, nil
}

func (s *apiKeyService) MarkUsed(ctx context.Context, key domain.APIKey) {
	if key.ID == "" {
		return
	}
	at := s.clock()
	s.background.Go(ctx, func(ctx context.Context) {
		if err := s.keys.TouchLastUsed(ctx, key.ID, at); err != nil {
			s.logger.Warn("last used update failed", zap.String("api_key_id", key.ID), zap.Error(err))
		}
	})
}
