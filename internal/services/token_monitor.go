package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/observability"
	"github.com/catalogsync/api/internal/repositories"
)

// DefaultExpiryWindowMinutes is used when the caller does not pass minutes.
const DefaultExpiryWindowMinutes = 60

// TokenMonitorServiceDeps bundles collaborators required by the token monitor.
type TokenMonitorServiceDeps struct {
	Integrations repositories.IntegrationRepository
	Clock        func() time.Time
}

type tokenMonitorService struct {
	integrations repositories.IntegrationRepository
	clock        func() time.Time
}

var _ TokenMonitorService = (*tokenMonitorService)(nil)

// NewTokenMonitorService constructs the expiring-token view.
func NewTokenMonitorService(deps TokenMonitorServiceDeps) (TokenMonitorService, error) {
	if deps.Integrations == nil {
		return nil, errors.New("token monitor: integration repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &tokenMonitorService{
		integrations: deps.Integrations,
		clock:        func() time.Time { return clock().UTC() },
	}, nil
}

func (s *tokenMonitorService) ExpiringTokens(ctx context.Context, query TokenExpiryQuery) ([]domain.TokenExpiry, error) {
	if query.Minutes <= 0 {
		return nil, invalidInput("Parâmetro minutes deve ser um inteiro positivo")
	}
	now := s.clock()
	cutoff := now.Add(time.Duration(query.Minutes) * time.Minute)

	integrations, err := s.integrations.ListActiveExpiringBefore(ctx, cutoff)
	if err != nil {
		return nil, translateRepoError(err, "", "")
	}

	tokens := make([]domain.TokenExpiry, 0, len(integrations))
	for _, integration := range integrations {
		if !integration.Active {
			continue
		}
		if !query.IncludeExpired && integration.ExpiresAt.Before(now) {
			continue
		}
		minutes := int(math.Round(integration.ExpiresAt.Sub(now).Seconds() / 60))
		tokens = append(tokens, domain.TokenExpiry{
			IntegrationID:          integration.ID,
			UserID:                 integration.UserID,
			Provider:               integration.Provider,
			MarketplaceUserID:      integration.MarketplaceUserID,
			Nickname:               integration.Nickname,
			ExpiresAt:              integration.ExpiresAt.UTC(),
			MinutesUntilExpiration: minutes,
			IsExpired:              minutes < 0,
		})
	}
	return tokens, nil
}

// TokenExpirySweeper periodically notifies integration owners whose tokens are about to expire.
type TokenExpirySweeper struct {
	monitor       TokenMonitorService
	notifications NotificationService
	window        int
	logger        *zap.Logger
	cron          *cron.Cron
	newID         func() string
	clock         func() time.Time
}

// NewTokenExpirySweeper registers the sweep on schedule (standard cron syntax or descriptors
// such as "@every 15m"). The sweeper does not run until Start is called.
func NewTokenExpirySweeper(monitor TokenMonitorService, notifications NotificationService, schedule string, windowMinutes int, logger *zap.Logger) (*TokenExpirySweeper, error) {
	if monitor == nil {
		return nil, errors.New("token sweeper: monitor is required")
	}
	if notifications == nil {
		return nil, errors.New("token sweeper: notification service is required")
	}
	if windowMinutes <= 0 {
		windowMinutes = DefaultExpiryWindowMinutes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("token_sweeper")

	s := &TokenExpirySweeper{
		monitor:       monitor,
		notifications: notifications,
		window:        windowMinutes,
		logger:        logger,
		cron:          cron.New(cron.WithLogger(cron.PrintfLogger(observability.NewPrintfAdapter(logger)))),
		newID:         func() string { return ulid.Make().String() },
		clock:         func() time.Time { return time.Now().UTC() },
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return nil, fmt.Errorf("token sweeper: invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *TokenExpirySweeper) Start() {
	s.cron.Start()
	s.logger.Info("token expiry sweep scheduled", zap.Int("window_minutes", s.window))
}

// Stop halts the schedule and waits for a running sweep, bounded by ctx.
func (s *TokenExpirySweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep emits one token_expiring notification per integration expiring within the window.
// It returns the number of notifications delivered.
func (s *TokenExpirySweeper) Sweep(ctx context.Context) int {
	tokens, err := s.monitor.ExpiringTokens(ctx, TokenExpiryQuery{Minutes: s.window})
	if err != nil {
		s.logger.Error("token expiry sweep failed", zap.Error(err))
		return 0
	}
	sent := 0
	for _, token := range tokens {
		if token.UserID == "" {
			continue
		}
		err := s.notifications.Notify(ctx, domain.Notification{
			ID:     s.newID(),
			UserID: token.UserID,
			Type:   domain.NotificationTokenExpiring,
			Title:  "Integração prestes a expirar",
			Message: fmt.Sprintf("O token da integração %s (%s) expira em %d minutos.",
				token.Provider, token.Nickname, token.MinutesUntilExpiration),
			Data: map[string]any{
				"integrationId":          token.IntegrationID,
				"provider":               token.Provider,
				"expiresAt":              token.ExpiresAt,
				"minutesUntilExpiration": token.MinutesUntilExpiration,
			},
			CreatedAt: s.clock(),
		})
		if err != nil {
			s.logger.Warn("token expiry notification failed",
				zap.String("integration_id", token.IntegrationID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	s.logger.Info("token expiry sweep completed", zap.Int("expiring", len(tokens)), zap.Int("notified", sent))
	return sent
}
