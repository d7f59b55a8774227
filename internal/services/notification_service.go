package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/repositories"
)

// NotificationPublisher hands notifications to the downstream send pipeline.
type NotificationPublisher interface {
	Publish(ctx context.Context, notification domain.Notification) (string, error)
}

// NotificationServiceDeps bundles collaborators required by the notification service.
type NotificationServiceDeps struct {
	Repository repositories.NotificationRepository
	Publisher  NotificationPublisher
	Clock      func() time.Time
	IDGen      func() string
}

type notificationService struct {
	repo      repositories.NotificationRepository
	publisher NotificationPublisher
	clock     func() time.Time
	newID     func() string
}

var _ NotificationService = (*notificationService)(nil)

// NewNotificationService constructs the notification fan-out. The publisher is optional.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Repository == nil {
		return nil, errors.New("notification service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &notificationService{
		repo:      deps.Repository,
		publisher: deps.Publisher,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
	}, nil
}

// Notify stores the in-app row and then publishes it. Both are attempted; their failures are
// joined so the caller can log them.
func (s *notificationService) Notify(ctx context.Context, n domain.Notification) error {
	if strings.TrimSpace(n.UserID) == "" {
		return errors.New("notification service: user id is required")
	}
	if n.ID == "" {
		n.ID = s.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock()
	}
	n.Read = false

	var errs []error
	if err := s.repo.Append(ctx, n); err != nil {
		errs = append(errs, fmt.Errorf("notification service: store: %w", err))
	}
	if s.publisher != nil {
		if _, err := s.publisher.Publish(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("notification service: publish: %w", err))
		}
	}
	return errors.Join(errs...)
}
