package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catalogsync/api/internal/domain"
)

type stubNotificationRepository struct {
	stored []domain.Notification
	err    error
}

func (s *stubNotificationRepository) Append(_ context.Context, n domain.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, n)
	return nil
}

type stubPublisher struct {
	published []domain.Notification
	err       error
}

func (s *stubPublisher) Publish(_ context.Context, n domain.Notification) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.published = append(s.published, n)
	return "msg-1", nil
}

func TestNotificationServiceStoresAndPublishes(t *testing.T) {
	repo := &stubNotificationRepository{}
	pub := &stubPublisher{}
	now := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	svc, err := NewNotificationService(NotificationServiceDeps{
		Repository: repo,
		Publisher:  pub,
		Clock:      fixedClock(now),
		IDGen:      sequenceIDs("ntf"),
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	err = svc.Notify(context.Background(), domain.Notification{UserID: "u1", Type: domain.NotificationProductApproved, Read: true})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(repo.stored) != 1 || len(pub.published) != 1 {
		t.Fatalf("expected store and publish, got %d/%d", len(repo.stored), len(pub.published))
	}
	n := repo.stored[0]
	if n.ID != "ntf-1" || !n.CreatedAt.Equal(now) || n.Read {
		t.Fatalf("unexpected stored notification %+v", n)
	}
	if pub.published[0].ID != n.ID {
		t.Fatalf("published and stored ids differ")
	}
}

func TestNotificationServiceJoinsFailures(t *testing.T) {
	storeErr := errors.New("store down")
	publishErr := errors.New("topic missing")
	svc, _ := NewNotificationService(NotificationServiceDeps{
		Repository: &stubNotificationRepository{err: storeErr},
		Publisher:  &stubPublisher{err: publishErr},
	})

	err := svc.Notify(context.Background(), domain.Notification{UserID: "u1"})
	if !errors.Is(err, storeErr) || !errors.Is(err, publishErr) {
		t.Fatalf("expected both failures, got %v", err)
	}
}

func TestNotificationServiceRequiresUser(t *testing.T) {
	repo := &stubNotificationRepository{}
	svc, _ := NewNotificationService(NotificationServiceDeps{Repository: repo})
	if err := svc.Notify(context.Background(), domain.Notification{}); err == nil {
		t.Fatalf("expected error without user id")
	}
	if len(repo.stored) != 0 {
		t.Fatalf("expected nothing stored")
	}
}
