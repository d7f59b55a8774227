package firestore

import (
	"context"
	"errors"
	"time"

	"github.com/catalogsync/api/internal/domain"
	pfirestore "github.com/catalogsync/api/internal/platform/firestore"
)

const notificationsCollection = "notifications"

// NotificationRepository stores in-app notifications.
type NotificationRepository struct {
	coll *pfirestore.Collection[notificationDocument]
}

type notificationDocument struct {
	UserID    string         `firestore:"user_id"`
	Type      string         `firestore:"type"`
	Title     string         `firestore:"title"`
	Message   string         `firestore:"message"`
	Data      map[string]any `firestore:"data"`
	Read      bool           `firestore:"read"`
	CreatedAt time.Time      `firestore:"created_at"`
}

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository: firestore provider is required")
	}
	return &NotificationRepository{coll: pfirestore.NewCollection[notificationDocument](provider, notificationsCollection)}, nil
}

// Append stores the notification under its ID.
func (r *NotificationRepository) Append(ctx context.Context, n domain.Notification) error {
	return r.coll.Create(ctx, n.ID, notificationDocument{
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	})
}
