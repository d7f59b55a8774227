package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/catalogsync/api/internal/domain"
	pfirestore "github.com/catalogsync/api/internal/platform/firestore"
)

const approvalHistoryCollection = "productApprovalHistory"

// ApprovalHistoryRepository appends immutable audit rows.
type ApprovalHistoryRepository struct {
	coll *pfirestore.Collection[approvalHistoryDocument]
}

type approvalHistoryDocument struct {
	ProductID      string    `firestore:"product_id"`
	Action         string    `firestore:"action"`
	PerformedBy    string    `firestore:"performed_by"`
	PreviousStatus string    `firestore:"previous_status"`
	NewStatus      string    `firestore:"new_status"`
	Notes          string    `firestore:"notes"`
	Timestamp      time.Time `firestore:"created_at"`
}

// NewApprovalHistoryRepository constructs the audit trail repository.
func NewApprovalHistoryRepository(provider *pfirestore.Provider) (*ApprovalHistoryRepository, error) {
	if provider == nil {
		return nil, errors.New("approval history repository: firestore provider is required")
	}
	return &ApprovalHistoryRepository{coll: pfirestore.NewCollection[approvalHistoryDocument](provider, approvalHistoryCollection)}, nil
}

// Append writes the row under its ID; rows are never overwritten.
func (r *ApprovalHistoryRepository) Append(ctx context.Context, entry domain.ApprovalHistoryEntry) error {
	return r.coll.Create(ctx, entry.ID, approvalHistoryDocument{
		ProductID:      entry.ProductID,
		Action:         string(entry.Action),
		PerformedBy:    entry.PerformedBy,
		PreviousStatus: string(entry.PreviousStatus),
		NewStatus:      string(entry.NewStatus),
		Notes:          entry.Notes,
		Timestamp:      entry.Timestamp.UTC(),
	})
}

// ListByProduct returns the product's audit rows, newest first.
func (r *ApprovalHistoryRepository) ListByProduct(ctx context.Context, productID string) ([]domain.ApprovalHistoryEntry, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("product_id", "==", productID).OrderBy("created_at", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]domain.ApprovalHistoryEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, domain.ApprovalHistoryEntry{
			ID:             doc.ID,
			ProductID:      doc.Data.ProductID,
			Action:         domain.ApprovalAction(doc.Data.Action),
			PerformedBy:    doc.Data.PerformedBy,
			PreviousStatus: domain.ApprovalStatus(doc.Data.PreviousStatus),
			NewStatus:      domain.ApprovalStatus(doc.Data.NewStatus),
			Notes:          doc.Data.Notes,
			Timestamp:      doc.Data.Timestamp,
		})
	}
	return entries, nil
}
