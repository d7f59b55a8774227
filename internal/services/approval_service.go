package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/requestctx"
	"github.com/catalogsync/api/internal/platform/validation"
	"github.com/catalogsync/api/internal/repositories"
)

// ApprovalMetrics receives approval counters. *metrics.Registry satisfies it.
type ApprovalMetrics interface {
	ApprovalTransition(action string)
	SideEffectFailure(kind string)
}

// ApprovalServiceDeps bundles collaborators required by the approval service.
type ApprovalServiceDeps struct {
	Products      repositories.ProductRepository
	History       repositories.ApprovalHistoryRepository
	Notifications NotificationService
	Metrics       ApprovalMetrics
	Clock         func() time.Time
	IDGen         func() string
	Logger        *zap.Logger
}

type noopApprovalMetrics struct{}

func (noopApprovalMetrics) ApprovalTransition(string) {}
func (noopApprovalMetrics) SideEffectFailure(string)  {}

type approvalService struct {
	products      repositories.ProductRepository
	history       repositories.ApprovalHistoryRepository
	notifications NotificationService
	metrics       ApprovalMetrics
	clock         func() time.Time
	newID         func() string
	logger        *zap.Logger
}

var _ ApprovalService = (*approvalService)(nil)

// NewApprovalService constructs the approval state machine.
func NewApprovalService(deps ApprovalServiceDeps) (ApprovalService, error) {
	if deps.Products == nil {
		return nil, errors.New("approval service: product repository is required")
	}
	if deps.History == nil {
		return nil, errors.New("approval service: history repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopApprovalMetrics{}
	}
	return &approvalService{
		products:      deps.Products,
		history:       deps.History,
		notifications: deps.Notifications,
		metrics:       metrics,
		clock:         func() time.Time { return clock().UTC() },
		newID:         idGen,
		logger:        logger.Named("approval"),
	}, nil
}

func (s *approvalService) Approve(ctx context.Context, cmd ApproveProductCommand) (domain.Product, error) {
	ctx, span := tracer.Start(ctx, "products.approve")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", cmd.ProductID))

	if cmd.CostPrice != nil && *cmd.CostPrice <= 0 {
		return domain.Product{}, invalidInput("Campo costPrice deve ser maior que 0")
	}

	var previous domain.ApprovalStatus
	now := s.clock()
	product, err := s.mutate(ctx, cmd.ProductID, func(product *domain.Product) error {
		if err := requireDecidable(*product); err != nil {
			return err
		}
		cost := product.CostPrice
		if cmd.CostPrice != nil {
			cost = *cmd.CostPrice
		}
		if cost <= 0 {
			return invalidInput("Preço de custo é obrigatório para aprovar o produto")
		}
		if cost >= product.Price {
			return invalidInput("Preço de custo (%.2f) deve ser menor que o preço de venda (%.2f)", cost, product.Price)
		}

		previous = product.ApprovalStatus
		product.CostPrice = cost
		product.ApprovalStatus = domain.ApprovalStatusApproved
		product.ApprovedBy = cmd.PerformedBy
		product.ApprovedAt = &now
		product.RejectedAt = nil
		product.RejectionReason = nil
		product.Active = !cmd.ApproveAsInactive
		product.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.metrics.ApprovalTransition(string(domain.ApprovalActionApproved))

	s.recordTransition(ctx, product, domain.ApprovalHistoryEntry{
		Action:         domain.ApprovalActionApproved,
		PerformedBy:    cmd.PerformedBy,
		PreviousStatus: previous,
		NewStatus:      domain.ApprovalStatusApproved,
		Notes:          strings.TrimSpace(cmd.Notes),
		Timestamp:      now,
	})

	margin := domain.MarginPercent(product.Price, product.CostPrice)
	s.notify(ctx, product, domain.Notification{
		Type:    domain.NotificationProductApproved,
		Title:   "Produto aprovado",
		Message: fmt.Sprintf("Seu produto %q foi aprovado com margem de %.2f%%.", product.Name, margin),
		Data: map[string]any{
			"productId":     product.ID,
			"productName":   product.Name,
			"price":         product.Price,
			"costPrice":     product.CostPrice,
			"marginPercent": margin,
			"active":        product.Active,
		},
	})
	return product, nil
}

// requireDecidable refuses decisions on drafts, which never entered the approval workflow.
func requireDecidable(product domain.Product) error {
	if product.ApprovalStatus == domain.ApprovalStatusDraft {
		return invalidInput("Produto em rascunho não está aguardando aprovação")
	}
	return nil
}

func (s *approvalService) Reject(ctx context.Context, cmd RejectProductCommand) (domain.Product, error) {
	ctx, span := tracer.Start(ctx, "products.reject")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", cmd.ProductID))

	referenceURL := strings.TrimSpace(cmd.ReferenceURL)
	if !validation.IsHTTPURL(referenceURL) {
		return domain.Product{}, invalidInput("Campo referenceUrl deve ser uma URL http(s) válida")
	}
	if cmd.SuggestedPrice <= 0 {
		return domain.Product{}, invalidInput("Campo suggestedPrice deve ser maior que 0")
	}
	reason := domain.RejectionReason{
		ReferenceURL:   referenceURL,
		SuggestedPrice: cmd.SuggestedPrice,
		Notes:          strings.TrimSpace(cmd.Notes),
	}

	var previous domain.ApprovalStatus
	now := s.clock()
	product, err := s.mutate(ctx, cmd.ProductID, func(product *domain.Product) error {
		if err := requireDecidable(*product); err != nil {
			return err
		}
		previous = product.ApprovalStatus
		product.ApprovalStatus = domain.ApprovalStatusRejected
		product.RejectionReason = &reason
		product.RejectedAt = &now
		product.ApprovedBy = ""
		product.ApprovedAt = nil
		product.Active = false
		product.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.metrics.ApprovalTransition(string(domain.ApprovalActionRejected))

	s.recordTransition(ctx, product, domain.ApprovalHistoryEntry{
		Action:         domain.ApprovalActionRejected,
		PerformedBy:    cmd.PerformedBy,
		PreviousStatus: previous,
		NewStatus:      domain.ApprovalStatusRejected,
		Notes:          reason.Notes,
		Timestamp:      now,
	})

	s.notify(ctx, product, domain.Notification{
		Type:  domain.NotificationProductRejected,
		Title: "Produto rejeitado",
		Message: fmt.Sprintf("Seu produto %q foi rejeitado. Referência: %s. Preço sugerido: R$ %.2f.",
			product.Name, reason.ReferenceURL, reason.SuggestedPrice),
		Data: map[string]any{
			"productId":      product.ID,
			"productName":    product.Name,
			"referenceUrl":   reason.ReferenceURL,
			"suggestedPrice": reason.SuggestedPrice,
			"notes":          reason.Notes,
		},
	})
	return product, nil
}

func (s *approvalService) Delete(ctx context.Context, cmd DeleteProductCommand) error {
	ctx, span := tracer.Start(ctx, "products.delete")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", cmd.ProductID))

	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return notFound(productNotFoundMessage)
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return translateRepoError(err, productNotFoundMessage, "")
	}

	now := s.clock()
	s.recordTransition(ctx, product, domain.ApprovalHistoryEntry{
		Action:         domain.ApprovalActionDeleted,
		PerformedBy:    cmd.PerformedBy,
		PreviousStatus: product.ApprovalStatus,
		NewStatus:      domain.ApprovalStatusDeleted,
		Notes:          strings.TrimSpace(cmd.Notes),
		Timestamp:      now,
	})
	s.notify(ctx, product, domain.Notification{
		Type:    domain.NotificationProductDeleted,
		Title:   "Produto removido",
		Message: fmt.Sprintf("Seu produto %q foi removido do catálogo.", product.Name),
		Data: map[string]any{
			"productId":   product.ID,
			"productName": product.Name,
		},
	})

	if err := s.products.Delete(ctx, productID); err != nil {
		return translateRepoError(err, productNotFoundMessage, "")
	}
	s.metrics.ApprovalTransition(string(domain.ApprovalActionDeleted))
	return nil
}

func (s *approvalService) History(ctx context.Context, productID string) ([]domain.ApprovalHistoryEntry, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, notFound(productNotFoundMessage)
	}
	entries, err := s.history.ListByProduct(ctx, productID)
	if err != nil {
		return nil, translateRepoError(err, "", "")
	}
	if entries == nil {
		entries = []domain.ApprovalHistoryEntry{}
	}
	return entries, nil
}

func (s *approvalService) mutate(ctx context.Context, productID string, fn repositories.ProductMutation) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, notFound(productNotFoundMessage)
	}
	product, err := s.products.Mutate(ctx, productID, fn)
	if err != nil {
		return domain.Product{}, translateRepoError(err, productNotFoundMessage, "")
	}
	return product, nil
}

// recordTransition appends the audit row. The product write has already happened, so a failure
// leaves the two out of sync and is reported at error level.
func (s *approvalService) recordTransition(ctx context.Context, product domain.Product, entry domain.ApprovalHistoryEntry) {
	entry.ID = s.newID()
	entry.ProductID = product.ID
	if err := s.history.Append(ctx, entry); err != nil {
		s.sideEffectFailure(ctx, "audit", err,
			zap.String("product_id", product.ID),
			zap.String("action", string(entry.Action)),
		)
	}
}

func (s *approvalService) notify(ctx context.Context, product domain.Product, n domain.Notification) {
	if s.notifications == nil {
		return
	}
	n.UserID = product.CreatedBy
	if n.UserID == "" {
		n.UserID = product.SupplierID
	}
	if n.UserID == "" {
		return
	}
	n.ID = s.newID()
	n.CreatedAt = s.clock()
	if err := s.notifications.Notify(ctx, n); err != nil {
		s.sideEffectFailure(ctx, "notification", err,
			zap.String("product_id", product.ID),
			zap.String("notification_type", string(n.Type)),
		)
	}
}

func (s *approvalService) sideEffectFailure(ctx context.Context, kind string, err error, fields ...zap.Field) {
	s.metrics.SideEffectFailure(kind)
	logger := requestctx.Logger(ctx)
	if logger == requestctx.NoopLogger() {
		logger = s.logger
	}
	logger.Error("approval side effect failed", append(fields, zap.String("kind", kind), zap.Error(err))...)
}
