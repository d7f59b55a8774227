package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/pagination"
	"github.com/catalogsync/api/internal/platform/requestctx"
	"github.com/catalogsync/api/internal/repositories"
)

const (
	listingNotFoundMessage = "Anúncio não encontrado"
	internalFailureMessage = "Erro interno do servidor"
	// MaxBulkListings caps the number of items accepted by a single bulk create.
	MaxBulkListings = 100
)

// ListingServiceDeps bundles collaborators required by the listing service.
type ListingServiceDeps struct {
	Listings repositories.ListingRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	IDGen    func() string
	Logger   *zap.Logger
}

type listingService struct {
	listings repositories.ListingRepository
	products repositories.ProductRepository
	clock    func() time.Time
	newID    func() string
	logger   *zap.Logger
}

var _ ListingService = (*listingService)(nil)

// NewListingService constructs the marketplace listing service.
func NewListingService(deps ListingServiceDeps) (ListingService, error) {
	if deps.Listings == nil {
		return nil, errors.New("listing service: listing repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("listing service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return uuid.NewString() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &listingService{
		listings: deps.Listings,
		products: deps.Products,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger.Named("listings"),
	}, nil
}

func (s *listingService) Create(ctx context.Context, input ListingInput) (domain.MarketplaceListing, error) {
	ctx, span := tracer.Start(ctx, "listings.create")
	defer span.End()

	listing := input.Listing
	listing.ProductID = strings.TrimSpace(listing.ProductID)
	listing.Marketplace = normalizeMarketplace(listing.Marketplace)
	if listing.ProductID == "" {
		return domain.MarketplaceListing{}, invalidInput("Campo productId é obrigatório")
	}
	if listing.Marketplace == "" {
		return domain.MarketplaceListing{}, invalidInput("Campo marketplace é obrigatório")
	}
	span.SetAttributes(
		attribute.String("product.id", listing.ProductID),
		attribute.String("listing.marketplace", listing.Marketplace),
	)

	product, err := s.products.Get(ctx, listing.ProductID)
	if err != nil {
		return domain.MarketplaceListing{}, translateRepoError(err, productNotFoundMessage, "")
	}
	if err := projectProduct(&listing, product, input); err != nil {
		return domain.MarketplaceListing{}, err
	}
	if err := validateListing(listing); err != nil {
		return domain.MarketplaceListing{}, err
	}

	now := s.clock()
	listing.ID = s.newID()
	listing.CreatedAt = now
	listing.UpdatedAt = now

	if err := s.listings.Create(ctx, listing); err != nil {
		return domain.MarketplaceListing{}, translateRepoError(err, "",
			"Produto "+listing.ProductID+" já possui anúncio no marketplace "+listing.Marketplace)
	}
	return listing, nil
}

func (s *listingService) CreateBulk(ctx context.Context, items []ListingInput) ([]BulkListingResult, error) {
	if len(items) == 0 {
		return nil, invalidInput("Campo products deve conter ao menos um item")
	}
	if len(items) > MaxBulkListings {
		return nil, invalidInput("Campo products excede o máximo de %d itens", MaxBulkListings)
	}

	results := make([]BulkListingResult, 0, len(items))
	for i, item := range items {
		result := BulkListingResult{Index: i, ProductID: strings.TrimSpace(item.Listing.ProductID)}
		listing, err := s.Create(ctx, item)
		if err != nil {
			result.Error = Message(err)
			if result.Error == "" {
				result.Error = internalFailureMessage
				s.loggerFor(ctx).Error("bulk listing item failed",
					zap.Int("index", i),
					zap.String("product_id", result.ProductID),
					zap.Error(err),
				)
			}
		} else {
			result.Success = true
			result.Listing = &listing
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *listingService) Get(ctx context.Context, listingID string) (domain.MarketplaceListing, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return domain.MarketplaceListing{}, notFound(listingNotFoundMessage)
	}
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return domain.MarketplaceListing{}, translateRepoError(err, listingNotFoundMessage, "")
	}
	return listing, nil
}

func (s *listingService) List(ctx context.Context, filter ListingListFilter) (Page[domain.MarketplaceListing], error) {
	listings, err := s.listings.List(ctx, repositories.ListingFilter{
		Marketplace: normalizeMarketplace(filter.Marketplace),
		Status:      strings.TrimSpace(filter.Status),
		ProductID:   strings.TrimSpace(filter.ProductID),
		UserID:      strings.TrimSpace(filter.UserID),
	})
	if err != nil {
		return Page[domain.MarketplaceListing]{}, translateRepoError(err, "", "")
	}
	return newPage(listings, filter.Pagination), nil
}

func (s *listingService) ListByProduct(ctx context.Context, productID string) ([]domain.MarketplaceListing, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, notFound(productNotFoundMessage)
	}
	listings, err := s.listings.ListByProduct(ctx, productID)
	if err != nil {
		return nil, translateRepoError(err, "", "")
	}
	if listings == nil {
		listings = []domain.MarketplaceListing{}
	}
	return listings, nil
}

func (s *listingService) Unpublished(ctx context.Context, marketplace string, params pagination.Params) (Page[domain.Product], error) {
	marketplace = normalizeMarketplace(marketplace)
	if marketplace == "" {
		return Page[domain.Product]{}, invalidInput("Parâmetro marketplace é obrigatório")
	}
	listed, err := s.listings.ListedProductIDs(ctx, marketplace)
	if err != nil {
		return Page[domain.Product]{}, translateRepoError(err, "", "")
	}
	products, err := s.products.List(ctx, repositories.ProductFilter{})
	if err != nil {
		return Page[domain.Product]{}, translateRepoError(err, "", "")
	}
	unpublished := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if _, ok := listed[p.ID]; !ok {
			unpublished = append(unpublished, p)
		}
	}
	return newPage(unpublished, params), nil
}

func (s *listingService) Update(ctx context.Context, cmd UpdateListingCommand) (domain.MarketplaceListing, error) {
	listing, err := s.Get(ctx, cmd.ListingID)
	if err != nil {
		return domain.MarketplaceListing{}, err
	}
	if err := applyListingPatch(&listing, cmd.Patch); err != nil {
		return domain.MarketplaceListing{}, err
	}
	if err := validateListing(listing); err != nil {
		return domain.MarketplaceListing{}, err
	}
	listing.UpdatedAt = s.clock()
	if err := s.listings.Update(ctx, listing); err != nil {
		return domain.MarketplaceListing{}, translateRepoError(err, listingNotFoundMessage, "")
	}
	return listing, nil
}

func (s *listingService) Delete(ctx context.Context, listingID string) error {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return notFound(listingNotFoundMessage)
	}
	if err := s.listings.Delete(ctx, listingID); err != nil {
		return translateRepoError(err, listingNotFoundMessage, "")
	}
	return nil
}

func (s *listingService) loggerFor(ctx context.Context) *zap.Logger {
	if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
		return logger
	}
	return s.logger
}

// projectProduct fills listing fields the caller left empty from the source product.
func projectProduct(listing *domain.MarketplaceListing, product domain.Product, input ListingInput) error {
	listing.Title = strings.TrimSpace(listing.Title)
	if listing.Title == "" {
		listing.Title = product.Name
	}
	if listing.Price == 0 {
		listing.Price = product.Price
	}
	if listing.CategoryID == "" {
		listing.CategoryID = product.CategoryID
	}
	if listing.StockQuantity == 0 {
		listing.StockQuantity = product.StockQuantity
	}
	if listing.Images == nil {
		listing.Images = append([]string{}, product.Images...)
	}

	switch {
	case input.Attributes != nil:
		listing.Attributes = domain.NormalizeAttributes(input.Attributes)
	case listing.Attributes == nil:
		listing.Attributes = append([]domain.Attribute{}, product.Attributes...)
	}
	switch {
	case input.Variations != nil:
		variations, err := normalizeVariationList(input.Variations, listing.Price)
		if err != nil {
			return err
		}
		listing.Variations = variations
	case listing.Variations == nil:
		listing.Variations = append([]domain.Variation{}, product.Variations...)
	}

	listing.Status = strings.ToLower(strings.TrimSpace(listing.Status))
	if listing.Status == "" {
		listing.Status = domain.ListingStatusDraft
	}
	if listing.UserID == "" {
		listing.UserID = product.CreatedBy
	}
	return nil
}

func applyListingPatch(listing *domain.MarketplaceListing, patch ListingPatch) error {
	setString(&listing.Title, patch.Title)
	setString(&listing.CategoryID, patch.CategoryID)
	setString(&listing.CategoryName, patch.CategoryName)
	setString(&listing.ListingType, patch.ListingType)
	if patch.Title != nil && listing.Title == "" {
		return invalidInput("Campo title é obrigatório")
	}
	if patch.Price != nil {
		listing.Price = *patch.Price
	}
	if patch.PromotionalPrice != nil {
		promo := *patch.PromotionalPrice
		listing.PromotionalPrice = &promo
	}
	if patch.StockQuantity != nil {
		listing.StockQuantity = *patch.StockQuantity
	}
	if patch.Images != nil {
		listing.Images = append([]string{}, (*patch.Images)...)
	}
	if patch.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*patch.Status))
		if status == "" {
			return invalidInput("Campo status é obrigatório")
		}
		listing.Status = status
	}
	if patch.Metadata != nil {
		listing.Metadata = *patch.Metadata
	}
	if patch.Attributes != nil {
		listing.Attributes = domain.NormalizeAttributes(*patch.Attributes)
	}
	if patch.Variations != nil {
		variations, err := normalizeVariationList(*patch.Variations, listing.Price)
		if err != nil {
			return err
		}
		listing.Variations = variations
	}
	return nil
}

func validateListing(listing domain.MarketplaceListing) error {
	if listing.Title == "" {
		return invalidInput("Campo title é obrigatório")
	}
	if listing.Price <= 0 {
		return invalidInput("Campo price deve ser maior que 0")
	}
	if listing.PromotionalPrice != nil && (*listing.PromotionalPrice <= 0 || *listing.PromotionalPrice >= listing.Price) {
		return invalidInput("Campo promotionalPrice deve ser maior que 0 e menor que price")
	}
	if listing.StockQuantity < 0 {
		return invalidInput("Campo stockQuantity deve ser maior ou igual a 0")
	}
	for _, v := range listing.Variations {
		if err := validateVariation(v); err != nil {
			return err
		}
	}
	return nil
}

func normalizeMarketplace(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
