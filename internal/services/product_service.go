package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/pagination"
	"github.com/catalogsync/api/internal/platform/textutil"
	"github.com/catalogsync/api/internal/repositories"
)

const (
	productNotFoundMessage   = "Produto não encontrado"
	variationNotFoundMessage = "Variação não encontrada"
)

var tracer = otel.Tracer("github.com/catalogsync/api/internal/services")

var productConditions = map[string]struct{}{
	"new":         {},
	"used":        {},
	"refurbished": {},
}

// ProductServiceDeps bundles collaborators required by the product service.
type ProductServiceDeps struct {
	Products repositories.ProductRepository
	Clock    func() time.Time
	IDGen    func() string
}

type productService struct {
	products repositories.ProductRepository
	clock    func() time.Time
	newID    func() string
}

var _ ProductService = (*productService)(nil)

// NewProductService constructs the product service.
func NewProductService(deps ProductServiceDeps) (ProductService, error) {
	if deps.Products == nil {
		return nil, errors.New("product service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return uuid.NewString() }
	}
	return &productService{
		products: deps.Products,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
	}, nil
}

func (s *productService) Create(ctx context.Context, cmd CreateProductCommand) (domain.Product, error) {
	ctx, span := tracer.Start(ctx, "products.create")
	defer span.End()

	product := cmd.Product
	product.Name = strings.TrimSpace(product.Name)
	product.SKU = strings.TrimSpace(product.SKU)
	product.SupplierID = strings.TrimSpace(product.SupplierID)
	if product.Name == "" {
		return domain.Product{}, invalidInput("Campo name é obrigatório")
	}
	if err := validateProductFields(product); err != nil {
		return domain.Product{}, err
	}

	product.Attributes = domain.NormalizeAttributes(cmd.Attributes)
	variations, err := normalizeVariationList(cmd.Variations, product.Price)
	if err != nil {
		return domain.Product{}, err
	}
	product.Variations = variations
	product.SyncVariationFlag()

	if product.Images == nil {
		product.Images = []string{}
	}
	product.Specifications = textutil.NormalizeStringMap(product.Specifications)

	if product.RequiresApproval && product.SupplierID != "" {
		product.ApprovalStatus = domain.ApprovalStatusPending
		product.Active = false
	} else {
		product.ApprovalStatus = domain.ApprovalStatusDraft
		if !cmd.ActiveSet {
			product.Active = true
		}
	}
	product.ApprovedBy = ""
	product.ApprovedAt = nil
	product.RejectedAt = nil
	product.RejectionReason = nil
	if product.CreatedBy == "" {
		product.CreatedBy = cmd.CreatedBy
	}

	now := s.clock()
	product.ID = s.newID()
	product.CreatedAt = now
	product.UpdatedAt = now
	span.SetAttributes(
		attribute.String("product.id", product.ID),
		attribute.String("product.approval_status", string(product.ApprovalStatus)),
	)

	if err := s.products.Create(ctx, product); err != nil {
		return domain.Product{}, translateRepoError(err, "", "Produto já existe")
	}
	return product, nil
}

func (s *productService) Get(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, notFound(productNotFoundMessage)
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, translateRepoError(err, productNotFoundMessage, "")
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, filter ProductListFilter) (Page[domain.Product], error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return Page[domain.Product]{}, invalidInput("Parâmetro min_price deve ser menor ou igual a max_price")
	}
	products, err := s.products.List(ctx, repositories.ProductFilter{
		Active:     filter.Active,
		Featured:   filter.Featured,
		CategoryID: strings.TrimSpace(filter.CategoryID),
		MinPrice:   filter.MinPrice,
		MaxPrice:   filter.MaxPrice,
	})
	if err != nil {
		return Page[domain.Product]{}, translateRepoError(err, "", "")
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		matched := products[:0:0]
		for _, p := range products {
			if textutil.ContainsFold(search, p.Name, p.SKU) {
				matched = append(matched, p)
			}
		}
		products = matched
	}
	return newPage(products, filter.Pagination), nil
}

func (s *productService) ListPending(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.ListPending(ctx)
	if err != nil {
		return nil, translateRepoError(err, "", "")
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (s *productService) Update(ctx context.Context, cmd UpdateProductCommand) (domain.Product, error) {
	ctx, span := tracer.Start(ctx, "products.update")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", cmd.ProductID))

	return s.mutate(ctx, cmd.ProductID, func(product *domain.Product) error {
		if err := applyProductPatch(product, cmd.Patch); err != nil {
			return err
		}
		return validateProductFields(*product)
	})
}

func (s *productService) UpsertAttribute(ctx context.Context, productID string, raw domain.RawAttribute) (domain.Product, error) {
	attr := domain.NormalizeAttribute(raw)
	if attr.ID == "" {
		return domain.Product{}, invalidInput("Campo id é obrigatório")
	}
	return s.mutate(ctx, productID, func(product *domain.Product) error {
		for i := range product.Attributes {
			if product.Attributes[i].ID == attr.ID {
				product.Attributes[i] = attr
				return nil
			}
		}
		product.Attributes = append(product.Attributes, attr)
		return nil
	})
}

func (s *productService) AddVariation(ctx context.Context, productID string, raw domain.RawVariation) (domain.Product, error) {
	ctx, span := tracer.Start(ctx, "products.add_variation")
	defer span.End()

	return s.mutate(ctx, productID, func(product *domain.Product) error {
		variation, err := domain.NormalizeVariation(raw, product.Price)
		if err != nil {
			return invalidInput("Campo sku é obrigatório")
		}
		if err := validateVariation(variation); err != nil {
			return err
		}
		if product.VariationIndex(variation.SKU) >= 0 {
			return conflict("Variação com SKU %s já existe neste produto", variation.SKU)
		}
		product.Variations = append(product.Variations, variation)
		return nil
	})
}

func (s *productService) UpdateVariation(ctx context.Context, cmd UpdateVariationCommand) (domain.Product, error) {
	sku := strings.TrimSpace(cmd.SKU)
	return s.mutate(ctx, cmd.ProductID, func(product *domain.Product) error {
		idx := product.VariationIndex(sku)
		if idx < 0 {
			return notFound(variationNotFoundMessage)
		}
		v := product.Variations[idx]
		patch := cmd.Patch
		if patch.Attributes != nil {
			v.Attributes = textutil.NormalizeStringMap(*patch.Attributes)
		}
		if patch.Stock != nil {
			v.Stock = *patch.Stock
		}
		if patch.Price != nil {
			v.Price = *patch.Price
		}
		if patch.GTIN != nil {
			v.GTIN = patch.GTIN
		}
		if patch.Images != nil {
			v.Images = append([]string{}, (*patch.Images)...)
		}
		if err := validateVariation(v); err != nil {
			return err
		}
		product.Variations[idx] = v
		return nil
	})
}

func (s *productService) DeleteVariation(ctx context.Context, productID, sku string) (domain.Product, error) {
	sku = strings.TrimSpace(sku)
	return s.mutate(ctx, productID, func(product *domain.Product) error {
		idx := product.VariationIndex(sku)
		if idx < 0 {
			return notFound(variationNotFoundMessage)
		}
		product.Variations = append(product.Variations[:idx:idx], product.Variations[idx+1:]...)
		return nil
	})
}

// mutate runs fn inside the repository transaction and stamps updatedAt. The repository
// recomputes hasVariations before writing.
func (s *productService) mutate(ctx context.Context, productID string, fn repositories.ProductMutation) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, notFound(productNotFoundMessage)
	}
	product, err := s.products.Mutate(ctx, productID, func(product *domain.Product) error {
		if err := fn(product); err != nil {
			return err
		}
		product.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		return domain.Product{}, translateRepoError(err, productNotFoundMessage, "")
	}
	return product, nil
}

func applyProductPatch(product *domain.Product, patch ProductPatch) error {
	setString(&product.Name, patch.Name)
	setString(&product.Description, patch.Description)
	setString(&product.SKU, patch.SKU)
	setString(&product.GTINEAN13, patch.GTINEAN13)
	setString(&product.Brand, patch.Brand)
	setString(&product.Condition, patch.Condition)
	setString(&product.ImageURL, patch.ImageURL)
	setString(&product.MainImageURL, patch.MainImageURL)
	setString(&product.CategoryID, patch.CategoryID)
	setString(&product.SubcategoryID, patch.SubcategoryID)
	setString(&product.DomainID, patch.DomainID)
	setString(&product.ReferenceAdURL, patch.ReferenceAdURL)
	if patch.Name != nil && product.Name == "" {
		return invalidInput("Campo name é obrigatório")
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.OriginalPrice != nil {
		product.OriginalPrice = *patch.OriginalPrice
	}
	if patch.CostPrice != nil {
		product.CostPrice = *patch.CostPrice
	}
	if patch.UseAutoPricing != nil {
		product.UseAutoPricing = *patch.UseAutoPricing
	}
	if patch.StockQuantity != nil {
		product.StockQuantity = *patch.StockQuantity
	}
	if patch.MinStockLevel != nil {
		product.MinStockLevel = *patch.MinStockLevel
	}
	if patch.LowStockAlert != nil {
		product.LowStockAlert = *patch.LowStockAlert
	}
	if patch.Images != nil {
		product.Images = append([]string{}, (*patch.Images)...)
	}
	if patch.Specifications != nil {
		product.Specifications = textutil.NormalizeStringMap(*patch.Specifications)
	}
	if patch.Active != nil {
		product.Active = *patch.Active
	}
	if patch.Featured != nil {
		product.Featured = *patch.Featured
	}
	if patch.Attributes != nil {
		product.Attributes = domain.NormalizeAttributes(*patch.Attributes)
	}
	if patch.Variations != nil {
		variations, err := normalizeVariationList(*patch.Variations, product.Price)
		if err != nil {
			return err
		}
		product.Variations = variations
	}
	return nil
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func validateProductFields(product domain.Product) error {
	if product.Price <= 0 {
		return invalidInput("Campo price deve ser maior que 0")
	}
	if product.CostPrice < 0 {
		return invalidInput("Campo costPrice deve ser maior ou igual a 0")
	}
	if product.StockQuantity < 0 {
		return invalidInput("Campo stockQuantity deve ser maior ou igual a 0")
	}
	if product.Condition != "" {
		if _, ok := productConditions[product.Condition]; !ok {
			return invalidInput("Campo condition deve ser um de: new used refurbished")
		}
	}
	for _, v := range product.Variations {
		if err := validateVariation(v); err != nil {
			return err
		}
	}
	return nil
}

func validateVariation(v domain.Variation) error {
	if v.Price <= 0 {
		return invalidInput("Variação %s: price deve ser maior que 0", v.SKU)
	}
	if v.Stock < 0 {
		return invalidInput("Variação %s: stock deve ser maior ou igual a 0", v.SKU)
	}
	return nil
}

func normalizeVariationList(raw []domain.RawVariation, defaultPrice float64) ([]domain.Variation, error) {
	variations, err := domain.NormalizeVariations(raw, defaultPrice)
	switch {
	case err == nil:
		return variations, nil
	case errors.Is(err, domain.ErrDuplicateSKU):
		return nil, conflict("Variações com SKU duplicado: %s", strings.TrimPrefix(err.Error(), domain.ErrDuplicateSKU.Error()+": "))
	case errors.Is(err, domain.ErrVariationSKURequired):
		return nil, invalidInput("Campo sku é obrigatório em todas as variações")
	default:
		return nil, invalidInput("Variações inválidas")
	}
}

func newPage[T any](items []T, params pagination.Params) Page[T] {
	if params.Limit <= 0 {
		params.Limit = pagination.DefaultLimit
	}
	return Page[T]{
		Items: pagination.Window(items, params),
		Meta:  pagination.NewMeta(params, len(items)),
	}
}
