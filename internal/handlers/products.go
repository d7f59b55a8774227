package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/httpx"
	"github.com/catalogsync/api/internal/services"
)

// ProductHandlers serves the /products resource group.
type ProductHandlers struct {
	products  services.ProductService
	approvals services.ApprovalService
}

// NewProductHandlers wires the product and approval services into HTTP handlers.
func NewProductHandlers(products services.ProductService, approvals services.ApprovalService) *ProductHandlers {
	return &ProductHandlers{products: products, approvals: approvals}
}

// Routes registers the product endpoints on a router mounted at /products.
func (h *ProductHandlers) Routes(r chi.Router) {
	if h == nil {
		return
	}
	r.Post("/", h.createProduct)
	r.Get("/", h.listProducts)
	r.Get("/pending", h.listPending)
	r.Route("/{productID}", func(rt chi.Router) {
		rt.Get("/", h.getProduct)
		rt.Put("/", h.updateProduct)
		rt.Delete("/", h.deleteProduct)
		rt.Put("/attributes", h.upsertAttribute)
		rt.Post("/variations", h.addVariation)
		rt.Put("/variations/{sku}", h.updateVariation)
		rt.Delete("/variations/{sku}", h.deleteVariation)
		rt.Post("/approve", h.approveProduct)
		rt.Post("/reject", h.rejectProduct)
		rt.Get("/approval-history", h.approvalHistory)
	})
}

type createProductRequest struct {
	Name             string                `json:"name" validate:"required"`
	Description      string                `json:"description"`
	SKU              string                `json:"sku"`
	GTINEAN13        string                `json:"gtinEan13"`
	Brand            string                `json:"brand"`
	Condition        string                `json:"condition" validate:"omitempty,oneof=new used refurbished"`
	Price            float64               `json:"price" validate:"gt=0"`
	OriginalPrice    float64               `json:"originalPrice" validate:"gte=0"`
	CostPrice        float64               `json:"costPrice" validate:"gte=0"`
	UseAutoPricing   bool                  `json:"useAutoPricing"`
	StockQuantity    int                   `json:"stockQuantity" validate:"gte=0"`
	MinStockLevel    int                   `json:"minStockLevel" validate:"gte=0"`
	LowStockAlert    bool                  `json:"lowStockAlert"`
	ImageURL         string                `json:"imageUrl"`
	MainImageURL     string                `json:"mainImageUrl"`
	Images           []string              `json:"images"`
	CategoryID       string                `json:"categoryId"`
	SubcategoryID    string                `json:"subcategoryId"`
	DomainID         string                `json:"domainId"`
	Specifications   map[string]string     `json:"specifications"`
	Active           *bool                 `json:"active"`
	Featured         bool                  `json:"featured"`
	RequiresApproval bool                  `json:"requiresApproval"`
	SupplierID       string                `json:"supplierId"`
	ReferenceAdURL   string                `json:"referenceAdUrl"`
	Attributes       []domain.RawAttribute `json:"attributes"`
	Variations       []domain.RawVariation `json:"variations"`
}

func (req createProductRequest) command(caller string) services.CreateProductCommand {
	product := domain.Product{
		Name:             req.Name,
		Description:      req.Description,
		SKU:              req.SKU,
		GTINEAN13:        req.GTINEAN13,
		Brand:            req.Brand,
		Condition:        strings.ToLower(strings.TrimSpace(req.Condition)),
		Price:            req.Price,
		OriginalPrice:    req.OriginalPrice,
		CostPrice:        req.CostPrice,
		UseAutoPricing:   req.UseAutoPricing,
		StockQuantity:    req.StockQuantity,
		MinStockLevel:    req.MinStockLevel,
		LowStockAlert:    req.LowStockAlert,
		ImageURL:         req.ImageURL,
		MainImageURL:     req.MainImageURL,
		Images:           req.Images,
		CategoryID:       req.CategoryID,
		SubcategoryID:    req.SubcategoryID,
		DomainID:         req.DomainID,
		Specifications:   req.Specifications,
		Featured:         req.Featured,
		RequiresApproval: req.RequiresApproval,
		SupplierID:       req.SupplierID,
		ReferenceAdURL:   req.ReferenceAdURL,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	return services.CreateProductCommand{
		Product:    product,
		Attributes: req.Attributes,
		Variations: req.Variations,
		ActiveSet:  req.Active != nil,
		CreatedBy:  caller,
	}
}

type updateProductRequest struct {
	Name           *string                `json:"name"`
	Description    *string                `json:"description"`
	SKU            *string                `json:"sku"`
	GTINEAN13      *string                `json:"gtinEan13"`
	Brand          *string                `json:"brand"`
	Condition      *string                `json:"condition" validate:"omitempty,oneof=new used refurbished"`
	Price          *float64               `json:"price" validate:"omitempty,gt=0"`
	OriginalPrice  *float64               `json:"originalPrice" validate:"omitempty,gte=0"`
	CostPrice      *float64               `json:"costPrice" validate:"omitempty,gte=0"`
	UseAutoPricing *bool                  `json:"useAutoPricing"`
	StockQuantity  *int                   `json:"stockQuantity" validate:"omitempty,gte=0"`
	MinStockLevel  *int                   `json:"minStockLevel" validate:"omitempty,gte=0"`
	LowStockAlert  *bool                  `json:"lowStockAlert"`
	ImageURL       *string                `json:"imageUrl"`
	MainImageURL   *string                `json:"mainImageUrl"`
	Images         *[]string              `json:"images"`
	CategoryID     *string                `json:"categoryId"`
	SubcategoryID  *string                `json:"subcategoryId"`
	DomainID       *string                `json:"domainId"`
	Specifications *map[string]string     `json:"specifications"`
	Active         *bool                  `json:"active"`
	Featured       *bool                  `json:"featured"`
	ReferenceAdURL *string                `json:"referenceAdUrl"`
	Attributes     *[]domain.RawAttribute `json:"attributes"`
	Variations     *[]domain.RawVariation `json:"variations"`
}

func (req updateProductRequest) patch() services.ProductPatch {
	return services.ProductPatch{
		Name:           req.Name,
		Description:    req.Description,
		SKU:            req.SKU,
		GTINEAN13:      req.GTINEAN13,
		Brand:          req.Brand,
		Condition:      req.Condition,
		Price:          req.Price,
		OriginalPrice:  req.OriginalPrice,
		CostPrice:      req.CostPrice,
		UseAutoPricing: req.UseAutoPricing,
		StockQuantity:  req.StockQuantity,
		MinStockLevel:  req.MinStockLevel,
		LowStockAlert:  req.LowStockAlert,
		ImageURL:       req.ImageURL,
		MainImageURL:   req.MainImageURL,
		Images:         req.Images,
		CategoryID:     req.CategoryID,
		SubcategoryID:  req.SubcategoryID,
		DomainID:       req.DomainID,
		Specifications: req.Specifications,
		Active:         req.Active,
		Featured:       req.Featured,
		ReferenceAdURL: req.ReferenceAdURL,
		Attributes:     req.Attributes,
		Variations:     req.Variations,
	}
}

type updateVariationRequest struct {
	Attributes *map[string]string `json:"attributes"`
	Stock      *int               `json:"stock" validate:"omitempty,gte=0"`
	Price      *float64           `json:"price" validate:"omitempty,gt=0"`
	GTIN       *string            `json:"gtin"`
	Images     *[]string          `json:"images"`
}

type approveProductRequest struct {
	CostPrice         *float64 `json:"costPrice"`
	ApproveAsInactive bool     `json:"approveAsInactive"`
	Notes             string   `json:"notes" validate:"max=2000"`
}

type rejectProductRequest struct {
	ReferenceURL   string  `json:"referenceUrl" validate:"required,httpurl"`
	SuggestedPrice float64 `json:"suggestedPrice" validate:"gt=0"`
	Notes          string  `json:"notes" validate:"max=2000"`
}

type deleteProductRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

func (h *ProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := h.products.Create(r.Context(), req.command(callerID(r.Context())))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, product)
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, ok := parsePagination(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := services.ProductListFilter{
		CategoryID: strings.TrimSpace(query.Get("category_id")),
		Search:     strings.TrimSpace(query.Get("search")),
		Pagination: params,
	}
	var err error
	if filter.Active, err = queryBool(query, "active"); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	if filter.Featured, err = queryBool(query, "featured"); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	if filter.MinPrice, err = queryFloat(query, "min_price"); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	if filter.MaxPrice, err = queryFloat(query, "max_price"); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	page, err := h.products.List(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WritePage(w, page.Items, page.Meta)
}

func (h *ProductHandlers) listPending(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListPending(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, products)
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, product)
}

func (h *ProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := h.products.Update(r.Context(), services.UpdateProductCommand{
		ProductID: chi.URLParam(r, "productID"),
		Patch:     req.patch(),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, product)
}

func (h *ProductHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	var req deleteProductRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	productID := chi.URLParam(r, "productID")
	err := h.approvals.Delete(r.Context(), services.DeleteProductCommand{
		ProductID:   productID,
		Notes:       strings.TrimSpace(req.Notes),
		PerformedBy: callerID(r.Context()),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, map[string]string{"id": productID})
}

func (h *ProductHandlers) upsertAttribute(w http.ResponseWriter, r *http.Request) {
	var raw domain.RawAttribute
	if !decodeBody(w, r, &raw) {
		return
	}
	product, err := h.products.UpsertAttribute(r.Context(), chi.URLParam(r, "productID"), raw)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, product)
}

func (h *ProductHandlers) addVariation(w http.ResponseWriter, r *http.Request) {
	var raw domain.RawVariation
	if !decodeBody(w, r, &raw) {
		return
	}
	product, err := h.products.AddVariation(r.Context(), chi.URLParam(r, "productID"), raw)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, product)
}

func (h *ProductHandlers) updateVariation(w http.ResponseWriter, r *http.Request) {
	var req updateVariationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := h.products.UpdateVariation(r.Context(), services.UpdateVariationCommand{
		ProductID: chi.URLParam(r, "productID"),
		SKU:       variationSKU(r),
		Patch: services.VariationPatch{
			Attributes: req.Attributes,
			Stock:      req.Stock,
			Price:      req.Price,
			GTIN:       req.GTIN,
			Images:     req.Images,
		},
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, product)
}

func (h *ProductHandlers) deleteVariation(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.DeleteVariation(r.Context(), chi.URLParam(r, "productID"), variationSKU(r))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, product)
}

// variationSKU decodes the sku segment. chi routes on RawPath when the request carries one, so
// "A%2FB" arrives still escaped; otherwise the segment is already decoded.
func variationSKU(r *http.Request) string {
	raw := chi.URLParam(r, "sku")
	if r.URL.RawPath == "" {
		return raw
	}
	if sku, err := url.PathUnescape(raw); err == nil {
		return sku
	}
	return raw
}

func (h *ProductHandlers) approveProduct(w http.ResponseWriter, r *http.Request) {
	var req approveProductRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	product, err := h.approvals.Approve(r.Context(), services.ApproveProductCommand{
		ProductID:         chi.URLParam(r, "productID"),
		CostPrice:         req.CostPrice,
		ApproveAsInactive: req.ApproveAsInactive,
		Notes:             strings.TrimSpace(req.Notes),
		PerformedBy:       callerID(r.Context()),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, product)
}

func (h *ProductHandlers) rejectProduct(w http.ResponseWriter, r *http.Request) {
	var req rejectProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := h.approvals.Reject(r.Context(), services.RejectProductCommand{
		ProductID:      chi.URLParam(r, "productID"),
		ReferenceURL:   strings.TrimSpace(req.ReferenceURL),
		SuggestedPrice: req.SuggestedPrice,
		Notes:          strings.TrimSpace(req.Notes),
		PerformedBy:    callerID(r.Context()),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, product)
}

func (h *ProductHandlers) approvalHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.approvals.History(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, entries)
}
