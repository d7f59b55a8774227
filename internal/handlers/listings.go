package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/httpx"
	"github.com/catalogsync/api/internal/services"
)

// ListingHandlers serves the /marketplace/products resource group.
type ListingHandlers struct {
	listings services.ListingService
}

// NewListingHandlers wires the listing service into HTTP handlers.
func NewListingHandlers(listings services.ListingService) *ListingHandlers {
	return &ListingHandlers{listings: listings}
}

// Routes registers the listing endpoints on a router mounted at /marketplace.
func (h *ListingHandlers) Routes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/products", func(rt chi.Router) {
		rt.Post("/", h.createListing)
		rt.Post("/bulk", h.createBulk)
		rt.Get("/", h.listListings)
		rt.Get("/unpublished", h.listUnpublished)
		rt.Get("/by-product/{productID}", h.listByProduct)
		rt.Get("/{listingID}", h.getListing)
		rt.Put("/{listingID}", h.updateListing)
		rt.Delete("/{listingID}", h.deleteListing)
	})
}

type listingRequest struct {
	ProductID        string                `json:"productId"`
	UserID           string                `json:"userId"`
	Marketplace      string                `json:"marketplace"`
	Title            string                `json:"title"`
	Price            float64               `json:"price" validate:"gte=0"`
	PromotionalPrice *float64              `json:"promotionalPrice"`
	CategoryID       string                `json:"categoryId"`
	CategoryName     string                `json:"categoryName"`
	StockQuantity    int                   `json:"stockQuantity" validate:"gte=0"`
	Images           []string              `json:"images"`
	Status           string                `json:"status"`
	ListingType      string                `json:"listingType"`
	Metadata         map[string]any        `json:"metadata"`
	Attributes       []domain.RawAttribute `json:"attributes"`
	Variations       []domain.RawVariation `json:"variations"`
}

func (req listingRequest) input(caller string) services.ListingInput {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = caller
	}
	return services.ListingInput{
		Listing: domain.MarketplaceListing{
			ProductID:        req.ProductID,
			UserID:           userID,
			Marketplace:      req.Marketplace,
			Title:            req.Title,
			Price:            req.Price,
			PromotionalPrice: req.PromotionalPrice,
			CategoryID:       req.CategoryID,
			CategoryName:     req.CategoryName,
			StockQuantity:    req.StockQuantity,
			Images:           req.Images,
			Status:           req.Status,
			ListingType:      req.ListingType,
			Metadata:         req.Metadata,
		},
		Attributes: req.Attributes,
		Variations: req.Variations,
	}
}

type bulkListingRequest struct {
	Products []listingRequest `json:"products" validate:"required"`
}

type updateListingRequest struct {
	Title            *string                `json:"title"`
	Price            *float64               `json:"price" validate:"omitempty,gt=0"`
	PromotionalPrice *float64               `json:"promotionalPrice"`
	CategoryID       *string                `json:"categoryId"`
	CategoryName     *string                `json:"categoryName"`
	StockQuantity    *int                   `json:"stockQuantity" validate:"omitempty,gte=0"`
	Images           *[]string              `json:"images"`
	Status           *string                `json:"status"`
	ListingType      *string                `json:"listingType"`
	Metadata         *map[string]any        `json:"metadata"`
	Attributes       *[]domain.RawAttribute `json:"attributes"`
	Variations       *[]domain.RawVariation `json:"variations"`
}

func (h *ListingHandlers) createListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	listing, err := h.listings.Create(r.Context(), req.input(callerID(r.Context())))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, listing)
}

func (h *ListingHandlers) createBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkListingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller := callerID(r.Context())
	inputs := make([]services.ListingInput, 0, len(req.Products))
	for _, item := range req.Products {
		inputs = append(inputs, item.input(caller))
	}
	results, err := h.listings.CreateBulk(r.Context(), inputs)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	succeeded := 0
	for _, result := range results {
		if result.Success {
			succeeded++
		}
	}
	httpx.WriteData(w, http.StatusOK, map[string]any{
		"total":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"results":   results,
	})
}

func (h *ListingHandlers) listListings(w http.ResponseWriter, r *http.Request) {
	params, ok := parsePagination(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	page, err := h.listings.List(r.Context(), services.ListingListFilter{
		Marketplace: query.Get("marketplace"),
		Status:      query.Get("status"),
		ProductID:   strings.TrimSpace(query.Get("product_id")),
		Pagination:  params,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WritePage(w, page.Items, page.Meta)
}

func (h *ListingHandlers) listUnpublished(w http.ResponseWriter, r *http.Request) {
	params, ok := parsePagination(w, r)
	if !ok {
		return
	}
	page, err := h.listings.Unpublished(r.Context(), r.URL.Query().Get("marketplace"), params)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WritePage(w, page.Items, page.Meta)
}

func (h *ListingHandlers) listByProduct(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListByProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, listings)
}

func (h *ListingHandlers) getListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.Get(r.Context(), chi.URLParam(r, "listingID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, listing)
}

func (h *ListingHandlers) updateListing(w http.ResponseWriter, r *http.Request) {
	var req updateListingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	listing, err := h.listings.Update(r.Context(), services.UpdateListingCommand{
		ListingID: chi.URLParam(r, "listingID"),
		Patch: services.ListingPatch{
			Title:            req.Title,
			Price:            req.Price,
			PromotionalPrice: req.PromotionalPrice,
			CategoryID:       req.CategoryID,
			CategoryName:     req.CategoryName,
			StockQuantity:    req.StockQuantity,
			Images:           req.Images,
			Status:           req.Status,
			ListingType:      req.ListingType,
			Metadata:         req.Metadata,
			Attributes:       req.Attributes,
			Variations:       req.Variations,
		},
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, listing)
}

func (h *ListingHandlers) deleteListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingID")
	if err := h.listings.Delete(r.Context(), listingID); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, map[string]string{"id": listingID})
}
