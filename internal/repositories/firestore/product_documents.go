package firestore

import (
	"time"

	"github.com/catalogsync/api/internal/domain"
)

type attributeValueDocument struct {
	ID   *string `firestore:"id"`
	Name *string `firestore:"name"`
}

type attributeDocument struct {
	ID        string                   `firestore:"id"`
	Name      string                   `firestore:"name"`
	ValueID   *string                  `firestore:"value_id"`
	ValueName *string                  `firestore:"value_name"`
	Values    []attributeValueDocument `firestore:"values"`
}

type variationDocument struct {
	SKU        string            `firestore:"sku"`
	Attributes map[string]string `firestore:"attributes"`
	Stock      int               `firestore:"stock"`
	Price      float64           `firestore:"price"`
	GTIN       *string           `firestore:"gtin"`
	Images     []string          `firestore:"images"`
}

type rejectionReasonDocument struct {
	ReferenceURL   string  `firestore:"reference_url"`
	SuggestedPrice float64 `firestore:"suggested_price"`
	Notes          string  `firestore:"notes,omitempty"`
}

type productDocument struct {
	Name        string `firestore:"name"`
	Description string `firestore:"description"`
	SKU         string `firestore:"sku"`
	GTINEAN13   string `firestore:"gtin_ean13"`
	Brand       string `firestore:"brand"`
	Condition   string `firestore:"condition"`

	Price          float64 `firestore:"price"`
	OriginalPrice  float64 `firestore:"original_price"`
	CostPrice      float64 `firestore:"cost_price"`
	UseAutoPricing bool    `firestore:"use_auto_pricing"`

	StockQuantity int  `firestore:"stock_quantity"`
	MinStockLevel int  `firestore:"min_stock_level"`
	LowStockAlert bool `firestore:"low_stock_alert"`

	ImageURL     string   `firestore:"image_url"`
	MainImageURL string   `firestore:"main_image_url"`
	Images       []string `firestore:"images"`

	CategoryID    string `firestore:"category_id"`
	SubcategoryID string `firestore:"subcategory_id"`
	DomainID      string `firestore:"domain_id"`

	Attributes     []attributeDocument `firestore:"attributes"`
	Variations     []variationDocument `firestore:"variations"`
	HasVariations  bool                `firestore:"has_variations"`
	Specifications map[string]string   `firestore:"specifications"`

	Active   bool `firestore:"active"`
	Featured bool `firestore:"featured"`

	ApprovalStatus   string                   `firestore:"approval_status"`
	RequiresApproval bool                     `firestore:"requires_approval"`
	ApprovedBy       string                   `firestore:"approved_by"`
	ApprovedAt       *time.Time               `firestore:"approved_at"`
	RejectedAt       *time.Time               `firestore:"rejected_at"`
	RejectionReason  *rejectionReasonDocument `firestore:"rejection_reason"`

	SupplierID     string `firestore:"supplier_id"`
	CreatedBy      string `firestore:"created_by"`
	ReferenceAdURL string `firestore:"reference_ad_url"`

	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func encodeAttributes(attrs []domain.Attribute) []attributeDocument {
	out := make([]attributeDocument, 0, len(attrs))
	for _, a := range attrs {
		values := make([]attributeValueDocument, 0, len(a.Values))
		for _, v := range a.Values {
			values = append(values, attributeValueDocument{ID: v.ID, Name: v.Name})
		}
		out = append(out, attributeDocument{ID: a.ID, Name: a.Name, ValueID: a.ValueID, ValueName: a.ValueName, Values: values})
	}
	return out
}

func decodeAttributes(docs []attributeDocument) []domain.Attribute {
	out := make([]domain.Attribute, 0, len(docs))
	for _, d := range docs {
		values := make([]domain.AttributeValue, 0, len(d.Values))
		for _, v := range d.Values {
			values = append(values, domain.AttributeValue{ID: v.ID, Name: v.Name})
		}
		out = append(out, domain.Attribute{ID: d.ID, Name: d.Name, ValueID: d.ValueID, ValueName: d.ValueName, Values: values})
	}
	return out
}

func encodeVariations(vars []domain.Variation) []variationDocument {
	out := make([]variationDocument, 0, len(vars))
	for _, v := range vars {
		out = append(out, variationDocument{
			SKU: v.SKU, Attributes: v.Attributes, Stock: v.Stock, Price: v.Price, GTIN: v.GTIN, Images: v.Images,
		})
	}
	return out
}

func decodeVariations(docs []variationDocument) []domain.Variation {
	out := make([]domain.Variation, 0, len(docs))
	for _, d := range docs {
		attrs := d.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		images := d.Images
		if images == nil {
			images = []string{}
		}
		out = append(out, domain.Variation{
			SKU: d.SKU, Attributes: attrs, Stock: d.Stock, Price: d.Price, GTIN: d.GTIN, Images: images,
		})
	}
	return out
}

func encodeProduct(p domain.Product) productDocument {
	doc := productDocument{
		Name:             p.Name,
		Description:      p.Description,
		SKU:              p.SKU,
		GTINEAN13:        p.GTINEAN13,
		Brand:            p.Brand,
		Condition:        p.Condition,
		Price:            p.Price,
		OriginalPrice:    p.OriginalPrice,
		CostPrice:        p.CostPrice,
		UseAutoPricing:   p.UseAutoPricing,
		StockQuantity:    p.StockQuantity,
		MinStockLevel:    p.MinStockLevel,
		LowStockAlert:    p.LowStockAlert,
		ImageURL:         p.ImageURL,
		MainImageURL:     p.MainImageURL,
		Images:           p.Images,
		CategoryID:       p.CategoryID,
		SubcategoryID:    p.SubcategoryID,
		DomainID:         p.DomainID,
		Attributes:       encodeAttributes(p.Attributes),
		Variations:       encodeVariations(p.Variations),
		HasVariations:    len(p.Variations) > 0,
		Specifications:   p.Specifications,
		Active:           p.Active,
		Featured:         p.Featured,
		ApprovalStatus:   string(p.ApprovalStatus),
		RequiresApproval: p.RequiresApproval,
		ApprovedBy:       p.ApprovedBy,
		ApprovedAt:       p.ApprovedAt,
		RejectedAt:       p.RejectedAt,
		SupplierID:       p.SupplierID,
		CreatedBy:        p.CreatedBy,
		ReferenceAdURL:   p.ReferenceAdURL,
		CreatedAt:        p.CreatedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
	if p.RejectionReason != nil {
		doc.RejectionReason = &rejectionReasonDocument{
			ReferenceURL:   p.RejectionReason.ReferenceURL,
			SuggestedPrice: p.RejectionReason.SuggestedPrice,
			Notes:          p.RejectionReason.Notes,
		}
	}
	return doc
}

func decodeProduct(id string, doc productDocument) domain.Product {
	p := domain.Product{
		ID:               id,
		Name:             doc.Name,
		Description:      doc.Description,
		SKU:              doc.SKU,
		GTINEAN13:        doc.GTINEAN13,
		Brand:            doc.Brand,
		Condition:        doc.Condition,
		Price:            doc.Price,
		OriginalPrice:    doc.OriginalPrice,
		CostPrice:        doc.CostPrice,
		UseAutoPricing:   doc.UseAutoPricing,
		StockQuantity:    doc.StockQuantity,
		MinStockLevel:    doc.MinStockLevel,
		LowStockAlert:    doc.LowStockAlert,
		ImageURL:         doc.ImageURL,
		MainImageURL:     doc.MainImageURL,
		Images:           doc.Images,
		CategoryID:       doc.CategoryID,
		SubcategoryID:    doc.SubcategoryID,
		DomainID:         doc.DomainID,
		Attributes:       decodeAttributes(doc.Attributes),
		Variations:       decodeVariations(doc.Variations),
		Specifications:   doc.Specifications,
		Active:           doc.Active,
		Featured:         doc.Featured,
		ApprovalStatus:   domain.ApprovalStatus(doc.ApprovalStatus),
		RequiresApproval: doc.RequiresApproval,
		ApprovedBy:       doc.ApprovedBy,
		ApprovedAt:       doc.ApprovedAt,
		RejectedAt:       doc.RejectedAt,
		SupplierID:       doc.SupplierID,
		CreatedBy:        doc.CreatedBy,
		ReferenceAdURL:   doc.ReferenceAdURL,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	if !p.ApprovalStatus.Valid() {
		p.ApprovalStatus = domain.ApprovalStatusDraft
	}
	if doc.RejectionReason != nil {
		p.RejectionReason = &domain.RejectionReason{
			ReferenceURL:   doc.RejectionReason.ReferenceURL,
			SuggestedPrice: doc.RejectionReason.SuggestedPrice,
			Notes:          doc.RejectionReason.Notes,
		}
	}
	p.SyncVariationFlag()
	return p
}
