package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/catalogsync/api/internal/domain"
)

func TestCreateSupplierProductStartsPending(t *testing.T) {
	f := newGatewayFixture(t)

	rr := f.do(t, http.MethodPost, "/products", fullAccessKey,
		`{"name":"Caneca","price":50,"requiresApproval":true,"supplierId":"s1"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	product := decodeData[domain.Product](t, rr)
	if product.ApprovalStatus != domain.ApprovalStatusPending {
		t.Fatalf("expected pending_approval, got %s", product.ApprovalStatus)
	}
	if product.Active {
		t.Fatalf("pending products must be inactive")
	}
	if product.CreatedBy != "admin-1" {
		t.Fatalf("expected creator from key owner, got %q", product.CreatedBy)
	}

	pending := f.do(t, http.MethodGet, "/products/pending", fullAccessKey, "")
	items := decodeData[[]domain.Product](t, pending)
	if len(items) != 1 || items[0].ID != product.ID {
		t.Fatalf("expected product in pending list, got %+v", items)
	}
}

func TestCreateProductWithoutApprovalIsActiveDraft(t *testing.T) {
	f := newGatewayFixture(t)

	rr := f.do(t, http.MethodPost, "/products", fullAccessKey,
		`{"name":"Mesa","price":300,"attributes":[{"id":"BRAND","value_name":"Acme"}],"variations":[{"sku":"M-1","attributes":{"cor":"azul"}}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	product := decodeData[domain.Product](t, rr)
	if product.ApprovalStatus != domain.ApprovalStatusDraft || !product.Active {
		t.Fatalf("expected active draft, got %s active=%v", product.ApprovalStatus, product.Active)
	}
	if len(product.Attributes) != 1 || len(product.Attributes[0].Values) != 1 {
		t.Fatalf("expected normalized attribute, got %+v", product.Attributes)
	}
	if !product.HasVariations || product.Variations[0].Price != 300 {
		t.Fatalf("expected variation priced from product, got %+v", product.Variations)
	}
}

func TestCreateProductValidation(t *testing.T) {
	f := newGatewayFixture(t)
	cases := []struct {
		name string
		body string
	}{
		{"malformed", `{"name":`},
		{"empty body", ``},
		{"missing name", `{"price":10}`},
		{"zero price", `{"name":"x","price":0}`},
		{"bad condition", `{"name":"x","price":10,"condition":"broken"}`},
		{"wrong type", `{"name":"x","price":"dez"}`},
	}
	for _, tc := range cases {
		rr := f.do(t, http.MethodPost, "/products", fullAccessKey, tc.body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", tc.name, rr.Code, rr.Body.String())
		}
		if env := decodeEnvelope(t, rr); env.Success || env.Error == "" {
			t.Fatalf("%s: expected error envelope", tc.name)
		}
	}
	if f.products.count() != 0 {
		t.Fatalf("invalid payloads must not be stored")
	}
}

func TestDuplicateVariationIsConflict(t *testing.T) {
	f := newGatewayFixture(t, withProducts(domain.Product{
		ID:         "p1",
		Name:       "Camiseta",
		Price:      40,
		Variations: []domain.Variation{{SKU: "A", Attributes: map[string]string{}, Images: []string{}}},
	}))

	rr := f.do(t, http.MethodPost, "/products/p1/variations", fullAccessKey, `{"sku":"A","stock":3}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rr.Code, rr.Body.String())
	}
	stored, _ := f.products.Get(context.Background(), "p1")
	if len(stored.Variations) != 1 {
		t.Fatalf("variation list must be unchanged, got %+v", stored.Variations)
	}

	rr = f.do(t, http.MethodPost, "/products/p1/variations", fullAccessKey, `{"sku":"B","available_quantity":2}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	product := decodeData[domain.Product](t, rr)
	if len(product.Variations) != 2 || product.Variations[1].Price != 40 || product.Variations[1].Stock != 2 {
		t.Fatalf("unexpected variations %+v", product.Variations)
	}
}

func TestVariationUpdateAndDelete(t *testing.T) {
	f := newGatewayFixture(t, withProducts(domain.Product{
		ID:            "p1",
		Name:          "Camiseta",
		Price:         40,
		Variations:    []domain.Variation{{SKU: "A", Price: 40, Attributes: map[string]string{}, Images: []string{}}},
		HasVariations: true,
	}))

	rr := f.do(t, http.MethodPut, "/products/p1/variations/A", fullAccessKey, `{"stock":9}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if product := decodeData[domain.Product](t, rr); product.Variations[0].Stock != 9 {
		t.Fatalf("expected stock updated, got %+v", product.Variations[0])
	}

	rr = f.do(t, http.MethodDelete, "/products/p1/variations/missing", fullAccessKey, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sku, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodDelete, "/products/p1/variations/A", fullAccessKey, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if product := decodeData[domain.Product](t, rr); product.HasVariations || len(product.Variations) != 0 {
		t.Fatalf("expected hasVariations cleared, got %+v", product)
	}
}

func TestVariationSKUIsPathDecoded(t *testing.T) {
	f := newGatewayFixture(t, withProducts(domain.Product{
		ID:    "p1",
		Name:  "Camiseta",
		Price: 40,
		Variations: []domain.Variation{
			{SKU: "A/B", Price: 40, Attributes: map[string]string{}, Images: []string{}},
			{SKU: "C D", Price: 40, Attributes: map[string]string{}, Images: []string{}},
			{SKU: "50%", Price: 40, Attributes: map[string]string{}, Images: []string{}},
		},
		HasVariations: true,
	}))

	rr := f.do(t, http.MethodPut, "/products/p1/variations/A%2FB", fullAccessKey, `{"stock":4}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for escaped sku, got %d (%s)", rr.Code, rr.Body.String())
	}
	if product := decodeData[domain.Product](t, rr); product.Variations[0].Stock != 4 {
		t.Fatalf("expected A/B stock updated, got %+v", product.Variations[0])
	}

	rr = f.do(t, http.MethodDelete, "/products/p1/variations/C%20D", fullAccessKey, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting escaped sku, got %d (%s)", rr.Code, rr.Body.String())
	}
	if product := decodeData[domain.Product](t, rr); len(product.Variations) != 2 || product.Variations[1].SKU != "50%" {
		t.Fatalf("expected C D removed, got %+v", product.Variations)
	}

	rr = f.do(t, http.MethodDelete, "/products/p1/variations/50%25", fullAccessKey, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting sku with a percent sign, got %d (%s)", rr.Code, rr.Body.String())
	}
	if product := decodeData[domain.Product](t, rr); len(product.Variations) != 1 || product.Variations[0].SKU != "A/B" {
		t.Fatalf("expected only A/B left, got %+v", product.Variations)
	}
}

func TestUpsertAttribute(t *testing.T) {
	f := newGatewayFixture(t, withProducts(domain.Product{ID: "p1", Name: "Mesa", Price: 10}))

	rr := f.do(t, http.MethodPut, "/products/p1/attributes", fullAccessKey, `{"id":"COLOR","value":"Azul"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodPut, "/products/p1/attributes", fullAccessKey, `{"id":"COLOR","value":"Verde"}`)
	product := decodeData[domain.Product](t, rr)
	if len(product.Attributes) != 1 || product.Attributes[0].ValueName == nil || *product.Attributes[0].ValueName != "Verde" {
		t.Fatalf("expected attribute replaced in place, got %+v", product.Attributes)
	}
}

func TestApproveRequiresPositiveMargin(t *testing.T) {
	f := newGatewayFixture(t, withProducts(domain.Product{
		ID:             "p1",
		Name:           "Caneca",
		Price:          100,
		CostPrice:      120,
		ApprovalStatus: domain.ApprovalStatusPending,
		SupplierID:     "s1",
	}))

	rr := f.do(t, http.MethodPost, "/products/p1/approve", fullAccessKey, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for cost >= price, got %d", rr.Code)
	}
	if len(f.history.entries) != 0 {
		t.Fatalf("validation failures must not reach the audit log")
	}

	rr = f.do(t, http.MethodPost, "/products/p1/approve", fullAccessKey, `{"costPrice":60,"approveAsInactive":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	product := decodeData[domain.Product](t, rr)
	if product.ApprovalStatus != domain.ApprovalStatusApproved || product.Active || product.ApprovedBy != "admin-1" {
		t.Fatalf("unexpected approved product %+v", product)
	}

	history := f.do(t, http.MethodGet, "/products/p1/approval-history", fullAccessKey, "")
	entries := decodeData[[]domain.ApprovalHistoryEntry](t, history)
	if len(entries) != 1 || entries[0].NewStatus != domain.ApprovalStatusApproved {
		t.Fatalf("expected one approval row, got %+v", entries)
	}
}

func TestDraftProductsCannotBeDecided(t *testing.T) {
	f := newGatewayFixture(t, withProducts(domain.Product{
		ID:             "p1",
		Name:           "Caneca",
		Price:          200,
		CostPrice:      50,
		Active:         true,
		ApprovalStatus: domain.ApprovalStatusDraft,
	}))

	rr := f.do(t, http.MethodPost, "/products/p1/approve", fullAccessKey, `{"costPrice":50}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 approving a draft, got %d (%s)", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodPost, "/products/p1/reject", fullAccessKey, `{"referenceUrl":"https://example.com/x","suggestedPrice":120}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 rejecting a draft, got %d (%s)", rr.Code, rr.Body.String())
	}
	if len(f.history.entries) != 0 {
		t.Fatalf("refused decisions must not reach the audit log")
	}

	rr = f.do(t, http.MethodGet, "/products/p1", fullAccessKey, "")
	product := decodeData[domain.Product](t, rr)
	if product.ApprovalStatus != domain.ApprovalStatusDraft || !product.Active {
		t.Fatalf("expected draft untouched, got %+v", product)
	}
}

func TestRejectValidatesBeforeWriting(t *testing.T) {
	f := newGatewayFixture(t, withProducts(domain.Product{
		ID:             "p1",
		Name:           "Caneca",
		Price:          100,
		ApprovalStatus: domain.ApprovalStatusPending,
	}))

	for _, body := range []string{
		`{"referenceUrl":"not a url","suggestedPrice":10}`,
		`{"referenceUrl":"ftp://example.com/x","suggestedPrice":10}`,
		`{"referenceUrl":"https://example.com/x","suggestedPrice":0}`,
	} {
		rr := f.do(t, http.MethodPost, "/products/p1/reject", fullAccessKey, body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rr.Code)
		}
	}
	if f.products.writeCount() != 0 {
		t.Fatalf("invalid rejections must not write")
	}

	rr := f.do(t, http.MethodPost, "/products/p1/reject", fullAccessKey,
		`{"referenceUrl":"https://example.com/ref","suggestedPrice":80,"notes":"caro"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	product := decodeData[domain.Product](t, rr)
	if product.RejectionReason == nil || product.RejectionReason.SuggestedPrice != 80 || product.Active {
		t.Fatalf("unexpected rejected product %+v", product)
	}
}

func TestDeleteProductRecordsAuditRow(t *testing.T) {
	f := newGatewayFixture(t, withProducts(domain.Product{ID: "p1", Name: "Caneca", Price: 10, ApprovalStatus: domain.ApprovalStatusPending}))

	rr := f.do(t, http.MethodDelete, "/products/p1", fullAccessKey, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if f.products.count() != 0 {
		t.Fatalf("expected product removed")
	}
	if len(f.history.entries) != 1 || f.history.entries[0].NewStatus != domain.ApprovalStatusDeleted {
		t.Fatalf("expected deleted audit row, got %+v", f.history.entries)
	}

	rr = f.do(t, http.MethodDelete, "/products/p1", fullAccessKey, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}
}

func TestListProductsFiltersAndPaginates(t *testing.T) {
	f := newGatewayFixture(t, withProducts(
		domain.Product{ID: "a", Name: "Caneca azul", SKU: "CAN-1", Price: 10, Active: true},
		domain.Product{ID: "b", Name: "Caneca verde", SKU: "CAN-2", Price: 30, Active: true},
		domain.Product{ID: "c", Name: "Mesa", SKU: "MES-1", Price: 300, Active: true},
	))

	rr := f.do(t, http.MethodGet, "/products?search=caneca&max_price=20&limit=10", fullAccessKey, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	items := decodeData[[]domain.Product](t, rr)
	if len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("expected only product a, got %+v", items)
	}
	if env := decodeEnvelope(t, rr); len(env.Pagination) == 0 {
		t.Fatalf("expected pagination block")
	}

	for _, query := range []string{"limit=0", "offset=-1", "active=maybe", "min_price=abc"} {
		rr := f.do(t, http.MethodGet, "/products?"+query, fullAccessKey, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rr.Code)
		}
	}
}

func TestUpdateProductPatchesFields(t *testing.T) {
	f := newGatewayFixture(t, withProducts(domain.Product{ID: "p1", Name: "Mesa", Price: 10, StockQuantity: 1}))

	rr := f.do(t, http.MethodPut, "/products/p1", fullAccessKey, `{"price":15,"stockQuantity":4}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	product := decodeData[domain.Product](t, rr)
	if product.Price != 15 || product.StockQuantity != 4 || product.Name != "Mesa" {
		t.Fatalf("unexpected patched product %+v", product)
	}

	rr = f.do(t, http.MethodPut, "/products/missing", fullAccessKey, `{"price":15}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
