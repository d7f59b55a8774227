package firestore

import (
	"testing"
	"time"

	"github.com/catalogsync/api/internal/domain"
)

func TestDecodeProductRecomputesVariationFlag(t *testing.T) {
	doc := productDocument{
		Name:           "Tênis",
		Price:          199.9,
		HasVariations:  true,
		ApprovalStatus: "unknown-state",
	}
	p := decodeProduct("p-1", doc)
	if p.HasVariations {
		t.Fatalf("stale has_variations flag must be recomputed from the list")
	}
	if p.ApprovalStatus != domain.ApprovalStatusDraft {
		t.Fatalf("unknown status must decode as draft, got %s", p.ApprovalStatus)
	}
	if p.Images == nil || p.Specifications == nil || p.Attributes == nil || p.Variations == nil {
		t.Fatalf("collections must decode as empty, not nil: %+v", p)
	}
}

func TestEncodeProductKeepsCanonicalAttributes(t *testing.T) {
	red := "Red"
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("BRT", -3*3600))
	p := domain.Product{
		ID:    "p-1",
		Price: 100,
		Attributes: []domain.Attribute{{
			ID: "COLOR", Name: "Cor", ValueName: &red,
			Values: []domain.AttributeValue{{Name: &red}},
		}},
		Variations: []domain.Variation{{SKU: "X1", Price: 100, Attributes: map[string]string{"Cor": "Red"}}},
		RejectionReason: &domain.RejectionReason{
			ReferenceURL: "https://example.com", SuggestedPrice: 90,
		},
		CreatedAt: now,
	}

	doc := encodeProduct(p)
	if !doc.HasVariations {
		t.Fatalf("has_variations must follow the variation list")
	}
	if doc.CreatedAt.Location() != time.UTC {
		t.Fatalf("timestamps must be stored in UTC")
	}

	back := decodeProduct("p-1", doc)
	if back.Attributes[0].Values[0].ID != nil || *back.Attributes[0].Values[0].Name != "Red" {
		t.Fatalf("attribute values changed on round trip: %+v", back.Attributes[0])
	}
	if back.RejectionReason == nil || back.RejectionReason.SuggestedPrice != 90 {
		t.Fatalf("rejection reason lost: %+v", back.RejectionReason)
	}
	if back.Variations[0].Images == nil {
		t.Fatalf("variation images must decode as empty slice")
	}
}

func TestClaimIDIsCaseInsensitiveOnMarketplace(t *testing.T) {
	if claimID("p-1", "MercadoLivre") != claimID("p-1", "mercadolivre") {
		t.Fatalf("claim ids must not depend on marketplace casing")
	}
}
