package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrDuplicateSKU is returned when a variation list would contain the same SKU twice.
	ErrDuplicateSKU = errors.New("duplicate variation sku")
	// ErrVariationSKURequired is returned for variations without a SKU.
	ErrVariationSKURequired = errors.New("variation sku is required")
)

// RawAttribute accepts every attribute shape seen at the boundary:
// bare `value`, `value_name`/`valueName`, `value_id`/`valueId` and a pre-populated `values` array.
type RawAttribute struct {
	ID        string
	Name      string
	ValueID   *string
	ValueName *string
	Values    []AttributeValue
}

type rawAttributeValue struct {
	ID   json.RawMessage `json:"id"`
	Name json.RawMessage `json:"name"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawAttribute) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID             json.RawMessage     `json:"id"`
		Name           json.RawMessage     `json:"name"`
		ValueID        json.RawMessage     `json:"value_id"`
		ValueIDCamel   json.RawMessage     `json:"valueId"`
		ValueName      json.RawMessage     `json:"value_name"`
		ValueNameCamel json.RawMessage     `json:"valueName"`
		Value          json.RawMessage     `json:"value"`
		Values         []rawAttributeValue `json:"values"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = RawAttribute{
		ID:        deref(scalarString(aux.ID)),
		Name:      deref(scalarString(aux.Name)),
		ValueID:   coalesce(scalarString(aux.ValueID), scalarString(aux.ValueIDCamel)),
		ValueName: coalesce(scalarString(aux.ValueName), scalarString(aux.ValueNameCamel), scalarString(aux.Value)),
	}
	if len(aux.Values) > 0 {
		r.Values = make([]AttributeValue, 0, len(aux.Values))
		for _, v := range aux.Values {
			r.Values = append(r.Values, AttributeValue{ID: scalarString(v.ID), Name: scalarString(v.Name)})
		}
	}
	return nil
}

// NormalizeAttributes converts raw attributes into the canonical shape. Applying it to its own
// (re-parsed) output yields the same result.
func NormalizeAttributes(raw []RawAttribute) []Attribute {
	out := make([]Attribute, 0, len(raw))
	for _, item := range raw {
		out = append(out, NormalizeAttribute(item))
	}
	return out
}

// NormalizeAttribute canonicalises a single attribute.
func NormalizeAttribute(item RawAttribute) Attribute {
	id := strings.TrimSpace(item.ID)
	attr := Attribute{
		ID:        id,
		Name:      strings.TrimSpace(item.Name),
		ValueID:   item.ValueID,
		ValueName: item.ValueName,
	}
	if attr.Name == "" {
		attr.Name = AttributeDisplayName(id)
	}

	switch {
	case len(item.Values) > 0:
		attr.Values = append([]AttributeValue(nil), item.Values...)
	case attr.ValueName != nil:
		attr.Values = []AttributeValue{{ID: attr.ValueID, Name: attr.ValueName}}
	default:
		attr.Values = []AttributeValue{}
	}
	return attr
}

// RawVariation accepts variation attributes either as a map or as a list of
// `{name|id, value|value_name}` pairs, and stock as `stock` or `available_quantity`.
type RawVariation struct {
	SKU        string
	Attributes map[string]string
	Stock      *int
	Price      *float64
	GTIN       *string
	Images     []string
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawVariation) UnmarshalJSON(data []byte) error {
	var aux struct {
		SKU               json.RawMessage `json:"sku"`
		SellerSKU         json.RawMessage `json:"seller_sku"`
		Attributes        json.RawMessage `json:"attributes"`
		Stock             *int            `json:"stock"`
		AvailableQuantity *int            `json:"available_quantity"`
		Price             *float64        `json:"price"`
		GTIN              json.RawMessage `json:"gtin"`
		Images            []string        `json:"images"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	attrs, err := parseVariationAttributes(aux.Attributes)
	if err != nil {
		return err
	}
	stock := aux.Stock
	if stock == nil {
		stock = aux.AvailableQuantity
	}
	*r = RawVariation{
		SKU:        strings.TrimSpace(deref(coalesce(scalarString(aux.SKU), scalarString(aux.SellerSKU)))),
		Attributes: attrs,
		Stock:      stock,
		Price:      aux.Price,
		GTIN:       scalarString(aux.GTIN),
		Images:     aux.Images,
	}
	return nil
}

func parseVariationAttributes(data json.RawMessage) (map[string]string, error) {
	out := map[string]string{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	switch trimmed[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, err
		}
		for k, v := range m {
			if s := scalarString(v); s != nil {
				out[k] = *s
			}
		}
	case '[':
		var list []RawAttribute
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		for _, item := range list {
			key := strings.TrimSpace(item.Name)
			if key == "" {
				key = strings.TrimSpace(item.ID)
			}
			if key == "" || item.ValueName == nil {
				continue
			}
			out[key] = *item.ValueName
		}
	default:
		return nil, fmt.Errorf("variation attributes must be an object or an array")
	}
	return out, nil
}

// NormalizeVariation canonicalises one variation; a missing price falls back to defaultPrice.
func NormalizeVariation(raw RawVariation, defaultPrice float64) (Variation, error) {
	sku := strings.TrimSpace(raw.SKU)
	if sku == "" {
		return Variation{}, ErrVariationSKURequired
	}
	v := Variation{
		SKU:        sku,
		Attributes: raw.Attributes,
		Price:      defaultPrice,
		GTIN:       raw.GTIN,
		Images:     append([]string{}, raw.Images...),
	}
	if v.Attributes == nil {
		v.Attributes = map[string]string{}
	}
	if raw.Stock != nil {
		v.Stock = *raw.Stock
	}
	if raw.Price != nil {
		v.Price = *raw.Price
	}
	return v, nil
}

// NormalizeVariations canonicalises a full variation list and rejects duplicate SKUs.
func NormalizeVariations(raw []RawVariation, defaultPrice float64) ([]Variation, error) {
	out := make([]Variation, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		v, err := NormalizeVariation(item, defaultPrice)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[v.SKU]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSKU, v.SKU)
		}
		seen[v.SKU] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

func scalarString(raw json.RawMessage) *string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		return &s
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil
		}
		s := strconv.FormatBool(b)
		return &s
	case '{', '[':
		return nil
	}
	s := string(trimmed)
	return &s
}

func coalesce(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
