package domain

import "strings"

// Display names for attribute ids that marketplaces share, used when a payload omits `name`.
var attributeDisplayNames = map[string]string{
	"BRAND":          "Marca",
	"MODEL":          "Modelo",
	"COLOR":          "Cor",
	"MAIN_COLOR":     "Cor principal",
	"SIZE":           "Tamanho",
	"GENDER":         "Gênero",
	"MATERIAL":       "Material",
	"VOLTAGE":        "Voltagem",
	"GTIN":           "Código universal de produto",
	"ITEM_CONDITION": "Condição do item",
	"WEIGHT":         "Peso",
	"HEIGHT":         "Altura",
	"WIDTH":          "Largura",
	"LENGTH":         "Comprimento",
}

// AttributeDisplayName resolves a human name for an attribute id, falling back to the id itself.
func AttributeDisplayName(id string) string {
	if name, ok := attributeDisplayNames[strings.ToUpper(strings.TrimSpace(id))]; ok {
		return name
	}
	return id
}
