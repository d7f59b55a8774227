package validation

import (
	"errors"
	"testing"
)

type rejectPayload struct {
	ReferenceURL   string  `json:"referenceUrl" validate:"required,httpurl"`
	SuggestedPrice float64 `json:"suggestedPrice" validate:"gt=0"`
	Condition      string  `json:"condition" validate:"omitempty,oneof=new used refurbished"`
}

func TestStructUsesJSONNames(t *testing.T) {
	err := Struct(rejectPayload{ReferenceURL: "not a url", SuggestedPrice: 0, Condition: "broken"})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	got := map[string]string{}
	for _, fe := range verr.Fields {
		got[fe.Field] = fe.Tag
	}
	want := map[string]string{"referenceUrl": "httpurl", "suggestedPrice": "gt", "condition": "oneof"}
	for field, tag := range want {
		if got[field] != tag {
			t.Fatalf("expected %s to fail %s, got %v", field, tag, got)
		}
	}
	if verr.Error() != "Campo referenceUrl deve ser uma URL http(s) válida" {
		t.Fatalf("unexpected message %q", verr.Error())
	}
}

func TestStructAcceptsValidPayload(t *testing.T) {
	if err := Struct(rejectPayload{ReferenceURL: "https://example.com/item/1", SuggestedPrice: 10}); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}

func TestIsHTTPURL(t *testing.T) {
	cases := map[string]bool{
		"https://produto.mercadolivre.com.br/MLB-1": true,
		"http://example.com":                        true,
		"not a url":                                 false,
		"ftp://example.com/file":                    false,
		"/relative/path":                            false,
		"https://":                                  false,
		"":                                          false,
	}
	for value, want := range cases {
		if got := IsHTTPURL(value); got != want {
			t.Fatalf("IsHTTPURL(%q) = %v, want %v", value, got, want)
		}
	}
}
