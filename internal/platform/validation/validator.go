package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one failed constraint using the JSON field name.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Error aggregates the failed constraints of a payload.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	return Message(e.Fields[0])
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return IsHTTPURL(fl.Field().String())
	})
	return v
}

// Struct validates the tagged payload and returns *Error when constraints fail.
func Struct(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fieldPath(fe.Namespace()),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// IsHTTPURL reports whether value is an absolute http or https URL with a host.
func IsHTTPURL(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || strings.ContainsAny(value, " \t\n") {
		return false
	}
	u, err := url.ParseRequestURI(value)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Message renders a field error as the one-line text returned to API callers.
func Message(fe FieldError) string {
	switch fe.Tag {
	case "required":
		return fmt.Sprintf("Campo %s é obrigatório", fe.Field)
	case "gt":
		return fmt.Sprintf("Campo %s deve ser maior que %s", fe.Field, fe.Param)
	case "gte":
		return fmt.Sprintf("Campo %s deve ser maior ou igual a %s", fe.Field, fe.Param)
	case "oneof":
		return fmt.Sprintf("Campo %s deve ser um de: %s", fe.Field, fe.Param)
	case "httpurl":
		return fmt.Sprintf("Campo %s deve ser uma URL http(s) válida", fe.Field)
	case "max":
		return fmt.Sprintf("Campo %s excede o tamanho máximo de %s", fe.Field, fe.Param)
	default:
		return fmt.Sprintf("Campo %s inválido", fe.Field)
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
