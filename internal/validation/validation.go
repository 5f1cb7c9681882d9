// Package validation configures the validator shared by the console's forms and turns its
// errors into field -> message maps.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FieldErrors maps a field name to a message. An empty map means valid.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, msg := range fe {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Messages overrides the message for a field, keyed by its json name.
type Messages map[string]string

// New returns a validator that reports fields by their json names and knows the custom tags:
//
//	notblank  the string is not empty after trimming spaces
//	price     the string parses as a non-negative decimal
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// registration only fails for empty tags or nil funcs
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		_, ok := ParsePrice(fl.Field().String())
		return ok
	})
	return v
}

// ParsePrice parses s as a non-negative decimal.
func ParsePrice(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// FromError converts a validator error into FieldErrors, using msgs where a field has an override.
// The second result is false when err is not a validation error.
func FromError(err error, msgs Messages) (FieldErrors, bool) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, false
	}
	out := make(FieldErrors, len(ve))
	for _, fe := range ve {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		if msg, ok := msgs[fe.Field()]; ok {
			out[fe.Field()] = msg
			continue
		}
		out[fe.Field()] = messageForTag(fe.Tag(), fe.Param())
	}
	return out, true
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required", "notblank":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return "Must be at least " + param + " characters"
	case "max":
		return "Must be at most " + param + " characters"
	case "price":
		return "Valid price required"
	default:
		return "Invalid value"
	}
}
