package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ShippingDetails is the address form of the first checkout step.
type ShippingDetails struct {
	FullName   string `json:"full_name" validate:"required"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Notes      string `json:"notes,omitempty"`
}

// Normalize trims surrounding whitespace from every field.
func (s ShippingDetails) Normalize() ShippingDetails {
	return ShippingDetails{
		FullName:   strings.TrimSpace(s.FullName),
		Phone:      strings.TrimSpace(s.Phone),
		Address:    strings.TrimSpace(s.Address),
		City:       strings.TrimSpace(s.City),
		PostalCode: strings.TrimSpace(s.PostalCode),
		Notes:      strings.TrimSpace(s.Notes),
	}
}

// MissingFields lists the required fields that are empty after trimming.
func (s ShippingDetails) MissingFields() []string {
	n := s.Normalize()
	err := validate.Struct(n)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

// Validate returns a ValidationError naming the missing fields, if any.
func (s ShippingDetails) Validate() error {
	if missing := s.MissingFields(); len(missing) > 0 {
		return NewValidationError("complete all required shipping fields", missing...)
	}
	return nil
}
