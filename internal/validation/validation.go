// Package validation provides struct validation for requests and settings.
package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "import-cost/internal/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Use JSON tag names in error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		// Decimals validate as their float value so gte/lte/gt work on them
		validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

		_ = validate.RegisterValidation("currency", validateCurrency)
	})
	return validate
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

func validateCurrency(fl validator.FieldLevel) bool {
	return currencyRegex.MatchString(fl.Field().String())
}

// FieldError is a single failed field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is a collection of failed fields
type FieldErrors []FieldError

// Error implements the error interface
func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, e := range fe {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}

// Validate checks s against its validate tags. Failures come back as an
// INVALID_INPUT error whose cause is FieldErrors.
func Validate(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	fields := ParseErrors(err)
	if len(fields) == 0 {
		return apperrors.Wrap(apperrors.TypeInput, "validation failed", err)
	}
	return apperrors.Wrap(apperrors.TypeInput, "validation failed", fields).
		WithContext("field", fields[0].Field)
}

// ParseErrors converts validator errors into FieldErrors
func ParseErrors(err error) FieldErrors {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(FieldErrors, 0, len(ve))
	for _, e := range ve {
		out = append(out, FieldError{Field: e.Field(), Message: message(e)})
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "currency":
		return "must be a three-letter currency code"
	default:
		return "is invalid"
	}
}
