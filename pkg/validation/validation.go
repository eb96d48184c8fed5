// Package validation wraps go-playground/validator with the decimal tags
// used by stock quantities and maps failures to AppError.
package validation

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

var validate = New()

// New returns a validator with the decimal tags registered:
//
//	dpos     value > 0
//	dnonneg  value >= 0
//	dnonzero value != 0
//	dscale=N at most N fractional digits
func New() *validator.Validate {
	v := validator.New()
	must(v.RegisterValidation("dpos", decimalCheck(func(d decimal.Decimal) bool { return d.IsPositive() })))
	must(v.RegisterValidation("dnonneg", decimalCheck(func(d decimal.Decimal) bool { return !d.IsNegative() })))
	must(v.RegisterValidation("dnonzero", decimalCheck(func(d decimal.Decimal) bool { return !d.IsZero() })))
	must(v.RegisterValidation("dscale", decimalScale))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func decimalCheck(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		switch d := fl.Field().Interface().(type) {
		case decimal.Decimal:
			return ok(d)
		case *decimal.Decimal:
			return d == nil || ok(*d)
		default:
			return false
		}
	}
}

// decimalScale compares the fractional digits of the value after trailing
// zeros are dropped, so "1.50000" passes dscale=4.
func decimalScale(fl validator.FieldLevel) bool {
	places, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return decimalCheck(func(d decimal.Decimal) bool {
		return d.Equal(d.Truncate(int32(places)))
	})(fl)
}

// Struct validates v and returns a VALIDATION_ERROR AppError on failure.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.BadRequest(err.Error())
	}

	details := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		details[e.Field()] = formatValidationError(e)
	}
	return errors.Validation(details)
}

// Field returns a single-field VALIDATION_ERROR.
func Field(name, message string) error {
	return errors.Validation(map[string]string{name: message})
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "dpos":
		return "must be greater than zero"
	case "dnonneg":
		return "must not be negative"
	case "dnonzero":
		return "must not be zero"
	case "dscale":
		return "must have at most " + e.Param() + " decimal places"
	case "dive":
		return "contains an invalid entry"
	default:
		return "invalid value"
	}
}
