package common

import (
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{1,30}$`)

	// MinAmount and MaxAmount bound a single transfer amount.
	MinAmount = decimal.RequireFromString("0.01")
	MaxAmount = decimal.RequireFromString("100000.00")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// decimal.Decimal is validated through its string form.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("iban_format", func(fl validator.FieldLevel) bool {
		return ibanPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		if d.LessThan(MinAmount) || d.GreaterThan(MaxAmount) {
			return false
		}
		return d.Equal(d.Round(2))
	})
	return v
}

// Validate checks payload against its validate tags and returns an
// InvalidRequest AppError describing the first failures.
func Validate(payload interface{}) *AppError {
	if err := validate.Struct(payload); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return NewAppError(CodeInvalidRequest, validationErrors.Error(), err)
		}
		return NewAppError(CodeInvalidRequest, "invalid request", err)
	}
	return nil
}
