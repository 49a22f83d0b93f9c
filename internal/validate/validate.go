package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"dolmen/pos/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		_, err := parseMoney(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("count", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		_, err := parseCount(fl.Field().String())
		return err == nil
	})
}

// Struct validates data against its `validate` tags and reports the first
// failing field as a store.ValidationError.
func Struct(data any) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &store.ValidationError{Reason: err.Error(), Err: err}
	}
	fe := fieldErrs[0]
	return &store.ValidationError{Field: fe.Field(), Reason: reason(fe), Err: err}
}

// Money parses an operator-typed amount: a non-negative decimal with at most
// two fractional digits.
func Money(field string, raw string) (decimal.Decimal, error) {
	amount, err := parseMoney(raw)
	if err != nil {
		return decimal.Decimal{}, store.Invalid(field, err.Error())
	}
	return amount, nil
}

// Count parses an operator-typed non-negative whole quantity.
func Count(field string, raw string) (int, error) {
	n, err := parseCount(raw)
	if err != nil {
		return 0, store.Invalid(field, err.Error())
	}
	return n, nil
}

func parseMoney(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Decimal{}, errors.New("is required")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%q is not a number", trimmed)
	}
	switch {
	case amount.IsNegative():
		return decimal.Decimal{}, errors.New("must not be negative")
	case amount.GreaterThanOrEqual(store.MaxAmount):
		return decimal.Decimal{}, errors.New("is too large")
	case !amount.Equal(amount.Truncate(2)):
		return decimal.Decimal{}, errors.New("must have at most two decimal places")
	}
	return amount, nil
}

func parseCount(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, errors.New("is required")
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", trimmed)
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	if n > store.MaxStock {
		return 0, fmt.Errorf("must be at most %d", store.MaxStock)
	}
	return n, nil
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "money":
		if _, err := parseMoney(valueString(fe)); err != nil {
			return err.Error()
		}
		return "must be a non-negative amount"
	case "count":
		if _, err := parseCount(valueString(fe)); err != nil {
			return err.Error()
		}
		return "must be a non-negative whole number"
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

func valueString(fe validator.FieldError) string {
	v := reflect.Indirect(reflect.ValueOf(fe.Value()))
	if v.Kind() == reflect.String {
		return v.String()
	}
	return fmt.Sprint(fe.Value())
}
