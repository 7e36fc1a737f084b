package models

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/safar/salon-engine/internal/apperr"
	"github.com/shopspring/decimal"
)

var phonePattern = regexp.MustCompile(`^((8|\+7)[\- ]?)?(\(?\d{3}\)?[\- ]?)?[\d\- ]{7,10}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})

		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})

		v.RegisterStructValidation(validateMoney, CashBox{}, Product{}, Service{})

		validate = v
	})
	return validate
}

// validateMoney rejects amounts with more than two decimal places. Money
// columns are NUMERIC(18, 2) on postgres and would round them.
func validateMoney(sl validator.StructLevel) {
	current := sl.Current()
	for i := 0; i < current.NumField(); i++ {
		field := current.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		d, ok := current.Field(i).Interface().(decimal.Decimal)
		if !ok || d.Equal(d.Round(2)) {
			continue
		}
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		sl.ReportError(d, name, field.Name, "money", "")
	}
}

// Validate checks struct tags on an entity and reports the first failing
// field as a validation error.
func Validate(kind Kind, id string, v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Param() != "" {
			return apperr.Validation(string(kind), id, "field %s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return apperr.Validation(string(kind), id, "field %s failed %s", fe.Field(), fe.Tag())
	}
	return apperr.Validation(string(kind), id, "%v", err)
}

// ValidPhone reports whether phone matches the accepted phone format.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
