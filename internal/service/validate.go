package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/lib/apperr"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// поля называем по json-тегам
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// decimal проверяется как число, чтобы gt=0 работал на суммах
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		_, ok := models.ParsePaymentMethod(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseOrderStatus(fl.Field().String())
		return ok
	})
	return v
}

// validateStruct возвращает все нарушенные поля сразу
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(apperr.FieldError{Field: "request", Rule: "invalid", Message: err.Error()})
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return apperr.Validation(fields...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "payment_method":
		return "must be one of QRIS, MOBILE_BANKING, VA, DANA"
	case "order_status":
		return "must be one of PENDING, PROCESSING, SHIPPED, COMPLETED, CANCELLED"
	default:
		return "is invalid"
	}
}

func positiveID(field string, id int64) error {
	if id <= 0 {
		return apperr.Validation(apperr.FieldError{Field: field, Rule: "gt", Message: "must be greater than 0"})
	}
	return nil
}
