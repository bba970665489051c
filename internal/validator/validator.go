package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterTagNameFunc(jsonFieldName)
	validator.RegisterValidation("pay_method", validatePayMethod)
	validator.RegisterValidation("operator_status", validateOperatorStatus)

	return validator
}

// jsonFieldName reports fields by their wire name so clients can match them.
func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}

	return name
}

func validatePayMethod(fl validator.FieldLevel) bool {
	return domain.PaymentMethod(fl.Field().String()).IsValid()
}

func validateOperatorStatus(fl validator.FieldLevel) bool {
	return domain.OperatorStatus(fl.Field().String()).IsValid()
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", err.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s items", err.Param())
	case "max":
		return fmt.Sprintf("must contain at most %s items", err.Param())
	case "uuid":
		return "must be a valid hold token"
	case "pay_method":
		return "must be one of CARD, KAKAO_PAY, NAVER_PAY, TOSS, BANK_TRANSFER"
	case "operator_status":
		return "must be one of AVAILABLE, BLOCKED, DISABLED"
	default:
		return "is invalid"
	}
}
