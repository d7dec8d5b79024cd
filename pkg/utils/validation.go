package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"relmap/domain/core/valueobjects"
	apperrors "relmap/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("proximity", func(fl validator.FieldLevel) bool {
		_, err := valueobjects.ParseProximity(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := valueobjects.ParseCategory(fl.Field().String())
		return ok
	})
	return v
}

// ValidateStruct validates a struct based on its validation tags.
// Failures become a validation error listing each offending field.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	fields := make(map[string]interface{}, len(validationErrors))
	for _, e := range validationErrors {
		msg := formatFieldError(e)
		messages = append(messages, msg)
		fields[lowerFirst(e.Field())] = msg
	}
	return apperrors.NewValidationError(strings.Join(messages, "; ")).
		WithDetails(map[string]interface{}{"fields": fields})
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := lowerFirst(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "proximity":
		return fmt.Sprintf("%s must be one of: %s", field, "fort, moyen, faible")
	case "category":
		return fmt.Sprintf("%s contains an unknown category", field)
	case "dive":
		return fmt.Sprintf("%s contains invalid values", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
