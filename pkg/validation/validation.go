// Package validation holds the shared go-playground/validator setup: custom
// tags, JSON field naming and translation into field level messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// AppError converts the field errors into a VALIDATION_ERROR keyed by field.
func (v ValidationErrors) AppError() *apperrors.AppError {
	details := make(map[string]any, len(v))
	for _, e := range v {
		details[e.Field] = e.Message
	}
	return apperrors.Validation("Invalid input", details)
}

// New returns a validator that reports JSON field names and knows the
// supported_phone and reservation_status tags.
func New() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("supported_phone", validateSupportedPhone); err != nil {
		return nil, fmt.Errorf("register supported_phone: %w", err)
	}
	if err := v.RegisterValidation("reservation_status", validateReservationStatus); err != nil {
		return nil, fmt.Errorf("register reservation_status: %w", err)
	}
	return v, nil
}

func validateSupportedPhone(fl validator.FieldLevel) bool {
	return sanitizer.IsE164(fl.Field().String())
}

func validateReservationStatus(fl validator.FieldLevel) bool {
	return model.ReservationStatus(fl.Field().String()).Valid()
}

// Struct validates s and translates failures into ValidationErrors.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return Translate(validationErrs)
	}
	return err
}

func Translate(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		case "numeric":
			message = fmt.Sprintf("%s must contain digits only", err.Field())
		case "uuid4":
			message = fmt.Sprintf("%s must be a valid handle", err.Field())
		case "supported_phone":
			message = fmt.Sprintf("%s must be a valid phone number in E.164 format (e.g., +998901234567)", err.Field())
		case "reservation_status":
			message = fmt.Sprintf("%s must be one of: pending approved rejected", err.Field())
		}

		out = append(out, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return out
}
