package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"vendhub/internal/types"
)

// Validator wraps go-playground/validator with the platform's custom tags.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers custom validation tags:
//   - disco:        the value names a known distribution company
//   - meter_number: 6 to 20 digits
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	_ = v.RegisterValidation("disco", func(fl validator.FieldLevel) bool {
		return types.ValidDisco(types.Disco(fl.Field().String()))
	})
	_ = v.RegisterValidation("meter_number", func(fl validator.FieldLevel) bool {
		return types.ValidateMeterNumber(fl.Field().String()) == nil
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates a request payload and maps failures to a single
// validation AppError carrying per-field details.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		v.logger.Error("validator returned non-validation error", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		details[fe.Field()] = fe.Tag()
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"request validation failed",
		err,
		details,
	)
}
