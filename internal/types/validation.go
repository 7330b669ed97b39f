package types

import (
	"regexp"
	"strings"
)

// Validation constraint constants.
const (
	MaxReasonLength      = 500
	MaxProofRefLength    = 512
	MinMeterNumberDigits = 6
	MaxMeterNumberDigits = 20
)

var meterNumberPattern = regexp.MustCompile(`^\d{6,20}$`)

// ValidateMeterNumber checks the meter number format shared by all DISCOs:
// 6 to 20 digits, nothing else.
func ValidateMeterNumber(meterNumber string) error {
	if !meterNumberPattern.MatchString(meterNumber) {
		return NewAppErrorWithDetails(
			ErrCodeValidationMeterNumber,
			"meter number must be 6-20 digits",
			nil,
			map[string]any{"meter_number": meterNumber},
		)
	}
	return nil
}

// ValidateReason enforces the non-empty reason rule for rejections and
// admin overrides. Whitespace-only reasons are treated as missing.
func ValidateReason(reason string) error {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return NewAppError(ErrCodeValidationMissingReason, "a reason is required", nil)
	}
	if len(trimmed) > MaxReasonLength {
		return NewAppErrorWithDetails(
			ErrCodeValidationMissingReason,
			"reason exceeds maximum length",
			nil,
			map[string]any{"max": MaxReasonLength},
		)
	}
	return nil
}

// ValidateAdjustmentAmount rejects non-positive admin grant/reduce amounts.
func ValidateAdjustmentAmount(amount int) error {
	if amount <= 0 {
		return NewAppErrorWithDetails(
			ErrCodeValidationAmount,
			"adjustment amount must be positive",
			nil,
			map[string]any{"amount": amount},
		)
	}
	return nil
}
