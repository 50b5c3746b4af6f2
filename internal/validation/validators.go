package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/lacs-cc/auth-gateway/internal/invites"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// This should never fail in normal operation
	if err := Validate.RegisterValidation("invite_code", validateInviteCode); err != nil {
		panic(fmt.Sprintf("failed to register invite_code validator: %v", err))
	}
}

// validateInviteCode validates that a string is, after normalization, a
// well-formed invite code.
func validateInviteCode(fl validator.FieldLevel) bool {
	return invites.IsValidFormat(invites.Normalize(fl.Field().String()))
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}
