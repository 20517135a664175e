package validators

import (
	"strings"
	"unicode"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

// MaxServiceIDLen matches services.service_id.
const MaxServiceIDLen = 10

// SanitizeString trims input, drops control characters and cuts it to maxLen
// bytes. Use it for free text and correlation ids, never for identifiers
// whose prefix could name another record.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	if maxLen > 0 && len(cleaned) > maxLen {
		return cleaned[:maxLen]
	}
	return cleaned
}

// ServiceID validates a tenant id. An empty value is returned as is; callers
// decide whether a tenant is required.
func ServiceID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	switch {
	case id == "":
		return "", nil
	case len(id) > MaxServiceIDLen:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "service id is too long").
			WithDetails(map[string]any{"maxLength": MaxServiceIDLen})
	case strings.IndexFunc(id, invalidServiceIDRune) >= 0:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "service id may only contain letters, digits, '-' and '_'")
	}
	return id, nil
}

func invalidServiceIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		return false
	}
	return true
}
