package httpclient

import (
	"sort"
	"strings"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor removes credentials from error text before it reaches stderr.
type Redactor struct {
	secrets []string
}

// NewRedactor keeps the distinct non-blank secrets, longest first, so a header
// value is replaced whole rather than leaving its scheme around a redacted token.
func NewRedactor(secrets ...string) Redactor {
	if len(secrets) == 0 {
		return Redactor{}
	}

	unique := make([]string, 0, len(secrets))
	seen := make(map[string]struct{}, len(secrets))
	for _, secret := range secrets {
		trimmed := strings.TrimSpace(secret)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return len(unique[i]) > len(unique[j])
	})

	return Redactor{secrets: unique}
}

// BearerAuth returns the Authorization header for token and a redactor covering
// both. An empty token yields an empty header and a no-op redactor.
func BearerAuth(token string) (string, Redactor) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", Redactor{}
	}
	header := "Bearer " + trimmed
	return header, NewRedactor(header, trimmed)
}

func (r Redactor) Redact(value string) string {
	if value == "" || len(r.secrets) == 0 {
		return value
	}

	redacted := value
	for _, secret := range r.secrets {
		redacted = strings.ReplaceAll(redacted, secret, RedactedPlaceholder)
	}
	return redacted
}
