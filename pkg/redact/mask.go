package redact

import (
	"regexp"
	"strings"
)

const (
	// maskChar fills the hidden middle of a masked match.
	maskChar = "*"

	// privateKeyPlaceholder replaces a PEM private key header outright.
	privateKeyPlaceholder = "[PRIVATE_KEY_REDACTED]"
)

var (
	connCredentials = regexp.MustCompile(`://[^:]+:[^@]+@`)
	sqlPassword     = regexp.MustCompile(`(?i)(Password\s*=\s*)[^;*]+`)
	ipTail          = regexp.MustCompile(`(\d+\.\d+)\.\d+\.\d+`)
)

// mask applies the per-category masking policy to a matched text.
func mask(text string, category Category) string {
	switch category {
	case CategoryPrivateKey:
		return privateKeyPlaceholder
	case CategoryConnectionString:
		// URI form: keep scheme and host, hide the credential segment.
		if connCredentials.MatchString(text) {
			return connCredentials.ReplaceAllString(text, "://***:***@")
		}
		// Key/value form (Server=...;Password=...): hide the password value.
		return sqlPassword.ReplaceAllString(text, "${1}***")
	case CategoryInternalIP:
		// Keep the first octet pair, hide the rest.
		return ipTail.ReplaceAllString(text, "$1.***.***")
	default:
		return maskKeepingEnds(text)
	}
}

// maskKeepingEnds keeps the leading and trailing characters of the match and
// fills the middle with the mask character. Output length always equals input
// length, so nothing about the secret is hidden beyond its ends.
func maskKeepingEnds(text string) string {
	n := len(text)
	switch {
	case n > 10:
		return text[:4] + strings.Repeat(maskChar, n-8) + text[n-4:]
	case n > 2:
		return text[:2] + strings.Repeat(maskChar, n-2)
	default:
		return strings.Repeat(maskChar, n)
	}
}
