package redact

import "regexp"

// Category identifies the kind of sensitive content a detector looks for.
type Category string

const (
	// CategoryAPIKey - credential-like key/value pairs and vendor key prefixes.
	CategoryAPIKey Category = "api_key"

	// CategoryPassword - password key/value pairs.
	CategoryPassword Category = "password"

	// CategoryToken - access/bearer tokens and JWTs.
	CategoryToken Category = "token"

	// CategorySecret - generic secret key/value pairs.
	CategorySecret Category = "secret"

	// CategoryPrivateKey - PEM private key block headers.
	CategoryPrivateKey Category = "private_key"

	// CategoryConnectionString - credentialed connection URIs.
	CategoryConnectionString Category = "connection_string"

	// CategoryAWSCredential - cloud access key IDs and secret keys.
	CategoryAWSCredential Category = "aws_credential"

	// CategoryInternalIP - RFC 1918 private IPv4 addresses.
	CategoryInternalIP Category = "internal_ip"
)

// detector pairs a category with its compiled patterns. Detectors are
// evaluated in declaration order; the order is part of the contract.
type detector struct {
	category Category
	patterns []*regexp.Regexp
}

// detectors is the fixed, ordered set of built-in category detectors.
//
// None of these patterns may match its own masked output: value character
// classes exclude the mask character, and key/value values carry a minimum
// length so the 2-4 characters kept at the ends of a masked value can never
// re-match. Both together make redaction idempotent.
var detectors = []detector{
	{CategoryAPIKey, compile(
		`(?i)(api[_-]?key|apikey)\s*[=:]\s*["']?([a-zA-Z0-9_\-]{20,})["']?`,
		`(?i)sk-[a-zA-Z0-9]{20,}`,            // OpenAI-style key
		`(?i)ghp_[a-zA-Z0-9]{36}`,            // GitHub personal access token
		`(?i)gho_[a-zA-Z0-9]{36}`,            // GitHub OAuth token
		`(?i)github_pat_[a-zA-Z0-9_]{22,}`,   // GitHub fine-grained token
	)},
	{CategoryPassword, compile(
		`(?i)(password|passwd|pwd)\s*[=:]\s*["']?([^\s"'*]{6,})["']?`,
		`(?i)(db_pass|database_password|mysql_pwd)\s*[=:]\s*["']?([^\s"'*]{6,})["']?`,
	)},
	{CategoryToken, compile(
		`(?i)(access[_-]?token|auth[_-]?token|bearer)\s*[=:]\s*["']?([a-zA-Z0-9_\-.]{20,})["']?`,
		`eyJ[a-zA-Z0-9_\-]*\.eyJ[a-zA-Z0-9_\-]*\.[a-zA-Z0-9_\-]*`, // JWT
	)},
	{CategorySecret, compile(
		`(?i)(secret|client[_-]?secret|app[_-]?secret)\s*[=:]\s*["']?([a-zA-Z0-9_\-]{16,})["']?`,
	)},
	{CategoryPrivateKey, compile(
		`-----BEGIN\s+(RSA\s+)?PRIVATE\s+KEY-----`,
		`-----BEGIN\s+OPENSSH\s+PRIVATE\s+KEY-----`,
		`-----BEGIN\s+EC\s+PRIVATE\s+KEY-----`,
	)},
	{CategoryConnectionString, compile(
		`(?i)(mongodb|mysql|postgres|redis|amqp)://[^\s"'@*]+:[^\s"'@*]+@[^\s"']+`,
		`(?i)Server\s*=\s*[^;]+;\s*Database\s*=\s*[^;]+;\s*User\s*Id\s*=\s*[^;]+;\s*Password\s*=\s*[^;*]+`,
	)},
	{CategoryAWSCredential, compile(
		`AKIA[0-9A-Z]{16}`, // access key ID
		`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[=:]\s*["']?([a-zA-Z0-9/+=]{40})["']?`,
	)},
	{CategoryInternalIP, compile(
		`\b10\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`,
		`\b172\.(1[6-9]|2[0-9]|3[01])\.\d{1,3}\.\d{1,3}\b`,
		`\b192\.168\.\d{1,3}\.\d{1,3}\b`,
	)},
}

// bypassFilePatterns match files that are assumed to contain illustrative,
// non-live secrets: docs, templates, examples and tests.
var bypassFilePatterns = compile(
	`(?i)\.example$`,
	`(?i)\.sample$`,
	`(?i)\.template$`,
	`(?i)README`,
	`(?i)CHANGELOG`,
	`(?i)\.md$`,
	`(?i)\.txt$`,
	`(?i)test.*\.py$`,
	`(?i).*_test\.go$`,
	`(?i).*\.test\.(js|ts)$`,
)

// commentMarkers start comment lines that are not scanned.
var commentMarkers = []string{"#", "//", "*"}

func compile(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}
