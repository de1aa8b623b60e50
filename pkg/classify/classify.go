// Package classify assigns review priority tiers to changed files.
//
// Classification is a chain of ordered pattern checks with first-match-wins
// semantics. The rule order is load-bearing: skip patterns dominate security
// keywords, which dominate core-code locations, and so on down to the Medium
// fallback. Keep the rules as an explicit ordered list, not a map, or
// precedence breaks.
package classify

import (
	"regexp"
	"strings"

	"github.com/rediverio/reviewd/pkg/review"
)

// Tier is the review priority of a single file, most urgent first.
type Tier int

const (
	// TierCritical - security-sensitive or large core-code change.
	TierCritical Tier = iota

	// TierHigh - core application code with a modest change.
	TierHigh

	// TierMedium - configuration and everything unclassified.
	TierMedium

	// TierLow - tests and specs.
	TierLow

	// TierSkip - excluded from all downstream processing.
	TierSkip
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	case TierSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// MoreUrgentThan returns true if t outranks other for review purposes.
func (t Tier) MoreUrgentThan(other Tier) bool {
	return t < other
}

// changedLinesForCritical is the size above which a core-code change is
// promoted from High to Critical.
const changedLinesForCritical = 50

// skipPatterns match build artifacts, lockfiles, generated and binary assets,
// and vendored dependencies. They take precedence over every other rule,
// including the security keywords.
var skipPatterns = compileAll(
	`package-lock\.json$`,
	`yarn\.lock$`,
	`pnpm-lock\.yaml$`,
	`cargo\.lock$`,
	`poetry\.lock$`,
	`go\.sum$`,
	`\.min\.js$`,
	`\.min\.css$`,
	`\.map$`,
	`\.d\.ts$`,
	`\.generated\.`,
	`__generated__`,
	`\.snap$`,
	`\.svg$`,
	`\.png$`,
	`\.jpg$`,
	`\.gif$`,
	`\.ico$`,
	`\.woff`,
	`\.ttf$`,
	`\.eot$`,
	`dist/`,
	`build/`,
	`node_modules/`,
	`vendor/`,
	`\.git/`,
)

// securityPatterns match paths that touch authentication, credentials or
// cryptography. Any change here is Critical regardless of size.
var securityPatterns = compileAll(
	`auth`,
	`login`,
	`password`,
	`permission`,
	`security`,
	`crypto`,
	`encrypt`,
	`token`,
	`secret`,
	`credential`,
)

// coreCodePatterns match conventional source locations filtered to common
// source extensions.
var coreCodePatterns = compileAll(
	`src/.*\.(py|js|ts|java|go|rs)$`,
	`app/.*\.(py|js|ts|java|go|rs)$`,
	`lib/.*\.(py|js|ts|java|go|rs)$`,
	`core/.*\.(py|js|ts|java|go|rs)$`,
	`api/.*\.(py|js|ts|java|go|rs)$`,
	`services?/.*\.(py|js|ts|java|go|rs)$`,
	`controllers?/.*\.(py|js|ts|java|go|rs)$`,
	`models?/.*\.(py|js|ts|java|go|rs)$`,
	`handlers?/.*\.(py|js|ts|java|go|rs)$`,
)

var configPatterns = compileAll(
	`\.env`,
	`config\.`,
	`settings\.`,
	`\.ya?ml$`,
	`\.json$`,
	`\.toml$`,
	`\.ini$`,
	`dockerfile`,
	`docker-compose`,
	`\.github/`,
	`\.gitlab-ci`,
	`makefile`,
)

var testPatterns = compileAll(
	`test[s_]?/`,
	`spec[s]?/`,
	`__tests__/`,
	`\.test\.`,
	`\.spec\.`,
	`_test\.`,
	`_spec\.`,
	`test_.*\.py$`,
	`.*_test\.go$`,
)

var (
	docsPatterns     = compileAll(`\.(md|rst|txt|doc)$`)
	frontendPatterns = compileAll(`\.(jsx?|tsx?|vue|svelte|css|scss|less|html)$`)
	backendPatterns  = compileAll(`\.(py|java|go|rs|rb|php|cs)$`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

func matchAny(patterns []*regexp.Regexp, path string) bool {
	for _, p := range patterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// ShouldSkip reports whether the file should be excluded from review entirely.
func ShouldSkip(path string) bool {
	return matchAny(skipPatterns, strings.ToLower(path))
}

// Classify returns the review tier for a changed file. It is deterministic
// and depends only on the (case-insensitive) path and the change size.
func Classify(file review.FileChange) Tier {
	path := strings.ToLower(file.Filename)

	if matchAny(skipPatterns, path) {
		return TierSkip
	}
	if matchAny(securityPatterns, path) {
		return TierCritical
	}
	if matchAny(coreCodePatterns, path) {
		if file.ChangedLines() > changedLinesForCritical {
			return TierCritical
		}
		return TierHigh
	}
	if matchAny(configPatterns, path) {
		return TierMedium
	}
	if matchAny(testPatterns, path) {
		return TierLow
	}
	return TierMedium
}

// TypeGroup returns the reporting group for a file: test, config, docs,
// frontend, backend or other. The match order mirrors Classify so test
// files land in "test" even when they also look like backend code.
// Groups are reporting-only and independent of the review tier.
func TypeGroup(path string) string {
	lower := strings.ToLower(path)

	switch {
	case matchAny(testPatterns, lower):
		return "test"
	case matchAny(configPatterns, lower):
		return "config"
	case matchAny(docsPatterns, lower):
		return "docs"
	case matchAny(frontendPatterns, lower):
		return "frontend"
	case matchAny(backendPatterns, lower):
		return "backend"
	default:
		return "other"
	}
}
