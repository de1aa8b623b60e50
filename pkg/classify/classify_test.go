package classify

import (
	"testing"

	"github.com/rediverio/reviewd/pkg/review"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		file     review.FileChange
		expected Tier
	}{
		{
			"lockfile skipped",
			review.FileChange{Filename: "package-lock.json"},
			TierSkip,
		},
		{
			"skip beats security keyword",
			review.FileChange{Filename: "auth/package-lock.json"},
			TierSkip,
		},
		{
			"vendored dependency skipped",
			review.FileChange{Filename: "vendor/github.com/foo/bar.go", Additions: 500},
			TierSkip,
		},
		{
			"minified asset skipped",
			review.FileChange{Filename: "assets/app.min.js"},
			TierSkip,
		},
		{
			"security keyword is critical regardless of size",
			review.FileChange{Filename: "src/auth/login.py", Additions: 1},
			TierCritical,
		},
		{
			"security keyword case-insensitive",
			review.FileChange{Filename: "SRC/Secrets/Manager.go", Additions: 1},
			TierCritical,
		},
		{
			"large core code change is critical",
			review.FileChange{Filename: "src/parser.go", Additions: 40, Deletions: 20},
			TierCritical,
		},
		{
			"small core code change is high",
			review.FileChange{Filename: "src/parser.go", Additions: 10, Deletions: 5},
			TierHigh,
		},
		{
			"exactly 50 changed lines stays high",
			review.FileChange{Filename: "api/routes.ts", Additions: 50},
			TierHigh,
		},
		{
			"config file is medium",
			review.FileChange{Filename: "deploy/settings.production.ini"},
			TierMedium,
		},
		{
			"ci definition is medium",
			review.FileChange{Filename: ".github/workflows/ci.yml"},
			TierMedium,
		},
		{
			"test file is low",
			review.FileChange{Filename: "pkg/chunk/splitter_test.go"},
			TierLow,
		},
		{
			"spec directory is low",
			review.FileChange{Filename: "spec/models/user_spec.rb"},
			TierLow,
		},
		{
			"unmatched path defaults to medium",
			review.FileChange{Filename: "random/notes"},
			TierMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.file); got != tt.expected {
				t.Errorf("Classify(%q) = %v, want %v", tt.file.Filename, got, tt.expected)
			}
		})
	}
}

func TestTierOrdering(t *testing.T) {
	order := []Tier{TierCritical, TierHigh, TierMedium, TierLow, TierSkip}
	for i := 1; i < len(order); i++ {
		if !order[i-1].MoreUrgentThan(order[i]) {
			t.Errorf("expected %v more urgent than %v", order[i-1], order[i])
		}
	}
}

func TestTypeGroup(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"tests/test_api.py", "test"},
		{"src/app.test.ts", "test"},
		{"config.yaml", "config"},
		{"Dockerfile", "config"},
		{"docs/README.md", "docs"},
		{"web/App.vue", "frontend"},
		{"web/styles.scss", "frontend"},
		{"server/main.go", "backend"},
		{"script.rb", "backend"},
		{"LICENSE", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := TypeGroup(tt.path); got != tt.expected {
				t.Errorf("TypeGroup(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

// A test file under src/ must group as test, not backend: group matching
// follows the same first-match ordering as tier classification.
func TestTypeGroupOrderPrecedence(t *testing.T) {
	if got := TypeGroup("src/server_test.go"); got != "test" {
		t.Errorf("TypeGroup(src/server_test.go) = %q, want test", got)
	}
}
