package ai

import (
	"fmt"
	"strings"

	"github.com/rediverio/reviewd/pkg/classify"
	"github.com/rediverio/reviewd/pkg/review"
)

// Prompt assembly limits. Individual sections are truncated rather than
// dropped so every file in the chunk is at least mentioned.
const (
	maxPatchChars = 4000
)

// systemPrompt fixes the reviewer persona and the JSON output contract.
// The parser depends on the schema described here.
const systemPrompt = `You are a senior code reviewer with over ten years of software
engineering experience across multiple languages, with deep knowledge of code
quality, security, and performance.

Review the pull request changes across these dimensions:

1. Code quality (30%): readability, naming, structure, comments.
2. Potential bugs (25%): logic errors, boundary conditions, nil/error handling.
3. Security (20%): input validation, injection, credential leakage, authz.
4. Performance (15%): algorithmic cost, resource usage, query patterns.
5. Best practices (10%): design, reuse, test coverage, documentation.

Output STRICTLY the following JSON and nothing else:

{
  "score": 85,
  "summary": "overall assessment, under 100 words",
  "issues": [
    {
      "severity": "critical|major|minor|info",
      "category": "bug|security|performance|style|maintainability|best_practice",
      "file": "path/to/file",
      "line": 42,
      "description": "what is wrong",
      "suggestion": "how to fix it"
    }
  ],
  "highlights": ["something done well"],
  "suggestions": ["broader improvement"]
}

Scoring bands: 90-100 excellent, 80-89 good, 70-79 fair, 60-69 poor,
below 60 needs major rework.

Be specific and proportionate: not every finding is critical. Acknowledge
strengths as well as problems. If the diff contains *** or [PRIVATE_KEY_REDACTED]
markers, sensitive values were masked before review; do not report them as issues.`

var tierLabels = map[classify.Tier]string{
	classify.TierCritical: "critical",
	classify.TierHigh:     "high",
	classify.TierMedium:   "medium",
	classify.TierLow:      "low",
	classify.TierSkip:     "skip",
}

// BuildPrompt renders the user message for one chunk: PR metadata, the
// chunk's file list with review tiers, and each file's diff.
func BuildPrompt(pr review.PullRequest, files []review.FileChange) string {
	var b strings.Builder

	b.WriteString("Please review the following pull request:\n\n")

	b.WriteString("## Pull Request\n")
	fmt.Fprintf(&b, "- Title: %s\n", pr.Title)
	body := pr.Body
	if body == "" {
		body = "(no description)"
	}
	fmt.Fprintf(&b, "- Description: %s\n", body)
	if pr.HeadRef != "" || pr.BaseRef != "" {
		fmt.Fprintf(&b, "- Branch: %s -> %s\n", pr.HeadRef, pr.BaseRef)
	}
	fmt.Fprintf(&b, "- Change stats: +%d -%d lines across %d files\n\n",
		pr.Additions, pr.Deletions, pr.ChangedFiles)

	b.WriteString("## Changed files\n")
	for _, f := range files {
		tier := tierLabels[classify.Classify(f)]
		fmt.Fprintf(&b, "- [%s] %s `%s` (+%d -%d)\n",
			tier, f.Status, f.Filename, f.Additions, f.Deletions)
	}
	b.WriteString("\n")

	b.WriteString("## Diffs\n")
	for _, f := range files {
		if f.Patch == "" {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", f.Filename)
		b.WriteString("```diff\n")
		patch := f.Patch
		if len(patch) > maxPatchChars {
			patch = patch[:maxPatchChars] + "\n... (truncated)"
		}
		b.WriteString(patch)
		b.WriteString("\n```\n")
	}

	return b.String()
}
