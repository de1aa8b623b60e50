// Package aggregate merges per-chunk analysis results into one review.
//
// Chunks may complete in any order; Merge re-sorts by chunk ID before
// flattening so the output is deterministic regardless of completion order.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rediverio/reviewd/pkg/review"
	"github.com/rediverio/reviewd/pkg/shared/severity"
)

// ChunkResult is the partial result produced for one chunk by the analysis
// layer. Each ChunkResult is consumed exactly once by Merge.
type ChunkResult struct {
	ChunkID int            `json:"chunk_id"`
	Score   int            `json:"score"`
	Issues  []review.Issue `json:"issues"`
	Summary string         `json:"summary"`

	// Highlights and Suggestions survive only single-chunk runs; Merge
	// ignores them because they do not aggregate meaningfully.
	Highlights  []string `json:"highlights,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Review is the merged outcome of all chunk results.
type Review struct {
	// OverallScore is the integer average of the chunk scores, truncated
	// toward zero. Truncation, not rounding, keeps reruns reproducible.
	OverallScore int `json:"overall_score"`

	Summary string `json:"summary"`

	// Issues holds every chunk's issues flattened in chunk-ID order,
	// preserving each chunk's internal issue order.
	Issues []review.Issue `json:"issues"`

	TotalIssues int `json:"total_issues"`

	// IssuesBySeverity always carries the four known severities; issues
	// with unrecognized labels count toward TotalIssues only.
	IssuesBySeverity map[string]int `json:"issues_by_severity"`

	SkippedFiles []string `json:"skipped_files"`

	// Coverage is (totalFiles - skipped) / totalFiles, 0.0 when
	// totalFiles is zero.
	Coverage float64 `json:"coverage"`

	ChunksReviewed int `json:"chunks_reviewed"`
}

// Merge combines the chunk results into a single review.
//
// An empty result set is not an error: it yields a zero review with an
// explanatory summary, representing "nothing to review".
func Merge(results []ChunkResult, skippedFiles []string, totalFiles int) Review {
	if len(results) == 0 {
		return Review{
			Summary:          "nothing to review",
			Issues:           []review.Issue{},
			IssuesBySeverity: (&severity.CountBySeverity{}).Map(),
			SkippedFiles:     skippedFiles,
			Coverage:         0.0,
		}
	}

	ordered := make([]ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChunkID < ordered[j].ChunkID
	})

	totalScore := 0
	var issues []review.Issue
	var counts severity.CountBySeverity

	for _, r := range ordered {
		totalScore += r.Score
		issues = append(issues, r.Issues...)
		for _, issue := range r.Issues {
			counts.Increment(severity.Level(issue.Severity))
		}
	}

	coverage := 0.0
	if totalFiles > 0 {
		coverage = float64(totalFiles-len(skippedFiles)) / float64(totalFiles)
	}

	return Review{
		OverallScore:     totalScore / len(ordered),
		Summary:          buildSummary(len(ordered), &counts),
		Issues:           issues,
		TotalIssues:      counts.Total,
		IssuesBySeverity: counts.Map(),
		SkippedFiles:     skippedFiles,
		Coverage:         coverage,
		ChunksReviewed:   len(ordered),
	}
}

// buildSummary reports the chunk count, then a critical clause and a major
// clause, each only when its count is non-zero.
func buildSummary(chunks int, counts *severity.CountBySeverity) string {
	parts := []string{fmt.Sprintf("reviewed %d chunks", chunks)}
	if counts.Critical > 0 {
		parts = append(parts, fmt.Sprintf("%d critical issues found", counts.Critical))
	}
	if counts.Major > 0 {
		parts = append(parts, fmt.Sprintf("%d major issues", counts.Major))
	}
	return strings.Join(parts, "; ")
}
