// Package review defines the shared data model for pull-request reviews.
//
// These types flow through every stage of the pipeline: connectors produce
// FileChange values, the chunker groups them, the analyzer scores them, and
// the aggregator merges per-chunk results into a single Result.
package review

// FileChange describes one changed file in a pull request.
// Values are immutable once fetched; pipeline stages that rewrite the patch
// (e.g. redaction) produce a copy instead of mutating in place.
type FileChange struct {
	// Filename is the repository-relative path.
	Filename string `json:"filename"`

	// Status is one of: added, modified, deleted, renamed.
	Status string `json:"status"`

	// Additions and Deletions are line counts from the diff.
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`

	// Patch is the unified diff text. May be empty for binary or
	// oversized files where the SCM API omits it.
	Patch string `json:"patch,omitempty"`
}

// ChangedLines returns the total number of added plus removed lines.
func (f FileChange) ChangedLines() int {
	return f.Additions + f.Deletions
}

// PullRequest carries the metadata and file list for one review run.
type PullRequest struct {
	Number       int          `json:"number"`
	Title        string       `json:"title"`
	Body         string       `json:"body,omitempty"`
	Author       string       `json:"author,omitempty"`
	HeadRef      string       `json:"head_ref,omitempty"`
	BaseRef      string       `json:"base_ref,omitempty"`
	Additions    int          `json:"additions"`
	Deletions    int          `json:"deletions"`
	ChangedFiles int          `json:"changed_files"`
	Files        []FileChange `json:"files,omitempty"`
}

// Issue is one problem reported by the analysis layer.
type Issue struct {
	// Severity is one of: critical, major, minor, info.
	// Unrecognized labels are preserved as-is.
	Severity string `json:"severity"`

	// Category is one of: bug, security, performance, style,
	// maintainability, best_practice.
	Category string `json:"category"`

	// File is the path the issue was found in.
	File string `json:"file"`

	// Line is the 1-based line number, or 0 when unknown.
	Line int `json:"line,omitempty"`

	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// RedactedSecret is the reportable record of one masked secret.
// It intentionally omits the matched text.
type RedactedSecret struct {
	Category string `json:"type"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Result is the terminal artifact of a review run.
type Result struct {
	Score       int      `json:"score"`
	Summary     string   `json:"summary"`
	Issues      []Issue  `json:"issues"`
	Highlights  []string `json:"highlights,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`

	// TotalIssues counts every issue, including ones with
	// unrecognized severity labels.
	TotalIssues int `json:"total_issues"`

	// IssuesBySeverity always contains the four known severities,
	// defaulting to zero.
	IssuesBySeverity map[string]int `json:"issues_by_severity"`

	// SkippedFiles lists paths excluded from review by classification.
	SkippedFiles []string `json:"skipped_files,omitempty"`

	// Coverage is the fraction of changed files actually reviewed, in [0,1].
	Coverage float64 `json:"coverage"`

	// ChunksCount is how many analysis units the change set was split into.
	ChunksCount int `json:"chunks_count"`

	// RedactedSecrets records secrets masked before the diff left the process.
	RedactedSecrets []RedactedSecret `json:"redacted_secrets,omitempty"`
}
