package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rediverio/reviewd/pkg/aggregate"
	"github.com/rediverio/reviewd/pkg/chunk"
	"github.com/rediverio/reviewd/pkg/review"
)

// stubAnalyzer routes each chunk to a per-file result keyed by the first
// file's name.
type stubAnalyzer struct {
	mu      sync.Mutex
	results map[string]aggregate.ChunkResult
	errs    map[string]error
	seen    []chunk.Chunk
}

func (s *stubAnalyzer) AnalyzeChunk(ctx context.Context, pr review.PullRequest, ch chunk.Chunk) (aggregate.ChunkResult, error) {
	s.mu.Lock()
	s.seen = append(s.seen, ch)
	s.mu.Unlock()

	key := ch.Files[0].Filename
	if err, ok := s.errs[key]; ok {
		return aggregate.ChunkResult{}, err
	}
	r, ok := s.results[key]
	if !ok {
		r = aggregate.ChunkResult{Score: 90, Summary: "fine"}
	}
	r.ChunkID = ch.ID
	return r, nil
}

func prWithFiles(files ...review.FileChange) review.PullRequest {
	return review.PullRequest{
		Number:       7,
		Title:        "change",
		ChangedFiles: len(files),
		Files:        files,
	}
}

func TestReviewEmptyChangeSet(t *testing.T) {
	engine, err := New(&stubAnalyzer{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := engine.Review(context.Background(), prWithFiles())
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}

	if result.Score != 0 {
		t.Errorf("Score = %d, want 0", result.Score)
	}
	if result.Summary != "nothing to review" {
		t.Errorf("Summary = %q", result.Summary)
	}
	if result.ChunksCount != 0 {
		t.Errorf("ChunksCount = %d, want 0", result.ChunksCount)
	}
	if len(result.IssuesBySeverity) != 4 {
		t.Errorf("IssuesBySeverity = %v, want all four severities", result.IssuesBySeverity)
	}
}

func TestReviewMergesChunksInOrder(t *testing.T) {
	analyzer := &stubAnalyzer{
		results: map[string]aggregate.ChunkResult{
			"src/server.py": {Score: 80, Summary: "server chunk",
				Issues: []review.Issue{{Severity: "critical", File: "src/server.py", Description: "injection"}}},
			"src/util.py": {Score: 81, Summary: "util chunk",
				Issues: []review.Issue{{Severity: "minor", File: "src/util.py", Description: "naming"}}},
		},
	}

	// One file per chunk forces two chunks; server.py outranks util.py
	// (more urgent tier) so it becomes chunk 1.
	engine, err := New(analyzer, WithChunkConfig(&chunk.Config{MaxFilesPerChunk: 1}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	pr := prWithFiles(
		review.FileChange{Filename: "src/util.py", Status: "modified", Additions: 10},
		review.FileChange{Filename: "src/server.py", Status: "modified", Additions: 60},
	)

	result, err := engine.Review(context.Background(), pr)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}

	if result.ChunksCount != 2 {
		t.Fatalf("ChunksCount = %d, want 2", result.ChunksCount)
	}
	// (80+81)/2 truncates.
	if result.Score != 80 {
		t.Errorf("Score = %d, want 80", result.Score)
	}
	if len(result.Issues) != 2 {
		t.Fatalf("Issues = %d, want 2", len(result.Issues))
	}
	if result.Issues[0].File != "src/server.py" || result.Issues[1].File != "src/util.py" {
		t.Errorf("issues out of chunk order: %s then %s",
			result.Issues[0].File, result.Issues[1].File)
	}
	if result.IssuesBySeverity["critical"] != 1 || result.IssuesBySeverity["minor"] != 1 {
		t.Errorf("IssuesBySeverity = %v", result.IssuesBySeverity)
	}
	if !strings.Contains(result.Summary, "reviewed 2 chunks") {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestReviewDegradesFailedChunk(t *testing.T) {
	analyzer := &stubAnalyzer{
		results: map[string]aggregate.ChunkResult{
			"src/server.py": {Score: 80, Issues: []review.Issue{{Severity: "major", File: "src/server.py"}}},
		},
		errs: map[string]error{
			"src/util.py": fmt.Errorf("connection refused"),
		},
	}

	engine, err := New(analyzer, WithChunkConfig(&chunk.Config{MaxFilesPerChunk: 1}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	pr := prWithFiles(
		review.FileChange{Filename: "src/server.py", Status: "modified", Additions: 60},
		review.FileChange{Filename: "src/util.py", Status: "modified", Additions: 10},
	)

	result, err := engine.Review(context.Background(), pr)
	if err != nil {
		t.Fatalf("Review() error = %v, one bad chunk must not abort the run", err)
	}

	// (80+30)/2
	if result.Score != 55 {
		t.Errorf("Score = %d, want 55", result.Score)
	}
	if result.TotalIssues != 1 {
		t.Errorf("TotalIssues = %d, want 1 (degraded chunk carries none)", result.TotalIssues)
	}
	if result.ChunksCount != 2 {
		t.Errorf("ChunksCount = %d, want 2", result.ChunksCount)
	}
}

func TestReviewRedactsBeforeAnalysis(t *testing.T) {
	const secret = "sk-ABCDEF1234567890XYZ"
	analyzer := &stubAnalyzer{}

	engine, err := New(analyzer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	pr := prWithFiles(review.FileChange{
		Filename:  "src/client.py",
		Status:    "modified",
		Additions: 3,
		Patch:     `+api_key = "` + secret + `"`,
	})

	result, err := engine.Review(context.Background(), pr)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}

	if len(analyzer.seen) != 1 {
		t.Fatalf("analyzer saw %d chunks, want 1", len(analyzer.seen))
	}
	sent := analyzer.seen[0].Files[0].Patch
	if strings.Contains(sent, secret) {
		t.Error("raw secret reached the analyzer")
	}
	if !strings.Contains(sent, "*") {
		t.Errorf("patch sent to analyzer was not masked: %q", sent)
	}

	if len(result.RedactedSecrets) == 0 {
		t.Fatal("RedactedSecrets is empty")
	}
	if result.RedactedSecrets[0].File != "src/client.py" {
		t.Errorf("RedactedSecrets[0].File = %q", result.RedactedSecrets[0].File)
	}

	// The caller's copy stays untouched.
	if !strings.Contains(pr.Files[0].Patch, secret) {
		t.Error("input file list was mutated")
	}
}

func TestReviewWithoutRedaction(t *testing.T) {
	const secret = "sk-ABCDEF1234567890XYZ"
	analyzer := &stubAnalyzer{}

	engine, err := New(analyzer, WithoutRedaction())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	pr := prWithFiles(review.FileChange{
		Filename:  "src/client.py",
		Status:    "modified",
		Additions: 3,
		Patch:     `+api_key = "` + secret + `"`,
	})

	result, err := engine.Review(context.Background(), pr)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if !strings.Contains(analyzer.seen[0].Files[0].Patch, secret) {
		t.Error("redaction ran despite being disabled")
	}
	if len(result.RedactedSecrets) != 0 {
		t.Errorf("RedactedSecrets = %v, want none", result.RedactedSecrets)
	}
}

func TestReviewSingleChunkKeepsNarrative(t *testing.T) {
	analyzer := &stubAnalyzer{
		results: map[string]aggregate.ChunkResult{
			"src/server.py": {
				Score:       92,
				Summary:     "well structured change",
				Highlights:  []string{"clean error handling"},
				Suggestions: []string{"add a benchmark"},
			},
		},
	}

	engine, err := New(analyzer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := engine.Review(context.Background(), prWithFiles(
		review.FileChange{Filename: "src/server.py", Status: "modified", Additions: 10},
	))
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}

	if result.Summary != "well structured change" {
		t.Errorf("Summary = %q, want the model narrative", result.Summary)
	}
	if len(result.Highlights) != 1 || len(result.Suggestions) != 1 {
		t.Errorf("Highlights = %v, Suggestions = %v", result.Highlights, result.Suggestions)
	}
}

func TestReviewSkippedFilesAndCoverage(t *testing.T) {
	engine, err := New(&stubAnalyzer{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := engine.Review(context.Background(), prWithFiles(
		review.FileChange{Filename: "src/server.py", Status: "modified", Additions: 10},
		review.FileChange{Filename: "package-lock.json", Status: "modified", Additions: 500},
	))
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}

	if len(result.SkippedFiles) != 1 || result.SkippedFiles[0] != "package-lock.json" {
		t.Errorf("SkippedFiles = %v", result.SkippedFiles)
	}
	if result.Coverage != 0.5 {
		t.Errorf("Coverage = %v, want 0.5", result.Coverage)
	}
}

func TestNewRejectsBadCustomPattern(t *testing.T) {
	_, err := New(&stubAnalyzer{}, WithCustomPatterns(map[string]string{"broken": "("}))
	if err == nil {
		t.Fatal("New() should fail fast on a malformed custom pattern")
	}
}

func TestNewRequiresAnalyzer(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) should fail")
	}
}

// boundedAnalyzer records the maximum number of concurrent calls.
type boundedAnalyzer struct {
	current atomic.Int32
	max     atomic.Int32
}

func (b *boundedAnalyzer) AnalyzeChunk(ctx context.Context, pr review.PullRequest, ch chunk.Chunk) (aggregate.ChunkResult, error) {
	n := b.current.Add(1)
	defer b.current.Add(-1)
	for {
		old := b.max.Load()
		if n <= old || b.max.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return aggregate.ChunkResult{ChunkID: ch.ID, Score: 90}, nil
}

func TestReviewBoundsConcurrency(t *testing.T) {
	analyzer := &boundedAnalyzer{}
	engine, err := New(analyzer,
		WithConcurrency(2),
		WithChunkConfig(&chunk.Config{MaxFilesPerChunk: 1}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var files []review.FileChange
	for i := 0; i < 6; i++ {
		files = append(files, review.FileChange{
			Filename:  fmt.Sprintf("src/file%d.py", i),
			Status:    "modified",
			Additions: 5,
		})
	}

	if _, err := engine.Review(context.Background(), prWithFiles(files...)); err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if got := analyzer.max.Load(); got > 2 {
		t.Errorf("max concurrent calls = %d, want <= 2", got)
	}
}
