package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rediverio/reviewd/pkg/aggregate"
	"github.com/rediverio/reviewd/pkg/ai"
	"github.com/rediverio/reviewd/pkg/chunk"
	"github.com/rediverio/reviewd/pkg/connectors"
	"github.com/rediverio/reviewd/pkg/errors"
	"github.com/rediverio/reviewd/pkg/pipeline"
	"github.com/rediverio/reviewd/pkg/review"
	"github.com/rediverio/reviewd/pkg/store"
)

// ============================================================================
// Stubs
// ============================================================================

type stubSCM struct {
	pr    *review.PullRequest
	err   error
	token string
}

func (s *stubSCM) Name() string { return "github" }

func (s *stubSCM) GetPullRequest(ctx context.Context, owner, repo string, number int) (*review.PullRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pr, nil
}

func (s *stubSCM) Close() error { return nil }

type stubAnalyzer struct {
	result aggregate.ChunkResult
	err    error
}

func (a *stubAnalyzer) AnalyzeChunk(ctx context.Context, pr review.PullRequest, ch chunk.Chunk) (aggregate.ChunkResult, error) {
	if a.err != nil {
		return aggregate.ChunkResult{}, a.err
	}
	r := a.result
	r.ChunkID = ch.ID
	return r, nil
}

func newTestServer(t *testing.T, scm *stubSCM, analyzer *stubAnalyzer) (*Server, *store.Store) {
	t.Helper()

	st, err := store.New(&store.Config{
		DatabasePath: filepath.Join(t.TempDir(), "reviews.db"),
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := New(DefaultConfig(), st,
		WithSCMFactory(func(provider, token, baseURL string) (connectors.SCM, error) {
			scm.token = token
			return scm, nil
		}),
		WithAnalyzerFactory(func(cfg ai.Config) (pipeline.Analyzer, error) {
			return analyzer, nil
		}),
	)
	return srv, st
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func samplePR() *review.PullRequest {
	return &review.PullRequest{
		Number:       7,
		Title:        "Tighten session checks",
		Author:       "casey",
		Additions:    40,
		Deletions:    5,
		ChangedFiles: 2,
		Files: []review.FileChange{
			{
				Filename:  "src/auth/session.py",
				Status:    "modified",
				Additions: 38,
				Deletions: 5,
				Patch:     "@@ -1,3 +1,4 @@\n+if not user.active:\n+    raise Forbidden()\n",
			},
			{
				Filename:  "package-lock.json",
				Status:    "modified",
				Additions: 2,
				Deletions: 0,
			},
		},
	}
}

// ============================================================================
// POST /api/review
// ============================================================================

func TestReviewRequiresAuthorization(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{pr: samplePR()}, &stubAnalyzer{})

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/review", "",
		`{"owner":"acme","repo":"app","pull_number":7}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestReviewValidatesBody(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{pr: samplePR()}, &stubAnalyzer{})

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/review", "Bearer tok",
		`{"repo":"app","pull_number":7}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestReviewHappyPath(t *testing.T) {
	scm := &stubSCM{pr: samplePR()}
	analyzer := &stubAnalyzer{
		result: aggregate.ChunkResult{
			Score:   85,
			Summary: "solid change",
			Issues: []review.Issue{
				{Severity: "minor", Category: "style", File: "src/auth/session.py", Description: "long line"},
			},
		},
	}
	srv, st := newTestServer(t, scm, analyzer)

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/review", "Bearer tok-123",
		`{"owner":"acme","repo":"app","pull_number":7}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if scm.token != "tok-123" {
		t.Errorf("token passed to connector = %q, want tok-123", scm.token)
	}

	var resp reviewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false, error = %q", resp.Error)
	}
	if resp.Review == nil || resp.Review.Score != 85 {
		t.Fatalf("review = %+v, want score 85", resp.Review)
	}
	if resp.Meta == nil {
		t.Fatal("meta missing")
	}
	if resp.Meta.ChunksCount != 1 {
		t.Errorf("meta.chunks_count = %d, want 1", resp.Meta.ChunksCount)
	}
	if resp.Meta.SkippedFilesCount != 1 {
		t.Errorf("meta.skipped_files_count = %d, want 1", resp.Meta.SkippedFilesCount)
	}
	if resp.Meta.Provider != "openai" {
		t.Errorf("meta.provider = %q, want openai", resp.Meta.Provider)
	}

	if resp.ReviewID == "" {
		t.Fatal("review_id missing")
	}
	rec, err := st.Get(context.Background(), resp.ReviewID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if rec == nil || rec.Result == nil || rec.Result.Score != 85 {
		t.Fatalf("persisted record = %+v, want score 85", rec)
	}
	if rec.Owner != "acme" || rec.Repo != "app" || rec.PRNumber != 7 {
		t.Errorf("persisted identity = %s/%s#%d", rec.Owner, rec.Repo, rec.PRNumber)
	}
}

func TestReviewMapsConnectorErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", errors.E(errors.KindNotFound, "gone"), http.StatusNotFound},
		{"bad token", errors.E(errors.KindAuthentication, "bad token"), http.StatusUnauthorized},
		{"rate limited", errors.E(errors.KindRateLimit, "slow down"), http.StatusTooManyRequests},
		{"host down", errors.E(errors.KindNetwork, "unreachable"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubSCM{err: tt.err}, &stubAnalyzer{})

			w := doJSON(t, srv.Handler(), http.MethodPost, "/api/review", "Bearer tok",
				`{"owner":"acme","repo":"app","pull_number":7}`)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// ============================================================================
// GET /api/repos/{owner}/{repo}/pulls/{number}/analyze
// ============================================================================

func TestAnalyzePreview(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{pr: samplePR()}, &stubAnalyzer{})

	w := doJSON(t, srv.Handler(), http.MethodGet, "/api/repos/acme/app/pulls/7/analyze", "Bearer tok", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalFiles != 2 {
		t.Errorf("total_files = %d, want 2", resp.TotalFiles)
	}
	if resp.ReviewableFiles != 1 {
		t.Errorf("reviewable_files = %d, want 1", resp.ReviewableFiles)
	}
	if len(resp.SkippedFiles) != 1 || resp.SkippedFiles[0] != "package-lock.json" {
		t.Errorf("skipped_files = %v", resp.SkippedFiles)
	}
	if resp.ChunksNeeded != 1 {
		t.Errorf("chunks_needed = %d, want 1", resp.ChunksNeeded)
	}
	if resp.EstimatedTime != "less than 1 minute" {
		t.Errorf("estimated_time = %q", resp.EstimatedTime)
	}
	if len(resp.FileGroups) == 0 {
		t.Fatal("file_groups empty")
	}
	for name, g := range resp.FileGroups {
		if g.Count == 0 || g.Priority == "" {
			t.Errorf("group %s = %+v", name, g)
		}
	}
}

func TestAnalyzeRejectsBadNumber(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{pr: samplePR()}, &stubAnalyzer{})

	w := doJSON(t, srv.Handler(), http.MethodGet, "/api/repos/acme/app/pulls/zero/analyze", "Bearer tok", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestEstimatedTime(t *testing.T) {
	tests := []struct {
		chunks int
		want   string
	}{
		{0, "less than 1 minute"},
		{1, "less than 1 minute"},
		{2, "~1 minutes"},
		{5, "~3 minutes"},
	}
	for _, tt := range tests {
		if got := estimatedTime(tt.chunks); got != tt.want {
			t.Errorf("estimatedTime(%d) = %q, want %q", tt.chunks, got, tt.want)
		}
	}
}

// ============================================================================
// POST /api/security/check
// ============================================================================

func TestSecurityCheckFindsSecret(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{}, &stubAnalyzer{})

	const secret = "sk-ABCDEF1234567890XYZ"
	body, _ := json.Marshal(securityCheckRequest{
		Content:  `api_key = "` + secret + `"`,
		Filename: "config.py",
	})

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/security/check", "", string(body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp securityCheckResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.HasSensitive {
		t.Fatal("has_sensitive = false")
	}
	if len(resp.Matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(resp.Matches))
	}
	if resp.Matches[0].Line != 1 || resp.Matches[0].Type == "" {
		t.Errorf("match = %+v", resp.Matches[0])
	}
	if strings.Contains(resp.FilteredContent, secret) {
		t.Error("filtered_content still contains the secret")
	}
	if !strings.Contains(resp.FilteredContent, "*") {
		t.Errorf("filtered_content not masked: %q", resp.FilteredContent)
	}
}

func TestSecurityCheckCleanContent(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{}, &stubAnalyzer{})

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/security/check", "",
		`{"content":"def add(a, b):\n    return a + b\n"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp securityCheckResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.HasSensitive {
		t.Error("has_sensitive = true for clean content")
	}
	if resp.FilteredContent != "" {
		t.Errorf("filtered_content = %q, want empty", resp.FilteredContent)
	}
}

func TestSecurityCheckRequiresContent(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{}, &stubAnalyzer{})

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/security/check", "", `{}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// ============================================================================
// Review history
// ============================================================================

func TestGetReviewUnknownID(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{}, &stubAnalyzer{})

	w := doJSON(t, srv.Handler(), http.MethodGet, "/api/reviews/nope", "", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestListReviewsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{}, &stubAnalyzer{})

	w := doJSON(t, srv.Handler(), http.MethodGet, "/api/reviews", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Reviews []store.Record `json:"reviews"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reviews == nil || len(resp.Reviews) != 0 {
		t.Errorf("reviews = %v, want empty list", resp.Reviews)
	}
}

// ============================================================================
// Probes and helpers
// ============================================================================

func TestProbeEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &stubSCM{}, &stubAnalyzer{})

	for _, path := range []string{"/healthz", "/readyz"} {
		w := doJSON(t, srv.Handler(), http.MethodGet, path, "", "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}

	srv.Health().SetReady(false)
	w := doJSON(t, srv.Handler(), http.MethodGet, "/readyz", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz after SetReady(false) = %d, want 503", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc123", "abc123", true},
		{"abc123", "abc123", true},
		{"Bearer  spaced ", "spaced", true},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := bearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
