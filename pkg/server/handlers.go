package server

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rediverio/reviewd/pkg/ai"
	"github.com/rediverio/reviewd/pkg/chunk"
	"github.com/rediverio/reviewd/pkg/errors"
	"github.com/rediverio/reviewd/pkg/pipeline"
	"github.com/rediverio/reviewd/pkg/review"
	"github.com/rediverio/reviewd/pkg/store"
)

const maxBodyBytes = 1 << 20 // request bodies are metadata, not diffs

// ============================================================================
// Request / response shapes
// ============================================================================

type reviewRequest struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	PullNumber int    `json:"pull_number"`

	// SCM selects the code host ("github" or "gitlab"); empty means github.
	SCM        string `json:"scm,omitempty"`
	SCMBaseURL string `json:"scm_base_url,omitempty"`

	// Analyzer settings. APIKey lives for this request only.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`

	// EnableSecurityFilter defaults to true when omitted.
	EnableSecurityFilter *bool             `json:"enable_security_filter,omitempty"`
	CustomPatterns       map[string]string `json:"custom_patterns,omitempty"`
	Concurrency          int               `json:"concurrency,omitempty"`
}

type reviewMeta struct {
	Provider          string `json:"provider"`
	Model             string `json:"model"`
	ChunksCount       int    `json:"chunks_count"`
	SecurityFiltered  int    `json:"security_filtered"`
	SkippedFilesCount int    `json:"skipped_files_count"`
}

type reviewResponse struct {
	Success  bool           `json:"success"`
	ReviewID string         `json:"review_id,omitempty"`
	Review   *review.Result `json:"review,omitempty"`
	Error    string         `json:"error,omitempty"`
	Meta     *reviewMeta    `json:"meta,omitempty"`
}

type fileGroup struct {
	Count    int    `json:"count"`
	Changes  int    `json:"changes"`
	Priority string `json:"priority"`
}

type analyzeResponse struct {
	TotalFiles      int                  `json:"total_files"`
	ReviewableFiles int                  `json:"reviewable_files"`
	SkippedFiles    []string             `json:"skipped_files"`
	ChunksNeeded    int                  `json:"chunks_needed"`
	EstimatedTime   string               `json:"estimated_time"`
	FileGroups      map[string]fileGroup `json:"file_groups"`
}

type securityCheckRequest struct {
	Content  string `json:"content"`
	Filename string `json:"filename,omitempty"`
}

type securityMatch struct {
	Type   string `json:"type"`
	Line   int    `json:"line"`
	Masked string `json:"masked"`
}

type securityCheckResponse struct {
	HasSensitive    bool            `json:"has_sensitive"`
	Matches         []securityMatch `json:"matches"`
	FilteredContent string          `json:"filtered_content,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ============================================================================
// POST /api/review
// ============================================================================

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing Authorization header")
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Owner == "" || req.Repo == "" || req.PullNumber <= 0 {
		writeError(w, http.StatusBadRequest, "owner, repo and pull_number are required")
		return
	}

	scm, err := s.newSCM(req.SCM, token, req.SCMBaseURL)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	defer scm.Close()

	pr, err := scm.GetPullRequest(r.Context(), req.Owner, req.Repo, req.PullNumber)
	if err != nil {
		s.logger.Warn("fetch %s/%s#%d failed: %v", req.Owner, req.Repo, req.PullNumber, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	analyzer, err := s.newAnalyzer(ai.Config{
		Provider: ai.Provider(req.Provider),
		APIKey:   req.APIKey,
		BaseURL:  req.BaseURL,
		Model:    req.Model,
	})
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(s.logger),
		pipeline.WithMetrics(s.metrics),
	}
	if req.Concurrency > 0 {
		opts = append(opts, pipeline.WithConcurrency(req.Concurrency))
	}
	if len(req.CustomPatterns) > 0 {
		opts = append(opts, pipeline.WithCustomPatterns(req.CustomPatterns))
	}
	if req.EnableSecurityFilter != nil && !*req.EnableSecurityFilter {
		opts = append(opts, pipeline.WithoutRedaction())
	}

	engine, err := pipeline.New(analyzer, opts...)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	result, err := engine.Review(r.Context(), *pr)
	if err != nil {
		// A failed run is still a well-formed answer to the caller.
		writeJSON(w, http.StatusOK, reviewResponse{Success: false, Error: err.Error()})
		return
	}

	resp := reviewResponse{
		Success: true,
		Review:  result,
		Meta: &reviewMeta{
			Provider:          providerLabel(req.Provider),
			Model:             modelLabel(analyzer, req.Model),
			ChunksCount:       result.ChunksCount,
			SecurityFiltered:  len(result.RedactedSecrets),
			SkippedFilesCount: len(result.SkippedFiles),
		},
	}

	if s.store != nil {
		id, err := s.store.Save(r.Context(), &store.Record{
			Provider: scm.Name(),
			Owner:    req.Owner,
			Repo:     req.Repo,
			PRNumber: req.PullNumber,
			Result:   result,
		})
		if err != nil {
			// History is best effort; the review itself already succeeded.
			s.logger.Warn("persist review for %s/%s#%d: %v", req.Owner, req.Repo, req.PullNumber, err)
		} else {
			resp.ReviewID = id
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func providerLabel(provider string) string {
	if provider == "" {
		return string(ai.ProviderOpenAI)
	}
	return provider
}

// modelLabel prefers the analyzer's resolved model name over the raw request
// field, which may be empty.
func modelLabel(analyzer pipeline.Analyzer, requested string) string {
	if c, ok := analyzer.(*ai.Client); ok {
		return c.Model()
	}
	return requested
}

// ============================================================================
// GET /api/repos/{owner}/{repo}/pulls/{number}/analyze
// ============================================================================

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing Authorization header")
		return
	}

	owner := r.PathValue("owner")
	repo := r.PathValue("repo")
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid pull request number")
		return
	}

	scm, err := s.newSCM(r.URL.Query().Get("scm"), token, "")
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	defer scm.Close()

	pr, err := scm.GetPullRequest(r.Context(), owner, repo, number)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	skipped := chunk.SkippedPaths(pr.Files)
	if skipped == nil {
		skipped = []string{}
	}
	chunks := chunk.NewSplitter(nil).Split(pr.Files)

	groups := make(map[string]fileGroup)
	for name, g := range chunk.GroupByType(pr.Files) {
		groups[name] = fileGroup{
			Count:    len(g.Files),
			Changes:  g.TotalChanges,
			Priority: g.Tier.String(),
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		TotalFiles:      len(pr.Files),
		ReviewableFiles: len(pr.Files) - len(skipped),
		SkippedFiles:    skipped,
		ChunksNeeded:    len(chunks),
		EstimatedTime:   estimatedTime(len(chunks)),
		FileGroups:      groups,
	})
}

// estimatedTime projects the run duration at roughly half a minute per chunk.
func estimatedTime(chunks int) string {
	minutes := float64(chunks) * 0.5
	if minutes < 1 {
		return "less than 1 minute"
	}
	return "~" + strconv.Itoa(int(math.Ceil(minutes))) + " minutes"
}

// ============================================================================
// POST /api/security/check
// ============================================================================

func (s *Server) handleSecurityCheck(w http.ResponseWriter, r *http.Request) {
	var req securityCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	filtered, findings := s.filter.Apply(req.Content, req.Filename)

	resp := securityCheckResponse{
		HasSensitive: len(findings) > 0,
		Matches:      make([]securityMatch, 0, len(findings)),
	}
	for _, f := range findings {
		resp.Matches = append(resp.Matches, securityMatch{
			Type:   string(f.Category),
			Line:   f.Line,
			Masked: f.Masked,
		})
	}
	if resp.HasSensitive {
		resp.FilteredContent = filtered
	}

	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// GET /api/reviews/{id}, GET /api/reviews
// ============================================================================

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "review history is disabled")
		return
	}

	rec, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "review not found")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "review history is disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"reviews": recs})
}

// ============================================================================
// Helpers
// ============================================================================

// bearerToken extracts the code-host token from the Authorization header. A
// bare token without the Bearer prefix is accepted.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after), true
	}
	return header, true
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForError maps error kinds onto HTTP status codes.
func statusForError(err error) int {
	switch errors.GetKind(err) {
	case errors.KindInvalidInput:
		return http.StatusBadRequest
	case errors.KindAuthentication:
		return http.StatusUnauthorized
	case errors.KindAuthorization:
		return http.StatusForbidden
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindRateLimit:
		return http.StatusTooManyRequests
	case errors.KindTimeout:
		return http.StatusGatewayTimeout
	case errors.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
