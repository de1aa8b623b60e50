// Package pipeline orchestrates one review run: redact, partition, analyze,
// aggregate. The engine owns call order and data flow only; fetching the
// change set and talking to the model belong to the connectors and ai
// packages.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rediverio/reviewd/pkg/aggregate"
	"github.com/rediverio/reviewd/pkg/chunk"
	"github.com/rediverio/reviewd/pkg/errors"
	"github.com/rediverio/reviewd/pkg/logging"
	"github.com/rediverio/reviewd/pkg/metrics"
	"github.com/rediverio/reviewd/pkg/redact"
	"github.com/rediverio/reviewd/pkg/review"
)

// degradedScore is assigned to a chunk whose analysis call failed outright.
// It matches the parse-failure fallback so both degradation paths read alike.
const degradedScore = 30

// Analyzer reviews one chunk. Implementations must be safe for concurrent
// use; the engine fans out one call per chunk.
type Analyzer interface {
	AnalyzeChunk(ctx context.Context, pr review.PullRequest, ch chunk.Chunk) (aggregate.ChunkResult, error)
}

// Engine runs the review pipeline.
type Engine struct {
	analyzer    Analyzer
	filter      *redact.Filter
	chunkConfig *chunk.Config
	concurrency int
	redaction   bool
	logger      logging.Logger
	metrics     metrics.Collector
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	chunkConfig    *chunk.Config
	concurrency    int
	redaction      bool
	customPatterns map[string]string
	logger         logging.Logger
	metrics        metrics.Collector
}

// WithChunkConfig overrides the default chunking budgets.
func WithChunkConfig(cfg *chunk.Config) Option {
	return func(o *engineOptions) {
		o.chunkConfig = cfg
	}
}

// WithConcurrency bounds the number of in-flight analysis calls.
func WithConcurrency(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(o *engineOptions) {
		if c != nil {
			o.metrics = c
		}
	}
}

// WithCustomPatterns adds configuration-supplied detectors to the redaction
// filter. Malformed patterns fail New, not the first run.
func WithCustomPatterns(patterns map[string]string) Option {
	return func(o *engineOptions) {
		o.customPatterns = patterns
	}
}

// WithoutRedaction disables secret masking. Diffs then leave the process
// verbatim; only use this against a trusted analysis endpoint.
func WithoutRedaction() Option {
	return func(o *engineOptions) {
		o.redaction = false
	}
}

// New builds an Engine around the given analyzer.
func New(analyzer Analyzer, opts ...Option) (*Engine, error) {
	const op = "pipeline.New"

	if analyzer == nil {
		return nil, errors.E(errors.KindInvalidInput, op, "analyzer is required")
	}

	o := engineOptions{
		chunkConfig: chunk.DefaultConfig(),
		concurrency: 3,
		redaction:   true,
		logger:      &logging.NopLogger{},
		metrics:     &metrics.NopCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	filter, err := redact.NewFilter(o.customPatterns)
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, op, "invalid custom redaction pattern", err)
	}

	return &Engine{
		analyzer:    analyzer,
		filter:      filter,
		chunkConfig: o.chunkConfig,
		concurrency: o.concurrency,
		redaction:   o.redaction,
		logger:      o.logger,
		metrics:     o.metrics,
	}, nil
}

// Review runs the full pipeline for one pull request.
//
// Individual chunk failures degrade that chunk's partial result and never
// abort the run. The returned error is reserved for run-level failures.
func (e *Engine) Review(ctx context.Context, pr review.PullRequest) (*review.Result, error) {
	start := time.Now()

	files, secrets := e.redactFiles(pr.Files)
	skipped := chunk.SkippedPaths(files)

	splitter := chunk.NewSplitter(e.chunkConfig)
	chunks := splitter.Split(files)

	e.logger.Info("review run: pr=%d files=%d chunks=%d skipped=%d redacted=%d",
		pr.Number, len(files), len(chunks), len(skipped), len(secrets))
	e.metrics.CounterAdd(metrics.SkippedFilesTotal.Name, float64(len(skipped)))

	results := e.analyzeChunks(ctx, pr, chunks)
	if err := ctx.Err(); err != nil {
		e.metrics.CounterInc(metrics.ReviewsTotal.Name, "status", "canceled")
		return nil, errors.E(errors.KindTimeout, "pipeline.Review", "review run canceled", err)
	}

	merged := aggregate.Merge(results, skipped, len(files))

	result := &review.Result{
		Score:            merged.OverallScore,
		Summary:          merged.Summary,
		Issues:           merged.Issues,
		TotalIssues:      merged.TotalIssues,
		IssuesBySeverity: merged.IssuesBySeverity,
		SkippedFiles:     merged.SkippedFiles,
		Coverage:         merged.Coverage,
		ChunksCount:      len(chunks),
		RedactedSecrets:  secrets,
	}

	// A single-chunk run keeps the model's own narrative verbatim.
	if len(results) == 1 {
		result.Summary = firstNonEmpty(results[0].Summary, merged.Summary)
		result.Highlights = results[0].Highlights
		result.Suggestions = results[0].Suggestions
	}

	e.metrics.CounterInc(metrics.ReviewsTotal.Name, "status", "ok")
	e.metrics.HistogramObserve(metrics.ReviewDuration.Name, time.Since(start).Seconds())
	return result, nil
}

// redactFiles masks secrets in every patch and reports what was masked.
// Files are copied; the caller's slice is never mutated.
func (e *Engine) redactFiles(files []review.FileChange) ([]review.FileChange, []review.RedactedSecret) {
	if !e.redaction || len(files) == 0 {
		return files, nil
	}

	out := make([]review.FileChange, len(files))
	var secrets []review.RedactedSecret

	for i, f := range files {
		out[i] = f
		if f.Patch == "" {
			continue
		}
		masked, findings := e.filter.Apply(f.Patch, f.Filename)
		out[i].Patch = masked
		for _, finding := range findings {
			secrets = append(secrets, review.RedactedSecret{
				Category: string(finding.Category),
				File:     finding.File,
				Line:     finding.Line,
			})
			e.metrics.CounterInc(metrics.RedactionsTotal.Name, "category", string(finding.Category))
		}
	}

	if len(secrets) > 0 {
		e.logger.Warn("masked %d sensitive matches before analysis", len(secrets))
	}
	return out, secrets
}

// analyzeChunks fans out one analysis call per chunk with bounded
// concurrency. The result slice is indexed by chunk position, so completion
// order never influences output order.
func (e *Engine) analyzeChunks(ctx context.Context, pr review.PullRequest, chunks []chunk.Chunk) []aggregate.ChunkResult {
	if len(chunks) == 0 {
		return nil
	}

	results := make([]aggregate.ChunkResult, len(chunks))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i, ch := range chunks {
		wg.Add(1)
		go func(i int, ch chunk.Chunk) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = e.analyzeOne(ctx, pr, ch)
		}(i, ch)
	}
	wg.Wait()

	return results
}

func (e *Engine) analyzeOne(ctx context.Context, pr review.PullRequest, ch chunk.Chunk) aggregate.ChunkResult {
	start := time.Now()
	result, err := e.analyzer.AnalyzeChunk(ctx, pr, ch)
	e.metrics.HistogramObserve(metrics.AnalyzerRequestDuration.Name, time.Since(start).Seconds())

	if err != nil {
		e.logger.Error("chunk %d analysis failed: %v", ch.ID, err)
		e.metrics.CounterInc(metrics.AnalyzerRequestsTotal.Name, "status", "error")
		e.metrics.CounterInc(metrics.ChunksTotal.Name, "status", "degraded")
		return aggregate.ChunkResult{
			ChunkID: ch.ID,
			Score:   degradedScore,
			Summary: "analysis call failed; chunk scored conservatively",
		}
	}

	// Defend against analyzers that drop the ID.
	if result.ChunkID == 0 {
		result.ChunkID = ch.ID
	}
	e.metrics.CounterInc(metrics.AnalyzerRequestsTotal.Name, "status", "ok")
	e.metrics.CounterInc(metrics.ChunksTotal.Name, "status", "ok")
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
