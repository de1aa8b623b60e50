// Package store persists completed review runs in SQLite.
//
// Each run is one row: queryable metadata as columns, the full result as a
// compressed JSON blob. The blob dominates the row size, so it is
// zstd-compressed on write.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/rediverio/reviewd/pkg/compress"
	"github.com/rediverio/reviewd/pkg/review"
)

// Config holds store settings.
type Config struct {
	// DatabasePath is the SQLite file location.
	DatabasePath string

	// Compression controls how result blobs are stored.
	Compression compress.Config
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: filepath.Join(".reviewd", "reviews.db"),
		Compression:  compress.DefaultConfig(),
	}
}

// Record is one persisted review run.
type Record struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Owner       string    `json:"owner"`
	Repo        string    `json:"repo"`
	PRNumber    int       `json:"pr_number"`
	Score       int       `json:"score"`
	TotalIssues int       `json:"total_issues"`
	ChunksCount int       `json:"chunks_count"`
	Coverage    float64   `json:"coverage"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`

	// Result is the full review payload. Nil on listing calls.
	Result *review.Result `json:"result,omitempty"`
}

// Store is a SQLite-backed review history.
type Store struct {
	db         *sql.DB
	mu         sync.RWMutex
	compressor *compress.Compressor
}

// New opens (or creates) the review store.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	dir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{
		db:         db,
		compressor: compress.New(cfg.Compression),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		pr_number INTEGER NOT NULL,
		score INTEGER NOT NULL,
		total_issues INTEGER NOT NULL,
		chunks_count INTEGER NOT NULL,
		coverage REAL NOT NULL,
		summary TEXT,
		result BLOB NOT NULL,
		result_size INTEGER NOT NULL,
		compressed_size INTEGER NOT NULL,
		compression_algo TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_repo ON reviews(owner, repo, pr_number);
	CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists one review run and returns its assigned ID.
func (s *Store) Save(ctx context.Context, rec *Record) (string, error) {
	if rec.Result == nil {
		return "", fmt.Errorf("record has no result")
	}

	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	blob, err := s.compressor.Compress(payload)
	if err != nil {
		return "", fmt.Errorf("compress result: %w", err)
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reviews (
			id, provider, owner, repo, pr_number, score, total_issues,
			chunks_count, coverage, summary, result, result_size,
			compressed_size, compression_algo, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Provider, rec.Owner, rec.Repo, rec.PRNumber,
		rec.Result.Score, rec.Result.TotalIssues, rec.Result.ChunksCount,
		rec.Result.Coverage, rec.Result.Summary, blob, len(payload),
		len(blob), string(s.compressor.Algorithm()), rec.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert review: %w", err)
	}

	return rec.ID, nil
}

// Get retrieves one review run with its full result. Returns nil if the ID
// is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec Record
	var blob []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, provider, owner, repo, pr_number, summary, result, created_at
		FROM reviews WHERE id = ?
	`, id).Scan(
		&rec.ID, &rec.Provider, &rec.Owner, &rec.Repo, &rec.PRNumber,
		&rec.Summary, &blob, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query review: %w", err)
	}

	payload, err := s.compressor.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("decompress result: %w", err)
	}

	var result review.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	rec.Result = &result
	rec.Score = result.Score
	rec.TotalIssues = result.TotalIssues
	rec.ChunksCount = result.ChunksCount
	rec.Coverage = result.Coverage

	return &rec, nil
}

// ListRecent returns up to limit review runs, newest first, without the
// result payloads.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, owner, repo, pr_number, score, total_issues,
			chunks_count, coverage, summary, created_at
		FROM reviews
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.Provider, &rec.Owner, &rec.Repo, &rec.PRNumber,
			&rec.Score, &rec.TotalIssues, &rec.ChunksCount, &rec.Coverage,
			&rec.Summary, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
