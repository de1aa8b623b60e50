// Package chunk partitions a change set into size-bounded review units.
//
// Files are ordered by review priority, then greedily packed into chunks
// under two simultaneous budgets: an estimated-unit budget and a file-count
// budget. A single oversized file is allowed to occupy a chunk alone so the
// packing always makes progress.
package chunk

// Calibration constants for the size estimate. They are a heuristic proxy
// for downstream analysis cost, not a measurement.
const (
	// UnitsPerLine is the estimated cost of one changed line.
	UnitsPerLine = 10

	// CharsPerUnit is the estimated number of diff characters per unit.
	CharsPerUnit = 4
)

// Default budgets, sized to leave headroom in a typical model context window.
const (
	DefaultMaxUnitsPerChunk = 8000
	DefaultMaxFilesPerChunk = 15
)

// Config bounds the size of each chunk.
type Config struct {
	// MaxUnitsPerChunk is the estimated-unit budget. A chunk holding more
	// than one file never exceeds it; a single file may.
	MaxUnitsPerChunk int

	// MaxFilesPerChunk caps the number of files per chunk.
	MaxFilesPerChunk int
}

// DefaultConfig returns the default chunking budgets.
func DefaultConfig() *Config {
	return &Config{
		MaxUnitsPerChunk: DefaultMaxUnitsPerChunk,
		MaxFilesPerChunk: DefaultMaxFilesPerChunk,
	}
}

// normalized returns a copy with non-positive budgets replaced by defaults.
func (c *Config) normalized() Config {
	out := *c
	if out.MaxUnitsPerChunk <= 0 {
		out.MaxUnitsPerChunk = DefaultMaxUnitsPerChunk
	}
	if out.MaxFilesPerChunk <= 0 {
		out.MaxFilesPerChunk = DefaultMaxFilesPerChunk
	}
	return out
}
