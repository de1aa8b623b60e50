// Package compress provides compression for persisted review payloads.
//
// Review results are stored as JSON blobs; zstd keeps the history table
// small without a measurable cost on the write path. Encoders and
// decoders are pooled because the store compresses on every save.
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Algorithm identifies a compression algorithm.
type Algorithm string

const (
	// AlgorithmZSTD is the default for stored payloads.
	AlgorithmZSTD Algorithm = "zstd"
	// AlgorithmGzip is kept for interoperability with external tooling.
	AlgorithmGzip Algorithm = "gzip"
	// AlgorithmNone stores payloads uncompressed.
	AlgorithmNone Algorithm = "none"
)

// Config controls algorithm and level selection.
type Config struct {
	// Algorithm selects the codec. Defaults to zstd.
	Algorithm Algorithm
	// Level is the compression level, 1 (fastest) to 9 (smallest).
	Level int
}

// DefaultConfig returns the configuration used by the store.
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmZSTD,
		Level:     3,
	}
}

// Compressor compresses and decompresses byte slices.
type Compressor struct {
	config Config

	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
}

// New creates a Compressor with the given configuration.
func New(config Config) *Compressor {
	if config.Algorithm == "" {
		config.Algorithm = AlgorithmZSTD
	}
	if config.Level <= 0 {
		config.Level = 3
	}

	c := &Compressor{config: config}

	c.zstdEncoders = sync.Pool{
		New: func() interface{} {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel(config.Level)))
			if err != nil {
				return nil
			}
			return enc
		},
	}
	c.zstdDecoders = sync.Pool{
		New: func() interface{} {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return nil
			}
			return dec
		},
	}

	return c
}

// Compress compresses data using the configured algorithm.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.config.Algorithm {
	case AlgorithmZSTD:
		return c.compressZSTD(data)
	case AlgorithmGzip:
		return c.compressGzip(data)
	case AlgorithmNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.config.Algorithm)
	}
}

// Decompress decompresses data using the configured algorithm.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	switch c.config.Algorithm {
	case AlgorithmZSTD:
		return c.decompressZSTD(data)
	case AlgorithmGzip:
		return c.decompressGzip(data)
	case AlgorithmNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.config.Algorithm)
	}
}

// Algorithm returns the configured algorithm.
func (c *Compressor) Algorithm() Algorithm {
	return c.config.Algorithm
}

func (c *Compressor) compressZSTD(data []byte) ([]byte, error) {
	enc, ok := c.zstdEncoders.Get().(*zstd.Encoder)
	if !ok || enc == nil {
		return nil, fmt.Errorf("failed to acquire zstd encoder")
	}
	defer c.zstdEncoders.Put(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	if _, err := enc.Write(data); err != nil {
		return nil, fmt.Errorf("zstd compression failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("zstd flush failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Compressor) decompressZSTD(data []byte) ([]byte, error) {
	dec, ok := c.zstdDecoders.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		return nil, fmt.Errorf("failed to acquire zstd decoder")
	}
	defer c.zstdDecoders.Put(dec)

	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("zstd reset failed: %w", err)
	}
	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

func (c *Compressor) compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzipLevel(c.config.Level))
	if err != nil {
		return nil, fmt.Errorf("gzip writer creation failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip flush failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Compressor) decompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip decompression failed: %w", err)
	}
	return out, nil
}

// zstdLevel maps the 1-9 scale onto zstd's named levels.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 4:
		return zstd.SpeedDefault
	case level <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// gzipLevel maps the 1-9 scale onto gzip's numeric levels.
func gzipLevel(level int) int {
	switch {
	case level <= 3:
		return gzip.BestSpeed
	case level >= 7:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}
