package compress

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"score":85,"summary":"reviewed 3 chunks"}`), 50)

	tests := []struct {
		name      string
		algorithm Algorithm
	}{
		{"zstd", AlgorithmZSTD},
		{"gzip", AlgorithmGzip},
		{"none", AlgorithmNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Config{Algorithm: tt.algorithm, Level: 3})

			compressed, err := c.Compress(payload)
			if err != nil {
				t.Fatalf("Compress() error = %v", err)
			}
			if tt.algorithm != AlgorithmNone && len(compressed) >= len(payload) {
				t.Errorf("compressed size %d not smaller than input %d", len(compressed), len(payload))
			}

			decompressed, err := c.Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if !bytes.Equal(decompressed, payload) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(decompressed), len(payload))
			}
		})
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	c := New(Config{Algorithm: Algorithm("lz77"), Level: 3})

	if _, err := c.Compress([]byte("data")); err == nil {
		t.Error("Compress() with unsupported algorithm should fail")
	}
	if _, err := c.Decompress([]byte("data")); err == nil {
		t.Error("Decompress() with unsupported algorithm should fail")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Algorithm != AlgorithmZSTD {
		t.Errorf("Algorithm = %s, want %s", cfg.Algorithm, AlgorithmZSTD)
	}
	if cfg.Level != 3 {
		t.Errorf("Level = %d, want 3", cfg.Level)
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	if c.Algorithm() != AlgorithmZSTD {
		t.Errorf("Algorithm() = %s, want %s", c.Algorithm(), AlgorithmZSTD)
	}

	// Zero-value config must still round-trip.
	data := []byte("small payload")
	compressed, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("round trip mismatch with default config")
	}
}

func TestEmptyInput(t *testing.T) {
	c := New(DefaultConfig())
	compressed, err := c.Compress(nil)
	if err != nil {
		t.Fatalf("Compress(nil) error = %v", err)
	}
	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if len(decompressed) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(decompressed))
	}
}
