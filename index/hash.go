package index

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// DefaultHashDimensions matches the all-MiniLM-L6-v2 vector size.
const DefaultHashDimensions = 384

// HashEmbedder derives pseudo-embeddings from a SHA-256 digest stream.
// The vectors carry no meaning but are stable, unit length and never fail,
// which keeps the vector pipeline alive when no real model is reachable.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder producing dims-length vectors.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Model returns a name that changes with the vector size.
func (h *HashEmbedder) Model() string { return fmt.Sprintf("sha256-%d", h.dims) }

// Embed returns one pseudo-embedding per text.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text, h.dims)
	}
	return vectors, nil
}

// Close is a no-op.
func (h *HashEmbedder) Close() {}

// hashVector fills v from sha256(counter || text) blocks, 16 components per
// block, maps each uint16 to [-1, 1] and normalises the result.
func hashVector(text string, dims int) []float32 {
	const perBlock = sha256.Size / 2

	v := make([]float32, dims)
	var counter [4]byte
	var block []byte
	for i := range v {
		if i%perBlock == 0 {
			binary.BigEndian.PutUint32(counter[:], uint32(i/perBlock))
			h := sha256.New()
			h.Write(counter[:])
			h.Write([]byte(text))
			block = h.Sum(block[:0])
		}
		u := binary.BigEndian.Uint16(block[(i%perBlock)*2:])
		v[i] = float32(u)/32767.5 - 1
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}
