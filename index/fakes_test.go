package index

import (
	"context"
	"sync"
)

// mapEmbedder returns fixed vectors for known texts and hash vectors otherwise.
type mapEmbedder struct {
	model   string
	dims    int
	vectors map[string][]float32
	err     error

	mu     sync.Mutex
	calls  int
	texts  int
	closed bool
}

func newMapEmbedder(dims int, vectors map[string][]float32) *mapEmbedder {
	return &mapEmbedder{model: "map-test", dims: dims, vectors: vectors}
}

func (m *mapEmbedder) Model() string { return m.model }

func (m *mapEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.texts += len(texts)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		out[i] = hashVector(t, m.dims)
	}
	return out, nil
}

func (m *mapEmbedder) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *mapEmbedder) stats() (calls, texts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.texts
}
