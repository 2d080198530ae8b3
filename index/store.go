package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// ErrDimensionMismatch is returned when a vector does not match the store's dimensionality.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Store keeps documents in an HNSW graph keyed by document id.
// Distances are cosine distances in [0, 2].
type Store struct {
	embedder Embedder
	path     string // snapshot file; empty for an in-memory store

	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	docs    map[string]Document
	vectors map[string][]float32
	dims    int

	closeOnce sync.Once
}

// NewStore creates an in-memory store that embeds with embedder.
func NewStore(embedder Embedder) *Store {
	return &Store{
		embedder: embedder,
		graph:    newGraph(),
		docs:     make(map[string]Document),
		vectors:  make(map[string][]float32),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	return g
}

// Model returns the embedding model the store's vectors were produced with.
func (s *Store) Model() string { return s.embedder.Model() }

// Persistent reports whether the store writes snapshots to disk.
func (s *Store) Persistent() bool { return s.path != "" }

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Get returns the document stored under id.
func (s *Store) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	return d, ok
}

// Upsert inserts docs, replacing any document with the same id. Only documents
// whose text is new or changed are embedded; for the rest only the stored
// document (type, metadata) is updated. Persistent stores write a snapshot
// after every successful upsert.
func (s *Store) Upsert(ctx context.Context, docs []Document) error {
	docs = dedupeByID(docs)
	if len(docs) == 0 {
		return nil
	}

	s.mu.RLock()
	var pending, unchanged []Document
	for _, d := range docs {
		if cur, ok := s.docs[d.ID]; ok && cur.Text == d.Text {
			unchanged = append(unchanged, d)
			continue
		}
		pending = append(pending, d)
	}
	s.mu.RUnlock()

	var vectors [][]float32
	if len(pending) > 0 {
		texts := make([]string, len(pending))
		for i, d := range pending {
			texts[i] = d.Text
		}
		var err error
		vectors, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed documents: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(pending) > 0 {
		if err := s.insertLocked(pending, vectors); err != nil {
			return err
		}
	}
	for _, d := range unchanged {
		// A concurrent upsert may have changed the text; its vector wins.
		if cur, ok := s.docs[d.ID]; ok && cur.Text == d.Text {
			s.docs[d.ID] = d
		}
	}
	if s.path != "" {
		return s.saveLocked()
	}
	return nil
}

// insertLocked validates vectors and writes them into the graph. New ids are
// added in place; replacing an existing id rebuilds the graph, since the HNSW
// graph does not support removing nodes safely.
func (s *Store) insertLocked(docs []Document, vectors [][]float32) error {
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	dims := s.dims
	if dims == 0 {
		dims = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dims {
			return fmt.Errorf("%w: document %s has %d dimensions, want %d", ErrDimensionMismatch, docs[i].ID, len(v), dims)
		}
	}
	s.dims = dims

	replaced := false
	nodes := make([]hnsw.Node[string], 0, len(docs))
	for i, d := range docs {
		if _, exists := s.vectors[d.ID]; exists {
			replaced = true
		}
		s.docs[d.ID] = d
		s.vectors[d.ID] = vectors[i]
		nodes = append(nodes, hnsw.MakeNode(d.ID, vectors[i]))
	}

	if replaced {
		s.rebuildLocked()
		return nil
	}
	s.graph.Add(nodes...)
	return nil
}

// rebuildLocked replaces the graph with one built from the stored vectors.
func (s *Store) rebuildLocked() {
	ids := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]hnsw.Node[string], len(ids))
	for i, id := range ids {
		nodes[i] = hnsw.MakeNode(id, s.vectors[id])
	}
	g := newGraph()
	g.Add(nodes...)
	s.graph = g
}

// Query embeds text and returns up to k nearest documents, closest first.
func (s *Store) Query(ctx context.Context, text string, k int) ([]Match, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vectors))
	}
	queryVec := vectors[0]

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.docs) == 0 || k <= 0 {
		return nil, nil
	}
	if len(queryVec) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", ErrDimensionMismatch, len(queryVec), s.dims)
	}

	neighbors := s.graph.Search(queryVec, k)
	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		doc, ok := s.docs[n.Key]
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Document: doc,
			Distance: s.graph.Distance(queryVec, n.Value),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches, nil
}

// Close flushes a persistent store and releases the embedder.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.Save()
		s.embedder.Close()
	})
	return err
}

// dedupeByID keeps the last document for each id, preserving first-seen order.
func dedupeByID(docs []Document) []Document {
	pos := make(map[string]int, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if i, ok := pos[d.ID]; ok {
			out[i] = d
			continue
		}
		pos[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}
