package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
)

// SnapshotFile is the collection file name inside a persist directory.
const SnapshotFile = "collection.json"

// ErrInvalidSnapshot is returned when a snapshot cannot back a store.
var ErrInvalidSnapshot = errors.New("invalid collection snapshot")

type snapshotFile struct {
	Model      string          `json:"model"`
	Dimensions int             `json:"dimensions"`
	Documents  []snapshotEntry `json:"documents"`
}

type snapshotEntry struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Type      DocType           `json:"doc_type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding"`
}

// OpenStore creates a store persisted under dir, loading any previous snapshot.
// A snapshot written with a different model is re-embedded with embedder.
func OpenStore(ctx context.Context, embedder Embedder, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create persist directory: %w", err)
	}

	s := NewStore(embedder)
	s.path = filepath.Join(dir, SnapshotFile)

	if err := s.load(ctx); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	return s, nil
}

// load reads the snapshot at s.path into the empty store.
func (s *Store) load(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if len(sf.Documents) == 0 {
		return nil
	}

	docs := make([]Document, len(sf.Documents))
	vectors := make([][]float32, len(sf.Documents))
	for i, e := range sf.Documents {
		if e.ID == "" {
			return fmt.Errorf("%w: document %d has no id", ErrInvalidSnapshot, i)
		}
		if sf.Dimensions <= 0 || len(e.Embedding) != sf.Dimensions {
			return fmt.Errorf("%w: document %s has %d dimensions, header says %d", ErrInvalidSnapshot, e.ID, len(e.Embedding), sf.Dimensions)
		}
		docs[i] = Document{ID: e.ID, Text: e.Text, Type: e.Type, Metadata: e.Metadata}
		vectors[i] = e.Embedding
	}

	if sf.Model != s.embedder.Model() {
		slog.Info("re-embedding collection snapshot", "from", sf.Model, "to", s.embedder.Model(), "documents", len(docs))
		return s.Upsert(ctx, docs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(docs, vectors)
}

// Save writes the current collection to disk. It is a no-op for in-memory stores.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	entries := make([]snapshotEntry, 0, len(s.docs))
	for id, d := range s.docs {
		vec, ok := s.vectors[id]
		if !ok {
			continue
		}
		entries = append(entries, snapshotEntry{
			ID:        id,
			Text:      d.Text,
			Type:      d.Type,
			Metadata:  d.Metadata,
			Embedding: vec,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	data, err := json.Marshal(snapshotFile{
		Model:      s.embedder.Model(),
		Dimensions: s.dims,
		Documents:  entries,
	})
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.path, data, 0644)
}
