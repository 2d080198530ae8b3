package index

import (
	"context"
	"fmt"
	"time"
)

// StoreStrategy is one rung of the store construction ladder.
type StoreStrategy struct {
	Name string
	Open func(ctx context.Context, embedder Embedder) (*Store, error)
}

// PersistentStore opens a snapshot-backed store under dir.
func PersistentStore(dir string) StoreStrategy {
	return StoreStrategy{
		Name: "persistent",
		Open: func(ctx context.Context, embedder Embedder) (*Store, error) {
			if dir == "" {
				return nil, fmt.Errorf("persist directory unset: %w", ErrNotConfigured)
			}
			return OpenStore(ctx, embedder, dir)
		},
	}
}

// EphemeralStore creates an in-memory store.
func EphemeralStore() StoreStrategy {
	return StoreStrategy{
		Name: "ephemeral",
		Open: func(_ context.Context, embedder Embedder) (*Store, error) {
			return NewStore(embedder), nil
		},
	}
}

// Availability is the tagged result of Open. Store is nil when the vector
// path is unavailable; Attempts lists every rung that was tried.
type Availability struct {
	Store      *Store
	Embedder   string
	Dimensions int
	Backend    string
	Attempts   []Attempt
}

// Available reports whether a store was constructed.
func (a Availability) Available() bool { return a.Store != nil }

// Options configures Open.
type Options struct {
	Embedders    []EmbedderStrategy
	Stores       []StoreStrategy
	ProbeTimeout time.Duration
	// CacheTTL wraps the acquired embedder in a CachedEmbedder when positive.
	CacheTTL time.Duration
}

// Open walks the embedder ladder, then the store ladder, and reports the outcome.
func Open(ctx context.Context, opts Options) Availability {
	acq := AcquireEmbedder(ctx, opts.Embedders, opts.ProbeTimeout)
	avail := Availability{Embedder: acq.Backend, Dimensions: acq.Dimensions, Attempts: acq.Attempts}
	if acq.Embedder == nil {
		return avail
	}

	var emb Embedder = acq.Embedder
	if opts.CacheTTL > 0 {
		emb = NewCachedEmbedder(emb, opts.CacheTTL)
	}

	for _, s := range opts.Stores {
		store, err := s.Open(ctx, emb)
		avail.Attempts = append(avail.Attempts, Attempt{Stage: "store", Name: s.Name, Err: err})
		if err != nil {
			continue
		}
		avail.Store = store
		avail.Backend = s.Name
		return avail
	}

	emb.Close()
	return avail
}
