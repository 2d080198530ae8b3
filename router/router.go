package router

import (
	"context"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vocaresume/vocaresume"
	"github.com/vocaresume/vocaresume/index"
)

// Backend is the routing mode of a Router.
type Backend string

const (
	BackendVector  Backend = "vector"
	BackendKeyword Backend = "keyword"
)

const defaultTopK = 4

// VectorStore is the subset of index.Store the router depends on.
type VectorStore interface {
	Upsert(ctx context.Context, docs []index.Document) error
	Query(ctx context.Context, text string, k int) ([]index.Match, error)
	Close() error
}

// Router routes queries for one session. Once it falls back to keyword
// routing it never touches the store again.
type Router struct {
	mu            sync.Mutex
	store         VectorStore
	backend       Backend
	counts        map[string]int
	seeded        bool
	topK          int
	recordHistory bool
	onFallback    func(error)
}

// Option configures a Router.
type Option func(*Router)

// WithTopK sets the neighbour count used when Route is called with k <= 0.
func WithTopK(k int) Option {
	return func(r *Router) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithQueryHistory controls whether routed queries are stored as history documents.
func WithQueryHistory(enabled bool) Option {
	return func(r *Router) { r.recordHistory = enabled }
}

// OnFallback registers fn to run once when the router leaves the vector backend.
func OnFallback(fn func(error)) Option {
	return func(r *Router) { r.onFallback = fn }
}

// New builds the embedding and store ladders from cfg and returns a router.
// When no ladder rung succeeds the router starts in keyword mode. Passing an
// empty persistDir keeps the collection in memory.
func New(ctx context.Context, cfg *vocaresume.Config, persistDir string, opts ...Option) *Router {
	if cfg == nil {
		cfg = vocaresume.DefaultConfig()
	}

	var embedders []index.EmbedderStrategy
	embedders = append(embedders, index.RemoteEmbedding(
		vocaresume.ResolveEmbeddingBaseURL(cfg),
		vocaresume.ResolveEmbeddingAPIKey(cfg),
		vocaresume.ResolveEmbeddingModel(cfg),
		cfg.Embedding.Dimensions,
	))
	if vocaresume.LocalEmbeddingEnabled(cfg) {
		embedders = append(embedders, index.LocalEmbedding(cfg.Embedding.Local.BaseURL, cfg.Embedding.Local.Model))
	}
	embedders = append(embedders, index.HashEmbedding(cfg.Embedding.Fallback.Dimensions))

	var stores []index.StoreStrategy
	if persistDir != "" {
		stores = append(stores, index.PersistentStore(filepath.Join(persistDir, cfg.Store.Collection)))
	}
	stores = append(stores, index.EphemeralStore())

	avail := index.Open(ctx, index.Options{
		Embedders:    embedders,
		Stores:       stores,
		ProbeTimeout: time.Duration(cfg.Embedding.ProbeTimeoutSeconds) * time.Second,
		CacheTTL:     time.Duration(cfg.Embedding.CacheTTLMinutes) * time.Minute,
	})

	opts = append([]Option{
		WithTopK(cfg.Router.TopK),
		WithQueryHistory(vocaresume.RecordHistoryEnabled(cfg)),
	}, opts...)

	if !avail.Available() {
		attempts := make([]string, len(avail.Attempts))
		for i, a := range avail.Attempts {
			attempts[i] = a.String()
		}
		slog.Warn("vector routing unavailable, using keyword rules", "attempts", attempts)
		return NewWithStore(nil, opts...)
	}

	slog.Info("vector routing ready", "embedder", avail.Embedder, "dimensions", avail.Dimensions, "store", avail.Backend)
	return NewWithStore(avail.Store, opts...)
}

// NewWithStore returns a router over store. A nil store starts in keyword mode.
func NewWithStore(store VectorStore, opts ...Option) *Router {
	r := &Router{
		store:         store,
		backend:       BackendVector,
		counts:        make(map[string]int),
		topK:          defaultTopK,
		recordHistory: true,
	}
	if store == nil {
		r.backend = BackendKeyword
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureTaskLabels seeds the store with the task label documents.
// It does nothing in keyword mode or once seeding has succeeded.
func (r *Router) EnsureTaskLabels(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureTaskLabelsLocked(ctx)
}

// ensureTaskLabelsLocked reports whether the router is still in vector mode.
func (r *Router) ensureTaskLabelsLocked(ctx context.Context) bool {
	if r.backend != BackendVector {
		return false
	}
	if r.seeded {
		return true
	}

	docs := make([]index.Document, len(Tasks))
	for i, t := range Tasks {
		docs[i] = index.Document{
			ID:   labelDocID(t),
			Text: labelDocText(t),
			Type: index.DocTaskLabel,
			Metadata: map[string]string{
				"task_index": strconv.Itoa(t.Index),
				"label":      t.Label,
			},
		}
	}
	if err := r.store.Upsert(ctx, docs); err != nil {
		r.degradeLocked(ctx, "seed task labels", err)
		return false
	}
	r.seeded = true
	return true
}

// IngestResume stores resume text. Blank text is ignored.
func (r *Router) IngestResume(ctx context.Context, text string) {
	r.ingest(ctx, index.DocResume, text)
}

// IngestJobDescription stores job description text. Blank text is ignored.
func (r *Router) IngestJobDescription(ctx context.Context, text string) {
	r.ingest(ctx, index.DocJobDescription, text)
}

func (r *Router) ingest(ctx context.Context, t index.DocType, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend != BackendVector {
		return
	}
	doc := index.Document{ID: index.ContentID(t, text), Text: text, Type: t}
	if err := r.store.Upsert(ctx, []index.Document{doc}); err != nil {
		r.degradeLocked(ctx, "ingest "+string(t), err)
	}
}

// AddQueryHistory stores query as a history document. Failures degrade the
// router but are otherwise ignored.
func (r *Router) AddQueryHistory(ctx context.Context, query string) {
	if strings.TrimSpace(query) == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addQueryHistoryLocked(ctx, query, "")
}

func (r *Router) addQueryHistoryLocked(ctx context.Context, query, routedTo string) {
	if r.backend != BackendVector {
		return
	}
	doc := index.Document{ID: index.ContentID(index.DocQueryHistory, query), Text: query, Type: index.DocQueryHistory}
	if routedTo != "" {
		doc.Metadata = map[string]string{"routed_to": routedTo}
	}
	if err := r.store.Upsert(ctx, []index.Document{doc}); err != nil {
		r.degradeLocked(ctx, "record query history", err)
	}
}

// Route selects a task for query using the k nearest stored documents.
// k <= 0 uses the configured default. Route never fails: store errors switch
// the router to keyword rules, which then answer the query.
func (r *Router) Route(ctx context.Context, query string, k int) Result {
	if strings.TrimSpace(query) == "" {
		return DefaultResult()
	}
	if k <= 0 {
		k = r.topK
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ensureTaskLabelsLocked(ctx) {
		matches, err := r.store.Query(ctx, query, k)
		if err == nil {
			res := rank(matches)
			r.counts[res.Label]++
			if r.recordHistory {
				r.addQueryHistoryLocked(ctx, query, res.Label)
			}
			return res
		}
		r.degradeLocked(ctx, "query", err)
	}

	res := Classify(query)
	r.counts[res.Label]++
	return res
}

// rank turns task label matches into a result. Other document types are ignored.
func rank(matches []index.Match) Result {
	type candidate struct {
		task  Task
		score float64
	}
	var candidates []candidate
	seen := make(map[int]bool)
	for _, m := range matches {
		if m.Type != index.DocTaskLabel {
			continue
		}
		t, ok := taskFromMetadata(m.Metadata)
		if !ok || seen[t.Index] {
			continue
		}
		seen[t.Index] = true
		candidates = append(candidates, candidate{task: t, score: similarity(m.Distance)})
	}
	if len(candidates) == 0 {
		return DefaultResult()
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].task.Index < candidates[j].task.Index
	})

	top := candidates[0]
	res := Result{
		TaskIndex:    top.task.Index,
		Label:        top.task.Label,
		Score:        top.score,
		Alternatives: make([]vocaresume.Alternative, 0, len(candidates)-1),
	}
	for _, c := range candidates[1:] {
		res.Alternatives = append(res.Alternatives, vocaresume.Alternative{Label: c.task.Label, Score: c.score})
	}
	return res
}

func taskFromMetadata(meta map[string]string) (Task, bool) {
	i, err := strconv.Atoi(meta["task_index"])
	if err != nil || i < 0 || i >= len(Tasks) {
		return Task{}, false
	}
	t := Tasks[i]
	if meta["label"] != t.Label {
		return Task{}, false
	}
	return t, true
}

// similarity converts a cosine distance into a score in [0, 1].
func similarity(distance float32) float64 {
	s := 1 - float64(distance)
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// degradeLocked switches to keyword mode. Only the first call logs.
// Failures caused by the caller cancelling ctx leave the backend unchanged.
func (r *Router) degradeLocked(ctx context.Context, op string, err error) {
	if r.backend == BackendKeyword {
		return
	}
	if ctx.Err() != nil {
		slog.Debug("store operation cancelled", "op", op, "error", err)
		return
	}
	r.backend = BackendKeyword
	slog.Warn("vector routing failed, switching to keyword rules", "op", op, "error", err)
	if r.onFallback != nil {
		r.onFallback(err)
	}
}

// Stats returns a copy of the per-label route counts.
func (r *Router) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for label, n := range r.counts {
		out[label] = n
	}
	return out
}

// RoutingBackend reports the current routing mode.
func (r *Router) RoutingBackend() Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend
}

// Close releases the store, flushing a persistent collection.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	r.backend = BackendKeyword
	return err
}
