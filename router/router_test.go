package router

import (
	"context"
	"math"
	"testing"

	"github.com/vocaresume/vocaresume"
	"github.com/vocaresume/vocaresume/index"
)

func TestRouteBlankQuery(t *testing.T) {
	store := newFakeStore()
	r := NewWithStore(store)
	for _, q := range []string{"", "   "} {
		got := r.Route(context.Background(), q, 4)
		if got.TaskIndex != 0 || got.Label != LabelAnalysis || got.Score != 0 || len(got.Alternatives) != 0 {
			t.Errorf("Route(%q) = %+v, want default", q, got)
		}
	}
	if u, q := store.calls(); u != 0 || q != 0 {
		t.Errorf("blank queries touched the store: %d upserts, %d queries", u, q)
	}
	if len(r.Stats()) != 0 {
		t.Errorf("blank queries should not be counted, got %v", r.Stats())
	}
}

func TestRouteVectorScenario(t *testing.T) {
	r := NewWithStore(newConceptStore(), WithQueryHistory(false))
	defer r.Close()
	ctx := context.Background()

	r.EnsureTaskLabels(ctx)
	got := r.Route(ctx, "please tell me if I'm a good match for this role", 4)

	if r.RoutingBackend() != BackendVector {
		t.Fatalf("expected vector backend, got %s", r.RoutingBackend())
	}
	if got.Label != LabelJobFit || got.TaskIndex != 3 {
		t.Errorf("expected job_fit, got %+v", got)
	}
	if len(got.Alternatives) != 3 {
		t.Fatalf("expected 3 alternatives, got %v", got.Alternatives)
	}
	seen := map[string]bool{got.Label: true}
	prev := got.Score
	for _, alt := range got.Alternatives {
		if alt.Score > prev {
			t.Errorf("alternatives not sorted descending: %v", got.Alternatives)
		}
		prev = alt.Score
		seen[alt.Label] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected all 4 labels across result and alternatives, got %v", seen)
	}
}

func TestRouteScoresAreFiniteAndInRange(t *testing.T) {
	r := NewWithStore(newConceptStore())
	ctx := context.Background()
	for _, q := range []string{"interview prep", "improve it", "zzz", "analysis of gaps", "fit?"} {
		got := r.Route(ctx, q, 4)
		if got.TaskIndex < 0 || got.TaskIndex > 3 {
			t.Errorf("Route(%q) index out of range: %d", q, got.TaskIndex)
		}
		if math.IsNaN(got.Score) || math.IsInf(got.Score, 0) || got.Score < 0 || got.Score > 1 {
			t.Errorf("Route(%q) score out of range: %v", q, got.Score)
		}
	}
}

func TestRouteIgnoresNonLabelDocuments(t *testing.T) {
	store := newFakeStore()
	store.matches = []index.Match{
		{Document: index.Document{ID: "resume-x", Type: index.DocResume}, Distance: 0},
		{Document: index.Document{ID: "query_history-y", Type: index.DocQueryHistory}, Distance: 0.01},
		labelMatch(2, 0.2),
		labelMatch(0, 0.6),
	}
	r := NewWithStore(store)
	got := r.Route(context.Background(), "anything", 4)

	if got.Label != LabelSuggestions {
		t.Errorf("expected suggestions, got %+v", got)
	}
	if math.Abs(got.Score-0.8) > 1e-6 {
		t.Errorf("expected score 0.8, got %v", got.Score)
	}
	want := []vocaresume.Alternative{{Label: LabelAnalysis, Score: 0.4}}
	if len(got.Alternatives) != 1 || got.Alternatives[0].Label != want[0].Label || math.Abs(got.Alternatives[0].Score-0.4) > 1e-6 {
		t.Errorf("expected alternatives %v, got %v", want, got.Alternatives)
	}
}

func TestRouteWithoutLabelCandidates(t *testing.T) {
	store := newFakeStore()
	store.matches = []index.Match{
		{Document: index.Document{ID: "resume-x", Type: index.DocResume}, Distance: 0},
	}
	r := NewWithStore(store)
	got := r.Route(context.Background(), "hello", 4)
	if got.TaskIndex != 0 || got.Label != LabelAnalysis || got.Score != 0 {
		t.Errorf("expected default result, got %+v", got)
	}
	if r.RoutingBackend() != BackendVector {
		t.Errorf("expected vector backend, got %s", r.RoutingBackend())
	}
	if r.Stats()[LabelAnalysis] != 1 {
		t.Errorf("expected the route to be counted, got %v", r.Stats())
	}
}

func TestRouteClampsNegativeSimilarity(t *testing.T) {
	store := newFakeStore()
	store.matches = []index.Match{labelMatch(1, 1.5), labelMatch(3, 0)}
	r := NewWithStore(store)
	got := r.Route(context.Background(), "hello", 4)
	if got.Label != LabelJobFit || got.Score != 1 {
		t.Errorf("expected job_fit with score 1, got %+v", got)
	}
	if got.Alternatives[0].Score != 0 {
		t.Errorf("expected clamped score 0, got %v", got.Alternatives[0].Score)
	}
}

func TestRouteTiesBreakByIndex(t *testing.T) {
	store := newFakeStore()
	store.matches = []index.Match{labelMatch(3, 0.3), labelMatch(1, 0.3)}
	r := NewWithStore(store)
	got := r.Route(context.Background(), "hello", 4)
	if got.Label != LabelInterview {
		t.Errorf("expected interview to win the tie, got %+v", got)
	}
}

func TestKeywordModeScenario(t *testing.T) {
	r := NewWithStore(nil)
	if r.RoutingBackend() != BackendKeyword {
		t.Fatalf("expected keyword backend, got %s", r.RoutingBackend())
	}
	got := r.Route(context.Background(), "What's my fit score?", 4)
	if got.TaskIndex != 3 || got.Label != LabelJobFit || got.Score != 0.5 || len(got.Alternatives) != 0 {
		t.Errorf("expected (3, job_fit, 0.5, []), got %+v", got)
	}
}

func TestQueryFailureDegradesAndAnswers(t *testing.T) {
	store := newFakeStore()
	store.failQuery = true
	var fallbacks int
	r := NewWithStore(store, OnFallback(func(error) { fallbacks++ }))
	ctx := context.Background()

	got := r.Route(ctx, "Can you give me interview questions and also improve my resume", 4)
	if got.Label != LabelInterview || got.Score != KeywordScore {
		t.Errorf("expected keyword answer, got %+v", got)
	}
	if r.RoutingBackend() != BackendKeyword {
		t.Fatalf("expected keyword backend after query failure")
	}

	// Store recovers, router does not.
	store.mu.Lock()
	store.failQuery = false
	store.mu.Unlock()
	upserts, queries := store.calls()

	r.IngestResume(ctx, "Go developer")
	r.EnsureTaskLabels(ctx)
	r.AddQueryHistory(ctx, "what now")
	r.Route(ctx, "fit?", 4)

	if r.RoutingBackend() != BackendKeyword {
		t.Error("router returned to vector mode")
	}
	if u, q := store.calls(); u != upserts || q != queries {
		t.Errorf("store used after fallback: upserts %d->%d, queries %d->%d", upserts, u, queries, q)
	}
	if fallbacks != 1 {
		t.Errorf("expected one fallback notification, got %d", fallbacks)
	}
}

func TestSeedFailureDegrades(t *testing.T) {
	store := newFakeStore()
	store.failUpsert = true
	r := NewWithStore(store)
	r.EnsureTaskLabels(context.Background())
	if r.RoutingBackend() != BackendKeyword {
		t.Errorf("expected keyword backend after seed failure")
	}
	got := r.Route(context.Background(), "improve my summary", 4)
	if got.Label != LabelSuggestions {
		t.Errorf("expected suggestions, got %+v", got)
	}
}

func TestIngestFailureDegrades(t *testing.T) {
	store := newFakeStore()
	r := NewWithStore(store)
	r.EnsureTaskLabels(context.Background())
	store.mu.Lock()
	store.failUpsert = true
	store.mu.Unlock()

	r.IngestJobDescription(context.Background(), "Backend engineer, Go, Postgres")
	if r.RoutingBackend() != BackendKeyword {
		t.Errorf("expected keyword backend after ingest failure")
	}
}

func TestHistoryFailureKeepsRoute(t *testing.T) {
	store := newFakeStore()
	store.matches = []index.Match{labelMatch(1, 0.1), labelMatch(0, 0.5)}
	r := NewWithStore(store)
	ctx := context.Background()
	r.EnsureTaskLabels(ctx)

	store.mu.Lock()
	store.failUpsert = true
	store.mu.Unlock()

	got := r.Route(ctx, "mock me", 4)
	if got.Label != LabelInterview || len(got.Alternatives) != 1 {
		t.Errorf("expected vector answer despite history failure, got %+v", got)
	}
	if r.RoutingBackend() != BackendKeyword {
		t.Errorf("expected history failure to degrade the router")
	}
}

func TestEnsureTaskLabelsSeedsOnce(t *testing.T) {
	store := newFakeStore()
	r := NewWithStore(store)
	ctx := context.Background()
	r.EnsureTaskLabels(ctx)
	r.EnsureTaskLabels(ctx)
	r.Route(ctx, "hello", 4)

	if n := store.countType(index.DocTaskLabel); n != 4 {
		t.Errorf("expected 4 task labels, got %d", n)
	}
	if u, _ := store.calls(); u != 2 {
		t.Errorf("expected one seed and one history upsert, got %d upserts", u)
	}
	if doc := store.docs["task-3-job_fit"]; doc.Metadata["label"] != LabelJobFit {
		t.Errorf("unexpected job_fit label document %+v", doc)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	store := index.NewStore(conceptEmbedder{})
	r := NewWithStore(store)
	ctx := context.Background()

	r.IngestResume(ctx, "Go engineer with interview experience")
	r.IngestResume(ctx, "Go engineer with interview experience")
	r.IngestResume(ctx, "   ")
	if store.Len() != 1 {
		t.Errorf("expected 1 document, got %d", store.Len())
	}
	r.IngestJobDescription(ctx, "Go engineer with interview experience")
	if store.Len() != 2 {
		t.Errorf("expected job description stored separately, got %d", store.Len())
	}
}

func TestRecordsQueryHistory(t *testing.T) {
	store := newFakeStore()
	store.matches = []index.Match{labelMatch(3, 0.1)}
	r := NewWithStore(store)
	ctx := context.Background()

	r.Route(ctx, "fit please", 4)
	r.Route(ctx, "fit please", 4)
	if n := store.countType(index.DocQueryHistory); n != 1 {
		t.Errorf("expected 1 history document, got %d", n)
	}
	doc := store.docs[index.ContentID(index.DocQueryHistory, "fit please")]
	if doc.Metadata["routed_to"] != LabelJobFit {
		t.Errorf("expected routed_to job_fit, got %v", doc.Metadata)
	}

	off := newFakeStore()
	off.matches = store.matches
	r2 := NewWithStore(off, WithQueryHistory(false))
	r2.Route(ctx, "fit please", 4)
	if n := off.countType(index.DocQueryHistory); n != 0 {
		t.Errorf("expected no history documents, got %d", n)
	}
}

func TestStatsSumToRoutes(t *testing.T) {
	queries := []string{"interview", "improve", "fit", "hello", "", "match me"}
	for _, mode := range []string{"vector", "keyword"} {
		t.Run(mode, func(t *testing.T) {
			var r *Router
			if mode == "vector" {
				r = NewWithStore(newConceptStore())
			} else {
				r = NewWithStore(nil)
			}
			routed := 0
			for _, q := range queries {
				r.Route(context.Background(), q, 4)
				if q != "" {
					routed++
				}
			}
			total := 0
			for _, n := range r.Stats() {
				total += n
			}
			if total != routed {
				t.Errorf("expected stats to sum to %d, got %d (%v)", routed, total, r.Stats())
			}
		})
	}
}

func TestRouteDefaultK(t *testing.T) {
	store := newFakeStore()
	store.matches = []index.Match{labelMatch(0, 0.1), labelMatch(1, 0.2), labelMatch(2, 0.3), labelMatch(3, 0.4)}
	r := NewWithStore(store, WithTopK(2))
	got := r.Route(context.Background(), "hello", 0)
	if len(got.Alternatives) != 1 {
		t.Errorf("expected top_k 2 to yield 1 alternative, got %v", got.Alternatives)
	}
}

func TestNewFallsBackToHashEmbeddings(t *testing.T) {
	t.Setenv("VOCARESUME_EMBEDDING_API_BASE_URL", "")
	t.Setenv("VOCARESUME_EMBEDDING_API_KEY", "")
	cfg := vocaresume.DefaultConfig()
	disabled := false
	cfg.Embedding.Local.Enabled = &disabled

	dir := t.TempDir()
	r := New(context.Background(), cfg, dir)
	if r.RoutingBackend() != BackendVector {
		t.Fatalf("expected vector backend on hash embeddings, got %s", r.RoutingBackend())
	}
	r.EnsureTaskLabels(context.Background())
	got := r.Route(context.Background(), "anything at all", 4)
	if got.TaskIndex < 0 || got.TaskIndex > 3 {
		t.Errorf("unexpected route %+v", got)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestCloseSwitchesToKeyword(t *testing.T) {
	store := newFakeStore()
	r := NewWithStore(store)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !store.closed {
		t.Error("expected store to be closed")
	}
	if r.RoutingBackend() != BackendKeyword {
		t.Error("expected keyword backend after close")
	}
	if err := r.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestCancelledContextDoesNotDegrade(t *testing.T) {
	store := newFakeStore()
	store.failQuery = true
	r := NewWithStore(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := r.Route(ctx, "interview me", 4)
	if got.Label != LabelInterview {
		t.Errorf("expected keyword answer, got %+v", got)
	}
	if r.RoutingBackend() != BackendVector {
		t.Errorf("cancellation should not degrade the router")
	}
}

func TestRouteSameQueryTwiceOnIndexStore(t *testing.T) {
	var fallbacks []error
	r := NewWithStore(index.NewStore(index.NewHashEmbedder(384)), OnFallback(func(err error) {
		fallbacks = append(fallbacks, err)
	}))
	ctx := context.Background()
	r.IngestResume(ctx, "Go engineer with five years of backend experience")

	queries := []string{
		"what's my fit score?",
		"give me an overview",
		"improve my resume",
		"interview questions please",
		"what's my fit score?",
	}
	var first, last Result
	for i, q := range queries {
		got := r.Route(ctx, q, 4)
		if got.TaskIndex < 0 || got.TaskIndex > 3 {
			t.Fatalf("Route(%q) = %+v", q, got)
		}
		if i == 0 {
			first = got
		}
		last = got
	}
	if r.RoutingBackend() != BackendVector {
		t.Fatalf("expected vector backend, got %s (fallbacks %v)", r.RoutingBackend(), fallbacks)
	}
	if first.Label != last.Label {
		t.Errorf("repeated query routed to %s then %s", first.Label, last.Label)
	}
	total := 0
	for _, n := range r.Stats() {
		total += n
	}
	if total != len(queries) {
		t.Errorf("stats sum = %d, want %d", total, len(queries))
	}
}

func TestRouteAfterReopeningPersistedCollection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := index.OpenStore(ctx, index.NewHashEmbedder(384), dir)
	if err != nil {
		t.Fatal(err)
	}
	r := NewWithStore(store)
	r.IngestResume(ctx, "Data scientist, Python and SQL")
	r.IngestJobDescription(ctx, "Hiring a senior data scientist")
	for _, q := range []string{"what's my fit score?", "interview prep", "what's my fit score?"} {
		r.Route(ctx, q, 4)
	}
	persisted := store.Len()
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := index.OpenStore(ctx, index.NewHashEmbedder(384), dir)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Len() != persisted {
		t.Fatalf("reopened %d documents, want %d", reopened.Len(), persisted)
	}
	r = NewWithStore(reopened)
	defer r.Close()
	r.EnsureTaskLabels(ctx)
	for _, q := range []string{"what's my fit score?", "give me an overview"} {
		got := r.Route(ctx, q, 4)
		if got.TaskIndex < 0 || got.TaskIndex > 3 || got.Score < 0 || got.Score > 1 {
			t.Errorf("Route(%q) after reopen = %+v", q, got)
		}
	}
	if r.RoutingBackend() != BackendVector {
		t.Errorf("expected vector backend after reopen, got %s", r.RoutingBackend())
	}
}
