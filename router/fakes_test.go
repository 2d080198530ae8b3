package router

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/vocaresume/vocaresume/index"
)

// conceptEmbedder maps text onto one axis per task plus a constant bias axis,
// counting stem occurrences. It stands in for a semantic embedding model.
type conceptEmbedder struct{}

var conceptAxes = [][]string{
	{"analy", "strength", "gap"},
	{"interview", "question", "technical"},
	{"improv", "suggest", "optimi"},
	{"fit", "match", "suitab", "role"},
}

func (conceptEmbedder) Model() string { return "concept-test" }

func (conceptEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float32, len(conceptAxes)+1)
		for axis, stems := range conceptAxes {
			for _, stem := range stems {
				v[axis] += float32(strings.Count(lower, stem))
			}
		}
		v[len(conceptAxes)] = 0.1
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		norm = math.Sqrt(norm)
		for j := range v {
			v[j] = float32(float64(v[j]) / norm)
		}
		out[i] = v
	}
	return out, nil
}

func (conceptEmbedder) Close() {}

func newConceptStore() *index.Store {
	return index.NewStore(conceptEmbedder{})
}

var errStoreDown = errors.New("store down")

// fakeStore records calls and fails on demand.
type fakeStore struct {
	mu         sync.Mutex
	failUpsert bool
	failQuery  bool
	upserts    int
	queries    int
	docs       map[string]index.Document
	matches    []index.Match
	closed     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]index.Document)}
}

func (f *fakeStore) Upsert(_ context.Context, docs []index.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.failUpsert {
		return errStoreDown
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeStore) Query(_ context.Context, _ string, k int) ([]index.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.failQuery {
		return nil, errStoreDown
	}
	if k < len(f.matches) {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

func (f *fakeStore) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) calls() (upserts, queries int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts, f.queries
}

func (f *fakeStore) countType(t index.DocType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.docs {
		if d.Type == t {
			n++
		}
	}
	return n
}

// labelMatch builds a task label match the way the router seeds them.
func labelMatch(i int, distance float32) index.Match {
	t := Tasks[i]
	return index.Match{
		Document: index.Document{
			ID:   labelDocID(t),
			Text: labelDocText(t),
			Type: index.DocTaskLabel,
			Metadata: map[string]string{
				"task_index": strconv.Itoa(i),
				"label":      t.Label,
			},
		},
		Distance: distance,
	}
}
