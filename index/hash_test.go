package index

import (
	"context"
	"math"
	"testing"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.Embed(context.Background(), []string{"senior go engineer", "senior go engineer", "barista"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(a))
	}
	for i := range a[0] {
		if a[0][i] != a[1][i] {
			t.Fatalf("same text produced different vectors at %d", i)
		}
	}
	same := true
	for i := range a[0] {
		if a[0][i] != a[2][i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}

func TestHashEmbedderUnitLength(t *testing.T) {
	for _, dims := range []int{1, 16, 17, 384} {
		v := hashVector("resume", dims)
		if len(v) != dims {
			t.Fatalf("expected %d dims, got %d", dims, len(v))
		}
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if math.Abs(norm-1) > 1e-4 {
			t.Errorf("dims=%d: expected unit norm, got %f", dims, norm)
		}
	}
}

func TestHashEmbedderDefaults(t *testing.T) {
	e := NewHashEmbedder(0)
	if e.Model() != "sha256-384" {
		t.Errorf("expected model sha256-384, got %s", e.Model())
	}
	got, err := e.Embed(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("expected nil, nil for empty input, got %v, %v", got, err)
	}
}
