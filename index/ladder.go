package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotConfigured marks a rung that was skipped because it has no settings.
var ErrNotConfigured = errors.New("not configured")

const (
	probeText           = "task routing probe"
	defaultProbeTimeout = 5 * time.Second
)

// EmbedderStrategy is one rung of the embedding acquisition ladder.
type EmbedderStrategy struct {
	Name  string
	Build func(ctx context.Context) (Embedder, error)
}

// Attempt records the outcome of one rung.
type Attempt struct {
	Stage string // "embedder" or "store"
	Name  string
	Err   error
}

func (a Attempt) String() string {
	if a.Err == nil {
		return a.Stage + "/" + a.Name + ": ok"
	}
	return a.Stage + "/" + a.Name + ": " + a.Err.Error()
}

// Acquisition is the tagged result of walking the embedder ladder.
// Embedder is nil when every rung failed.
type Acquisition struct {
	Embedder   Embedder
	Backend    string
	Dimensions int
	Attempts   []Attempt
}

// RemoteEmbedding is the configured embedding API rung.
func RemoteEmbedding(baseURL, apiKey, model string, dimensions int) EmbedderStrategy {
	return EmbedderStrategy{
		Name: "remote",
		Build: func(context.Context) (Embedder, error) {
			if baseURL == "" || apiKey == "" {
				return nil, fmt.Errorf("embedding base_url or api_key missing: %w", ErrNotConfigured)
			}
			return NewAPIEmbedder(baseURL, apiKey, model, dimensions), nil
		},
	}
}

// LocalEmbedding is the local OpenAI-compatible server rung.
func LocalEmbedding(baseURL, model string) EmbedderStrategy {
	return EmbedderStrategy{
		Name: "local",
		Build: func(context.Context) (Embedder, error) {
			if baseURL == "" || model == "" {
				return nil, fmt.Errorf("local embedding server disabled: %w", ErrNotConfigured)
			}
			return NewAPIEmbedder(baseURL, "", model, 0), nil
		},
	}
}

// HashEmbedding is the final rung; it always succeeds.
func HashEmbedding(dims int) EmbedderStrategy {
	return EmbedderStrategy{
		Name: "hash",
		Build: func(context.Context) (Embedder, error) {
			return NewHashEmbedder(dims), nil
		},
	}
}

// AcquireEmbedder tries each strategy in order and returns the first embedder
// that builds and answers a probe embedding within probeTimeout.
func AcquireEmbedder(ctx context.Context, strategies []EmbedderStrategy, probeTimeout time.Duration) Acquisition {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	var acq Acquisition
	for _, s := range strategies {
		emb, dims, err := buildAndProbe(ctx, s, probeTimeout)
		acq.Attempts = append(acq.Attempts, Attempt{Stage: "embedder", Name: s.Name, Err: err})
		if err != nil {
			if !errors.Is(err, ErrNotConfigured) {
				slog.Debug("embedder unavailable", "strategy", s.Name, "error", err)
			}
			continue
		}
		acq.Embedder = emb
		acq.Backend = s.Name
		acq.Dimensions = dims
		return acq
	}
	return acq
}

func buildAndProbe(ctx context.Context, s EmbedderStrategy, timeout time.Duration) (Embedder, int, error) {
	emb, err := s.Build(ctx)
	if err != nil {
		return nil, 0, err
	}
	if emb == nil {
		return nil, 0, errors.New("strategy returned no embedder")
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vectors, err := emb.Embed(probeCtx, []string{probeText})
	if err != nil {
		emb.Close()
		return nil, 0, fmt.Errorf("probe: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		emb.Close()
		return nil, 0, errors.New("probe: empty embedding")
	}
	return emb, len(vectors[0]), nil
}
