package simindex

import (
	"context"
	"fmt"
	"math"

	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/llm"
)

// Embedding scores names by cosine similarity of their embeddings. Used when
// a provider with embedding support is configured; lexical remains the
// fallback because an embedder round-trip per entity is not always wanted.
type Embedding struct {
	embedder llm.EmbedderClient
	entries  []embEntry
}

type embEntry struct {
	id  int64
	vec []float32
}

func NewEmbedding(embedder llm.EmbedderClient) *Embedding {
	return &Embedding{embedder: embedder}
}

func (e *Embedding) Add(ctx context.Context, ent model.Entity) error {
	vec, err := e.embedder.Embed(ctx, ent.Name)
	if err != nil {
		return fmt.Errorf("simindex: embed %q: %w", ent.Name, err)
	}
	e.entries = append(e.entries, embEntry{id: ent.ID, vec: vec})
	return nil
}

func (e *Embedding) Query(ctx context.Context, text string, threshold float64) ([]Hit, error) {
	probe, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("simindex: embed query: %w", err)
	}
	var hits []Hit
	for _, entry := range e.entries {
		score := cosine(probe, entry.vec)
		if score >= threshold {
			hits = append(hits, Hit{ID: entry.id, Score: score})
		}
	}
	sortHits(hits)
	return hits, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
