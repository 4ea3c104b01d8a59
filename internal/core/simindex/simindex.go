// Package simindex provides rebuildable text-similarity indexes over entity
// names. An index is a plain value constructed fresh by its owner (the merge
// engine builds one per invocation); it carries no cross-invocation state.
package simindex

import (
	"context"
	"sort"
	"strings"

	"github.com/latticehq/lattice/internal/core/model"
)

type Hit struct {
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
}

type Index interface {
	Add(ctx context.Context, e model.Entity) error
	// Query returns entries scoring at or above threshold against text,
	// ordered by descending score, then ascending id.
	Query(ctx context.Context, text string, threshold float64) ([]Hit, error)
}

// Lexical scores entity names by character-trigram Dice similarity. It needs
// no external capability and is fully deterministic, which makes it the
// default index for merge runs.
type Lexical struct {
	entries []lexEntry
}

type lexEntry struct {
	id    int64
	grams map[string]bool
}

func NewLexical() *Lexical {
	return &Lexical{}
}

func (l *Lexical) Add(_ context.Context, e model.Entity) error {
	l.entries = append(l.entries, lexEntry{id: e.ID, grams: trigrams(e.Name)})
	return nil
}

func (l *Lexical) Query(_ context.Context, text string, threshold float64) ([]Hit, error) {
	probe := trigrams(text)
	var hits []Hit
	for _, entry := range l.entries {
		score := dice(probe, entry.grams)
		if score >= threshold {
			hits = append(hits, Hit{ID: entry.id, Score: score})
		}
	}
	sortHits(hits)
	return hits, nil
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

// trigrams returns the padded character trigram set of a normalized name.
// Padding keeps very short names comparable.
func trigrams(s string) map[string]bool {
	norm := strings.ToLower(strings.Join(strings.Fields(s), " "))
	padded := "  " + norm + " "
	out := make(map[string]bool)
	runes := []rune(padded)
	for i := 0; i+3 <= len(runes); i++ {
		out[string(runes[i:i+3])] = true
	}
	return out
}

func dice(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for g := range a {
		if b[g] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}
