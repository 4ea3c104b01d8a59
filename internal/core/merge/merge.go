// Package merge consolidates entities that denote the same real-world thing.
package merge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/latticehq/lattice/internal/core/simindex"
	"github.com/latticehq/lattice/internal/store"
)

const DefaultThreshold = 0.85

type Pair struct {
	WinnerID int64 `json:"winner_id"`
	LoserID  int64 `json:"loser_id"`
}

type Result struct {
	Merged int    `json:"merged"`
	Pairs  []Pair `json:"pairs"`
}

type Engine struct {
	store     store.Store
	newIndex  func() simindex.Index
	threshold float64
	log       *zap.Logger
}

// New builds a merge engine. newIndex is invoked once per Run so every
// invocation works against a fresh index of the current entity set.
func New(s store.Store, newIndex func() simindex.Index, threshold float64, log *zap.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, newIndex: newIndex, threshold: threshold, log: log}
}

// Run rebuilds the similarity index from the full entity set and performs a
// single forward pass in ascending id order. For each unprocessed entity, the
// first unprocessed hit above the threshold is merged with winner = min(id)
// and loser = max(id); the min-id rule is a compatibility policy, not a
// statement about which row is more complete. An entity consumed by an
// earlier pair is skipped, so no chained merges happen within one pass.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	entities, err := e.store.AllEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge: load entities: %w", err)
	}
	result := &Result{Pairs: []Pair{}}
	if len(entities) == 0 {
		return result, nil
	}

	idx := e.newIndex()
	for _, ent := range entities {
		if err := idx.Add(ctx, ent); err != nil {
			return nil, fmt.Errorf("merge: index %d: %w", ent.ID, err)
		}
	}

	processed := make(map[int64]bool)
	for _, ent := range entities {
		if processed[ent.ID] {
			continue
		}
		hits, err := idx.Query(ctx, ent.Name, e.threshold)
		if err != nil {
			return nil, fmt.Errorf("merge: query %q: %w", ent.Name, err)
		}
		for _, hit := range hits {
			if hit.ID == ent.ID || processed[hit.ID] {
				continue
			}
			winner, loser := ent.ID, hit.ID
			if loser < winner {
				winner, loser = loser, winner
			}
			if err := e.store.MergeEntities(ctx, winner, loser); err != nil {
				// The index may be stale against the store (a row can vanish
				// between build and merge); the pair is skipped, not fatal.
				e.log.Warn("merge pair skipped",
					zap.Int64("winner", winner),
					zap.Int64("loser", loser),
					zap.Float64("score", hit.Score),
					zap.Error(err))
				continue
			}
			e.log.Info("entities merged",
				zap.Int64("winner", winner),
				zap.Int64("loser", loser),
				zap.String("name", ent.Name),
				zap.Float64("score", hit.Score))
			processed[ent.ID] = true
			processed[hit.ID] = true
			result.Pairs = append(result.Pairs, Pair{WinnerID: winner, LoserID: loser})
			result.Merged++
			break
		}
	}
	return result, nil
}

// Threshold reports the similarity threshold the engine merges at.
func (e *Engine) Threshold() float64 { return e.threshold }
