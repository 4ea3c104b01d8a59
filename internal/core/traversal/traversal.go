// Package traversal produces privacy-filtered induced subgraphs by
// breadth-first expansion from seed entities.
package traversal

import (
	"context"
	"fmt"
	"sort"

	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/store"
)

type Engine struct {
	store store.Store
}

func New(s store.Store) *Engine {
	return &Engine{store: s}
}

// GraphContext is the induced subgraph around a set of seeds. Nodes and
// Edges are ordered by ascending id so output is deterministic for a fixed
// store state.
type GraphContext struct {
	Nodes []model.Entity   `json:"nodes"`
	Edges []model.Relation `json:"edges"`
}

// Expand runs depth rounds of BFS from seedIDs at the given privacy level.
// A PUBLIC query never admits a PRIVATE entity, so PRIVATE nodes are
// invisible both in the output and as intermediate hops. An edge appears in
// the output only when both of its endpoints are visible. Visited ids are
// never re-expanded, so cycles terminate.
func (e *Engine) Expand(ctx context.Context, seedIDs []int64, depth int, level model.PrivacyLevel) (*GraphContext, error) {
	visible := make(map[int64]model.Entity)
	visited := make(map[int64]bool)
	candidates := make(map[int64]model.Relation)

	seeds, err := e.store.EntitiesByIDs(ctx, seedIDs, level)
	if err != nil {
		return nil, fmt.Errorf("traversal: fetch seeds: %w", err)
	}
	frontier := make([]int64, 0, len(seeds))
	for _, id := range seedIDs {
		visited[id] = true
	}
	for _, ent := range seeds {
		visible[ent.ID] = ent
		frontier = append(frontier, ent.ID)
	}

	for round := 0; round < depth && len(frontier) > 0; round++ {
		rels, err := e.store.RelationsTouching(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("traversal: fetch relations: %w", err)
		}

		neighborSet := make(map[int64]bool)
		for _, rel := range rels {
			candidates[rel.ID] = rel
			for _, id := range []int64{rel.SourceID, rel.TargetID} {
				if !visited[id] {
					neighborSet[id] = true
					visited[id] = true
				}
			}
		}

		neighborIDs := make([]int64, 0, len(neighborSet))
		for id := range neighborSet {
			neighborIDs = append(neighborIDs, id)
		}
		sort.Slice(neighborIDs, func(i, j int) bool { return neighborIDs[i] < neighborIDs[j] })

		admitted, err := e.store.EntitiesByIDs(ctx, neighborIDs, level)
		if err != nil {
			return nil, fmt.Errorf("traversal: fetch neighbors: %w", err)
		}
		frontier = frontier[:0]
		for _, ent := range admitted {
			visible[ent.ID] = ent
			frontier = append(frontier, ent.ID)
		}
	}

	out := &GraphContext{
		Nodes: make([]model.Entity, 0, len(visible)),
		Edges: make([]model.Relation, 0, len(candidates)),
	}
	for _, ent := range visible {
		out.Nodes = append(out.Nodes, ent)
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })

	// Edges survive only with both endpoints visible; a fetched edge whose
	// far endpoint was privacy-filtered is dropped here.
	for _, rel := range candidates {
		if _, ok := visible[rel.SourceID]; !ok {
			continue
		}
		if _, ok := visible[rel.TargetID]; !ok {
			continue
		}
		out.Edges = append(out.Edges, rel)
	}
	sort.Slice(out.Edges, func(i, j int) bool { return out.Edges[i].ID < out.Edges[j].ID })

	return out, nil
}
