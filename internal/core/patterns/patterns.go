// Package patterns infers structural norms from relation statistics and
// detects entities that fall short of them.
package patterns

import (
	"context"
	"fmt"
	"sort"

	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/store"
)

// DefaultThreshold is the minimum occurrence count for a
// (entity type, relation type) pair to count as a norm.
const DefaultThreshold = 2

type Miner struct {
	store store.Store
}

func NewMiner(s store.Store) *Miner {
	return &Miner{store: s}
}

// CommonRelationPatterns groups relations by (source entity type, relation
// type) and keeps pairs occurring at least threshold times. The result maps
// each entity type to the relation types it typically participates in as a
// source. This is norm inference, not a schema constraint.
func (m *Miner) CommonRelationPatterns(ctx context.Context, threshold int) (map[model.EntityType][]model.RelationType, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	entities, err := m.store.AllEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("patterns: load entities: %w", err)
	}
	relations, err := m.store.AllRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("patterns: load relations: %w", err)
	}

	typeByID := make(map[int64]model.EntityType, len(entities))
	for _, e := range entities {
		typeByID[e.ID] = e.Type
	}

	type key struct {
		et model.EntityType
		rt model.RelationType
	}
	counts := make(map[key]int)
	for _, r := range relations {
		et, ok := typeByID[r.SourceID]
		if !ok {
			continue
		}
		counts[key{et, r.Type}]++
	}

	out := make(map[model.EntityType][]model.RelationType)
	for k, n := range counts {
		if n >= threshold {
			out[k.et] = append(out[k.et], k.rt)
		}
	}
	for et := range out {
		sort.Slice(out[et], func(i, j int) bool { return out[et][i] < out[et][j] })
	}
	return out, nil
}

// Gap lists the relation types an entity is expected to have but lacks,
// split by direction.
type Gap struct {
	Entity          model.Entity         `json:"entity"`
	MissingOutgoing []model.RelationType `json:"missing_outgoing,omitempty"`
	MissingIncoming []model.RelationType `json:"missing_incoming,omitempty"`
}

type Detector struct {
	store store.Store
}

func NewDetector(s store.Store) *Detector {
	return &Detector{store: s}
}

// MissingRelations finds, for every pattern pair, the entities of that type
// that never appear as a source (missing outgoing) or as a target (missing
// incoming) of the relation type. Entities with no gap are excluded. The
// result is ordered by ascending entity id so iteration is deterministic.
func (d *Detector) MissingRelations(ctx context.Context, patterns map[model.EntityType][]model.RelationType) ([]Gap, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	entities, err := d.store.AllEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("patterns: load entities: %w", err)
	}
	relations, err := d.store.AllRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("patterns: load relations: %w", err)
	}

	type key struct {
		id int64
		rt model.RelationType
	}
	hasOut := make(map[key]bool)
	hasIn := make(map[key]bool)
	for _, r := range relations {
		hasOut[key{r.SourceID, r.Type}] = true
		hasIn[key{r.TargetID, r.Type}] = true
	}

	var gaps []Gap
	for _, e := range entities {
		expected, ok := patterns[e.Type]
		if !ok {
			continue
		}
		g := Gap{Entity: e}
		for _, rt := range expected {
			if !hasOut[key{e.ID, rt}] {
				g.MissingOutgoing = append(g.MissingOutgoing, rt)
			}
			if !hasIn[key{e.ID, rt}] {
				g.MissingIncoming = append(g.MissingIncoming, rt)
			}
		}
		if len(g.MissingOutgoing) > 0 || len(g.MissingIncoming) > 0 {
			gaps = append(gaps, g)
		}
	}
	// entities arrive ordered by id; keep that order explicit anyway
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Entity.ID < gaps[j].Entity.ID })
	return gaps, nil
}
