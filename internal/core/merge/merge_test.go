package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/core/simindex"
	"github.com/latticehq/lattice/internal/store"
)

func newEngine(t *testing.T) (*Engine, *store.SQLite) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	engine := New(s, func() simindex.Index { return simindex.NewLexical() }, DefaultThreshold, nil)
	return engine, s
}

func addEntity(t *testing.T, s *store.SQLite, name string, typ model.EntityType) *model.Entity {
	t.Helper()
	e, err := s.CreateEntity(context.Background(), store.NewEntity{
		Name: name, Type: typ, Privacy: model.PrivacyPublic, Source: model.SourceUser,
	})
	require.NoError(t, err)
	return e
}

func TestRunEmptyStore(t *testing.T) {
	engine, _ := newEngine(t)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Merged)
	assert.Empty(t, result.Pairs)
}

func TestRunMergesDuplicatesIntoLowestID(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	first := addEntity(t, s, "Acme Corp", model.EntityCompany)
	second := addEntity(t, s, "Acme Corp", model.EntityCompany)
	addEntity(t, s, "Berlin", model.EntityLocation)

	result, err := engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Merged)
	assert.Equal(t, Pair{WinnerID: first.ID, LoserID: second.ID}, result.Pairs[0])

	entities, err := s.AllEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 2)
	_, err = s.GetEntity(ctx, second.ID)
	assert.Error(t, err)
}

func TestRunPreservesRelationUnion(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	keep := addEntity(t, s, "Acme Corp", model.EntityCompany)
	dup := addEntity(t, s, "Acme Corp", model.EntityCompany)
	berlin := addEntity(t, s, "Berlin", model.EntityLocation)

	_, err := s.CreateRelation(ctx, store.NewRelation{
		SourceID: keep.ID, TargetID: berlin.ID,
		Type: model.RelHasHeadquarters, Privacy: model.PrivacyPublic, Source: model.SourceUser,
	})
	require.NoError(t, err)
	_, err = s.CreateRelation(ctx, store.NewRelation{
		SourceID: berlin.ID, TargetID: dup.ID,
		Type: model.RelRelatedTo, Privacy: model.PrivacyPublic, Source: model.SourceUser,
	})
	require.NoError(t, err)

	_, err = engine.Run(ctx)
	require.NoError(t, err)

	relations, err := s.AllRelations(ctx)
	require.NoError(t, err)
	require.Len(t, relations, 2)
	for _, r := range relations {
		assert.NotEqual(t, dup.ID, r.SourceID)
		assert.NotEqual(t, dup.ID, r.TargetID)
	}
}

func TestRunNoChainedMergesWithinOnePass(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "Acme Corp", model.EntityCompany)
	b := addEntity(t, s, "Acme Corp", model.EntityCompany)
	c := addEntity(t, s, "Acme Corp", model.EntityCompany)

	result, err := engine.Run(ctx)
	require.NoError(t, err)
	// One pass pairs a with b; c is left for the next invocation.
	require.Equal(t, 1, result.Merged)
	assert.Equal(t, Pair{WinnerID: a.ID, LoserID: b.ID}, result.Pairs[0])

	entities, err := s.AllEntities(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, c.ID, entities[1].ID)

	// The second pass consolidates the remainder.
	result, err = engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Merged)
	entities, err = s.AllEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestRunDistinctNamesUntouched(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	addEntity(t, s, "Acme Corp", model.EntityCompany)
	addEntity(t, s, "Globex Corporation", model.EntityCompany)
	addEntity(t, s, "Berlin", model.EntityLocation)

	result, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Merged)

	entities, err := s.AllEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 3)
}

func TestRunUpgradesPrivacyFromLoser(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	winner := addEntity(t, s, "Alice Smith", model.EntityPerson)
	_, err := s.CreateEntity(ctx, store.NewEntity{
		Name: "Alice Smith", Type: model.EntityPerson,
		Privacy: model.PrivacyPrivate, Source: model.SourceUser,
	})
	require.NoError(t, err)

	_, err = engine.Run(ctx)
	require.NoError(t, err)

	got, err := s.GetEntity(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PrivacyPrivate, got.Privacy)
}
