package patterns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/store"
)

// seedCompanies sets up three companies where two already have headquarters.
func seedCompanies(t *testing.T) (*store.SQLite, map[string]int64) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	ids := make(map[string]int64)
	add := func(name string, typ model.EntityType) {
		e, err := s.CreateEntity(ctx, store.NewEntity{
			Name: name, Type: typ, Privacy: model.PrivacyPublic, Source: model.SourceUser,
		})
		require.NoError(t, err)
		ids[name] = e.ID
	}
	add("Acme Corp", model.EntityCompany)
	add("Initech", model.EntityCompany)
	add("Globex Corp", model.EntityCompany)
	add("Berlin", model.EntityLocation)
	add("Austin", model.EntityLocation)

	link := func(source, target string) {
		_, err := s.CreateRelation(ctx, store.NewRelation{
			SourceID: ids[source], TargetID: ids[target],
			Type: model.RelHasHeadquarters, Privacy: model.PrivacyPublic, Source: model.SourceUser,
		})
		require.NoError(t, err)
	}
	link("Acme Corp", "Berlin")
	link("Initech", "Austin")
	return s, ids
}

func TestCommonRelationPatternsThreshold(t *testing.T) {
	s, _ := seedCompanies(t)
	miner := NewMiner(s)
	ctx := context.Background()

	pats, err := miner.CommonRelationPatterns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pats, 1)
	assert.Equal(t, []model.RelationType{model.RelHasHeadquarters}, pats[model.EntityCompany])

	// At threshold 3 the two occurrences no longer qualify.
	pats, err = miner.CommonRelationPatterns(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, pats)
}

func TestCommonRelationPatternsSortedWithinType(t *testing.T) {
	s, ids := seedCompanies(t)
	ctx := context.Background()

	// Add a second qualifying pattern for COMPANY sources.
	for _, source := range []string{"Acme Corp", "Initech"} {
		_, err := s.CreateRelation(ctx, store.NewRelation{
			SourceID: ids[source], TargetID: ids["Berlin"],
			Type: model.RelPartnersWith, Privacy: model.PrivacyPublic, Source: model.SourceUser,
		})
		require.NoError(t, err)
	}

	pats, err := NewMiner(s).CommonRelationPatterns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pats[model.EntityCompany], 2)
	assert.Equal(t, model.RelHasHeadquarters, pats[model.EntityCompany][0])
	assert.Equal(t, model.RelPartnersWith, pats[model.EntityCompany][1])
}

func TestMissingRelationsFlagsGapsOnly(t *testing.T) {
	s, ids := seedCompanies(t)
	ctx := context.Background()

	pats, err := NewMiner(s).CommonRelationPatterns(ctx, 2)
	require.NoError(t, err)
	gaps, err := NewDetector(s).MissingRelations(ctx, pats)
	require.NoError(t, err)

	outgoingGaps := make(map[int64][]model.RelationType)
	for _, g := range gaps {
		// Locations are not covered by any pattern, so they never gap.
		assert.Equal(t, model.EntityCompany, g.Entity.Type)
		outgoingGaps[g.Entity.ID] = g.MissingOutgoing
	}

	// Only the company without a headquarters has an outgoing gap.
	assert.Equal(t, []model.RelationType{model.RelHasHeadquarters}, outgoingGaps[ids["Globex Corp"]])
	assert.Empty(t, outgoingGaps[ids["Acme Corp"]])
	assert.Empty(t, outgoingGaps[ids["Initech"]])

	// No company is a headquarters target, so all three carry incoming gaps.
	assert.Len(t, gaps, 3)
	for _, g := range gaps {
		assert.Equal(t, []model.RelationType{model.RelHasHeadquarters}, g.MissingIncoming)
	}
}

func TestMissingRelationsOrderedByEntityID(t *testing.T) {
	s, _ := seedCompanies(t)
	ctx := context.Background()

	pats, err := NewMiner(s).CommonRelationPatterns(ctx, 2)
	require.NoError(t, err)
	gaps, err := NewDetector(s).MissingRelations(ctx, pats)
	require.NoError(t, err)

	for i := 1; i < len(gaps); i++ {
		assert.Less(t, gaps[i-1].Entity.ID, gaps[i].Entity.ID)
	}
}

func TestMissingRelationsNoPatterns(t *testing.T) {
	s, _ := seedCompanies(t)

	gaps, err := NewDetector(s).MissingRelations(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, gaps)
}
