package saturation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/core/ingest"
	"github.com/latticehq/lattice/internal/core/merge"
	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/core/patterns"
	"github.com/latticehq/lattice/internal/core/simindex"
	"github.com/latticehq/lattice/internal/search"
	"github.com/latticehq/lattice/internal/store"
)

// fakeAdapter answers each distinct query at most once from a canned table.
type fakeAdapter struct {
	answers map[string]*search.Result
	served  map[string]bool
	err     error
	calls   int
}

func (f *fakeAdapter) Search(_ context.Context, query string) (*search.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for key, res := range f.answers {
		if strings.Contains(query, key) && !f.served[key] {
			if f.served == nil {
				f.served = map[string]bool{}
			}
			f.served[key] = true
			return res, nil
		}
	}
	return nil, nil
}

// fakeExtraction recognizes the one enrichment payload the adapter can
// produce and extracts nothing from anything else.
type fakeExtraction struct{}

func (fakeExtraction) Classify(context.Context, string, model.PrivacyLevel) (model.DocumentType, error) {
	return model.DocSearchResult, nil
}

func (fakeExtraction) Extract(_ context.Context, text string, _ model.DocumentType, _ model.PrivacyLevel) (*model.ExtractionResult, error) {
	if !strings.Contains(text, "Globex") {
		return &model.ExtractionResult{}, nil
	}
	return &model.ExtractionResult{
		Entities: []model.EntityCandidate{
			{Name: "Globex Corp", Type: "COMPANY"},
			{Name: "Paris", Type: "LOCATION"},
		},
		Relations: []model.RelationCandidate{
			{Source: "Globex Corp", Target: "Paris", Type: "HAS_HEADQUARTERS"},
		},
	}, nil
}

type countingMerger struct {
	runs int
}

func (m *countingMerger) Run(context.Context) (*merge.Result, error) {
	m.runs++
	return &merge.Result{Pairs: []merge.Pair{}}, nil
}

// seedCompanies creates three companies of which two already have
// headquarters, the canonical gap scenario.
func seedCompanies(t *testing.T) *store.SQLite {
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
	return s
}

func newLoop(s *store.SQLite, adapter search.Adapter, opts Options) *Loop {
	merger := merge.New(s, func() simindex.Index { return simindex.NewLexical() }, merge.DefaultThreshold, nil)
	pipeline := ingest.New(s, fakeExtraction{}, nil)
	return New(patterns.NewMiner(s), patterns.NewDetector(s), merger, adapter, pipeline, opts, nil)
}

func TestSaturateFillsDetectedGap(t *testing.T) {
	s := seedCompanies(t)
	adapter := &fakeAdapter{
		answers: map[string]*search.Result{
			"Globex Corp": {Found: true, Title: "Globex Corp", Content: "Globex Corp has its headquarters in Paris."},
		},
		served: map[string]bool{},
	}
	loop := newLoop(s, adapter, Options{PatternThreshold: 2, EarlyExit: true})
	ctx := context.Background()

	result, err := loop.Saturate(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SaturatedCount)
	assert.Equal(t, 2, result.Iterations)

	// Paris was created and linked as Globex Corp's headquarters.
	entities, err := s.AllEntities(ctx)
	require.NoError(t, err)
	var paris, globex *model.Entity
	for i := range entities {
		switch entities[i].Name {
		case "Paris":
			paris = &entities[i]
		case "Globex Corp":
			globex = &entities[i]
		}
	}
	require.NotNil(t, paris)
	require.NotNil(t, globex)
	assert.Equal(t, model.EntityLocation, paris.Type)

	rel, err := s.FindRelation(ctx, globex.ID, paris.ID, model.RelHasHeadquarters)
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, model.SourceSearch, rel.Source)
}

func TestSaturateEarlyExitOnFixpoint(t *testing.T) {
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	adapter := &fakeAdapter{}
	merger := &countingMerger{}
	loop := New(patterns.NewMiner(s), patterns.NewDetector(s), merger,
		adapter, ingest.New(s, fakeExtraction{}, nil),
		Options{PatternThreshold: 2, EarlyExit: true}, nil)

	result, err := loop.Saturate(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 0, result.SaturatedCount)
	assert.Equal(t, 0, adapter.calls)
	assert.Equal(t, 0, merger.runs)
}

func TestSaturateWithoutEarlyExitRunsFullBudget(t *testing.T) {
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	merger := &countingMerger{}
	loop := New(patterns.NewMiner(s), patterns.NewDetector(s), merger,
		&fakeAdapter{}, ingest.New(s, fakeExtraction{}, nil),
		Options{PatternThreshold: 2, EarlyExit: false}, nil)

	result, err := loop.Saturate(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, 3, merger.runs)
}

func TestSaturateAdapterFailureIsPerEntity(t *testing.T) {
	s := seedCompanies(t)
	adapter := &fakeAdapter{err: errors.New("provider down")}
	loop := newLoop(s, adapter, Options{PatternThreshold: 2, EarlyExit: true})

	result, err := loop.Saturate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 0, result.SaturatedCount)
	// All three companies carry gaps and every lookup failed.
	assert.Equal(t, 3, result.Failed)
}

func TestSaturateSkipsUnqueryableEntity(t *testing.T) {
	s := seedCompanies(t)
	_, err := s.CreateEntity(context.Background(), store.NewEntity{
		Name: "  ", Type: model.EntityCompany,
		Privacy: model.PrivacyPublic, Source: model.SourceUser,
	})
	require.NoError(t, err)

	loop := newLoop(s, &fakeAdapter{}, Options{PatternThreshold: 2, EarlyExit: true})

	result, err := loop.Saturate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 3, result.NoResult)
}

func TestSaturateHonorsCancellation(t *testing.T) {
	s := seedCompanies(t)
	loop := newLoop(s, &fakeAdapter{}, Options{PatternThreshold: 2, EarlyExit: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := loop.Saturate(ctx, 3)
	assert.Error(t, err)
}
