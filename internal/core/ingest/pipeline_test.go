package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/store"
)

// fakeExtraction returns canned classification and extraction results.
type fakeExtraction struct {
	docType model.DocumentType
	result  *model.ExtractionResult
	err     error
}

func (f *fakeExtraction) Classify(context.Context, string, model.PrivacyLevel) (model.DocumentType, error) {
	if f.err != nil {
		return model.DocOther, f.err
	}
	return f.docType, nil
}

func (f *fakeExtraction) Extract(context.Context, string, model.DocumentType, model.PrivacyLevel) (*model.ExtractionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newPipeline(t *testing.T, x ExtractionService) (*Pipeline, *store.SQLite) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, x, nil), s
}

func acmeExtraction() *fakeExtraction {
	return &fakeExtraction{
		docType: model.DocNote,
		result: &model.ExtractionResult{
			Entities: []model.EntityCandidate{
				{Name: "Acme Corp", Type: "COMPANY", Description: "widget maker"},
				{Name: "Berlin", Type: "LOCATION"},
			},
			Relations: []model.RelationCandidate{
				{Source: "Acme Corp", Target: "Berlin", Type: "HAS_HEADQUARTERS"},
			},
		},
	}
}

func TestIngestCreatesGraph(t *testing.T) {
	p, s := newPipeline(t, acmeExtraction())
	ctx := context.Background()

	doc, err := p.Ingest(ctx, "Acme Corp is headquartered in Berlin.", model.SourceUser, model.PrivacyPublic)
	require.NoError(t, err)
	assert.Equal(t, model.DocNote, doc.Type)
	assert.Equal(t, model.SourceUser, doc.Source)
	assert.EqualValues(t, 2, doc.Metadata["entities"])
	assert.EqualValues(t, 1, doc.Metadata["relations"])

	entities, err := s.AllEntities(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "Acme Corp", entities[0].Name)
	assert.Equal(t, model.EntityCompany, entities[0].Type)
	require.NotNil(t, entities[0].DocumentID)
	assert.Equal(t, doc.ID, *entities[0].DocumentID)

	relations, err := s.AllRelations(ctx)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, model.RelHasHeadquarters, relations[0].Type)
	assert.Equal(t, entities[0].ID, relations[0].SourceID)
	assert.Equal(t, entities[1].ID, relations[0].TargetID)
}

func TestIngestResolvesExistingEntities(t *testing.T) {
	p, s := newPipeline(t, acmeExtraction())
	ctx := context.Background()

	_, err := p.Ingest(ctx, "first mention", model.SourceUser, model.PrivacyPublic)
	require.NoError(t, err)
	_, err = p.Ingest(ctx, "second mention", model.SourceUser, model.PrivacyPublic)
	require.NoError(t, err)

	// No duplicate entities, and the relation upsert skipped the re-link.
	entities, err := s.AllEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 2)
	relations, err := s.AllRelations(ctx)
	require.NoError(t, err)
	assert.Len(t, relations, 1)
}

func TestIngestPrivateDoesNotResolveAgainstPrivateAtPublic(t *testing.T) {
	p, s := newPipeline(t, acmeExtraction())
	ctx := context.Background()

	_, err := p.Ingest(ctx, "private mention", model.SourceUser, model.PrivacyPrivate)
	require.NoError(t, err)
	_, err = p.Ingest(ctx, "public mention", model.SourceUser, model.PrivacyPublic)
	require.NoError(t, err)

	// A PUBLIC ingest cannot observe PRIVATE rows, so a parallel PUBLIC pair
	// is created; consolidation is the merge engine's job.
	entities, err := s.AllEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 4)

	visible, err := s.EntitiesByIDs(ctx, []int64{1, 2, 3, 4}, model.PrivacyPublic)
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}

func TestIngestSkipsDanglingRelation(t *testing.T) {
	x := acmeExtraction()
	x.result.Relations = append(x.result.Relations, model.RelationCandidate{
		Source: "Acme Corp", Target: "Nowhere", Type: "LOCATED_IN",
	})
	p, s := newPipeline(t, x)

	doc, err := p.Ingest(context.Background(), "text", model.SourceUser, model.PrivacyPublic)
	require.NoError(t, err)
	assert.EqualValues(t, 1, doc.Metadata["relations"])

	relations, err := s.AllRelations(context.Background())
	require.NoError(t, err)
	assert.Len(t, relations, 1)
}

func TestIngestExtractionFailure(t *testing.T) {
	boom := errors.New("model unavailable")
	p, _ := newPipeline(t, &fakeExtraction{err: boom})

	_, err := p.Ingest(context.Background(), "text", model.SourceUser, model.PrivacyPublic)
	assert.ErrorIs(t, err, boom)
}
