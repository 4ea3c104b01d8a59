// Package ingest turns raw text into persisted documents, entities, and
// relations: classify, extract, resolve against the store, link.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/store"
)

// ExtractionService is the language-model collaborator contract the
// pipeline consumes.
type ExtractionService interface {
	Classify(ctx context.Context, text string, level model.PrivacyLevel) (model.DocumentType, error)
	Extract(ctx context.Context, text string, docType model.DocumentType, level model.PrivacyLevel) (*model.ExtractionResult, error)
}

type Pipeline struct {
	store     store.Store
	extractor ExtractionService
	log       *zap.Logger
}

func New(s store.Store, x ExtractionService, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{store: s, extractor: x, log: log}
}

// Ingest classifies and persists the text as a document, extracts entities
// and relations from it, resolves entity candidates by exact name at the
// given privacy level, creates whatever is unresolved, and links relations.
// Existing rows are never downgraded below their stored privacy level.
func (p *Pipeline) Ingest(ctx context.Context, text string, source model.SourceType, level model.PrivacyLevel) (*model.Document, error) {
	docType, err := p.extractor.Classify(ctx, text, level)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	doc, err := p.store.CreateDocument(ctx, store.NewDocument{
		Path:    fmt.Sprintf("%s/%s.txt", strings.ToLower(string(source)), uuid.NewString()),
		Text:    text,
		Type:    docType,
		Privacy: level,
		Source:  source,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	result, err := p.extractor.Extract(ctx, text, docType, level)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	resolved, unresolved, err := p.store.FindEntitiesByName(ctx, result.Entities, level)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	idByName := make(map[string]int64, len(result.Entities))
	for _, e := range resolved {
		idByName[e.Name] = e.ID
	}
	for _, c := range unresolved {
		created, err := p.store.CreateEntity(ctx, store.NewEntity{
			Name:        c.Name,
			Type:        model.ParseEntityType(c.Type),
			Description: c.Description,
			DocumentID:  &doc.ID,
			Privacy:     level,
			Source:      source,
		})
		if err != nil {
			return nil, fmt.Errorf("ingest: create entity %q: %w", c.Name, err)
		}
		idByName[created.Name] = created.ID
	}

	linked := 0
	for _, rc := range result.Relations {
		sourceID, okS := idByName[rc.Source]
		targetID, okT := idByName[rc.Target]
		if !okS || !okT {
			p.log.Debug("relation endpoint not extracted, skipping",
				zap.String("source", rc.Source),
				zap.String("target", rc.Target),
				zap.String("type", rc.Type))
			continue
		}
		relType := model.ParseRelationType(rc.Type)
		existing, err := p.store.FindRelation(ctx, sourceID, targetID, relType)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		if existing != nil {
			continue
		}
		if _, err := p.store.CreateRelation(ctx, store.NewRelation{
			SourceID:    sourceID,
			TargetID:    targetID,
			Type:        relType,
			Description: rc.Description,
			DocumentID:  &doc.ID,
			Privacy:     level,
			Source:      source,
		}); err != nil {
			return nil, fmt.Errorf("ingest: create relation: %w", err)
		}
		linked++
	}

	doc, err = p.store.UpdateDocument(ctx, doc.ID, store.DocumentPatch{
		Metadata: map[string]interface{}{
			"entities":  len(result.Entities),
			"relations": linked,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	p.log.Info("document ingested",
		zap.Int64("document_id", doc.ID),
		zap.String("type", string(docType)),
		zap.String("privacy", string(level)),
		zap.Int("entities", len(result.Entities)),
		zap.Int("relations", linked))
	return doc, nil
}
