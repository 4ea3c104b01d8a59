// Package store owns persistence for documents, entities, and relations.
// Every operation is atomic per call; zero-row writes surface as
// apperr.ErrNotPersisted and absent ids as apperr.ErrNotFound.
package store

import (
	"context"

	"github.com/latticehq/lattice/internal/core/model"
)

type NewDocument struct {
	Path     string
	Text     string
	Type     model.DocumentType
	Privacy  model.PrivacyLevel
	Source   model.SourceType
	Metadata map[string]interface{}
}

type DocumentPatch struct {
	Text     *string
	Type     *model.DocumentType
	Metadata map[string]interface{}
}

type NewEntity struct {
	Name        string
	Type        model.EntityType
	Description string
	DocumentID  *int64
	Privacy     model.PrivacyLevel
	Source      model.SourceType
}

type EntityPatch struct {
	Name        *string
	Description *string
	Privacy     *model.PrivacyLevel
}

type NewRelation struct {
	SourceID    int64
	TargetID    int64
	Type        model.RelationType
	Description string
	DocumentID  *int64
	Privacy     model.PrivacyLevel
	Source      model.SourceType
	Properties  map[string]interface{}
}

type RelationPatch struct {
	Description *string
	Privacy     *model.PrivacyLevel
	Properties  map[string]interface{}
}

type Store interface {
	CreateDocument(ctx context.Context, in NewDocument) (*model.Document, error)
	UpdateDocument(ctx context.Context, id int64, patch DocumentPatch) (*model.Document, error)
	GetDocument(ctx context.Context, id int64) (*model.Document, error)
	AllDocuments(ctx context.Context) ([]model.Document, error)

	CreateEntity(ctx context.Context, in NewEntity) (*model.Entity, error)
	UpdateEntity(ctx context.Context, id int64, patch EntityPatch) (*model.Entity, error)
	GetEntity(ctx context.Context, id int64) (*model.Entity, error)
	AllEntities(ctx context.Context) ([]model.Entity, error)

	CreateRelation(ctx context.Context, in NewRelation) (*model.Relation, error)
	UpdateRelation(ctx context.Context, id int64, patch RelationPatch) (*model.Relation, error)
	FindRelation(ctx context.Context, sourceID, targetID int64, typ model.RelationType) (*model.Relation, error)
	AllRelations(ctx context.Context) ([]model.Relation, error)

	// FindEntitiesByName resolves candidates by exact name under the given
	// privacy level. Unresolved candidates come back in input order; a name
	// present in the resolved set never appears among them.
	FindEntitiesByName(ctx context.Context, candidates []model.EntityCandidate, level model.PrivacyLevel) ([]model.Entity, []model.EntityCandidate, error)

	// MergeEntities re-points every relation touching loserID to winnerID,
	// upgrades the winner to PRIVATE when either side is PRIVATE, and deletes
	// the loser. All-or-nothing.
	MergeEntities(ctx context.Context, winnerID, loserID int64) error

	// RelationsTouching returns relations whose source or target lies in ids.
	RelationsTouching(ctx context.Context, ids []int64) ([]model.Relation, error)
	// EntitiesByIDs returns the entities among ids visible at the given level.
	EntitiesByIDs(ctx context.Context, ids []int64, level model.PrivacyLevel) ([]model.Entity, error)

	Close() error
}
