// Package extraction wraps the language-model collaborators that classify
// documents and pull entities and relations out of text. PRIVATE payloads
// are routed to the locally-controlled model only.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/latticehq/lattice/internal/apperr"
	"github.com/latticehq/lattice/internal/core/common"
	"github.com/latticehq/lattice/internal/core/model"
	"github.com/latticehq/lattice/internal/llm"
)

type Extractor struct {
	router *llm.Router
}

func NewExtractor(router *llm.Router) *Extractor {
	return &Extractor{router: router}
}

const classifyPrompt = `Classify the following document into exactly one of these categories:
NOTE, ARTICLE, REPORT, CORRESPONDENCE, SEARCH_RESULT, OTHER

Answer with the category name only.

Document:
%s`

func (e *Extractor) Classify(ctx context.Context, text string, level model.PrivacyLevel) (model.DocumentType, error) {
	client, err := e.router.Pick(level)
	if err != nil {
		return model.DocOther, fmt.Errorf("extraction: %w: %v", apperr.ErrAdapterFailure, err)
	}
	response, err := client.Generate(ctx, fmt.Sprintf(classifyPrompt, clip(text, 4000)))
	if err != nil {
		return model.DocOther, fmt.Errorf("extraction: classify: %w: %v", apperr.ErrAdapterFailure, err)
	}
	return model.ParseDocumentType(strings.TrimSpace(response)), nil
}

const extractPrompt = `Extract the entities and relations stated in the document below.

Entity types: PERSON, COMPANY, LOCATION, PRODUCT, EVENT, TOPIC, OTHER
Relation types: WORKS_AT, HAS_HEADQUARTERS, LOCATED_IN, FOUNDED_BY, OWNS, PART_OF, KNOWS, PRODUCES, PARTNERS_WITH, RELATED_TO

Return a JSON object:
{
  "entities": [{"name": "...", "type": "...", "description": "..."}],
  "relations": [{"source": "...", "target": "...", "type": "...", "description": "..."}]
}

Relation source and target must be entity names from the entities list.
Document type: %s

Document:
%s`

func (e *Extractor) Extract(ctx context.Context, text string, docType model.DocumentType, level model.PrivacyLevel) (*model.ExtractionResult, error) {
	client, err := e.router.Pick(level)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w: %v", apperr.ErrAdapterFailure, err)
	}
	response, err := client.Generate(ctx, fmt.Sprintf(extractPrompt, docType, clip(text, 8000)))
	if err != nil {
		return nil, fmt.Errorf("extraction: extract: %w: %v", apperr.ErrAdapterFailure, err)
	}
	result, err := common.ParseJSON[model.ExtractionResult](response)
	if err != nil {
		return nil, fmt.Errorf("extraction: parse: %w: %v", apperr.ErrAdapterFailure, err)
	}
	return &result, nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
