package model

// EntityCandidate is an extraction-stage entity that has not yet been
// resolved against the store. Name matching is exact; Type and Description
// travel along so an unresolved candidate can be created as-is.
type EntityCandidate struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// RelationCandidate references its endpoints by entity name, the way the
// extraction service emits them.
type RelationCandidate struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ExtractionResult is the combined output of one extraction call.
type ExtractionResult struct {
	Entities  []EntityCandidate   `json:"entities"`
	Relations []RelationCandidate `json:"relations"`
}
