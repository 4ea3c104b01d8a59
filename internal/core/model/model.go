package model

import "time"

// PrivacyLevel partitions the graph. PUBLIC rows are visible to everyone;
// PRIVATE rows are visible only to PRIVATE-level queries. Rows may be
// upgraded PUBLIC -> PRIVATE but never downgraded.
type PrivacyLevel string

const (
	PrivacyPublic  PrivacyLevel = "PUBLIC"
	PrivacyPrivate PrivacyLevel = "PRIVATE"
)

// Sees reports whether a query issued at level p may observe a row at level other.
func (p PrivacyLevel) Sees(other PrivacyLevel) bool {
	if p == PrivacyPrivate {
		return true
	}
	return other == PrivacyPublic
}

// Max returns the more restrictive of the two levels.
func (p PrivacyLevel) Max(other PrivacyLevel) PrivacyLevel {
	if p == PrivacyPrivate || other == PrivacyPrivate {
		return PrivacyPrivate
	}
	return PrivacyPublic
}

// SourceType records whether a row was supplied by a person or discovered
// autonomously during saturation.
type SourceType string

const (
	SourceUser   SourceType = "USER"
	SourceSearch SourceType = "SEARCH"
)

type Document struct {
	ID        int64                  `json:"id"`
	Path      string                 `json:"path"`
	Text      string                 `json:"text,omitempty"`
	Type      DocumentType           `json:"type"`
	Privacy   PrivacyLevel           `json:"privacy_level"`
	Source    SourceType             `json:"source_type"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type Entity struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Type        EntityType   `json:"type"`
	Description string       `json:"description,omitempty"`
	Privacy     PrivacyLevel `json:"privacy_level"`
	Source      SourceType   `json:"source_type"`
	DocumentID  *int64       `json:"document_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Relation struct {
	ID          int64                  `json:"id"`
	SourceID    int64                  `json:"source_id"`
	TargetID    int64                  `json:"target_id"`
	Type        RelationType           `json:"type"`
	Description string                 `json:"description,omitempty"`
	Privacy     PrivacyLevel           `json:"privacy_level"`
	Source      SourceType             `json:"source_type"`
	DocumentID  *int64                 `json:"document_id,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}
