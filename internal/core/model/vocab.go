package model

import "strings"

// EntityType is the closed domain vocabulary for graph nodes. Free-text
// extraction output is normalized onto it via ParseEntityType.
type EntityType string

const (
	EntityPerson   EntityType = "PERSON"
	EntityCompany  EntityType = "COMPANY"
	EntityLocation EntityType = "LOCATION"
	EntityProduct  EntityType = "PRODUCT"
	EntityEvent    EntityType = "EVENT"
	EntityTopic    EntityType = "TOPIC"
	EntityOther    EntityType = "OTHER"
)

var entityTypes = map[EntityType]bool{
	EntityPerson:   true,
	EntityCompany:  true,
	EntityLocation: true,
	EntityProduct:  true,
	EntityEvent:    true,
	EntityTopic:    true,
	EntityOther:    true,
}

// RelationType is the closed vocabulary for directed edges.
type RelationType string

const (
	RelWorksAt         RelationType = "WORKS_AT"
	RelHasHeadquarters RelationType = "HAS_HEADQUARTERS"
	RelLocatedIn       RelationType = "LOCATED_IN"
	RelFoundedBy       RelationType = "FOUNDED_BY"
	RelOwns            RelationType = "OWNS"
	RelPartOf          RelationType = "PART_OF"
	RelKnows           RelationType = "KNOWS"
	RelProduces        RelationType = "PRODUCES"
	RelPartnersWith    RelationType = "PARTNERS_WITH"
	RelRelatedTo       RelationType = "RELATED_TO"
)

var relationTypes = map[RelationType]bool{
	RelWorksAt:         true,
	RelHasHeadquarters: true,
	RelLocatedIn:       true,
	RelFoundedBy:       true,
	RelOwns:            true,
	RelPartOf:          true,
	RelKnows:           true,
	RelProduces:        true,
	RelPartnersWith:    true,
	RelRelatedTo:       true,
}

// DocumentType is the classification output vocabulary.
type DocumentType string

const (
	DocNote           DocumentType = "NOTE"
	DocArticle        DocumentType = "ARTICLE"
	DocReport         DocumentType = "REPORT"
	DocCorrespondence DocumentType = "CORRESPONDENCE"
	DocSearchResult   DocumentType = "SEARCH_RESULT"
	DocOther          DocumentType = "OTHER"
)

var documentTypes = map[DocumentType]bool{
	DocNote:           true,
	DocArticle:        true,
	DocReport:         true,
	DocCorrespondence: true,
	DocSearchResult:   true,
	DocOther:          true,
}

func canon(s string) string {
	return strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, " ", "_")))
}

// ParseEntityType normalizes free text onto the closed entity vocabulary,
// falling back to OTHER.
func ParseEntityType(s string) EntityType {
	t := EntityType(canon(s))
	if entityTypes[t] {
		return t
	}
	return EntityOther
}

// ParseRelationType normalizes free text onto the closed relation vocabulary,
// falling back to RELATED_TO.
func ParseRelationType(s string) RelationType {
	t := RelationType(canon(s))
	if relationTypes[t] {
		return t
	}
	return RelRelatedTo
}

// ParseDocumentType normalizes a classifier answer, falling back to OTHER.
func ParseDocumentType(s string) DocumentType {
	t := DocumentType(canon(s))
	if documentTypes[t] {
		return t
	}
	return DocOther
}
