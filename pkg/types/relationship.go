package types

import (
	"regexp"
	"strings"
)

// RelationType names a relationship. The vocabulary below is advisory: other
// types are stored as well, but callers are expected to flag them.
type RelationType string

const (
	RelOperatesIn RelationType = "OPERATES_IN" // Organization -> Location
	RelHasRisk    RelationType = "HAS_RISK"    // Organization -> Risk
	RelImplements RelationType = "IMPLEMENTS"  // Organization -> Action
	RelMitigates  RelationType = "MITIGATES"   // Action -> Risk
	RelSupports   RelationType = "SUPPORTS"    // Evidence -> Action/Risk
	RelMentions   RelationType = "MENTIONS"    // entity -> Evidence
	RelLocatedIn  RelationType = "LOCATED_IN"  // Location -> Location
)

// KnownRelationTypes is the relationship vocabulary.
var KnownRelationTypes = []RelationType{
	RelOperatesIn, RelHasRisk, RelImplements, RelMitigates, RelSupports, RelMentions, RelLocatedIn,
}

// IsKnown reports whether t belongs to the vocabulary.
func (t RelationType) IsKnown() bool {
	for _, k := range KnownRelationTypes {
		if k == t {
			return true
		}
	}
	return false
}

var relationTypePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsValidIdentifier reports whether t can be used as a relationship type in a
// query without quoting surprises.
func (t RelationType) IsValidIdentifier() bool {
	return relationTypePattern.MatchString(string(t))
}

// NormalizeRelationType trims s, upper-cases it and turns spaces and hyphens
// into underscores, so "applied at" and "APPLIED_AT" name the same type.
func NormalizeRelationType(s string) RelationType {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return RelationType(s)
}

// Relationship is a directed, typed edge between two entity ids.
type Relationship struct {
	SourceID   string         `json:"source_id"`
	Type       RelationType   `json:"relationship_type"`
	TargetID   string         `json:"target_id"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Tuple returns the relationship as (source, type, target).
func (r Relationship) Tuple() (string, RelationType, string) {
	return r.SourceID, r.Type, r.TargetID
}
