package models

import "github.com/Ramsey-B/fern/pkg/fingerprint"

// Cardinality defines the relationship cardinality
type Cardinality string

const (
	CardinalityOneToOne   Cardinality = "one_to_one"
	CardinalityOneToMany  Cardinality = "one_to_many"
	CardinalityManyToOne  Cardinality = "many_to_one"
	CardinalityManyToMany Cardinality = "many_to_many"
)

// Cardinalities lists every allowed cardinality value
var Cardinalities = []Cardinality{
	CardinalityOneToOne,
	CardinalityOneToMany,
	CardinalityManyToOne,
	CardinalityManyToMany,
}

// IsValid reports whether c is one of the four allowed values
func (c Cardinality) IsValid() bool {
	switch c {
	case CardinalityOneToOne, CardinalityOneToMany, CardinalityManyToOne, CardinalityManyToMany:
		return true
	}
	return false
}

// Inverse returns the cardinality seen from the other end of the edge.
// one_to_one and many_to_many are symmetric.
func (c Cardinality) Inverse() Cardinality {
	switch c {
	case CardinalityOneToMany:
		return CardinalityManyToOne
	case CardinalityManyToOne:
		return CardinalityOneToMany
	default:
		return c
	}
}

// Relationship is a directed, typed edge between two entities.
// For one_to_many the source is the "1" side and the target the "*" side;
// many_to_one is the mirror.
type Relationship struct {
	// ID addresses this edge individually; parallel edges between the same
	// entity pair are allowed.
	ID          string      `json:"id" yaml:"id,omitempty" validate:"required"`
	Source      string      `json:"source" yaml:"source" validate:"required"`
	Target      string      `json:"target" yaml:"target" validate:"required"`
	Type        Cardinality `json:"type" yaml:"type" validate:"required,oneof=one_to_one one_to_many many_to_one many_to_many"`
	SourceField string      `json:"source_field,omitempty" yaml:"source_field,omitempty"`
	TargetField string      `json:"target_field,omitempty" yaml:"target_field,omitempty"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty"`
	// LabelDx and LabelDy offset the rendered label from the edge midpoint.
	LabelDx float64 `json:"label_dx,omitempty" yaml:"label_dx,omitempty"`
	LabelDy float64 `json:"label_dy,omitempty" yaml:"label_dy,omitempty"`
}

// Swap reverses the edge. Source/target, both fields and the
// one_to_many/many_to_one orientation change together, so applying Swap
// twice yields the original edge.
func (r Relationship) Swap() Relationship {
	r.Source, r.Target = r.Target, r.Source
	r.SourceField, r.TargetField = r.TargetField, r.SourceField
	r.Type = r.Type.Inverse()
	return r
}

// Touches reports whether the edge has entityID at either end
func (r Relationship) Touches(entityID string) bool {
	return r.Source == entityID || r.Target == entityID
}

// EquivalenceKey identifies edges connecting the same unordered entity pair
// through the same field pair. Edges with equal keys are duplicates;
// same pair with different fields is a distinct parallel edge.
func (r Relationship) EquivalenceKey() string {
	a := r.Source + "." + r.SourceField
	b := r.Target + "." + r.TargetField
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// ContentID derives a stable id from the edge's endpoints, fields and type.
// Used for edges that were stored without an id and for inferred proposals.
func (r Relationship) ContentID() string {
	fp := fingerprint.Generate(map[string]any{
		"source":       r.Source,
		"target":       r.Target,
		"source_field": r.SourceField,
		"target_field": r.TargetField,
		"type":         string(r.Type),
	})
	return "rel_" + fingerprint.Short(fp, 12)
}

// RelationshipOrigin records how a proposed relationship was discovered
type RelationshipOrigin string

const (
	OriginRelationshipsTest RelationshipOrigin = "relationships_test"
	OriginNaming            RelationshipOrigin = "naming"
)

// ProposedRelationship is an inferred edge awaiting acceptance
type ProposedRelationship struct {
	Relationship
	Origin RelationshipOrigin `json:"origin"`
	// TestID is the dbt test node the proposal came from (relationships_test only).
	TestID string `json:"test_id,omitempty"`
	// ParentModelID is the referenced (1-side) model.
	ParentModelID string `json:"parent_model_id"`
	// ChildModelID is the referencing (*-side) model carrying the FK column.
	ChildModelID string `json:"child_model_id"`
}
