package models

// WarningKind classifies non-fatal reconciliation findings
type WarningKind string

const (
	WarningMissingCatalog       WarningKind = "missing_catalog"
	WarningStaleCatalog         WarningKind = "stale_catalog"
	WarningMissingArtifact      WarningKind = "missing_artifact"
	WarningMalformedArtifact    WarningKind = "malformed_artifact"
	WarningUnresolvedReference  WarningKind = "unresolved_reference"
	WarningStaleBinding         WarningKind = "stale_binding"
	WarningDuplicateBinding     WarningKind = "duplicate_binding"
	WarningDanglingRelationship WarningKind = "dangling_relationship"
)

// Warning is a recoverable problem surfaced alongside a result
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Message  string      `json:"message"`
	EntityID string      `json:"entity_id,omitempty"`
	ModelID  string      `json:"model_id,omitempty"`
	// Ref is the unresolved reference text, e.g. "ref('missing')".
	Ref string `json:"ref,omitempty"`
}

// FieldView is a field as rendered on an entity node: a bound-model column,
// or a drafted field when the entity has no binding.
type FieldView struct {
	Name         string   `json:"name"`
	DataType     string   `json:"data_type,omitempty"`
	Description  string   `json:"description,omitempty"`
	ModelID      string   `json:"model_id,omitempty"`
	IsPrimaryKey bool     `json:"is_primary_key"`
	IsForeignKey bool     `json:"is_foreign_key"`
	Tests        []string `json:"tests,omitempty"`
	Drafted      bool     `json:"drafted,omitempty"`
}

// EntityNode is the read-only composed view of an entity: semantic fields,
// layout and the columns of its bound models. It is never persisted.
type EntityNode struct {
	Entity
	Layout      EntityLayout `json:"layout"`
	BoundModels []string     `json:"bound_models"`
	Fields      []FieldView  `json:"fields"`
}

// Fingerprints are the content markers of the persisted files at load time
type Fingerprints struct {
	DataModel string `json:"data_model"`
	Layout    string `json:"layout"`
}

// Graph is the merged, request-scoped view handed to the canvas client
type Graph struct {
	Entities      []EntityNode      `json:"entities"`
	Relationships []Relationship    `json:"relationships"`
	SourceColors  map[string]string `json:"source_colors"`
	Warnings      []Warning         `json:"warnings"`
	// ProjectConfigured is false when no dbt manifest could be found.
	ProjectConfigured bool         `json:"project_configured"`
	Fingerprints      Fingerprints `json:"fingerprints"`
	// Bootstrapped is set when relationships were inferred because none were stored.
	Bootstrapped bool `json:"bootstrapped,omitempty"`
}

// EditOp names an atomic graph edit
type EditOp string

const (
	OpAddEntity          EditOp = "add_entity"
	OpUpdateEntity       EditOp = "update_entity"
	OpRemoveEntity       EditOp = "remove_entity"
	OpAddRelationship    EditOp = "add_relationship"
	OpUpdateRelationship EditOp = "update_relationship"
	OpRemoveRelationship EditOp = "remove_relationship"
	OpSwapRelationship   EditOp = "swap_relationship"
)

// EntityPatch updates an entity; nil fields are left untouched.
// An empty DbtModel clears the binding without touching tags or sources.
type EntityPatch struct {
	Label            *string         `json:"label,omitempty"`
	Description      *string         `json:"description,omitempty"`
	DbtModel         *string         `json:"dbt_model,omitempty"`
	AdditionalModels *[]string       `json:"additional_models,omitempty"`
	DraftedFields    *[]DraftedField `json:"drafted_fields,omitempty"`
	Tags             *[]string       `json:"tags,omitempty"`
	Sources          *[]string       `json:"sources,omitempty"`
	Layout           *EntityLayout   `json:"layout,omitempty"`
}

// RelationshipPatch updates a relationship; nil fields are left untouched.
// Setting Type is a manual cardinality override and is never re-inferred.
type RelationshipPatch struct {
	Type        *Cardinality `json:"type,omitempty" validate:"omitempty,oneof=one_to_one one_to_many many_to_one many_to_many"`
	SourceField *string      `json:"source_field,omitempty"`
	TargetField *string      `json:"target_field,omitempty"`
	Label       *string      `json:"label,omitempty"`
	LabelDx     *float64     `json:"label_dx,omitempty"`
	LabelDy     *float64     `json:"label_dy,omitempty"`
}

// Edit is one atomic operation of a GraphDelta
type Edit struct {
	Op EditOp `json:"op" validate:"required,oneof=add_entity update_entity remove_entity add_relationship update_relationship remove_relationship swap_relationship"`
	// ID addresses the entity or relationship for update/remove/swap.
	ID                string             `json:"id,omitempty"`
	Entity            *EntityState       `json:"entity,omitempty"`
	EntityPatch       *EntityPatch       `json:"entity_patch,omitempty"`
	Relationship      *Relationship      `json:"relationship,omitempty"`
	RelationshipPatch *RelationshipPatch `json:"relationship_patch,omitempty"`
}

// GraphDelta is an ordered list of edits applied all-or-nothing
type GraphDelta struct {
	Edits []Edit `json:"edits"`
}

// DragLink is a user-drawn field-to-field link on the canvas
type DragLink struct {
	SourceEntity string `json:"source_entity" validate:"required"`
	SourceField  string `json:"source_field"`
	TargetEntity string `json:"target_entity" validate:"required"`
	TargetField  string `json:"target_field"`
}

// Resolution is the oriented result of a drag link
type Resolution struct {
	Source      string      `json:"source"`
	Target      string      `json:"target"`
	SourceField string      `json:"source_field,omitempty"`
	TargetField string      `json:"target_field,omitempty"`
	Type        Cardinality `json:"type"`
	Flipped     bool        `json:"flipped"`
	Reason      string      `json:"reason"`
}

// Relationship converts the resolution into an edge with the given id
func (r Resolution) Relationship(id string) Relationship {
	return Relationship{
		ID:          id,
		Source:      r.Source,
		Target:      r.Target,
		SourceField: r.SourceField,
		TargetField: r.TargetField,
		Type:        r.Type,
	}
}
