package models

// Default layout values for entities missing from the canvas layout file
const (
	DefaultEntityWidth       = 280
	DefaultEntityPanelHeight = 320
)

// Entity is a conceptual node of the data model. It holds the semantic
// fields only; visual placement lives in EntityLayout.
type Entity struct {
	// ID is immutable once the entity is created.
	ID          string `json:"id" yaml:"id" validate:"required"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// DbtModel is the primary bound model (unique id or bare model name).
	DbtModel string `json:"dbt_model,omitempty" yaml:"dbt_model,omitempty"`
	// AdditionalModels binds entities spanning multiple physical models.
	AdditionalModels []string       `json:"additional_models,omitempty" yaml:"additional_models,omitempty"`
	DraftedFields    []DraftedField `json:"drafted_fields,omitempty" yaml:"drafted_fields,omitempty"`
	Tags             []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	// Sources are free-text upstream system labels, independent of dbt.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// IsBound reports whether the entity carries any model binding
func (e Entity) IsBound() bool {
	return e.DbtModel != "" || len(e.AdditionalModels) > 0
}

// Clone returns a deep copy of the entity
func (e Entity) Clone() Entity {
	e.AdditionalModels = cloneStrings(e.AdditionalModels)
	e.Tags = cloneStrings(e.Tags)
	e.Sources = cloneStrings(e.Sources)
	if e.DraftedFields != nil {
		fields := make([]DraftedField, len(e.DraftedFields))
		copy(fields, e.DraftedFields)
		e.DraftedFields = fields
	}
	return e
}

// DraftedField is a field sketched on an entity before any model binding exists
type DraftedField struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	DataType    string `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Position is a canvas coordinate
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// EntityLayout is the purely visual metadata of an entity
type EntityLayout struct {
	ID          string   `json:"id" yaml:"id"`
	Position    Position `json:"position" yaml:"position"`
	Width       float64  `json:"width" yaml:"width"`
	PanelHeight float64  `json:"panel_height" yaml:"panel_height"`
	Collapsed   bool     `json:"collapsed" yaml:"collapsed"`
}

// DefaultLayout returns the layout used for entities without a layout entry
func DefaultLayout(entityID string) EntityLayout {
	return EntityLayout{
		ID:          entityID,
		Width:       DefaultEntityWidth,
		PanelHeight: DefaultEntityPanelHeight,
	}
}

// EntityState pairs the semantic entity with its layout, as handed to and
// received from the canvas client. It is a transport shape only; the two
// halves are persisted to different files.
type EntityState struct {
	Entity
	Layout *EntityLayout `json:"layout,omitempty"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
