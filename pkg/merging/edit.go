package merging

import (
	"fmt"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ApplyEdit applies every edit of delta to a copy of the snapshot's entities
// and relationships. The first failing edit aborts the whole delta and the
// snapshot is left untouched.
func ApplyEdit(snap *store.Snapshot, delta models.GraphDelta) ([]models.EntityState, []models.Relationship, error) {
	if len(delta.Edits) == 0 {
		return nil, nil, errors.Validation("delta contains no edits")
	}

	m := &mutation{
		entities:      cloneEntities(snap.Entities),
		relationships: append([]models.Relationship{}, snap.Relationships...),
	}
	for i, edit := range delta.Edits {
		if err := m.apply(edit); err != nil {
			return nil, nil, err.WithMeta("edit_index", i).WithMeta("op", string(edit.Op))
		}
	}
	return m.entities, m.relationships, nil
}

type mutation struct {
	entities      []models.EntityState
	relationships []models.Relationship
}

func (m *mutation) apply(edit models.Edit) *errors.Error {
	if err := validate.StructPartial(edit, "Op"); err != nil {
		return errors.Validation("unknown edit op %q", edit.Op)
	}

	switch edit.Op {
	case models.OpAddEntity:
		return m.addEntity(edit.Entity)
	case models.OpUpdateEntity:
		return m.updateEntity(edit.ID, edit.EntityPatch)
	case models.OpRemoveEntity:
		return m.removeEntity(edit.ID)
	case models.OpAddRelationship:
		return m.addRelationship(edit.Relationship)
	case models.OpUpdateRelationship:
		return m.updateRelationship(edit.ID, edit.RelationshipPatch)
	case models.OpRemoveRelationship:
		return m.removeRelationship(edit.ID)
	case models.OpSwapRelationship:
		i, err := m.relationshipIndex(edit.ID)
		if err != nil {
			return err
		}
		m.relationships[i] = m.relationships[i].Swap()
		return nil
	}
	return errors.Validation("unknown edit op %q", edit.Op)
}

func (m *mutation) addEntity(state *models.EntityState) *errors.Error {
	if state == nil {
		return errors.Validation("add_entity requires an entity")
	}
	e := models.EntityState{Entity: state.Entity.Clone()}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if err := validate.Struct(e.Entity); err != nil {
		return errors.Validation("invalid entity: %s", err.Error())
	}
	if _, err := m.entityIndex(e.ID); err == nil {
		return errors.Validation("entity %s already exists", e.ID).WithMeta("entity_id", e.ID)
	}

	layout := models.DefaultLayout(e.ID)
	if state.Layout != nil {
		layout = *state.Layout
		layout.ID = e.ID
	}
	e.Layout = &layout
	m.entities = append(m.entities, e)
	return nil
}

func (m *mutation) updateEntity(id string, patch *models.EntityPatch) *errors.Error {
	if patch == nil {
		return errors.Validation("update_entity requires an entity_patch")
	}
	i, err := m.entityIndex(id)
	if err != nil {
		return err
	}

	e := &m.entities[i]
	if patch.Label != nil {
		e.Label = *patch.Label
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	// clearing the binding leaves tags and sources alone
	if patch.DbtModel != nil {
		e.DbtModel = *patch.DbtModel
	}
	if patch.AdditionalModels != nil {
		e.AdditionalModels = append([]string(nil), (*patch.AdditionalModels)...)
	}
	if patch.DraftedFields != nil {
		e.DraftedFields = append([]models.DraftedField(nil), (*patch.DraftedFields)...)
	}
	if patch.Tags != nil {
		e.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.Sources != nil {
		e.Sources = append([]string(nil), (*patch.Sources)...)
	}
	if patch.Layout != nil {
		layout := *patch.Layout
		layout.ID = e.ID
		e.Layout = &layout
	}
	return nil
}

// removeEntity drops the entity and every edge touching it
func (m *mutation) removeEntity(id string) *errors.Error {
	i, err := m.entityIndex(id)
	if err != nil {
		return err
	}
	m.entities = append(m.entities[:i], m.entities[i+1:]...)
	m.relationships = ectolinq.Filter(m.relationships, func(rel models.Relationship) bool {
		return !rel.Touches(id)
	})
	return nil
}

func (m *mutation) addRelationship(rel *models.Relationship) *errors.Error {
	if rel == nil {
		return errors.Validation("add_relationship requires a relationship")
	}
	r := *rel
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if err := m.checkRelationship(r); err != nil {
		return err
	}
	if _, err := m.relationshipIndex(r.ID); err == nil {
		return errors.Validation("relationship %s already exists", r.ID).WithMeta("relationship_id", r.ID)
	}
	m.relationships = append(m.relationships, r)
	return nil
}

// updateRelationship applies a patch. A Type in the patch is a manual
// cardinality override.
func (m *mutation) updateRelationship(id string, patch *models.RelationshipPatch) *errors.Error {
	if patch == nil {
		return errors.Validation("update_relationship requires a relationship_patch")
	}
	if err := validate.Struct(patch); err != nil {
		return errors.Validation("invalid relationship type %q", derefType(patch.Type))
	}
	i, err := m.relationshipIndex(id)
	if err != nil {
		return err
	}

	r := m.relationships[i]
	if patch.Type != nil {
		r.Type = *patch.Type
	}
	if patch.SourceField != nil {
		r.SourceField = *patch.SourceField
	}
	if patch.TargetField != nil {
		r.TargetField = *patch.TargetField
	}
	if patch.Label != nil {
		r.Label = *patch.Label
	}
	if patch.LabelDx != nil {
		r.LabelDx = *patch.LabelDx
	}
	if patch.LabelDy != nil {
		r.LabelDy = *patch.LabelDy
	}
	m.relationships[i] = r
	return nil
}

func (m *mutation) removeRelationship(id string) *errors.Error {
	i, err := m.relationshipIndex(id)
	if err != nil {
		return err
	}
	m.relationships = append(m.relationships[:i], m.relationships[i+1:]...)
	return nil
}

// checkRelationship validates the cardinality and that both endpoints exist
func (m *mutation) checkRelationship(r models.Relationship) *errors.Error {
	if !r.Type.IsValid() {
		return errors.Validation("invalid relationship type %q", r.Type).WithMeta("relationship_id", r.ID)
	}
	if err := validate.Struct(r); err != nil {
		return errors.Validation("invalid relationship: %s", err.Error()).WithMeta("relationship_id", r.ID)
	}
	for _, end := range []string{r.Source, r.Target} {
		if _, err := m.entityIndex(end); err != nil {
			return errors.Validation("relationship %s references unknown entity %s", r.ID, end).
				WithMeta("relationship_id", r.ID).
				WithMeta("entity_id", end)
		}
	}
	return nil
}

func (m *mutation) entityIndex(id string) (int, *errors.Error) {
	for i := range m.entities {
		if m.entities[i].ID == id {
			return i, nil
		}
	}
	return -1, errors.Validation("entity %s does not exist", id).WithMeta("entity_id", id)
}

func (m *mutation) relationshipIndex(id string) (int, *errors.Error) {
	for i := range m.relationships {
		if m.relationships[i].ID == id {
			return i, nil
		}
	}
	return -1, errors.Validation("relationship %s does not exist", id).WithMeta("relationship_id", id)
}

// ValidateGraph checks a complete entity/relationship set, as sent by a
// full save: unique ids, valid cardinalities and existing endpoints.
func ValidateGraph(entities []models.EntityState, relationships []models.Relationship) error {
	m := &mutation{entities: entities}
	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			return errors.Validation("entity id is required")
		}
		if seen[e.ID] {
			return errors.Validation("duplicate entity id %s", e.ID).WithMeta("entity_id", e.ID)
		}
		seen[e.ID] = true
	}

	relIDs := make(map[string]bool, len(relationships))
	for _, r := range relationships {
		check := r
		if check.ID == "" {
			// ids are assigned on write
			check.ID = check.ContentID()
		} else if relIDs[r.ID] {
			return errors.Validation("duplicate relationship id %s", r.ID).WithMeta("relationship_id", r.ID)
		}
		relIDs[check.ID] = true
		if err := m.checkRelationship(check); err != nil {
			return err
		}
	}
	return nil
}

func cloneEntities(in []models.EntityState) []models.EntityState {
	out := make([]models.EntityState, len(in))
	for i, e := range in {
		out[i] = models.EntityState{Entity: e.Entity.Clone()}
		if e.Layout != nil {
			layout := *e.Layout
			out[i].Layout = &layout
		}
	}
	return out
}

func derefType(t *models.Cardinality) string {
	if t == nil {
		return ""
	}
	return fmt.Sprint(*t)
}
