// Package identity maps entities to the dbt models they are bound to.
package identity

import (
	"fmt"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Resolver answers binding questions for one model index and entity list.
// It is built per request and never mutated afterwards.
type Resolver struct {
	index    *models.ModelIndex
	entities []models.Entity
	byID     map[string]int
	// bound holds the resolved model ids per entity id.
	bound map[string][]string
	// owner maps a model id to the first entity bound to it.
	owner    map[string]string
	warnings []models.Warning
}

// New resolves every entity binding against index. A nil index (no dbt
// project) leaves every entity unbound without warnings.
func New(index *models.ModelIndex, entities []models.Entity) *Resolver {
	r := &Resolver{
		index:    index,
		entities: entities,
		byID:     make(map[string]int, len(entities)),
		bound:    make(map[string][]string, len(entities)),
		owner:    make(map[string]string),
	}

	for i, e := range entities {
		r.byID[e.ID] = i

		ids, stale := r.resolve(e)
		r.bound[e.ID] = ids
		if index != nil {
			for _, binding := range stale {
				r.warnings = append(r.warnings, models.Warning{
					Kind:     models.WarningStaleBinding,
					EntityID: e.ID,
					ModelID:  binding,
					Message:  fmt.Sprintf("entity %s is bound to %s, which is not in the manifest", e.ID, binding),
				})
			}
		}

		for _, id := range ids {
			if first, taken := r.owner[id]; taken {
				if first != e.ID {
					r.warnings = append(r.warnings, models.Warning{
						Kind:     models.WarningDuplicateBinding,
						EntityID: e.ID,
						ModelID:  id,
						Message:  fmt.Sprintf("model %s is already bound to entity %s; %s is ignored for it", id, first, e.ID),
					})
				}
				continue
			}
			r.owner[id] = e.ID
		}
	}
	return r
}

// resolve returns the bound model ids present in the index (deduplicated,
// primary first) and the bindings that did not resolve.
func (r *Resolver) resolve(e models.Entity) (ids []string, stale []string) {
	bindings := make([]string, 0, 1+len(e.AdditionalModels))
	if e.DbtModel != "" {
		bindings = append(bindings, e.DbtModel)
	}
	bindings = append(bindings, e.AdditionalModels...)

	ids = []string{}
	for _, binding := range bindings {
		model := r.index.Resolve(binding)
		if model == nil {
			stale = append(stale, binding)
			continue
		}
		if !ectolinq.Contains(ids, model.UniqueID) {
			ids = append(ids, model.UniqueID)
		}
	}
	return ids, stale
}

// ResolveBoundModels returns the model ids an entity is bound to that exist
// in the index, primary binding first. Stale bindings are dropped.
func (r *Resolver) ResolveBoundModels(e models.Entity) []string {
	if ids, ok := r.bound[e.ID]; ok {
		if i, known := r.byID[e.ID]; known && sameBinding(r.entities[i], e) {
			return append([]string(nil), ids...)
		}
	}
	ids, _ := r.resolve(e)
	return ids
}

// BoundModels returns the resolved models for a known entity id
func (r *Resolver) BoundModels(entityID string) []string {
	return append([]string(nil), r.bound[entityID]...)
}

// IsBound reports whether the entity resolves to at least one model
func (r *Resolver) IsBound(entityID string) bool {
	return len(r.bound[entityID]) > 0
}

// FindEntityForModel returns the first entity (in entity-list order) bound
// to the model.
func (r *Resolver) FindEntityForModel(modelID string) (string, bool) {
	id, ok := r.owner[modelID]
	return id, ok
}

// Entity returns the entity with the given id
func (r *Resolver) Entity(entityID string) (models.Entity, bool) {
	i, ok := r.byID[entityID]
	if !ok {
		return models.Entity{}, false
	}
	return r.entities[i], true
}

// Index exposes the model index the resolver was built from
func (r *Resolver) Index() *models.ModelIndex {
	return r.index
}

// Warnings returns stale and duplicate binding warnings in entity order
func (r *Resolver) Warnings() []models.Warning {
	return append([]models.Warning(nil), r.warnings...)
}

// Column finds a field on the entity's bound models, primary model first
func (r *Resolver) Column(entityID, field string) (string, *models.Column, bool) {
	if field == "" {
		return "", nil, false
	}
	for _, id := range r.bound[entityID] {
		if col := r.index.Get(id).Column(field); col != nil {
			return id, col, true
		}
	}
	return "", nil, false
}

// Fields lists the fields rendered for an entity: the columns of its bound
// models, or its drafted fields when no binding resolves.
func (r *Resolver) Fields(e models.Entity) []models.FieldView {
	ids := r.ResolveBoundModels(e)
	if len(ids) == 0 {
		return ectolinq.Map(e.DraftedFields, func(f models.DraftedField) models.FieldView {
			return models.FieldView{
				Name:        f.Name,
				DataType:    f.DataType,
				Description: f.Description,
				Drafted:     true,
			}
		})
	}

	fields := []models.FieldView{}
	for _, id := range ids {
		model := r.index.Get(id)
		for i := range model.Columns {
			col := &model.Columns[i]
			fields = append(fields, models.FieldView{
				Name:         col.Name,
				DataType:     col.DataType,
				Description:  col.Description,
				ModelID:      id,
				IsPrimaryKey: col.IsPrimaryKey(),
				IsForeignKey: col.IsForeignKey(),
				Tests: ectolinq.Map(col.Tests, func(t models.TestDeclaration) string {
					return t.Name
				}),
			})
		}
	}
	return fields
}

func sameBinding(a, b models.Entity) bool {
	if a.DbtModel != b.DbtModel || len(a.AdditionalModels) != len(b.AdditionalModels) {
		return false
	}
	for i := range a.AdditionalModels {
		if a.AdditionalModels[i] != b.AdditionalModels[i] {
			return false
		}
	}
	return true
}
