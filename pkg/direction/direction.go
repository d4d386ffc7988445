// Package direction orients a user-drawn field link into a one_to_many edge,
// putting the referenced (primary key) side at the source.
package direction

import (
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Reasons reported on a Resolution
const (
	ReasonSourceReferencesTarget = "source_references_target"
	ReasonTargetReferencesSource = "target_references_source"
	ReasonForeignKeyToPrimaryKey = "foreign_key_to_primary_key"
	ReasonUnbound                = "fallback_unbound"
	ReasonMissingColumns         = "fallback_missing_columns"
	ReasonAmbiguous              = "fallback_ambiguous"
)

// ColumnLookup exposes the bound-model metadata of entities
type ColumnLookup interface {
	BoundModels(entityID string) []string
	Column(entityID, field string) (modelID string, col *models.Column, ok bool)
}

// Resolve decides which end of a drag link is the 1-side. It never fails:
// without enough metadata the drag direction is kept as one_to_many.
func Resolve(link models.DragLink, lookup ColumnLookup) models.Resolution {
	keep := models.Resolution{
		Source:      link.SourceEntity,
		Target:      link.TargetEntity,
		SourceField: link.SourceField,
		TargetField: link.TargetField,
		Type:        models.CardinalityOneToMany,
	}
	flip := models.Resolution{
		Source:      link.TargetEntity,
		Target:      link.SourceEntity,
		SourceField: link.TargetField,
		TargetField: link.SourceField,
		Type:        models.CardinalityOneToMany,
		Flipped:     true,
	}

	if lookup == nil {
		return withReason(keep, ReasonUnbound)
	}
	sourceModels := lookup.BoundModels(link.SourceEntity)
	targetModels := lookup.BoundModels(link.TargetEntity)
	if len(sourceModels) == 0 || len(targetModels) == 0 {
		return withReason(keep, ReasonUnbound)
	}

	_, sourceCol, sourceOK := lookup.Column(link.SourceEntity, link.SourceField)
	_, targetCol, targetOK := lookup.Column(link.TargetEntity, link.TargetField)
	if !sourceOK || !targetOK {
		return withReason(keep, ReasonMissingColumns)
	}

	switch {
	case references(sourceCol, targetModels, link.TargetField):
		return withReason(flip, ReasonSourceReferencesTarget)
	case references(targetCol, sourceModels, link.SourceField):
		return withReason(keep, ReasonTargetReferencesSource)
	}

	sourceFK, sourcePK := sourceCol.IsForeignKey(), sourceCol.IsPrimaryKey()
	targetFK, targetPK := targetCol.IsForeignKey(), targetCol.IsPrimaryKey()
	switch {
	case sourceFK && !sourcePK && targetPK && !targetFK:
		return withReason(flip, ReasonForeignKeyToPrimaryKey)
	case targetFK && !targetPK && sourcePK && !sourceFK:
		return withReason(keep, ReasonForeignKeyToPrimaryKey)
	}
	return withReason(keep, ReasonAmbiguous)
}

// references reports whether col carries a relationships test pointing at
// field on one of modelIDs.
func references(col *models.Column, modelIDs []string, field string) bool {
	for _, ref := range col.References() {
		if ectolinq.Contains(modelIDs, ref.ToModelID) && strings.EqualFold(ref.ToField, field) {
			return true
		}
	}
	return false
}

func withReason(r models.Resolution, reason string) models.Resolution {
	r.Reason = reason
	return r
}
