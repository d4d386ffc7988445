// Package merging composes the canvas graph from artifacts and the stored
// data model, and applies edits back onto the stored model.
package merging

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/store"
)

// BuildGraph joins entities with their layout and bound-model fields. A nil
// index means no dbt project is configured; entities then show drafted
// fields only. Warnings from the artifacts, the bindings and dangling edges
// are collected, never raised.
func BuildGraph(index *models.ModelIndex, snap *store.Snapshot, resolver *identity.Resolver) *models.Graph {
	g := &models.Graph{
		Entities:          make([]models.EntityNode, 0, len(snap.Entities)),
		Relationships:     append([]models.Relationship{}, snap.Relationships...),
		SourceColors:      snap.SourceColors,
		Warnings:          []models.Warning{},
		ProjectConfigured: index != nil,
		Fingerprints:      snap.Fingerprints,
	}
	if g.SourceColors == nil {
		g.SourceColors = map[string]string{}
	}
	if index != nil {
		g.Warnings = append(g.Warnings, index.Warnings...)
	}
	g.Warnings = append(g.Warnings, resolver.Warnings()...)

	known := make(map[string]bool, len(snap.Entities))
	for _, e := range snap.Entities {
		known[e.ID] = true

		layout := models.DefaultLayout(e.ID)
		if e.Layout != nil {
			layout = *e.Layout
		}
		g.Entities = append(g.Entities, models.EntityNode{
			Entity:      e.Entity,
			Layout:      layout,
			BoundModels: resolver.ResolveBoundModels(e.Entity),
			Fields:      resolver.Fields(e.Entity),
		})
	}

	for _, rel := range g.Relationships {
		for _, end := range []string{rel.Source, rel.Target} {
			if known[end] {
				continue
			}
			g.Warnings = append(g.Warnings, models.Warning{
				Kind:     models.WarningDanglingRelationship,
				EntityID: end,
				Message:  fmt.Sprintf("relationship %s references entity %s, which does not exist", rel.ID, end),
			})
		}
	}
	return g
}
