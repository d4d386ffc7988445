// Package inference proposes relationship edges from dbt metadata.
package inference

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/jinzhu/inflection"
)

// Options toggles optional inference sources
type Options struct {
	// NamingHeuristics proposes edges for <stem>_id columns without a
	// relationships test.
	NamingHeuristics bool
}

// SkipReason explains why a candidate edge was not proposed
type SkipReason string

const (
	SkipUnbound    SkipReason = "unbound"
	SkipUnresolved SkipReason = "unresolved_reference"
	SkipDuplicate  SkipReason = "duplicate"
)

// Skip is a candidate that did not become a proposal
type Skip struct {
	Reason  SkipReason `json:"reason"`
	ModelID string     `json:"model_id"`
	Column  string     `json:"column"`
	TestID  string     `json:"test_id,omitempty"`
	Message string     `json:"message"`
}

// Result is the output of one inference run
type Result struct {
	Proposals []models.ProposedRelationship `json:"proposals"`
	Skipped   []Skip                        `json:"skipped"`
}

// Count returns the number of proposals with the given origin
func (r Result) Count(origin models.RelationshipOrigin) int {
	return ectolinq.Count(r.Proposals, func(p models.ProposedRelationship) bool {
		return p.Origin == origin
	})
}

// EntityFinder maps a model to the entity bound to it
type EntityFinder interface {
	FindEntityForModel(modelID string) (string, bool)
}

// InferFromArtifacts proposes one_to_many edges from the referenced (1-side)
// entity to the referencing (*-side) entity. Candidates equivalent to an
// existing edge or an earlier proposal are skipped. Output follows manifest
// model order, then column order.
func InferFromArtifacts(index *models.ModelIndex, finder EntityFinder, existing []models.Relationship, opts Options) Result {
	res := Result{
		Proposals: []models.ProposedRelationship{},
		Skipped:   []Skip{},
	}
	if index == nil {
		return res
	}

	seen := make(map[string]bool, len(existing))
	for _, rel := range existing {
		seen[rel.EquivalenceKey()] = true
	}

	propose := func(p models.ProposedRelationship, column string) {
		key := p.EquivalenceKey()
		if seen[key] {
			res.Skipped = append(res.Skipped, Skip{
				Reason:  SkipDuplicate,
				ModelID: p.ChildModelID,
				Column:  column,
				TestID:  p.TestID,
				Message: fmt.Sprintf("%s.%s -> %s.%s already exists", p.Target, p.TargetField, p.Source, p.SourceField),
			})
			return
		}
		seen[key] = true
		p.ID = p.ContentID()
		res.Proposals = append(res.Proposals, p)
	}

	for _, modelID := range index.IDs() {
		model := index.Get(modelID)
		for i := range model.Columns {
			col := &model.Columns[i]
			for _, test := range col.Tests {
				if test.Name != models.TestRelationships {
					continue
				}
				if test.Unresolved || test.ToModelID == "" {
					res.Skipped = append(res.Skipped, Skip{
						Reason:  SkipUnresolved,
						ModelID: modelID,
						Column:  col.Name,
						TestID:  test.UniqueID,
						Message: fmt.Sprintf("reference %s does not match any model", test.ToRef),
					})
					continue
				}

				parent := index.Get(test.ToModelID)
				p, skip := build(finder, parent, fieldName(parent, test.ToField), model, col.Name)
				if skip != nil {
					skip.TestID = test.UniqueID
					res.Skipped = append(res.Skipped, *skip)
					continue
				}
				p.Origin = models.OriginRelationshipsTest
				p.TestID = test.UniqueID
				propose(p, col.Name)
			}
		}
	}

	if !opts.NamingHeuristics {
		return res
	}

	for _, modelID := range index.IDs() {
		model := index.Get(modelID)
		for i := range model.Columns {
			col := &model.Columns[i]
			if col.HasTest(models.TestRelationships) {
				continue
			}
			parent, field, ok := matchByName(index, model, col.Name)
			if !ok {
				continue
			}
			p, skip := build(finder, parent, field, model, col.Name)
			if skip != nil {
				res.Skipped = append(res.Skipped, *skip)
				continue
			}
			p.Origin = models.OriginNaming
			propose(p, col.Name)
		}
	}
	return res
}

func build(finder EntityFinder, parent *models.Model, parentField string, child *models.Model, childField string) (models.ProposedRelationship, *Skip) {
	parentEntity, parentOK := finder.FindEntityForModel(parent.UniqueID)
	childEntity, childOK := finder.FindEntityForModel(child.UniqueID)
	if !parentOK || !childOK {
		unbound := parent.UniqueID
		if !childOK {
			unbound = child.UniqueID
		}
		return models.ProposedRelationship{}, &Skip{
			Reason:  SkipUnbound,
			ModelID: child.UniqueID,
			Column:  childField,
			Message: fmt.Sprintf("model %s is not bound to any entity", unbound),
		}
	}

	return models.ProposedRelationship{
		Relationship: models.Relationship{
			Source:      parentEntity,
			Target:      childEntity,
			SourceField: parentField,
			TargetField: childField,
			Type:        models.CardinalityOneToMany,
		},
		ParentModelID: parent.UniqueID,
		ChildModelID:  child.UniqueID,
	}, nil
}

// fieldName returns the column name as declared on the model, falling back
// to the name used by the test.
func fieldName(m *models.Model, field string) string {
	if col := m.Column(field); col != nil {
		return col.Name
	}
	return field
}

var modelPrefixes = []string{"", "stg_", "dim_", "fct_", "int_"}

// matchByName resolves <stem>_id to a model named after the stem (singular or
// plural, optionally with a layer prefix) whose primary key is id or <stem>_id.
func matchByName(index *models.ModelIndex, child *models.Model, column string) (*models.Model, string, bool) {
	lower := strings.ToLower(column)
	stem, ok := strings.CutSuffix(lower, "_id")
	if !ok || stem == "" {
		return nil, "", false
	}

	for _, prefix := range modelPrefixes {
		for _, name := range nameForms(stem) {
			parent := index.ByName(child.PackageName, prefix+name)
			if parent == nil {
				parent = index.ByName("", prefix+name)
			}
			if parent == nil || parent.UniqueID == child.UniqueID {
				continue
			}
			for _, pk := range []string{"id", lower} {
				if col := parent.Column(pk); col != nil && col.IsPrimaryKey() {
					return parent, col.Name, true
				}
			}
		}
	}
	return nil, "", false
}

// nameForms lists the model names a <stem>_id column may point at, the stem
// itself first.
func nameForms(stem string) []string {
	return ectolinq.Distinct([]string{stem, inflection.Plural(stem), inflection.Singular(stem)})
}
