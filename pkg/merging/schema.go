package merging

import (
	"path"
	"strings"

	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/models"
)

// DefaultSchemaFile is created next to model SQL that no schema file documents
const DefaultSchemaFile = "schema.yml"

// PlanSchemaTests turns relationship edges into relationships tests on the
// referencing (*-side) column. Edges named in ids are planned in that order;
// an empty ids plans every edge. Edges that cannot be expressed as a dbt
// test are reported as skipped.
func PlanSchemaTests(resolver *identity.Resolver, relationships []models.Relationship, ids []string) ([]models.SchemaTest, []models.PushItem) {
	var selected []models.Relationship
	var skipped []models.PushItem

	if len(ids) == 0 {
		selected = relationships
	} else {
		byID := make(map[string]models.Relationship, len(relationships))
		for _, r := range relationships {
			byID[r.ID] = r
		}
		for _, id := range ids {
			r, ok := byID[id]
			if !ok {
				skipped = append(skipped, skip(id, "relationship does not exist"))
				continue
			}
			selected = append(selected, r)
		}
	}

	var tests []models.SchemaTest
	for _, rel := range selected {
		test, reason := planOne(resolver, rel)
		if reason != "" {
			skipped = append(skipped, skip(rel.ID, reason))
			continue
		}
		tests = append(tests, test)
	}
	return tests, skipped
}

func planOne(resolver *identity.Resolver, rel models.Relationship) (models.SchemaTest, string) {
	parentEntity, parentField := rel.Source, rel.SourceField
	childEntity, childField := rel.Target, rel.TargetField
	switch rel.Type {
	case models.CardinalityManyToMany:
		return models.SchemaTest{}, "many_to_many relationships cannot be expressed as a relationships test"
	case models.CardinalityManyToOne:
		parentEntity, parentField, childEntity, childField = childEntity, childField, parentEntity, parentField
	}

	if parentField == "" || childField == "" {
		return models.SchemaTest{}, "relationship has no field mapping"
	}
	if !resolver.IsBound(parentEntity) || !resolver.IsBound(childEntity) {
		return models.SchemaTest{}, "both entities must be bound to dbt models"
	}

	index := resolver.Index()
	childModelID, childCol, ok := resolver.Column(childEntity, childField)
	if !ok {
		return models.SchemaTest{}, "column " + childField + " not found on the models bound to " + childEntity
	}
	parentModelID, parentCol, ok := resolver.Column(parentEntity, parentField)
	if !ok {
		return models.SchemaTest{}, "column " + parentField + " not found on the models bound to " + parentEntity
	}

	child := index.Get(childModelID)
	return models.SchemaTest{
		RelationshipID: rel.ID,
		Path:           SchemaPath(child),
		Model:          child.Name,
		Column:         childCol.Name,
		ToModel:        index.Get(parentModelID).Name,
		Field:          parentCol.Name,
	}, ""
}

// SchemaPath returns the project-relative schema file documenting a model:
// its patch path when documented, otherwise schema.yml next to the model SQL.
func SchemaPath(m *models.Model) string {
	if m.PatchPath != "" {
		if _, rest, ok := strings.Cut(m.PatchPath, "://"); ok {
			return rest
		}
		return m.PatchPath
	}
	sqlPath := m.OriginalFilePath
	if sqlPath == "" {
		sqlPath = path.Join("models", m.Path)
	}
	return path.Join(path.Dir(strings.ReplaceAll(sqlPath, "\\", "/")), DefaultSchemaFile)
}

func skip(id, reason string) models.PushItem {
	return models.PushItem{RelationshipID: id, Outcome: models.PushSkipped, Reason: reason}
}
