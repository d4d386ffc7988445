package models

import (
	"sort"
	"strings"
)

// Well-known dbt generic test names
const (
	TestRelationships = "relationships"
	TestUnique        = "unique"
	TestNotNull       = "not_null"
)

// Model is a dbt model as described by the manifest and catalog.
// Models are read-only here; they are regenerated by dbt and re-read on demand.
type Model struct {
	// UniqueID is the manifest key, e.g. "model.shop.orders".
	UniqueID    string `json:"unique_id"`
	Name        string `json:"name"`
	PackageName string `json:"package_name"`
	// Path is relative to the model-paths root, e.g. "marts/orders.sql".
	Path string `json:"path"`
	// OriginalFilePath is relative to the project root, e.g. "models/marts/orders.sql".
	OriginalFilePath string `json:"original_file_path"`
	// PatchPath is the schema file documenting the model ("shop://models/marts/schema.yml"), may be empty.
	PatchPath   string   `json:"patch_path,omitempty"`
	Folder      string   `json:"folder"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Columns     []Column `json:"columns"`
}

// Column returns the column with the given name (case-insensitive), or nil
func (m *Model) Column(name string) *Column {
	for i := range m.Columns {
		if strings.EqualFold(m.Columns[i].Name, name) {
			return &m.Columns[i]
		}
	}
	return nil
}

// Column is a model column with its declared type and attached tests
type Column struct {
	Name        string `json:"name"`
	DataType    string `json:"data_type,omitempty"`
	Description string `json:"description,omitempty"`
	// Index is the catalog ordinal; zero when the catalog does not know the column.
	Index       int               `json:"index,omitempty"`
	Constraints []string          `json:"constraints,omitempty"`
	Tests       []TestDeclaration `json:"tests,omitempty"`
}

// HasTest reports whether a test with the given name is attached
func (c *Column) HasTest(name string) bool {
	for _, t := range c.Tests {
		if t.Name == name {
			return true
		}
	}
	return false
}

// IsPrimaryKey reports whether the column is declared unique or carries a primary_key constraint
func (c *Column) IsPrimaryKey() bool {
	if c.HasTest(TestUnique) {
		return true
	}
	for _, ct := range c.Constraints {
		if ct == "primary_key" {
			return true
		}
	}
	return false
}

// IsForeignKey reports whether the column carries a resolved relationships test
func (c *Column) IsForeignKey() bool {
	return len(c.References()) > 0
}

// References returns the resolved relationships tests attached to the column
func (c *Column) References() []TestDeclaration {
	var refs []TestDeclaration
	for _, t := range c.Tests {
		if t.Name == TestRelationships && !t.Unresolved && t.ToModelID != "" {
			refs = append(refs, t)
		}
	}
	return refs
}

// TestDeclaration is a dbt data test attached to a column
type TestDeclaration struct {
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`
	// ToRef is the raw "to" argument of a relationships test, e.g. "ref('customers')".
	ToRef string `json:"to_ref,omitempty"`
	// ToModelID is the resolved referenced model; empty when unresolved.
	ToModelID string `json:"to_model_id,omitempty"`
	// ToField is the referenced column.
	ToField    string `json:"to_field,omitempty"`
	Unresolved bool   `json:"unresolved,omitempty"`
}

// ModelIndex is the structural index produced from dbt artifacts
type ModelIndex struct {
	Models map[string]*Model `json:"models"`
	// order keeps manifest declaration order for deterministic iteration.
	order    []string
	Warnings []Warning `json:"warnings,omitempty"`
}

// NewModelIndex creates an empty index
func NewModelIndex() *ModelIndex {
	return &ModelIndex{Models: make(map[string]*Model)}
}

// Add registers a model, keeping first-seen order
func (idx *ModelIndex) Add(m *Model) {
	if _, ok := idx.Models[m.UniqueID]; !ok {
		idx.order = append(idx.order, m.UniqueID)
	}
	idx.Models[m.UniqueID] = m
}

// Get returns the model with the unique id, or nil
func (idx *ModelIndex) Get(uniqueID string) *Model {
	if idx == nil {
		return nil
	}
	return idx.Models[uniqueID]
}

// Has reports whether the index contains the unique id
func (idx *ModelIndex) Has(uniqueID string) bool {
	return idx.Get(uniqueID) != nil
}

// IDs returns model unique ids in manifest order
func (idx *ModelIndex) IDs() []string {
	if idx == nil {
		return nil
	}
	ids := make([]string, len(idx.order))
	copy(ids, idx.order)
	return ids
}

// ByName finds a model by name, restricted to packageName when it is set.
// The first match in manifest order wins.
func (idx *ModelIndex) ByName(packageName, name string) *Model {
	if idx == nil {
		return nil
	}
	for _, id := range idx.order {
		m := idx.Models[id]
		if m.Name == name && (packageName == "" || m.PackageName == packageName) {
			return m
		}
	}
	return nil
}

// Resolve accepts either a unique id or a bare model name
func (idx *ModelIndex) Resolve(idOrName string) *Model {
	if m := idx.Get(idOrName); m != nil {
		return m
	}
	return idx.ByName("", idOrName)
}

// Len returns the number of models
func (idx *ModelIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Models)
}

// SortColumns orders columns by catalog index; columns unknown to the
// catalog (index 0) keep their relative order after the indexed ones.
func SortColumns(cols []Column) {
	sort.SliceStable(cols, func(i, j int) bool {
		a, b := cols[i].Index, cols[j].Index
		if a == 0 || b == 0 {
			return a != 0 && b == 0
		}
		return a < b
	})
}
