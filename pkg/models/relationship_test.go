package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationship_SwapIsInvolution(t *testing.T) {
	for _, c := range Cardinalities {
		t.Run(string(c), func(t *testing.T) {
			rel := Relationship{
				ID:          "r1",
				Source:      "customer",
				Target:      "order",
				SourceField: "id",
				TargetField: "customer_id",
				Type:        c,
				Label:       "places",
			}

			swapped := rel.Swap()
			assert.Equal(t, "order", swapped.Source)
			assert.Equal(t, "customer", swapped.Target)
			assert.Equal(t, "customer_id", swapped.SourceField)
			assert.Equal(t, "id", swapped.TargetField)

			assert.Equal(t, rel, swapped.Swap())
		})
	}
}

func TestRelationship_SwapInvertsDirectionalTypes(t *testing.T) {
	assert.Equal(t, CardinalityManyToOne, Relationship{Type: CardinalityOneToMany}.Swap().Type)
	assert.Equal(t, CardinalityOneToMany, Relationship{Type: CardinalityManyToOne}.Swap().Type)
	assert.Equal(t, CardinalityOneToOne, Relationship{Type: CardinalityOneToOne}.Swap().Type)
	assert.Equal(t, CardinalityManyToMany, Relationship{Type: CardinalityManyToMany}.Swap().Type)
}

func TestRelationship_EquivalenceKey(t *testing.T) {
	a := Relationship{Source: "customer", Target: "order", SourceField: "id", TargetField: "customer_id"}

	t.Run("swapped edge is equivalent", func(t *testing.T) {
		assert.Equal(t, a.EquivalenceKey(), a.Swap().EquivalenceKey())
	})

	t.Run("different field pair is a parallel edge", func(t *testing.T) {
		b := a
		b.TargetField = "billing_customer_id"
		assert.NotEqual(t, a.EquivalenceKey(), b.EquivalenceKey())
	})
}

func TestCardinality_IsValid(t *testing.T) {
	for _, c := range Cardinalities {
		assert.True(t, c.IsValid())
	}
	assert.False(t, Cardinality("one_to_few").IsValid())
	assert.False(t, Cardinality("").IsValid())
}

func TestModelIndex_Lookups(t *testing.T) {
	idx := NewModelIndex()
	idx.Add(&Model{UniqueID: "model.shop.orders", Name: "orders", PackageName: "shop"})
	idx.Add(&Model{UniqueID: "model.util.orders", Name: "orders", PackageName: "util"})

	assert.Equal(t, []string{"model.shop.orders", "model.util.orders"}, idx.IDs())
	assert.Equal(t, "model.shop.orders", idx.ByName("", "orders").UniqueID)
	assert.Equal(t, "model.util.orders", idx.ByName("util", "orders").UniqueID)
	assert.Nil(t, idx.ByName("other", "orders"))
	assert.Equal(t, "model.util.orders", idx.Resolve("model.util.orders").UniqueID)
	assert.Equal(t, "model.shop.orders", idx.Resolve("orders").UniqueID)
}

func TestSortColumns(t *testing.T) {
	cols := []Column{{Name: "doc_only"}, {Name: "b", Index: 2}, {Name: "a", Index: 1}, {Name: "doc_too"}}
	SortColumns(cols)

	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a", "b", "doc_only", "doc_too"}, names)
}
