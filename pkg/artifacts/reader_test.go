package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Ramsey-B/fern/internal/testfixtures"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readProject(t *testing.T, p testfixtures.Project) *models.ModelIndex {
	t.Helper()
	idx, err := NewReader(p.ManifestPath, p.CatalogPath, logging.Discard()).Read(context.Background())
	require.NoError(t, err)
	return idx
}

func warningsOfKind(idx *models.ModelIndex, kind models.WarningKind) []models.Warning {
	var out []models.Warning
	for _, w := range idx.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

func TestReader_Read(t *testing.T) {
	p := testfixtures.WriteProject(t)
	idx := readProject(t, p)

	t.Run("keeps only models in manifest order", func(t *testing.T) {
		assert.Equal(t, []string{"model.shop.customers", "model.shop.orders", "model.shop.payments"}, idx.IDs())
		assert.False(t, idx.Has("seed.shop.country_codes"))
	})

	t.Run("model metadata", func(t *testing.T) {
		orders := idx.Get("model.shop.orders")
		require.NotNil(t, orders)
		assert.Equal(t, "orders", orders.Name)
		assert.Equal(t, "marts", orders.Folder)
		assert.Equal(t, "shop://models/marts/schema.yml", orders.PatchPath)
		assert.Equal(t, []string{"marts"}, orders.Tags)
	})

	t.Run("relationships test resolves to referenced model", func(t *testing.T) {
		col := idx.Get("model.shop.orders").Column("customer_id")
		require.NotNil(t, col)
		refs := col.References()
		require.Len(t, refs, 1)
		assert.Equal(t, "model.shop.customers", refs[0].ToModelID)
		assert.Equal(t, "id", refs[0].ToField)
		assert.Equal(t, "ref('customers')", refs[0].ToRef)
		assert.True(t, col.IsForeignKey())
	})

	t.Run("unique test marks primary key", func(t *testing.T) {
		col := idx.Get("model.shop.customers").Column("id")
		require.NotNil(t, col)
		assert.True(t, col.IsPrimaryKey())
		assert.True(t, col.HasTest(models.TestNotNull))
		assert.False(t, idx.Get("model.shop.customers").Column("name").IsPrimaryKey())
	})

	t.Run("test without attached_node falls back to model kwarg", func(t *testing.T) {
		col := idx.Get("model.shop.payments").Column("order_id")
		require.NotNil(t, col)
		refs := col.References()
		require.Len(t, refs, 1)
		assert.Equal(t, "model.shop.orders", refs[0].ToModelID)
	})

	t.Run("unresolved reference is a warning", func(t *testing.T) {
		col := idx.Get("model.shop.payments").Column("ghost_id")
		require.NotNil(t, col)
		require.Len(t, col.Tests, 1)
		assert.True(t, col.Tests[0].Unresolved)
		assert.False(t, col.IsForeignKey())

		unresolved := warningsOfKind(idx, models.WarningUnresolvedReference)
		require.Len(t, unresolved, 1)
		assert.Equal(t, "ref('ghosts')", unresolved[0].Ref)
		assert.Equal(t, "model.shop.payments", unresolved[0].ModelID)
	})

	t.Run("catalog types and column order", func(t *testing.T) {
		orders := idx.Get("model.shop.orders")
		var names []string
		for _, c := range orders.Columns {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"id", "customer_id", "status", "amount"}, names)
		assert.Equal(t, "integer", orders.Column("customer_id").DataType)

		customers := idx.Get("model.shop.customers")
		assert.Equal(t, "id", customers.Columns[0].Name)
		assert.Equal(t, "INTEGER", customers.Columns[0].DataType)
	})

	t.Run("model missing from catalog is stale", func(t *testing.T) {
		stale := warningsOfKind(idx, models.WarningStaleCatalog)
		require.Len(t, stale, 1)
		assert.Equal(t, "model.shop.payments", stale[0].ModelID)
	})
}

func TestReader_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, err := NewReader(filepath.Join(dir, "manifest.json"), filepath.Join(dir, "catalog.json"), logging.Discard()).
		Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsMissingArtifact(err))
}

func TestReader_MissingCatalog(t *testing.T) {
	p := testfixtures.WriteProject(t)
	require.NoError(t, os.Remove(p.CatalogPath))

	idx := readProject(t, p)
	assert.Len(t, warningsOfKind(idx, models.WarningMissingCatalog), 1)
	assert.Empty(t, warningsOfKind(idx, models.WarningStaleCatalog))

	// manifest columns survive without types
	col := idx.Get("model.shop.orders").Column("customer_id")
	require.NotNil(t, col)
	assert.Empty(t, col.DataType)
	assert.True(t, col.IsForeignKey())
}

func TestReader_CatalogOlderThanManifest(t *testing.T) {
	p := testfixtures.WriteProject(t)
	testfixtures.WriteFile(t, p.CatalogPath, `{"metadata": {"generated_at": "2026-09-01T00:00:00Z"}, "nodes": {}}`)

	idx := readProject(t, p)
	stale := warningsOfKind(idx, models.WarningStaleCatalog)
	// one project-wide warning plus one per model
	assert.Len(t, stale, 4)
}

func TestReader_Malformed(t *testing.T) {
	t.Run("manifest", func(t *testing.T) {
		p := testfixtures.WriteProject(t)
		testfixtures.WriteFile(t, p.ManifestPath, `{"nodes": [`)

		_, err := NewReader(p.ManifestPath, p.CatalogPath, logging.Discard()).Read(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsMalformed(err))
	})

	t.Run("catalog", func(t *testing.T) {
		p := testfixtures.WriteProject(t)
		testfixtures.WriteFile(t, p.CatalogPath, `not json`)

		_, err := NewReader(p.ManifestPath, p.CatalogPath, logging.Discard()).Read(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsMalformed(err))
	})
}

func TestFolderOf(t *testing.T) {
	assert.Equal(t, "", folderOf("orders.sql"))
	assert.Equal(t, "marts/finance", folderOf("marts/finance/orders.sql"))
	assert.Equal(t, "staging", folderOf(`staging\payments.sql`))
}
