package layout

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Ramsey-B/fern/internal/testfixtures"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const layoutFile = `version: 1
entities:
  - id: customer
    position: {x: 40, y: 80}
    width: 300
    panel_height: 200
    collapsed: true
  - id: order
    position: {x: 400, y: 80}
source_colors:
  shopify: green
viewport:
  zoom: 1.5
`

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(layoutFile))
	require.NoError(t, err)

	customer, ok := doc.Lookup("customer")
	require.True(t, ok)
	assert.Equal(t, models.Position{X: 40, Y: 80}, customer.Position)
	assert.Equal(t, 300.0, customer.Width)
	assert.True(t, customer.Collapsed)

	order, ok := doc.Lookup("order")
	require.True(t, ok)
	assert.Equal(t, float64(models.DefaultEntityWidth), order.Width)
	assert.Equal(t, float64(models.DefaultEntityPanelHeight), order.PanelHeight)

	_, ok = doc.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"shopify": "green"}, doc.SourceColors)
}

func TestPatch_PreservesColorsAndUnknownKeys(t *testing.T) {
	doc, err := Decode([]byte(layoutFile))
	require.NoError(t, err)

	patched := doc.Patch([]models.EntityLayout{
		{ID: "order", Position: models.Position{X: 1, Y: 2}, Width: 280, PanelHeight: 320},
	})
	assert.Len(t, doc.Entities, 2, "patch must not mutate the original")

	data, err := Encode(patched)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, out.Entities, 1)
	assert.Equal(t, "order", out.Entities[0].ID)
	assert.Equal(t, map[string]string{"shopify": "green"}, out.SourceColors)
	assert.Contains(t, string(data), "zoom: 1.5")
}

func TestWithSourceColor(t *testing.T) {
	doc := &Document{SourceColors: map[string]string{"shopify": "green"}}

	set := doc.WithSourceColor("stripe", "purple")
	assert.Equal(t, map[string]string{"shopify": "green", "stripe": "purple"}, set.SourceColors)
	assert.Len(t, doc.SourceColors, 1)

	cleared := set.WithSourceColor("shopify", "")
	assert.Equal(t, map[string]string{"stripe": "purple"}, cleared.SourceColors)
}

func TestRepository_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		doc, snap, err := NewRepository(filepath.Join(t.TempDir(), "layout.yml"), logging.Discard()).Load(ctx)
		require.NoError(t, err)
		assert.False(t, snap.Exists)
		assert.Empty(t, doc.Entities)
		assert.NotNil(t, doc.SourceColors)
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "layout.yml")
		testfixtures.WriteFile(t, path, "entities: {id: [")
		_, _, err := NewRepository(path, logging.Discard()).Load(ctx)
		assert.True(t, errors.IsMalformed(err))
	})

	t.Run("write then load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "layout.yml")
		repo := NewRepository(path, logging.Discard())
		data, err := repo.Encode(&Document{Entities: []models.EntityLayout{models.DefaultLayout("customer")}})
		require.NoError(t, err)
		require.NoError(t, repo.Write(ctx, data))

		doc, snap, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.True(t, snap.Exists)
		assert.Equal(t, []models.EntityLayout{models.DefaultLayout("customer")}, doc.Entities)
	})
}
