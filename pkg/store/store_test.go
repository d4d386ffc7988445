package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Ramsey-B/fern/internal/repositories/datamodel"
	"github.com/Ramsey-B/fern/internal/repositories/layout"
	"github.com/Ramsey-B/fern/internal/testfixtures"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataModelFile = `version: 1
entities:
  - id: customer
    label: Customer
    dbt_model: customers
    tags: [core]
    sources: [shopify, stripe]
  - id: order
    label: Order
    dbt_model: orders
relationships:
  - id: rel_1
    source: customer
    target: order
    type: one_to_many
    source_field: id
    target_field: customer_id
`

const layoutFile = `version: 1
entities:
  - id: customer
    position: {x: 10, y: 20}
    width: 300
    panel_height: 400
    collapsed: false
  - id: ghost
    position: {x: 0, y: 0}
    width: 280
    panel_height: 320
    collapsed: false
source_colors:
  shopify: green
`

func newTestStore(t *testing.T) (*Store, testfixtures.Project) {
	t.Helper()
	p := testfixtures.WriteProject(t)
	testfixtures.WriteFile(t, p.DataModel, dataModelFile)
	testfixtures.WriteFile(t, p.Layout, layoutFile)
	logger := logging.Discard()
	return New(datamodel.NewRepository(p.DataModel, logger), layout.NewRepository(p.Layout, logger), logger), p
}

func TestStore_Load(t *testing.T) {
	s, _ := newTestStore(t)
	snap, err := s.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Entities, 2)
	customer, ok := snap.Entity("customer")
	require.True(t, ok)
	assert.Equal(t, models.Position{X: 10, Y: 20}, customer.Layout.Position)
	assert.Equal(t, 300.0, customer.Layout.Width)

	order, ok := snap.Entity("order")
	require.True(t, ok)
	assert.Equal(t, models.DefaultLayout("order"), *order.Layout)

	assert.True(t, snap.RelationshipsDeclared)
	assert.Equal(t, map[string]string{"shopify": "green"}, snap.SourceColors)
	assert.Equal(t, fingerprint.FromBytes([]byte(dataModelFile)), snap.Fingerprints.DataModel)
	assert.Equal(t, fingerprint.FromBytes([]byte(layoutFile)), snap.Fingerprints.Layout)
}

func TestStore_LoadFreshProject(t *testing.T) {
	p := testfixtures.WriteProject(t)
	logger := logging.Discard()
	s := New(datamodel.NewRepository(p.DataModel, logger), layout.NewRepository(p.Layout, logger), logger)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Entities)
	assert.NotNil(t, snap.Relationships)
	assert.False(t, snap.RelationshipsDeclared)
	assert.Equal(t, fingerprint.Absent, snap.Fingerprints.DataModel)
	assert.Equal(t, fingerprint.Absent, snap.Fingerprints.Layout)
}

func TestStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("clearing a binding keeps tags and sources", func(t *testing.T) {
		s, _ := newTestStore(t)
		snap, err := s.Load(ctx)
		require.NoError(t, err)

		snap.Entities[0].DbtModel = ""
		_, err = s.Save(ctx, snap.Entities, snap.Relationships, SaveOptions{Expected: snap.Fingerprints})
		require.NoError(t, err)

		reloaded, err := s.Load(ctx)
		require.NoError(t, err)
		customer, _ := reloaded.Entity("customer")
		assert.Empty(t, customer.DbtModel)
		assert.False(t, customer.IsBound())
		assert.Equal(t, []string{"core"}, customer.Tags)
		assert.Equal(t, []string{"shopify", "stripe"}, customer.Sources)
	})

	t.Run("layout is merge-patched", func(t *testing.T) {
		s, p := newTestStore(t)
		snap, err := s.Load(ctx)
		require.NoError(t, err)

		moved := models.EntityLayout{Position: models.Position{X: 500, Y: 600}, Width: 280, PanelHeight: 320}
		snap.Entities[1].Layout = &moved

		fps, err := s.Save(ctx, snap.Entities, snap.Relationships, SaveOptions{Expected: snap.Fingerprints})
		require.NoError(t, err)
		assert.Equal(t, fingerprint.FromBytes([]byte(testfixtures.ReadFile(t, p.Layout))), fps.Layout)

		doc, err := layout.Decode([]byte(testfixtures.ReadFile(t, p.Layout)))
		require.NoError(t, err)
		require.Len(t, doc.Entities, 2, "entries of removed entities are dropped")
		assert.Equal(t, "customer", doc.Entities[0].ID)
		assert.Equal(t, "order", doc.Entities[1].ID)
		assert.Equal(t, models.Position{X: 500, Y: 600}, doc.Entities[1].Position)
		assert.Equal(t, map[string]string{"shopify": "green"}, doc.SourceColors)
	})

	t.Run("conflict leaves files untouched", func(t *testing.T) {
		s, p := newTestStore(t)
		snap, err := s.Load(ctx)
		require.NoError(t, err)

		external := dataModelFile + "# edited elsewhere\n"
		testfixtures.WriteFile(t, p.DataModel, external)

		snap.Entities[0].Label = "Client"
		_, err = s.Save(ctx, snap.Entities, snap.Relationships, SaveOptions{Expected: snap.Fingerprints})
		require.Error(t, err)
		assert.True(t, errors.IsConflict(err))
		assert.Equal(t, external, testfixtures.ReadFile(t, p.DataModel))
		assert.Equal(t, layoutFile, testfixtures.ReadFile(t, p.Layout))
	})

	t.Run("layout conflict", func(t *testing.T) {
		s, p := newTestStore(t)
		snap, err := s.Load(ctx)
		require.NoError(t, err)

		testfixtures.WriteFile(t, p.Layout, layoutFile+"extra: true\n")
		_, err = s.Save(ctx, snap.Entities, snap.Relationships, SaveOptions{Expected: snap.Fingerprints})
		assert.True(t, errors.IsConflict(err))
		assert.Equal(t, dataModelFile, testfixtures.ReadFile(t, p.DataModel))
	})

	t.Run("file created since load is a conflict", func(t *testing.T) {
		p := testfixtures.WriteProject(t)
		logger := logging.Discard()
		s := New(datamodel.NewRepository(p.DataModel, logger), layout.NewRepository(p.Layout, logger), logger)
		snap, err := s.Load(ctx)
		require.NoError(t, err)

		testfixtures.WriteFile(t, p.DataModel, dataModelFile)
		_, err = s.Save(ctx, nil, nil, SaveOptions{Expected: snap.Fingerprints})
		assert.True(t, errors.IsConflict(err))
	})

	t.Run("force overwrites", func(t *testing.T) {
		s, p := newTestStore(t)
		snap, err := s.Load(ctx)
		require.NoError(t, err)

		testfixtures.WriteFile(t, p.DataModel, dataModelFile+"# edited elsewhere\n")
		snap.Entities[0].Label = "Client"
		_, err = s.Save(ctx, snap.Entities, snap.Relationships, SaveOptions{Expected: snap.Fingerprints, Force: true})
		require.NoError(t, err)

		reloaded, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Client", reloaded.Entities[0].Label)
	})

	t.Run("failed layout write leaves the data model untouched", func(t *testing.T) {
		p := testfixtures.WriteProject(t)
		testfixtures.WriteFile(t, p.DataModel, dataModelFile)
		logger := logging.Discard()
		// the layout's parent is a regular file, so it can never be written
		blocked := filepath.Join(p.DataModel, "canvas_layout.yml")
		s := New(datamodel.NewRepository(p.DataModel, logger), layout.NewRepository(blocked, logger), logger)

		snap, err := s.Load(ctx)
		require.Error(t, err)
		assert.Nil(t, snap)

		entities := []models.EntityState{{Entity: models.Entity{ID: "customer", Label: "Client"}}}
		_, err = s.Save(ctx, entities, nil, SaveOptions{Force: true})
		require.Error(t, err)
		assert.Equal(t, errors.KindIO, errors.KindOf(err))
		assert.Equal(t, dataModelFile, testfixtures.ReadFile(t, p.DataModel))

		leftovers, err := filepath.Glob(filepath.Join(p.Dir, ".data_model.yml*"))
		require.NoError(t, err)
		assert.Empty(t, leftovers, "the staged data model is discarded")
	})

	t.Run("relationships without id get one", func(t *testing.T) {
		s, _ := newTestStore(t)
		snap, err := s.Load(ctx)
		require.NoError(t, err)

		rels := append(snap.Relationships, models.Relationship{
			Source: "order", Target: "customer", Type: models.CardinalityManyToOne,
		})
		_, err = s.Save(ctx, snap.Entities, rels, SaveOptions{Expected: snap.Fingerprints})
		require.NoError(t, err)

		reloaded, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, reloaded.Relationships, 2)
		assert.NotEmpty(t, reloaded.Relationships[1].ID)
	})
}

func TestStore_SetSourceColor(t *testing.T) {
	ctx := context.Background()
	s, p := newTestStore(t)
	snap, err := s.Load(ctx)
	require.NoError(t, err)

	fps, err := s.SetSourceColor(ctx, "stripe", "purple", SaveOptions{Expected: snap.Fingerprints})
	require.NoError(t, err)
	assert.Equal(t, snap.Fingerprints.DataModel, fps.DataModel)
	assert.NotEqual(t, snap.Fingerprints.Layout, fps.Layout)
	assert.Equal(t, dataModelFile, testfixtures.ReadFile(t, p.DataModel))

	reloaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"shopify": "green", "stripe": "purple"}, reloaded.SourceColors)
	customer, _ := reloaded.Entity("customer")
	assert.Equal(t, 300.0, customer.Layout.Width)

	t.Run("stale fingerprint conflicts", func(t *testing.T) {
		_, err := s.SetSourceColor(ctx, "stripe", "red", SaveOptions{Expected: snap.Fingerprints})
		assert.True(t, errors.IsConflict(err))
	})

	t.Run("source is required", func(t *testing.T) {
		_, err := s.SetSourceColor(ctx, "", "red", SaveOptions{})
		assert.True(t, errors.IsValidation(err))
	})
}
