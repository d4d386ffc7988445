package schemafile

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
	"gopkg.in/yaml.v3"
)

type schemaDoc struct {
	Models []struct {
		Name    string `yaml:"name"`
		Columns []struct {
			Name      string      `yaml:"name"`
			DataTests []yaml.Node `yaml:"data_tests"`
			Tests     []yaml.Node `yaml:"tests"`
		} `yaml:"columns"`
	} `yaml:"models"`
}

func decodeSchema(t *testing.T, path string) schemaDoc {
	t.Helper()
	var doc schemaDoc
	require.NoError(t, yaml.Unmarshal([]byte(testfixtures.ReadFile(t, path)), &doc))
	return doc
}

func TestApply_ExistingFile(t *testing.T) {
	p := testfixtures.WriteProject(t)
	repo := NewRepository(p.Dir, logging.Discard())

	tests := []models.SchemaTest{
		{RelationshipID: "r1", Path: "models/marts/schema.yml", Model: "orders", Column: "customer_id", ToModel: "customers", Field: "id"},
		{RelationshipID: "r2", Path: "models/marts/schema.yml", Model: "orders", Column: "store_id", ToModel: "stores", Field: "id"},
	}
	res, err := repo.Apply(context.Background(), "models/marts/schema.yml", tests)
	require.NoError(t, err)
	assert.True(t, res.Written)
	require.Len(t, res.Added, 1)
	assert.Equal(t, "r2", res.Added[0].RelationshipID)
	require.Len(t, res.AlreadyPresent, 1)
	assert.Equal(t, "r1", res.AlreadyPresent[0].RelationshipID)

	written := testfixtures.ReadFile(t, p.SchemaPath)
	assert.Contains(t, written, "# marts documentation, maintained by hand")
	assert.Contains(t, written, "# primary key")
	assert.Contains(t, written, "description: One row per customer")
	assert.Contains(t, written, "to: ref('stores')")

	doc := decodeSchema(t, p.SchemaPath)
	require.Len(t, doc.Models, 2)
	orders := doc.Models[1]
	require.Len(t, orders.Columns, 3)
	assert.Equal(t, "store_id", orders.Columns[2].Name)
	assert.Len(t, orders.Columns[2].DataTests, 1)
	assert.Len(t, orders.Columns[1].DataTests, 1, "existing test is not duplicated")
}

func TestApply_NothingToAdd(t *testing.T) {
	p := testfixtures.WriteProject(t)
	before, err := os.Stat(p.SchemaPath)
	require.NoError(t, err)

	res, err := NewRepository(p.Dir, logging.Discard()).Apply(context.Background(), "models/marts/schema.yml", []models.SchemaTest{
		{Model: "orders", Column: "customer_id", ToModel: "customers", Field: "id"},
	})
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.Equal(t, testfixtures.SchemaYAML, testfixtures.ReadFile(t, p.SchemaPath))

	after, err := os.Stat(p.SchemaPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestApply_NewFile(t *testing.T) {
	p := testfixtures.WriteProject(t)
	repo := NewRepository(p.Dir, logging.Discard())

	res, err := repo.Apply(context.Background(), "models/staging/schema.yml", []models.SchemaTest{
		{Model: "payments", Column: "order_id", ToModel: "orders", Field: "id"},
	})
	require.NoError(t, err)
	assert.True(t, res.Written)

	path := filepath.Join(p.Dir, "models", "staging", "schema.yml")
	assert.Equal(t, `version: 2
models:
  - name: payments
    columns:
      - name: order_id
        data_tests:
          - relationships:
              to: ref('orders')
              field: id
`, testfixtures.ReadFile(t, path))
}

func TestApply_ReportsReformatting(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yml")
	testfixtures.WriteFile(t, path, `version: 2

models:
  - name: orders
    columns:
      - name: customer_id
      - name: store_id
`)
	repo := NewRepository(dir, logging.Discard())

	res, err := repo.Apply(ctx, "schema.yml", []models.SchemaTest{
		{Model: "orders", Column: "customer_id", ToModel: "customers", Field: "id"},
	})
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.True(t, res.Reformatted, "the blank line after version is dropped")
	assert.NotContains(t, testfixtures.ReadFile(t, path), "\n\n")

	t.Run("already normalized file", func(t *testing.T) {
		res, err := repo.Apply(ctx, "schema.yml", []models.SchemaTest{
			{Model: "orders", Column: "store_id", ToModel: "stores", Field: "id"},
		})
		require.NoError(t, err)
		assert.True(t, res.Written)
		assert.False(t, res.Reformatted)
	})

	t.Run("new file", func(t *testing.T) {
		res, err := repo.Apply(ctx, "other.yml", []models.SchemaTest{
			{Model: "payments", Column: "order_id", ToModel: "orders", Field: "id"},
		})
		require.NoError(t, err)
		assert.True(t, res.Written)
		assert.False(t, res.Reformatted)
	})
}

func TestApply_KeepsLegacyTestsKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yml")
	testfixtures.WriteFile(t, path, `version: 2
models:
  - name: orders
    columns:
      - name: customer_id
        tests:
          - not_null
`)

	_, err := NewRepository(dir, logging.Discard()).Apply(context.Background(), "schema.yml", []models.SchemaTest{
		{Model: "orders", Column: "customer_id", ToModel: "customers", Field: "id"},
	})
	require.NoError(t, err)

	doc := decodeSchema(t, path)
	col := doc.Models[0].Columns[0]
	assert.Len(t, col.Tests, 2)
	assert.Empty(t, col.DataTests)
}

func TestApply_ArgumentsSyntaxIsEquivalent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yml")
	testfixtures.WriteFile(t, path, `version: 2
models:
  - name: orders
    columns:
      - name: customer_id
        data_tests:
          - relationships:
              arguments:
                to: ref("customers")
                field: id
`)

	res, err := NewRepository(dir, logging.Discard()).Apply(context.Background(), "schema.yml", []models.SchemaTest{
		{Model: "orders", Column: "customer_id", ToModel: "customers", Field: "id"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.False(t, res.Written)
}

func TestApply_Malformed(t *testing.T) {
	dir := t.TempDir()
	testfixtures.WriteFile(t, filepath.Join(dir, "schema.yml"), "- just\n- a list\n")

	_, err := NewRepository(dir, logging.Discard()).Apply(context.Background(), "schema.yml", []models.SchemaTest{
		{Model: "orders", Column: "customer_id", ToModel: "customers", Field: "id"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))
}
