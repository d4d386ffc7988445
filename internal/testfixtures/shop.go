// Package testfixtures holds a small dbt project used across package tests.
package testfixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ManifestJSON describes models customers, orders and payments.
// orders.customer_id -> customers.id and payments.order_id -> orders.id are
// relationships tests; payments.ghost_id references a model that does not exist.
const ManifestJSON = `{
  "metadata": {"generated_at": "2026-10-01T10:00:00Z", "project_name": "shop"},
  "nodes": {
    "model.shop.customers": {
      "unique_id": "model.shop.customers",
      "name": "customers",
      "resource_type": "model",
      "package_name": "shop",
      "path": "marts/customers.sql",
      "original_file_path": "models/marts/customers.sql",
      "patch_path": "shop://models/marts/schema.yml",
      "tags": ["marts"],
      "columns": {
        "id": {"name": "id", "description": "Customer key", "data_type": null},
        "name": {"name": "name", "description": ""}
      }
    },
    "model.shop.orders": {
      "unique_id": "model.shop.orders",
      "name": "orders",
      "resource_type": "model",
      "package_name": "shop",
      "path": "marts/orders.sql",
      "original_file_path": "models/marts/orders.sql",
      "patch_path": "shop://models/marts/schema.yml",
      "tags": ["marts"],
      "columns": {
        "id": {"name": "id"},
        "customer_id": {"name": "customer_id"},
        "amount": {"name": "amount", "data_type": "numeric"}
      }
    },
    "model.shop.payments": {
      "unique_id": "model.shop.payments",
      "name": "payments",
      "resource_type": "model",
      "package_name": "shop",
      "path": "staging/payments.sql",
      "original_file_path": "models/staging/payments.sql",
      "patch_path": "",
      "tags": [],
      "columns": {}
    },
    "seed.shop.country_codes": {
      "unique_id": "seed.shop.country_codes",
      "name": "country_codes",
      "resource_type": "seed",
      "package_name": "shop",
      "path": "country_codes.csv",
      "columns": {}
    },
    "test.shop.unique_customers_id.1": {
      "unique_id": "test.shop.unique_customers_id.1",
      "resource_type": "test",
      "name": "unique_customers_id",
      "column_name": "id",
      "attached_node": "model.shop.customers",
      "test_metadata": {"name": "unique", "kwargs": {"column_name": "id", "model": "{{ get_where_subquery(ref('customers')) }}"}},
      "depends_on": {"nodes": ["model.shop.customers"]}
    },
    "test.shop.not_null_customers_id.2": {
      "unique_id": "test.shop.not_null_customers_id.2",
      "resource_type": "test",
      "name": "not_null_customers_id",
      "column_name": "id",
      "attached_node": "model.shop.customers",
      "test_metadata": {"name": "not_null", "kwargs": {"column_name": "id"}},
      "depends_on": {"nodes": ["model.shop.customers"]}
    },
    "test.shop.unique_orders_id.3": {
      "unique_id": "test.shop.unique_orders_id.3",
      "resource_type": "test",
      "name": "unique_orders_id",
      "column_name": "id",
      "attached_node": "model.shop.orders",
      "test_metadata": {"name": "unique", "kwargs": {"column_name": "id"}},
      "depends_on": {"nodes": ["model.shop.orders"]}
    },
    "test.shop.relationships_orders_customer_id__id__ref_customers_.4": {
      "unique_id": "test.shop.relationships_orders_customer_id__id__ref_customers_.4",
      "resource_type": "test",
      "name": "relationships_orders_customer_id__id__ref_customers_",
      "column_name": "customer_id",
      "attached_node": "model.shop.orders",
      "test_metadata": {"name": "relationships", "kwargs": {"to": "ref('customers')", "field": "id", "column_name": "customer_id", "model": "{{ get_where_subquery(ref('orders')) }}"}},
      "depends_on": {"nodes": ["model.shop.customers", "model.shop.orders"]}
    },
    "test.shop.relationships_payments_order_id__id__ref_orders_.5": {
      "unique_id": "test.shop.relationships_payments_order_id__id__ref_orders_.5",
      "resource_type": "test",
      "name": "relationships_payments_order_id__id__ref_orders_",
      "test_metadata": {"name": "relationships", "kwargs": {"to": "ref('orders')", "field": "id", "column_name": "order_id", "model": "{{ get_where_subquery(ref('payments')) }}"}},
      "depends_on": {"nodes": ["model.shop.orders", "model.shop.payments"]}
    },
    "test.shop.relationships_payments_ghost_id__id__ref_ghosts_.6": {
      "unique_id": "test.shop.relationships_payments_ghost_id__id__ref_ghosts_.6",
      "resource_type": "test",
      "name": "relationships_payments_ghost_id__id__ref_ghosts_",
      "column_name": "ghost_id",
      "attached_node": "model.shop.payments",
      "test_metadata": {"name": "relationships", "kwargs": {"to": "ref('ghosts')", "field": "id", "column_name": "ghost_id"}},
      "depends_on": {"nodes": ["model.shop.payments"]}
    }
  }
}`

// CatalogJSON covers customers and orders; payments is missing (stale catalog).
const CatalogJSON = `{
  "metadata": {"generated_at": "2026-10-01T10:05:00Z"},
  "nodes": {
    "model.shop.customers": {
      "unique_id": "model.shop.customers",
      "columns": {
        "ID": {"name": "ID", "type": "INTEGER", "index": 1},
        "NAME": {"name": "NAME", "type": "TEXT", "index": 2}
      }
    },
    "model.shop.orders": {
      "unique_id": "model.shop.orders",
      "columns": {
        "id": {"name": "id", "type": "integer", "index": 1},
        "customer_id": {"name": "customer_id", "type": "integer", "index": 2},
        "status": {"name": "status", "type": "text", "index": 3},
        "amount": {"name": "amount", "type": "numeric", "index": 4}
      }
    }
  }
}`

// SchemaYAML is the hand-maintained dbt schema file for the marts models.
const SchemaYAML = `version: 2

# marts documentation, maintained by hand
models:
  - name: customers
    description: One row per customer
    columns:
      - name: id
        data_tests:
          - unique
          - not_null
      - name: name

  - name: orders
    columns:
      - name: id
        data_tests:
          - unique # primary key
      - name: customer_id
        data_tests:
          - relationships:
              to: ref('customers')
              field: id
`

// Project is a dbt project laid out on disk for a test
type Project struct {
	Dir          string
	ManifestPath string
	CatalogPath  string
	DataModel    string
	Layout       string
	SchemaPath   string
}

// WriteProject writes the shop project into a fresh temp dir. The data
// model and layout files are not created.
func WriteProject(t *testing.T) Project {
	t.Helper()
	dir := t.TempDir()
	p := Project{
		Dir:          dir,
		ManifestPath: filepath.Join(dir, "target", "manifest.json"),
		CatalogPath:  filepath.Join(dir, "target", "catalog.json"),
		DataModel:    filepath.Join(dir, "data_model.yml"),
		Layout:       filepath.Join(dir, "canvas_layout.yml"),
		SchemaPath:   filepath.Join(dir, "models", "marts", "schema.yml"),
	}
	WriteFile(t, p.ManifestPath, ManifestJSON)
	WriteFile(t, p.CatalogPath, CatalogJSON)
	WriteFile(t, p.SchemaPath, SchemaYAML)
	return p
}

// WriteFile writes content to path, creating parent directories
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// ReadFile returns the content of path
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
