package expressions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var out any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestEvaluator_String(t *testing.T) {
	e := NewEvaluator()
	node := decode(t, `{"test_metadata": {"name": "relationships", "kwargs": {"to": "ref('customers')", "field": "id"}}}`)

	t.Run("nested value", func(t *testing.T) {
		to, err := e.String("test_metadata.kwargs.to || kwargs.to", node)
		require.NoError(t, err)
		assert.Equal(t, "ref('customers')", to)
	})

	t.Run("fallback branch for older manifests", func(t *testing.T) {
		legacy := decode(t, `{"kwargs": {"to": "ref('customers')"}}`)
		to, err := e.String("test_metadata.kwargs.to || kwargs.to", legacy)
		require.NoError(t, err)
		assert.Equal(t, "ref('customers')", to)
	})

	t.Run("missing value", func(t *testing.T) {
		v, err := e.String("config.severity", node)
		require.NoError(t, err)
		assert.Empty(t, v)
	})
}

func TestEvaluator_Strings(t *testing.T) {
	e := NewEvaluator()
	node := decode(t, `{"depends_on": {"nodes": ["model.shop.customers", "model.shop.orders"]}, "name": "x"}`)

	nodes, err := e.Strings("depends_on.nodes", node)
	require.NoError(t, err)
	assert.Equal(t, []string{"model.shop.customers", "model.shop.orders"}, nodes)

	single, err := e.Strings("name", node)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, single)
}

func TestEvaluator_InvalidExpression(t *testing.T) {
	e := NewEvaluator()
	assert.Error(t, e.Validate("test_metadata.["))
	_, err := e.Evaluate("test_metadata.[", map[string]any{})
	assert.Error(t, err)
}
