package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Ramsey-B/fern/internal/testfixtures"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, c *Checker, path string) (*httptest.ResponseRecorder, HealthStatus) {
	t.Helper()
	e := echo.New()
	c.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var status HealthStatus
	_ = json.Unmarshal(rec.Body.Bytes(), &status)
	return rec, status
}

func TestHealth(t *testing.T) {
	p := testfixtures.WriteProject(t)

	t.Run("healthy", func(t *testing.T) {
		rec, status := get(t, NewChecker(p.ManifestPath, p.DataModel, "1.2.3"), "/api/v1/health")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "1.2.3", status.Version)
		assert.Equal(t, "healthy", status.Checks["dbt_manifest"].Status)
	})

	t.Run("missing manifest degrades", func(t *testing.T) {
		rec, status := get(t, NewChecker(filepath.Join(p.Dir, "nope.json"), p.DataModel, "dev"), "/api/v1/health")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "degraded", status.Status)
		assert.Equal(t, "missing", status.Checks["dbt_manifest"].Status)
	})

	t.Run("missing data model directory", func(t *testing.T) {
		rec, status := get(t, NewChecker(p.ManifestPath, filepath.Join(p.Dir, "gone", "data_model.yml"), "dev"), "/api/v1/health")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "unhealthy", status.Status)
	})
}

func TestReady(t *testing.T) {
	p := testfixtures.WriteProject(t)
	c := NewChecker(p.ManifestPath, p.DataModel, "dev")

	rec, _ := get(t, c, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c.SetReady(true)
	rec, _ = get(t, c, "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = get(t, c, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
}
