package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/testfixtures"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/project"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	p := testfixtures.WriteProject(t)
	cfg := &config.Config{
		AppName:          "fern",
		DbtProjectDir:    p.Dir,
		DbtTargetDir:     "target",
		DataModelPath:    "data_model.yml",
		CanvasLayoutPath: "canvas_layout.yml",
		AllowOrigins:     []string{"http://localhost:5173"},
	}
	logger := logging.Discard()
	e, err := newServer(cfg, project.NewFromConfig(cfg, logger), health.NewChecker(cfg.ManifestPath(), cfg.DataModelFile(), "test"), logger)
	require.NoError(t, err)

	for _, path := range []string{"/api/v1/graph", "/api/v1/health", "/metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "request_id")
}

func TestCLI(t *testing.T) {
	p := testfixtures.WriteProject(t)
	testfixtures.WriteFile(t, p.DataModel, `version: 1
entities:
  - id: Customer
    dbt_model: customers
  - id: Order
    dbt_model: orders
relationships: []
`)
	t.Setenv("AUTO_BOOTSTRAP_RELATIONSHIPS", "false")

	run := func(args ...string) string {
		var out strings.Builder
		cmd := newRootCommand()
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"--project-dir", p.Dir}, args...))
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	assert.Contains(t, run("graph"), `"project_configured": true`)
	assert.Contains(t, run("infer"), `"added": 1`)
	assert.Contains(t, testfixtures.ReadFile(t, p.DataModel), "source: Customer")
	assert.Contains(t, run("push"), `"already_present"`)
}
