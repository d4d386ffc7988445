package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(handler echo.HandlerFunc) *echo.Echo {
	logger := logging.Discard()
	e := echo.New()
	e.HTTPErrorHandler = Error(logger)
	e.Use(Context("/tmp/shop", ""))
	e.Use(Logger(logger))
	e.GET("/test", handler)
	return e
}

func serve(e *echo.Echo, requestID string) (*httptest.ResponseRecorder, ErrorResponse) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if requestID != "" {
		req.Header.Set(echo.HeaderXRequestID, requestID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestContext(t *testing.T) {
	var requestID, projectDir string
	e := newTestServer(func(c echo.Context) error {
		requestID = context.GetRequestID(c.Request().Context())
		projectDir = context.GetProjectDir(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	rec, _ := serve(e, "req-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "/tmp/shop", projectDir)

	serve(e, "")
	assert.NotEmpty(t, requestID, "a request id is generated when none is sent")

	t.Run("unknown container fails the request", func(t *testing.T) {
		e := echo.New()
		e.HTTPErrorHandler = Error(logging.Discard())
		e.Use(Context("/tmp/shop", "no-such-container"))
		e.GET("/test", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

		rec, _ := serve(e, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   any
	}{
		{"conflict", errors.Conflict("data_model.yml"), http.StatusConflict, "conflict"},
		{"validation", errors.Validation("entity %s does not exist", "Nobody"), http.StatusBadRequest, "validation_error"},
		{"missing artifact", errors.MissingArtifact("target/manifest.json"), http.StatusNotFound, "missing_artifact"},
		{"malformed", errors.Malformed("schema.yml", stderrors.New("bad indent")), http.StatusUnprocessableEntity, "malformed_artifact"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, nil},
		{"unknown", stderrors.New("boom"), http.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(func(c echo.Context) error { return tt.err })

			rec, body := serve(e, "req-2")
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "req-2", body.RequestID)
			assert.NotEmpty(t, body.Message)
			assert.Equal(t, tt.wantKind, body.Meta["kind"])
		})
	}

	t.Run("unknown errors hide their message", func(t *testing.T) {
		e := newTestServer(func(c echo.Context) error { return stderrors.New("secret path /etc") })
		_, body := serve(e, "")
		assert.Equal(t, "Internal Server Error", body.Message)
	})

	t.Run("conflict carries the path", func(t *testing.T) {
		e := newTestServer(func(c echo.Context) error { return errors.Conflict("data_model.yml") })
		_, body := serve(e, "")
		assert.Equal(t, "data_model.yml", body.Meta["path"])
	})
}
