package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewf_WrapsCause(t *testing.T) {
	err := Newf(KindIO, "failed to write %s: %w", "data_model.yml", os.ErrPermission)

	assert.Equal(t, "io_error: failed to write data_model.yml: permission denied", err.Error())
	assert.True(t, stderrors.Is(err, os.ErrPermission))
}

func TestKindPredicates(t *testing.T) {
	wrapped := fmt.Errorf("saving graph: %w", Conflict("/tmp/data_model.yml"))

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.True(t, IsMissingArtifact(MissingArtifact("target/manifest.json")))
	assert.True(t, IsMalformed(Malformed("x.json", stderrors.New("unexpected EOF"))))
	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
}

func TestWrap_KeepsExistingKind(t *testing.T) {
	inner := Validation("relationship %s references unknown entity %s", "r1", "ghost")
	outer := Wrap(KindIO, inner, "save failed")

	assert.Same(t, inner, outer)
	assert.Nil(t, Wrap(KindIO, nil, "nothing"))
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"missing artifact", MissingArtifact("target/manifest.json"), http.StatusNotFound},
		{"conflict", Conflict("data_model.yml"), http.StatusConflict},
		{"validation", Validation("bad type"), http.StatusBadRequest},
		{"malformed", Malformed("catalog.json", stderrors.New("eof")), http.StatusUnprocessableEntity},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := ToHTTPError(tt.err)
			require.NotNil(t, httpErr)
			assert.Equal(t, tt.code, httperror.GetStatusCode(httpErr))
		})
	}
}
