package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_DiscardsWithoutEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := NewProvider(ctx, ProviderConfig{ServiceName: "fern-test"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tp.Shutdown(ctx)
		SetTracer(nil)
	})

	spanCtx, span := StartSpan(ctx, "test.span")
	RecordError(span, errors.New("boom"))
	span.End()

	assert.NotEmpty(t, GetTraceID(spanCtx))
}

func TestNewProvider_RejectsUnknownProtocol(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderConfig{Endpoint: "localhost:4317", Protocol: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestStartSpan_WithoutTracer(t *testing.T) {
	SetTracer(nil)
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()

	assert.Empty(t, GetTraceID(ctx))
}
