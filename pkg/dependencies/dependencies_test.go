package dependencies

import (
	"context"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContainer(t *testing.T) {
	logger := logging.Discard()
	svc := project.NewFromConfig(&config.Config{DbtProjectDir: t.TempDir()}, logger)

	id, err := NewContainer(svc, logger)
	require.NoError(t, err)

	ctx, err := ectoinject.SetActiveContainer(context.Background(), id)
	require.NoError(t, err)

	ctx, got, err := ectoinject.GetContext[*project.Service](ctx)
	require.NoError(t, err)
	assert.Same(t, svc, got)

	_, gotLogger, err := ectoinject.GetContext[ectologger.Logger](ctx)
	require.NoError(t, err)
	assert.NotNil(t, gotLogger)

	t.Run("each container gets its own id", func(t *testing.T) {
		other, err := NewContainer(svc, logger)
		require.NoError(t, err)
		assert.NotEqual(t, id, other)
	})
}
