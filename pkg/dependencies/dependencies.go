// Package dependencies builds the request-scoped dependency container the
// HTTP handlers resolve their services from.
package dependencies

import (
	"context"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/project"
	"github.com/google/uuid"
)

// NewContainer registers the project service and logger in a new container
// and returns its id. Containers live for the life of the process, so every
// call gets a unique id.
func NewContainer(svc *project.Service, logger ectologger.Logger) (string, error) {
	container, err := ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{
		ID:                       "fern-" + uuid.New().String(),
		AllowCaptiveDependencies: true,
		AllowMissingDependencies: true,
		LoggerConfig: &ectocontainer.DIContainerLoggerConfig{
			Prefix:   "ectoinject",
			LogLevel: loglevel.WARN,
			Enabled:  true,
			LogFunc: func(ctx context.Context, level, msg string) {
				if level == loglevel.WARN {
					logger.WithContext(ctx).Warn(msg)
					return
				}
				logger.WithContext(ctx).Debug(msg)
			},
		},
	})
	if err != nil {
		return "", err
	}

	if err := ectoinject.RegisterInstance[*project.Service](container, svc); err != nil {
		return "", err
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return "", err
	}
	return container.GetContainerID(), nil
}
