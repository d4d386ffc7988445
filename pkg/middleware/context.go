package middleware

import (
	"github.com/Gobusters/ectoinject"
	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context copies request metadata into the request context so loggers and
// error responses can pick it up. A non-empty containerID makes that
// dependency container active for the request.
func Context(projectDir, containerID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetProjectDir(ctx, projectDir)

			if containerID != "" {
				var err error
				ctx, err = ectoinject.SetActiveContainer(ctx, containerID)
				if err != nil {
					return err
				}
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
