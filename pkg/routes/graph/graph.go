package graph

import (
	stdcontext "context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/project"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler serves the canvas API for one dbt project
type Handler struct {
	service *project.Service
}

// NewHandler creates a new graph handler. A nil service is resolved per
// request from the active dependency container.
func NewHandler(service *project.Service) *Handler {
	return &Handler{service: service}
}

// Register registers the canvas routes under g (usually /api/v1)
func (h *Handler) Register(g *echo.Group) {
	g.GET("/graph", h.GetGraph)
	g.PUT("/graph", h.SaveGraph)
	g.POST("/graph/edits", h.ApplyEdits)
	g.POST("/relationships/infer", h.InferRelationships)
	g.POST("/relationships/direction", h.ResolveDirection)
	g.POST("/relationships/push", h.PushTests)
	g.PUT("/layout/source-colors/:source", h.SetSourceColor)
}

// WriteOptions are the concurrency controls sent with every write
type WriteOptions struct {
	// ExpectedFingerprints are the fingerprints the client loaded; empty
	// values fall back to the server's last-known ones.
	ExpectedFingerprints models.Fingerprints `json:"expected_fingerprints"`
	Force                bool                `json:"force"`
}

func (o WriteOptions) saveOptions() store.SaveOptions {
	return store.SaveOptions{Expected: o.ExpectedFingerprints, Force: o.Force}
}

// SaveGraphRequest replaces the whole data model
type SaveGraphRequest struct {
	WriteOptions
	Entities      []models.EntityState  `json:"entities" validate:"required"`
	Relationships []models.Relationship `json:"relationships"`
}

// ApplyEditsRequest applies an atomic delta
type ApplyEditsRequest struct {
	WriteOptions
	Edits []models.Edit `json:"edits" validate:"required,min=1"`
}

// PushTestsRequest selects the relationships to push; empty means all
type PushTestsRequest struct {
	RelationshipIDs []string `json:"relationship_ids"`
}

// SourceColorRequest sets or clears (empty color) a source color
type SourceColorRequest struct {
	Color string `json:"color"`
}

// GetGraph returns the merged graph
// @Summary Load the merged graph
// @Tags Graph
// @Produce json
// @Success 200 {object} models.Graph
// @Failure 422 {object} httperror.HTTPError
// @Router /api/v1/graph [get]
func (h *Handler) GetGraph(c echo.Context) error {
	ctx, svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	graph, err := svc.LoadGraph(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, graph)
}

// SaveGraph replaces the stored entities and relationships
// @Summary Save the data model
// @Tags Graph
// @Accept json
// @Produce json
// @Param body body SaveGraphRequest true "Entities and relationships"
// @Success 200 {object} project.SaveResult
// @Failure 400 {object} httperror.HTTPError
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/graph [put]
func (h *Handler) SaveGraph(c echo.Context) error {
	ctx, svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	var req SaveGraphRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := svc.SaveGraph(ctx, req.Entities, req.Relationships, req.saveOptions())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ApplyEdits applies a delta of edits all-or-nothing
// @Summary Apply graph edits
// @Tags Graph
// @Accept json
// @Produce json
// @Param body body ApplyEditsRequest true "Edits"
// @Success 200 {object} project.SaveResult
// @Failure 400 {object} httperror.HTTPError
// @Failure 409 {object} httperror.HTTPError
// @Router /api/v1/graph/edits [post]
func (h *Handler) ApplyEdits(c echo.Context) error {
	ctx, svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	var req ApplyEditsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := svc.ApplyEdit(ctx, models.GraphDelta{Edits: req.Edits}, req.saveOptions())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// InferRelationships stores relationships inferred from the dbt artifacts
// @Summary Infer relationships
// @Tags Relationships
// @Produce json
// @Success 200 {object} project.InferResult
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/relationships/infer [post]
func (h *Handler) InferRelationships(c echo.Context) error {
	ctx, svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	result, err := svc.InferRelationships(ctx)
	if err != nil {
		return err
	}
	ctx, logger := requireLogger(ctx)
	logger.WithContext(ctx).WithFields(map[string]any{
		"project_dir": context.GetProjectDir(ctx),
		"added":       result.Added,
	}).Debug("inference requested")
	return c.JSON(http.StatusOK, result)
}

// ResolveDirection orients a drag link
// @Summary Resolve relationship direction
// @Tags Relationships
// @Accept json
// @Produce json
// @Param body body models.DragLink true "Drag link"
// @Success 200 {object} models.Resolution
// @Failure 400 {object} httperror.HTTPError
// @Router /api/v1/relationships/direction [post]
func (h *Handler) ResolveDirection(c echo.Context) error {
	ctx, svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	var link models.DragLink
	if err := bind(c, &link); err != nil {
		return err
	}

	result, err := svc.ResolveDirection(ctx, link)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// PushTests writes relationships tests into the dbt schema files
// @Summary Push relationships tests to dbt
// @Tags Relationships
// @Accept json
// @Produce json
// @Param body body PushTestsRequest false "Relationship ids"
// @Success 200 {object} models.PushResult
// @Router /api/v1/relationships/push [post]
func (h *Handler) PushTests(c echo.Context) error {
	ctx, svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	var req PushTestsRequest
	if c.Request().ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}

	result, err := svc.PushTestsToSchema(ctx, req.RelationshipIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// SetSourceColor sets the canvas color of an upstream source
// @Summary Set source color
// @Tags Layout
// @Accept json
// @Produce json
// @Param source path string true "Source label"
// @Param body body SourceColorRequest true "Color"
// @Success 200 {object} project.SaveResult
// @Router /api/v1/layout/source-colors/{source} [put]
func (h *Handler) SetSourceColor(c echo.Context) error {
	ctx, svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	var req SourceColorRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := svc.SetSourceColor(ctx, c.Param("source"), req.Color)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) requireService(c echo.Context) (stdcontext.Context, *project.Service, error) {
	ctx := c.Request().Context()
	if h.service != nil {
		return ctx, h.service, nil
	}

	ctx, svc, err := ectoinject.GetContext[*project.Service](ctx)
	if err != nil || svc == nil {
		return ctx, nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "project service unavailable")
	}
	return ctx, svc, nil
}

func requireLogger(ctx stdcontext.Context) (stdcontext.Context, ectologger.Logger) {
	ctx, logger, err := ectoinject.GetContext[ectologger.Logger](ctx)
	if err != nil || logger == nil {
		return ctx, logging.Discard()
	}
	return ctx, logger
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
