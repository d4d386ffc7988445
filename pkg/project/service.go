// Package project is the session boundary: it ties the artifact reader, the
// data-model store and the schema files of one dbt project together.
package project

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/datamodel"
	"github.com/Ramsey-B/fern/internal/repositories/layout"
	"github.com/Ramsey-B/fern/internal/repositories/schemafile"
	"github.com/Ramsey-B/fern/pkg/artifacts"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/inference"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/store"
)

// ArtifactReader loads the dbt model index
type ArtifactReader interface {
	Read(ctx context.Context) (*models.ModelIndex, error)
}

// Options tune inference behavior
type Options struct {
	NamingHeuristics bool
	// AutoBootstrap infers and stores relationships at load when none are stored.
	AutoBootstrap bool
}

// SaveResult is returned by every write
type SaveResult struct {
	Fingerprints  models.Fingerprints `json:"fingerprints"`
	Entities      int                 `json:"entities"`
	Relationships int                 `json:"relationships"`
}

// InferResult reports an inference run and what was stored
type InferResult struct {
	inference.Result
	Added        int                 `json:"added"`
	Fingerprints models.Fingerprints `json:"fingerprints"`
}

// Service implements the boundary operations for one project. Apart from
// the last-known file fingerprints it keeps no state between calls.
type Service struct {
	reader ArtifactReader
	store  *store.Store
	schema schemafile.SchemaFileRepository
	opts   Options
	logger ectologger.Logger

	mu           sync.Mutex
	fingerprints models.Fingerprints
}

// New creates a project service from its collaborators
func New(reader ArtifactReader, st *store.Store, schema schemafile.SchemaFileRepository, opts Options, logger ectologger.Logger) *Service {
	return &Service{
		reader: reader,
		store:  st,
		schema: schema,
		opts:   opts,
		logger: logger,
	}
}

// NewFromConfig wires the file-backed collaborators for the configured project
func NewFromConfig(cfg *config.Config, logger ectologger.Logger) *Service {
	reader := artifacts.NewReader(cfg.ManifestPath(), cfg.CatalogPath(), logger)
	st := store.New(
		datamodel.NewRepository(cfg.DataModelFile(), logger),
		layout.NewRepository(cfg.CanvasLayoutFile(), logger),
		logger,
	)
	schema := schemafile.NewRepository(cfg.DbtProjectDir, logger)
	return New(reader, st, schema, Options{
		NamingHeuristics: cfg.InferNamingHeuristics,
		AutoBootstrap:    cfg.AutoBootstrapRelationships,
	}, logger)
}

// Fingerprints returns the fingerprints of the last load or save
func (s *Service) Fingerprints() models.Fingerprints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fingerprints
}

func (s *Service) remember(fps models.Fingerprints) {
	s.mu.Lock()
	s.fingerprints = fps
	s.mu.Unlock()
}

// expected fills missing fingerprints with the last-known ones
func (s *Service) expected(opts store.SaveOptions) store.SaveOptions {
	known := s.Fingerprints()
	if opts.Expected.DataModel == "" {
		opts.Expected.DataModel = known.DataModel
	}
	if opts.Expected.Layout == "" {
		opts.Expected.Layout = known.Layout
	}
	return opts
}

// readIndex reads the artifacts. Read failures degrade to a nil index plus
// a warning so the data model can still be shown.
func (s *Service) readIndex(ctx context.Context) (*models.ModelIndex, *models.Warning) {
	idx, err := s.reader.Read(ctx)
	if err == nil {
		return idx, nil
	}

	log := s.logger.WithContext(ctx).WithError(err)
	kind := models.WarningMalformedArtifact
	if errors.IsMissingArtifact(err) {
		kind = models.WarningMissingArtifact
		log.Info("no dbt project configured")
	} else {
		log.Warn("failed to read dbt artifacts")
	}
	return nil, &models.Warning{Kind: kind, Message: err.Error()}
}

func (s *Service) loadSession(ctx context.Context, index *models.ModelIndex) (*store.Snapshot, *identity.Resolver, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snap, identity.New(index, snap.SemanticEntities()), nil
}
