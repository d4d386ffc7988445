// Package store owns the data-model and canvas layout files: it loads them
// as one snapshot and writes them back with conflict detection.
package store

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/repositories/datamodel"
	"github.com/Ramsey-B/fern/internal/repositories/layout"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fileio"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Snapshot is the persisted data model at load time
type Snapshot struct {
	Entities      []models.EntityState
	Relationships []models.Relationship
	// RelationshipsDeclared is false until relationships have been stored
	// once. An explicitly empty list counts as declared.
	RelationshipsDeclared bool
	SourceColors          map[string]string
	Fingerprints          models.Fingerprints
}

// Entity returns the entity with the given id
func (s *Snapshot) Entity(id string) (models.EntityState, bool) {
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return models.EntityState{}, false
}

// SemanticEntities returns the entities without their layout
func (s *Snapshot) SemanticEntities() []models.Entity {
	out := make([]models.Entity, len(s.Entities))
	for i, e := range s.Entities {
		out[i] = e.Entity
	}
	return out
}

// SaveOptions controls conflict handling on save
type SaveOptions struct {
	// Expected are the fingerprints the caller loaded. Empty values skip the check for that file.
	Expected models.Fingerprints
	// Force overwrites even when the files changed on disk.
	Force bool
}

// Store reads and writes the data model as a unit
type Store struct {
	dataModel datamodel.DataModelRepository
	layout    layout.LayoutRepository
	logger    ectologger.Logger
	mu        sync.Mutex
}

// New creates a new store
func New(dataModel datamodel.DataModelRepository, layoutRepo layout.LayoutRepository, logger ectologger.Logger) *Store {
	return &Store{
		dataModel: dataModel,
		layout:    layoutRepo,
		logger:    logger,
	}
}

// Load reads both files. Entities without a layout entry get the default layout.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "Store.Load")
	defer span.End()

	doc, dmSnap, err := s.dataModel.Load(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	layoutDoc, layoutSnap, err := s.layout.Load(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	snap := &Snapshot{
		Entities:              make([]models.EntityState, 0, len(doc.Entities)),
		Relationships:         doc.Relationships,
		RelationshipsDeclared: doc.RelationshipsDeclared,
		SourceColors:          layoutDoc.SourceColors,
		Fingerprints: models.Fingerprints{
			DataModel: dmSnap.Fingerprint,
			Layout:    layoutSnap.Fingerprint,
		},
	}
	if snap.Relationships == nil {
		snap.Relationships = []models.Relationship{}
	}
	for _, e := range doc.Entities {
		l, ok := layoutDoc.Lookup(e.ID)
		if !ok {
			l = models.DefaultLayout(e.ID)
		}
		snap.Entities = append(snap.Entities, models.EntityState{Entity: e, Layout: &l})
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entities":      len(snap.Entities),
		"relationships": len(snap.Relationships),
	}).Debug("loaded data model")
	return snap, nil
}

// Save splits entities into their semantic and visual halves and writes
// both files. When either file changed since the expected fingerprints were
// taken, Save returns a Conflict and writes nothing unless opts.Force is set.
func (s *Store) Save(ctx context.Context, entities []models.EntityState, relationships []models.Relationship, opts SaveOptions) (models.Fingerprints, error) {
	ctx, span := tracing.StartSpan(ctx, "Store.Save")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	fps, err := s.save(ctx, entities, relationships, opts)
	if err != nil {
		tracing.RecordError(span, err)
		status := string(errors.KindOf(err))
		if status == "" {
			status = "error"
		}
		metrics.SavesTotal.WithLabelValues(status).Inc()
		return models.Fingerprints{}, err
	}
	metrics.SavesTotal.WithLabelValues("ok").Inc()
	return fps, nil
}

func (s *Store) save(ctx context.Context, entities []models.EntityState, relationships []models.Relationship, opts SaveOptions) (models.Fingerprints, error) {
	log := s.logger.WithContext(ctx)

	doc, dmSnap, err := s.dataModel.Load(ctx)
	if err != nil && !opts.Force {
		return models.Fingerprints{}, err
	}
	if doc == nil {
		// forced over an unreadable file
		doc = &datamodel.Document{}
	}
	layoutDoc, layoutSnap, err := s.layout.Load(ctx)
	if err != nil && !opts.Force {
		return models.Fingerprints{}, err
	}
	if layoutDoc == nil {
		layoutDoc = &layout.Document{}
	}

	if !opts.Force {
		if err := s.checkConflict(dmSnap.Fingerprint, opts.Expected.DataModel, s.dataModel.Path()); err != nil {
			log.WithFields(map[string]any{"path": s.dataModel.Path()}).Warn("data model changed on disk since load")
			return models.Fingerprints{}, err
		}
		if err := s.checkConflict(layoutSnap.Fingerprint, opts.Expected.Layout, s.layout.Path()); err != nil {
			log.WithFields(map[string]any{"path": s.layout.Path()}).Warn("layout changed on disk since load")
			return models.Fingerprints{}, err
		}
	}

	semantic := make([]models.Entity, len(entities))
	layouts := make([]models.EntityLayout, len(entities))
	for i, e := range entities {
		semantic[i] = e.Entity
		switch {
		case e.Layout != nil:
			layouts[i] = *e.Layout
			layouts[i].ID = e.ID
		default:
			if existing, ok := layoutDoc.Lookup(e.ID); ok {
				layouts[i] = existing
			} else {
				layouts[i] = models.DefaultLayout(e.ID)
			}
		}
	}

	doc.Entities = semantic
	doc.Relationships = append([]models.Relationship(nil), relationships...)
	datamodel.AssignRelationshipIDs(doc.Relationships)

	dmData, err := s.dataModel.Encode(doc)
	if err != nil {
		return models.Fingerprints{}, errors.Newf(errors.KindIO, "failed to encode data model: %w", err).WithPath(s.dataModel.Path())
	}
	layoutData, err := s.layout.Encode(layoutDoc.Patch(layouts))
	if err != nil {
		return models.Fingerprints{}, errors.Newf(errors.KindIO, "failed to encode layout: %w", err).WithPath(s.layout.Path())
	}

	if err := ctx.Err(); err != nil {
		return models.Fingerprints{}, err
	}
	if err := s.commit(ctx, dmData, layoutData); err != nil {
		return models.Fingerprints{}, err
	}

	fps := models.Fingerprints{
		DataModel: fingerprint.FromBytes(dmData),
		Layout:    fingerprint.FromBytes(layoutData),
	}
	log.WithFields(map[string]any{
		"entities":      len(entities),
		"relationships": len(relationships),
		"forced":        opts.Force,
	}).Info("saved data model")
	return fps, nil
}

// SetSourceColor updates one entry of the layout's source colors. An empty
// color removes the entry. The data-model file is not touched.
func (s *Store) SetSourceColor(ctx context.Context, source, color string, opts SaveOptions) (models.Fingerprints, error) {
	ctx, span := tracing.StartSpan(ctx, "Store.SetSourceColor")
	defer span.End()

	if source == "" {
		return models.Fingerprints{}, errors.Validation("source name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	layoutDoc, layoutSnap, err := s.layout.Load(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return models.Fingerprints{}, err
	}
	if !opts.Force {
		if err := s.checkConflict(layoutSnap.Fingerprint, opts.Expected.Layout, s.layout.Path()); err != nil {
			return models.Fingerprints{}, err
		}
	}

	data, err := s.layout.Encode(layoutDoc.WithSourceColor(source, color))
	if err != nil {
		return models.Fingerprints{}, errors.Newf(errors.KindIO, "failed to encode layout: %w", err).WithPath(s.layout.Path())
	}
	if err := s.layout.Write(ctx, data); err != nil {
		tracing.RecordError(span, err)
		return models.Fingerprints{}, err
	}

	dmFingerprint, err := fingerprint.FromFile(s.dataModel.Path())
	if err != nil {
		return models.Fingerprints{}, errors.Newf(errors.KindIO, "failed to fingerprint data model: %w", err).WithPath(s.dataModel.Path())
	}
	return models.Fingerprints{DataModel: dmFingerprint, Layout: fingerprint.FromBytes(data)}, nil
}

// commit stages both files before replacing either, so a failed write of
// one leaves both untouched. Only the renames themselves can split the
// pair; the error then lists the files that were replaced.
func (s *Store) commit(ctx context.Context, dmData, layoutData []byte) error {
	dmPending, err := s.dataModel.Stage(ctx, dmData)
	if err != nil {
		return err
	}
	layoutPending, err := s.layout.Stage(ctx, layoutData)
	if err != nil {
		dmPending.Discard()
		return err
	}

	committed, err := fileio.Commit(dmPending, layoutPending)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"committed": committed,
		}).Error("data model and layout were only partially saved")
		return errors.Newf(errors.KindIO, "failed to save data model: %w", err).
			WithMeta("committed", committed)
	}
	return nil
}

func (s *Store) checkConflict(current, expected, path string) error {
	if expected == "" || !fingerprint.HasChanged(expected, current) {
		return nil
	}
	return errors.Conflict(path).
		WithMeta("expected_fingerprint", fingerprint.Short(expected, 12)).
		WithMeta("current_fingerprint", fingerprint.Short(current, 12))
}
