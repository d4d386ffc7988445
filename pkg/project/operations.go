package project

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/direction"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/inference"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadGraph builds the merged graph. A missing or unreadable dbt project
// yields a graph with ProjectConfigured=false; a malformed data-model file
// is an error. When relationships were never stored and bootstrapping is
// enabled, relationships inferred from the artifacts are stored first. An
// explicitly empty relationships list is left alone.
func (s *Service) LoadGraph(ctx context.Context) (*models.Graph, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Service.LoadGraph")
	defer span.End()

	start := time.Now()
	log := s.logger.WithContext(ctx)

	index, warning := s.readIndex(ctx)
	snap, resolver, err := s.loadSession(ctx, index)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.GraphLoadsTotal.WithLabelValues("error").Inc()
		log.WithError(err).Error("failed to load data model")
		return nil, err
	}

	bootstrapped := false
	if s.opts.AutoBootstrap && index != nil && !snap.RelationshipsDeclared && len(snap.Entities) > 0 {
		res := inference.InferFromArtifacts(index, resolver, nil, inference.Options{NamingHeuristics: s.opts.NamingHeuristics})
		if len(res.Proposals) > 0 {
			rels := proposalsToRelationships(res.Proposals)
			fps, err := s.store.Save(ctx, snap.Entities, rels, store.SaveOptions{Expected: snap.Fingerprints})
			if err != nil {
				log.WithError(err).Warn("failed to store bootstrapped relationships")
			} else {
				recordInference(res, len(res.Proposals))
				snap.Relationships = rels
				snap.RelationshipsDeclared = true
				snap.Fingerprints = fps
				bootstrapped = true
				log.WithFields(map[string]any{"relationships": len(rels)}).Info("bootstrapped relationships from dbt tests")
			}
		}
	}

	graph := merging.BuildGraph(index, snap, resolver)
	graph.Bootstrapped = bootstrapped
	if warning != nil {
		graph.Warnings = append([]models.Warning{*warning}, graph.Warnings...)
	}
	s.remember(graph.Fingerprints)

	metrics.GraphLoadsTotal.WithLabelValues("ok").Inc()
	log.WithFields(map[string]any{
		"entities":           len(graph.Entities),
		"relationships":      len(graph.Relationships),
		"warnings":           len(graph.Warnings),
		"project_configured": graph.ProjectConfigured,
		"duration_ms":        time.Since(start).Milliseconds(),
	}).Debug("loaded graph")
	return graph, nil
}

// SaveGraph replaces the stored entities and relationships. Missing expected
// fingerprints default to those of the last load or save.
func (s *Service) SaveGraph(ctx context.Context, entities []models.EntityState, relationships []models.Relationship, opts store.SaveOptions) (*SaveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Service.SaveGraph")
	defer span.End()

	if err := merging.ValidateGraph(entities, relationships); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return s.save(ctx, entities, relationships, opts)
}

// ApplyEdit applies an atomic delta to the stored model and saves it
func (s *Service) ApplyEdit(ctx context.Context, delta models.GraphDelta, opts store.SaveOptions) (*SaveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Service.ApplyEdit")
	defer span.End()

	snap, err := s.store.Load(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	entities, relationships, err := merging.ApplyEdit(snap, delta)
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).Warn("rejected graph edit")
		return nil, err
	}
	return s.save(ctx, entities, relationships, opts)
}

func (s *Service) save(ctx context.Context, entities []models.EntityState, relationships []models.Relationship, opts store.SaveOptions) (*SaveResult, error) {
	fps, err := s.store.Save(ctx, entities, relationships, s.expected(opts))
	if err != nil {
		return nil, err
	}
	s.remember(fps)
	return &SaveResult{
		Fingerprints:  fps,
		Entities:      len(entities),
		Relationships: len(relationships),
	}, nil
}

// InferRelationships proposes edges from the artifacts and stores the ones
// not equivalent to an existing edge. Stored edges are never changed.
func (s *Service) InferRelationships(ctx context.Context) (*InferResult, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Service.InferRelationships")
	defer span.End()

	index, err := s.reader.Read(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	snap, resolver, err := s.loadSession(ctx, index)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	res := inference.InferFromArtifacts(index, resolver, snap.Relationships, inference.Options{NamingHeuristics: s.opts.NamingHeuristics})
	out := &InferResult{Result: res, Fingerprints: snap.Fingerprints}
	if len(res.Proposals) == 0 {
		recordInference(res, 0)
		s.remember(snap.Fingerprints)
		return out, nil
	}

	rels := append(append([]models.Relationship{}, snap.Relationships...), proposalsToRelationships(res.Proposals)...)
	saved, err := s.save(ctx, snap.Entities, rels, store.SaveOptions{Expected: snap.Fingerprints})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	recordInference(res, len(res.Proposals))

	out.Added = len(res.Proposals)
	out.Fingerprints = saved.Fingerprints
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"added":   out.Added,
		"skipped": len(res.Skipped),
	}).Info("stored inferred relationships")
	return out, nil
}

// PushTestsToSchema writes relationships tests for the given edges (all
// edges when ids is empty) into the dbt schema files.
func (s *Service) PushTestsToSchema(ctx context.Context, ids []string) (*models.PushResult, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Service.PushTestsToSchema")
	defer span.End()

	index, err := s.reader.Read(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	snap, resolver, err := s.loadSession(ctx, index)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	tests, skipped := merging.PlanSchemaTests(resolver, snap.Relationships, ids)
	result := &models.PushResult{Items: []models.PushItem{}, FilesWritten: []string{}, Reformatted: []string{}}

	var paths []string
	byPath := map[string][]models.SchemaTest{}
	for _, t := range tests {
		if _, ok := byPath[t.Path]; !ok {
			paths = append(paths, t.Path)
		}
		byPath[t.Path] = append(byPath[t.Path], t)
	}

	for _, path := range paths {
		fileResult, err := s.schema.Apply(ctx, path, byPath[path])
		if err != nil {
			tracing.RecordError(span, err)
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"path":          path,
				"files_written": result.FilesWritten,
			}).Error("failed to push tests to schema file")
			return nil, err
		}
		for _, t := range fileResult.Added {
			result.Items = append(result.Items, pushItem(t, models.PushAdded))
		}
		for _, t := range fileResult.AlreadyPresent {
			result.Items = append(result.Items, pushItem(t, models.PushAlreadyPresent))
		}
		if fileResult.Written {
			result.FilesWritten = append(result.FilesWritten, fileResult.Path)
		}
		if fileResult.Reformatted {
			result.Reformatted = append(result.Reformatted, fileResult.Path)
		}
	}
	result.Items = append(result.Items, skipped...)

	for _, outcome := range []models.PushOutcome{models.PushAdded, models.PushAlreadyPresent, models.PushSkipped} {
		if n := result.Count(outcome); n > 0 {
			metrics.SchemaTestsPushedTotal.WithLabelValues(string(outcome)).Add(float64(n))
		}
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"added":           result.Count(models.PushAdded),
		"already_present": result.Count(models.PushAlreadyPresent),
		"skipped":         result.Count(models.PushSkipped),
		"files":           len(result.FilesWritten),
		"reformatted":     len(result.Reformatted),
	}).Info("pushed relationships tests to schema files")
	return result, nil
}

// ResolveDirection orients a drag link between two existing entities
func (s *Service) ResolveDirection(ctx context.Context, link models.DragLink) (*models.Resolution, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Service.ResolveDirection")
	defer span.End()

	if err := validate.Struct(link); err != nil {
		return nil, errors.Validation("invalid drag link: %s", err.Error())
	}

	index, _ := s.readIndex(ctx)
	snap, resolver, err := s.loadSession(ctx, index)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	for _, id := range []string{link.SourceEntity, link.TargetEntity} {
		if _, ok := snap.Entity(id); !ok {
			return nil, errors.Validation("entity %s does not exist", id).WithMeta("entity_id", id)
		}
	}

	res := direction.Resolve(link, resolver)
	return &res, nil
}

// SetSourceColor sets the color of an upstream source; an empty color removes it
func (s *Service) SetSourceColor(ctx context.Context, source, color string) (*SaveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Service.SetSourceColor")
	defer span.End()

	fps, err := s.store.SetSourceColor(ctx, source, color, s.expected(store.SaveOptions{}))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	s.remember(fps)
	return &SaveResult{Fingerprints: fps}, nil
}

func proposalsToRelationships(proposals []models.ProposedRelationship) []models.Relationship {
	rels := make([]models.Relationship, len(proposals))
	for i, p := range proposals {
		rels[i] = p.Relationship
	}
	return rels
}

func recordInference(res inference.Result, accepted int) {
	if accepted > 0 {
		for _, p := range res.Proposals {
			metrics.InferredRelationshipsTotal.WithLabelValues(string(p.Origin), "accepted").Inc()
		}
	}
	for _, skip := range res.Skipped {
		metrics.InferredRelationshipsTotal.WithLabelValues("none", string(skip.Reason)).Inc()
	}
}

func pushItem(t models.SchemaTest, outcome models.PushOutcome) models.PushItem {
	return models.PushItem{
		RelationshipID: t.RelationshipID,
		Outcome:        outcome,
		Path:           t.Path,
		Model:          t.Model,
		Column:         t.Column,
	}
}
