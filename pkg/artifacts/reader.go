// Package artifacts reads dbt manifest and catalog files into a model index.
package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/fileio"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Test node metadata moved between dbt versions; each expression tries the
// current location first.
const (
	exprTestName   = "test_metadata.name"
	exprTestTo     = "test_metadata.kwargs.to || kwargs.to"
	exprTestField  = "test_metadata.kwargs.field || kwargs.field"
	exprTestColumn = "column_name || test_metadata.kwargs.column_name || kwargs.column_name"
	exprTestModel  = "test_metadata.kwargs.model || kwargs.model"
	exprAttached   = "attached_node"
	exprDependsOn  = "depends_on.nodes"
)

// Reader loads dbt artifacts from disk
type Reader struct {
	manifestPath string
	catalogPath  string
	logger       ectologger.Logger
	evaluator    *expressions.Evaluator
}

// NewReader creates a new artifact reader
func NewReader(manifestPath, catalogPath string, logger ectologger.Logger) *Reader {
	return &Reader{
		manifestPath: manifestPath,
		catalogPath:  catalogPath,
		logger:       logger,
		evaluator:    expressions.NewEvaluator(),
	}
}

// Read parses the manifest and catalog into a model index. A missing
// manifest fails with MissingArtifact; a missing or stale catalog only adds
// warnings.
func (r *Reader) Read(ctx context.Context) (*models.ModelIndex, error) {
	ctx, span := tracing.StartSpan(ctx, "artifacts.Reader.Read")
	defer span.End()

	start := time.Now()
	idx, err := r.read(ctx)
	metrics.ArtifactReadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ArtifactReadsTotal.WithLabelValues(string(errors.KindOf(err))).Inc()
		tracing.RecordError(span, err)
		return nil, err
	}
	metrics.ArtifactReadsTotal.WithLabelValues("ok").Inc()
	return idx, nil
}

func (r *Reader) read(ctx context.Context) (*models.ModelIndex, error) {
	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"manifest_path": r.manifestPath,
		"catalog_path":  r.catalogPath,
	})

	manifestSnap, err := fileio.Read(r.manifestPath)
	if err != nil {
		return nil, errors.Newf(errors.KindIO, "failed to read manifest: %w", err).WithPath(r.manifestPath)
	}
	if !manifestSnap.Exists {
		log.Warn("dbt manifest not found")
		return nil, errors.MissingArtifact(r.manifestPath)
	}

	catalogSnap, err := fileio.Read(r.catalogPath)
	if err != nil {
		log.WithError(err).Warn("Failed to read dbt catalog, continuing without column types")
		catalogSnap = &fileio.Snapshot{Path: r.catalogPath}
	}

	idx, err := r.parse(manifestSnap, catalogSnap)
	if err != nil {
		log.WithError(err).Error("Failed to parse dbt artifacts")
		return nil, err
	}

	log.WithFields(map[string]any{
		"models":   idx.Len(),
		"warnings": len(idx.Warnings),
	}).Debug("Read dbt artifacts")
	return idx, nil
}

// parse builds an index from already-read artifact snapshots
func (r *Reader) parse(manifestSnap, catalogSnap *fileio.Snapshot) (*models.ModelIndex, error) {
	var manifest manifestFile
	if err := json.Unmarshal(manifestSnap.Data, &manifest); err != nil {
		return nil, errors.Malformed(manifestSnap.Path, err)
	}

	idx := models.NewModelIndex()
	var testNodes []json.RawMessage

	for _, entry := range manifest.Nodes {
		var node manifestNode
		if err := json.Unmarshal(entry.Value, &node); err != nil {
			return nil, errors.Malformed(manifestSnap.Path, fmt.Errorf("node %s: %w", entry.Key, err))
		}
		switch node.ResourceType {
		case "model":
			model, err := buildModel(entry.Key, node)
			if err != nil {
				return nil, errors.Malformed(manifestSnap.Path, err)
			}
			idx.Add(model)
		case "test":
			testNodes = append(testNodes, entry.Value)
		}
	}

	if err := r.applyCatalog(idx, manifest.Metadata, catalogSnap); err != nil {
		return nil, err
	}

	for _, raw := range testNodes {
		if err := r.attachTest(idx, raw); err != nil {
			return nil, errors.Malformed(manifestSnap.Path, err)
		}
	}

	return idx, nil
}

func buildModel(key string, node manifestNode) (*models.Model, error) {
	uniqueID := node.UniqueID
	if uniqueID == "" {
		uniqueID = key
	}

	model := &models.Model{
		UniqueID:         uniqueID,
		Name:             node.Name,
		PackageName:      node.PackageName,
		Path:             node.Path,
		OriginalFilePath: node.OriginalFilePath,
		PatchPath:        node.PatchPath,
		Folder:           folderOf(node.Path),
		Description:      node.Description,
		Tags:             node.Tags,
	}

	for _, colEntry := range node.Columns {
		var col manifestColumn
		if err := json.Unmarshal(colEntry.Value, &col); err != nil {
			return nil, fmt.Errorf("model %s column %s: %w", uniqueID, colEntry.Key, err)
		}
		name := col.Name
		if name == "" {
			name = colEntry.Key
		}
		column := models.Column{
			Name:        name,
			DataType:    col.DataType,
			Description: col.Description,
		}
		for _, c := range col.Constraints {
			column.Constraints = append(column.Constraints, c.Type)
		}
		model.Columns = append(model.Columns, column)
	}
	return model, nil
}

func folderOf(modelPath string) string {
	dir := path.Dir(strings.ReplaceAll(modelPath, "\\", "/"))
	if dir == "." {
		return ""
	}
	return dir
}

func (r *Reader) applyCatalog(idx *models.ModelIndex, manifestMeta artifactMetadata, snap *fileio.Snapshot) error {
	if !snap.Exists {
		idx.Warnings = append(idx.Warnings, models.Warning{
			Kind:    models.WarningMissingCatalog,
			Message: "dbt catalog not found; column types are unavailable (run `dbt docs generate`)",
		})
		return nil
	}

	var catalog catalogFile
	if err := json.Unmarshal(snap.Data, &catalog); err != nil {
		return errors.Malformed(snap.Path, err)
	}

	if catalog.Metadata.GeneratedAt != "" && manifestMeta.GeneratedAt != "" &&
		catalog.Metadata.GeneratedAt < manifestMeta.GeneratedAt {
		idx.Warnings = append(idx.Warnings, models.Warning{
			Kind:    models.WarningStaleCatalog,
			Message: "dbt catalog is older than the manifest; column lists may be incomplete",
		})
	}

	for _, id := range idx.IDs() {
		model := idx.Get(id)
		node, ok := catalog.Nodes[id]
		if !ok {
			idx.Warnings = append(idx.Warnings, models.Warning{
				Kind:    models.WarningStaleCatalog,
				ModelID: id,
				Message: fmt.Sprintf("model %s is missing from the catalog", model.Name),
			})
			continue
		}
		mergeCatalogColumns(model, node)
	}
	return nil
}

func mergeCatalogColumns(model *models.Model, node catalogNode) {
	for key, col := range node.Columns {
		name := col.Name
		if name == "" {
			name = key
		}
		if existing := model.Column(name); existing != nil {
			existing.DataType = col.Type
			existing.Index = col.Index
			continue
		}
		model.Columns = append(model.Columns, models.Column{
			Name:     strings.ToLower(name),
			DataType: col.Type,
			Index:    col.Index,
		})
	}
	models.SortColumns(model.Columns)
}

// attachTest records a generic test on the column it constrains.
func (r *Reader) attachTest(idx *models.ModelIndex, raw json.RawMessage) error {
	var node map[string]any
	if err := json.Unmarshal(raw, &node); err != nil {
		return err
	}

	testName, err := r.evaluator.String(exprTestName, node)
	if err != nil {
		return err
	}
	columnName, err := r.evaluator.String(exprTestColumn, node)
	if err != nil {
		return err
	}
	if testName == "" || columnName == "" {
		// singular or model-level tests carry no column signal
		return nil
	}

	uniqueID, _ := node["unique_id"].(string)
	decl := models.TestDeclaration{UniqueID: uniqueID, Name: testName}

	model := r.owningModel(idx, node)
	if model == nil {
		return nil
	}

	if testName == models.TestRelationships {
		to, err := r.evaluator.String(exprTestTo, node)
		if err != nil {
			return err
		}
		field, err := r.evaluator.String(exprTestField, node)
		if err != nil {
			return err
		}
		decl.ToRef = to
		decl.ToField = field

		if target, ok := ResolveRef(idx, to); ok && field != "" {
			decl.ToModelID = target
		} else {
			decl.Unresolved = true
			metrics.UnresolvedReferencesTotal.Inc()
			idx.Warnings = append(idx.Warnings, models.Warning{
				Kind:    models.WarningUnresolvedReference,
				ModelID: model.UniqueID,
				Ref:     to,
				Message: errors.UnresolvedReference(to).Message,
			})
		}
	}

	column := model.Column(columnName)
	if column == nil {
		model.Columns = append(model.Columns, models.Column{Name: columnName})
		column = &model.Columns[len(model.Columns)-1]
	}
	column.Tests = append(column.Tests, decl)
	return nil
}

// owningModel finds the model a test is attached to: attached_node, then
// the model kwarg, then the only model dependency that is not the referenced one.
func (r *Reader) owningModel(idx *models.ModelIndex, node map[string]any) *models.Model {
	if attached, _ := r.evaluator.String(exprAttached, node); attached != "" {
		return idx.Get(attached)
	}

	if modelArg, _ := r.evaluator.String(exprTestModel, node); modelArg != "" {
		if id, ok := ResolveRef(idx, modelArg); ok {
			return idx.Get(id)
		}
	}

	deps, _ := r.evaluator.Strings(exprDependsOn, node)
	to, _ := r.evaluator.String(exprTestTo, node)
	referenced, _ := ResolveRef(idx, to)

	var candidates []string
	for _, dep := range deps {
		if idx.Has(dep) && dep != referenced {
			candidates = append(candidates, dep)
		}
	}
	switch {
	case len(candidates) == 1:
		return idx.Get(candidates[0])
	case len(candidates) == 0 && referenced != "" && len(deps) == 1:
		// self-referencing relationships test
		return idx.Get(referenced)
	}
	return nil
}
