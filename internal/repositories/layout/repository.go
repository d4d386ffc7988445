package layout

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fileio"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is written to the version key of new files
const CurrentVersion = 1

const (
	keyVersion      = "version"
	keyEntities     = "entities"
	keySourceColors = "source_colors"
)

// Document is the parsed canvas layout file
type Document struct {
	Version      int
	Entities     []models.EntityLayout
	SourceColors map[string]string
	// extra holds unknown top-level key/value node pairs in file order.
	extra []*yaml.Node
}

// Lookup returns the layout entry for an entity id
func (d *Document) Lookup(entityID string) (models.EntityLayout, bool) {
	for _, l := range d.Entities {
		if l.ID == entityID {
			return l, true
		}
	}
	return models.EntityLayout{}, false
}

// Patch replaces the entity entries with layouts, keeping source colors and
// unknown keys. Entries for entities not in layouts are dropped.
func (d *Document) Patch(layouts []models.EntityLayout) *Document {
	out := *d
	out.Entities = append([]models.EntityLayout(nil), layouts...)
	return &out
}

// WithSourceColor sets or, with an empty color, removes a source color
func (d *Document) WithSourceColor(source, color string) *Document {
	out := *d
	out.SourceColors = make(map[string]string, len(d.SourceColors)+1)
	for k, v := range d.SourceColors {
		out.SourceColors[k] = v
	}
	if color == "" {
		delete(out.SourceColors, source)
	} else {
		out.SourceColors[source] = color
	}
	return &out
}

// LayoutRepository reads and writes the canvas layout YAML file
type LayoutRepository interface {
	Path() string
	Load(ctx context.Context) (*Document, *fileio.Snapshot, error)
	Encode(doc *Document) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Stage(ctx context.Context, data []byte) (*fileio.Pending, error)
}

// Repository implements LayoutRepository
type Repository struct {
	path   string
	logger ectologger.Logger
}

// NewRepository creates a new layout repository
func NewRepository(path string, logger ectologger.Logger) *Repository {
	return &Repository{
		path:   path,
		logger: logger,
	}
}

func (r *Repository) Path() string {
	return r.path
}

// Load reads the layout file. A missing file is an empty layout.
func (r *Repository) Load(ctx context.Context) (*Document, *fileio.Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "LayoutRepository.Load")
	defer span.End()

	snap, err := fileio.Read(r.path)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to read layout file")
		return nil, nil, errors.Newf(errors.KindIO, "failed to read layout: %w", err).WithPath(r.path)
	}
	if !snap.Exists {
		return &Document{Version: CurrentVersion, SourceColors: map[string]string{}}, snap, nil
	}

	doc, err := Decode(snap.Data)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"path": r.path,
		}).Error("failed to parse layout file")
		return nil, nil, errors.Malformed(r.path, err)
	}
	return doc, snap, nil
}

// Decode parses layout YAML. Missing width or panel height fall back to defaults.
func Decode(data []byte) (*Document, error) {
	doc := &Document{Version: CurrentVersion, SourceColors: map[string]string{}}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return doc, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping at the top level", top.Line)
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		var err error
		switch key.Value {
		case keyVersion:
			err = value.Decode(&doc.Version)
		case keyEntities:
			err = value.Decode(&doc.Entities)
		case keySourceColors:
			err = value.Decode(&doc.SourceColors)
		default:
			doc.extra = append(doc.extra, key, value)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key.Value, err)
		}
	}
	if doc.SourceColors == nil {
		doc.SourceColors = map[string]string{}
	}

	for i := range doc.Entities {
		if doc.Entities[i].Width == 0 {
			doc.Entities[i].Width = models.DefaultEntityWidth
		}
		if doc.Entities[i].PanelHeight == 0 {
			doc.Entities[i].PanelHeight = models.DefaultEntityPanelHeight
		}
	}
	return doc, nil
}

func (r *Repository) Encode(doc *Document) ([]byte, error) {
	return Encode(doc)
}

// Encode renders the layout document with known keys first
func Encode(doc *Document) ([]byte, error) {
	version := doc.Version
	if version == 0 {
		version = CurrentVersion
	}
	entities := doc.Entities
	if entities == nil {
		entities = []models.EntityLayout{}
	}
	colors := doc.SourceColors
	if colors == nil {
		colors = map[string]string{}
	}

	top := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, kv := range []struct {
		key   string
		value any
	}{
		{keyVersion, version},
		{keyEntities, entities},
		{keySourceColors, colors},
	} {
		var value yaml.Node
		if err := value.Encode(kv.value); err != nil {
			return nil, fmt.Errorf("%s: %w", kv.key, err)
		}
		top.Content = append(top.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.key}, &value)
	}
	top.Content = append(top.Content, doc.extra...)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(top); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write atomically replaces the layout file
func (r *Repository) Write(ctx context.Context, data []byte) error {
	ctx, span := tracing.StartSpan(ctx, "LayoutRepository.Write")
	defer span.End()

	if err := fileio.WriteAtomic(r.path, data); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).Error("failed to write layout file")
		return errors.Newf(errors.KindIO, "failed to write layout: %w", err).WithPath(r.path)
	}
	return nil
}

// Stage writes data to a temp file beside the layout file. The caller
// commits or discards it.
func (r *Repository) Stage(ctx context.Context, data []byte) (*fileio.Pending, error) {
	ctx, span := tracing.StartSpan(ctx, "LayoutRepository.Stage")
	defer span.End()

	pending, err := fileio.Stage(r.path, data)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).Error("failed to stage layout file")
		return nil, errors.Newf(errors.KindIO, "failed to write layout: %w", err).WithPath(r.path)
	}
	return pending, nil
}
