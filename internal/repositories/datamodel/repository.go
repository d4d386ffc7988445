package datamodel

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
	keyVersion       = "version"
	keyEntities      = "entities"
	keyRelationships = "relationships"
)

// Document is the parsed data-model file
type Document struct {
	Version       int
	Entities      []models.Entity
	Relationships []models.Relationship
	// RelationshipsDeclared is set when the file has a relationships key,
	// even an empty one.
	RelationshipsDeclared bool

	// root is the parsed file. Encode patches a copy of it so comments and
	// keys this package does not know about survive a save.
	root              *yaml.Node
	entityNodes       map[string]*yaml.Node
	relationshipNodes map[string]*yaml.Node
}

// DataModelRepository reads and writes the hand-authored data-model YAML file
type DataModelRepository interface {
	Path() string
	Load(ctx context.Context) (*Document, *fileio.Snapshot, error)
	Encode(doc *Document) ([]byte, error)
	Stage(ctx context.Context, data []byte) (*fileio.Pending, error)
}

// Repository implements DataModelRepository
type Repository struct {
	path   string
	logger ectologger.Logger
}

// NewRepository creates a new data model repository
func NewRepository(path string, logger ectologger.Logger) *Repository {
	return &Repository{
		path:   path,
		logger: logger,
	}
}

func (r *Repository) Path() string {
	return r.path
}

// Load reads the data-model file. A missing file is an empty document.
func (r *Repository) Load(ctx context.Context) (*Document, *fileio.Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "DataModelRepository.Load")
	defer span.End()

	snap, err := fileio.Read(r.path)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to read data model file")
		return nil, nil, errors.Newf(errors.KindIO, "failed to read data model: %w", err).WithPath(r.path)
	}
	if !snap.Exists {
		return &Document{Version: CurrentVersion}, snap, nil
	}

	doc, err := Decode(snap.Data)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"path": r.path,
		}).Error("failed to parse data model file")
		return nil, nil, errors.Malformed(r.path, err)
	}
	return doc, snap, nil
}

// Decode parses data-model YAML. Relationships written without an id get a
// deterministic id derived from their content.
func Decode(data []byte) (*Document, error) {
	doc := &Document{Version: CurrentVersion}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		// empty file
		return doc, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping at the top level", top.Line)
	}
	doc.root = &root

	var entitiesNode, relationshipsNode *yaml.Node
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		var err error
		switch key.Value {
		case keyVersion:
			err = value.Decode(&doc.Version)
		case keyEntities:
			entitiesNode = value
			err = value.Decode(&doc.Entities)
		case keyRelationships:
			relationshipsNode = value
			doc.RelationshipsDeclared = true
			err = value.Decode(&doc.Relationships)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key.Value, err)
		}
	}

	AssignRelationshipIDs(doc.Relationships)

	doc.entityNodes = indexItems(entitiesNode, len(doc.Entities), func(i int) string { return doc.Entities[i].ID })
	doc.relationshipNodes = indexItems(relationshipsNode, len(doc.Relationships), func(i int) string { return doc.Relationships[i].ID })
	return doc, nil
}

// AssignRelationshipIDs fills empty relationship ids with a content-derived
// id. Identical legacy entries get a numeric suffix so ids stay unique.
func AssignRelationshipIDs(rels []models.Relationship) {
	seen := make(map[string]bool, len(rels))
	for _, rel := range rels {
		if rel.ID != "" {
			seen[rel.ID] = true
		}
	}
	for i := range rels {
		if rels[i].ID != "" {
			continue
		}
		base := rels[i].ContentID()
		id := base
		for n := 2; seen[id]; n++ {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		seen[id] = true
		rels[i].ID = id
	}
}

// Encode renders the document. A document read from disk is patched in
// place: entities and relationships keep their comments and unknown keys
// by id, and unknown top-level keys stay where they were.
func (r *Repository) Encode(doc *Document) ([]byte, error) {
	return Encode(doc)
}

func Encode(doc *Document) ([]byte, error) {
	version := doc.Version
	if version == 0 {
		version = CurrentVersion
	}

	root := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	if doc.root != nil {
		root = cloneNode(doc.root)
	}
	top := root.Content[0]

	versionNode, err := encodeNode(version)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keyVersion, err)
	}
	if keyIndex(top, keyVersion) < 0 {
		top.Content = append([]*yaml.Node{scalar(keyVersion), versionNode}, top.Content...)
	} else {
		setMappingValue(top, keyVersion, versionNode)
	}

	entities, err := encodeItems(doc.Entities, doc.entityNodes, entityKeys, func(e models.Entity) string { return e.ID })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keyEntities, err)
	}
	setSequence(top, keyEntities, entities)

	// an undeclared, empty relationships list stays undeclared so the
	// project still counts as never bootstrapped
	if doc.RelationshipsDeclared || len(doc.Relationships) > 0 {
		relationships, err := encodeItems(doc.Relationships, doc.relationshipNodes, relationshipKeys, func(r models.Relationship) string { return r.ID })
		if err != nil {
			return nil, fmt.Errorf("%s: %w", keyRelationships, err)
		}
		setSequence(top, keyRelationships, relationships)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stage writes data to a temp file beside the data-model file. The caller
// commits or discards it.
func (r *Repository) Stage(ctx context.Context, data []byte) (*fileio.Pending, error) {
	ctx, span := tracing.StartSpan(ctx, "DataModelRepository.Stage")
	defer span.End()

	pending, err := fileio.Stage(r.path, data)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).Error("failed to stage data model file")
		return nil, errors.Newf(errors.KindIO, "failed to write data model: %w", err).WithPath(r.path)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"path":  r.path,
		"bytes": len(data),
	}).Debug("staged data model file")
	return pending, nil
}
