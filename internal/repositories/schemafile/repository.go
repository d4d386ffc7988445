// Package schemafile edits dbt schema YAML files in place. Only the model and
// column being touched are modified; comments and unrelated models survive.
//
// A rewritten file is re-emitted by yaml.v3, which normalizes layout: blank
// lines between keys are dropped, indentation becomes two spaces and folded
// scalars may gain a trailing blank line. FileResult.Reformatted reports
// when a write changed more than the added tests.
package schemafile

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/artifacts"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fileio"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"gopkg.in/yaml.v3"
)

const (
	keyVersion       = "version"
	keyModels        = "models"
	keyName          = "name"
	keyColumns       = "columns"
	keyDataTests     = "data_tests"
	keyTests         = "tests"
	keyArguments     = "arguments"
	keyTo            = "to"
	keyField         = "field"
	schemaVersion    = "2"
	relationshipsKey = models.TestRelationships
)

// SchemaFileRepository applies relationships tests to dbt schema files
type SchemaFileRepository interface {
	Apply(ctx context.Context, relPath string, tests []models.SchemaTest) (*FileResult, error)
}

// FileResult reports the outcome of editing one schema file
type FileResult struct {
	Path           string
	Written        bool
	Added          []models.SchemaTest
	AlreadyPresent []models.SchemaTest
	// Reformatted is set when the write also changed the layout of
	// existing content.
	Reformatted bool
}

// Repository implements SchemaFileRepository
type Repository struct {
	projectDir string
	logger     ectologger.Logger
}

// NewRepository creates a schema file repository rooted at the dbt project dir
func NewRepository(projectDir string, logger ectologger.Logger) *Repository {
	return &Repository{
		projectDir: projectDir,
		logger:     logger,
	}
}

// Apply adds the tests to the schema file at relPath, creating the file,
// model or column entries as needed. Tests that already exist are left as is
// and the file is not rewritten when nothing changed.
func (r *Repository) Apply(ctx context.Context, relPath string, tests []models.SchemaTest) (*FileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "SchemaFileRepository.Apply")
	defer span.End()

	path := r.resolve(relPath)
	result := &FileResult{Path: path}
	log := r.logger.WithContext(ctx).WithFields(map[string]any{"path": path})

	snap, err := fileio.Read(path)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, errors.Newf(errors.KindIO, "failed to read schema file: %w", err).WithPath(path)
	}

	doc, err := parse(snap)
	if err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("failed to parse schema file")
		return nil, errors.Malformed(path, err)
	}

	// the file as yaml.v3 would re-emit it before any edits
	var baseline []byte
	hadContent := len(bytes.TrimSpace(snap.Data)) > 0
	if hadContent {
		if baseline, err = encode(doc); err != nil {
			return nil, errors.Newf(errors.KindIO, "failed to encode schema file: %w", err).WithPath(path)
		}
	}

	for _, test := range tests {
		if addRelationshipTest(doc, test) {
			result.Added = append(result.Added, test)
		} else {
			result.AlreadyPresent = append(result.AlreadyPresent, test)
		}
	}

	if len(result.Added) == 0 {
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := encode(doc)
	if err != nil {
		return nil, errors.Newf(errors.KindIO, "failed to encode schema file: %w", err).WithPath(path)
	}
	if err := fileio.WriteAtomic(path, data); err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("failed to write schema file")
		return nil, errors.Newf(errors.KindIO, "failed to write schema file: %w", err).WithPath(path)
	}
	result.Written = true
	result.Reformatted = hadContent && !bytes.Equal(baseline, snap.Data)

	log.WithFields(map[string]any{
		"added":           len(result.Added),
		"already_present": len(result.AlreadyPresent),
		"reformatted":     result.Reformatted,
	}).Info("updated dbt schema file")
	return result, nil
}

func (r *Repository) resolve(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(r.projectDir, filepath.FromSlash(relPath))
}

// parse returns the top-level mapping of the file, starting a new
// "version: 2" document for missing or empty files.
func parse(snap *fileio.Snapshot) (*yaml.Node, error) {
	var root yaml.Node
	if snap.Exists {
		if err := yaml.Unmarshal(snap.Data, &root); err != nil {
			return nil, err
		}
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return &yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{{
				Kind:    yaml.MappingNode,
				Content: []*yaml.Node{scalar(keyVersion), {Kind: yaml.ScalarNode, Tag: "!!int", Value: schemaVersion}},
			}},
		}, nil
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping at the top level", root.Content[0].Line)
	}
	return &root, nil
}

func encode(doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// addRelationshipTest returns false when an equivalent test is already declared
func addRelationshipTest(doc *yaml.Node, test models.SchemaTest) bool {
	top := doc.Content[0]

	modelsSeq := mappingValue(top, keyModels)
	if modelsSeq == nil || modelsSeq.Kind != yaml.SequenceNode {
		modelsSeq = &yaml.Node{Kind: yaml.SequenceNode}
		setMappingValue(top, keyModels, modelsSeq)
	}

	model := findNamed(modelsSeq, test.Model)
	if model == nil {
		model = &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{scalar(keyName), scalar(test.Model)}}
		modelsSeq.Content = append(modelsSeq.Content, model)
	}

	columns := mappingValue(model, keyColumns)
	if columns == nil || columns.Kind != yaml.SequenceNode {
		columns = &yaml.Node{Kind: yaml.SequenceNode}
		setMappingValue(model, keyColumns, columns)
	}

	column := findNamed(columns, test.Column)
	if column == nil {
		column = &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{scalar(keyName), scalar(test.Column)}}
		columns.Content = append(columns.Content, column)
	}

	testsKey := keyDataTests
	if mappingValue(column, keyDataTests) == nil && mappingValue(column, keyTests) != nil {
		testsKey = keyTests
	}
	testsSeq := mappingValue(column, testsKey)
	if testsSeq == nil || testsSeq.Kind != yaml.SequenceNode {
		testsSeq = &yaml.Node{Kind: yaml.SequenceNode}
		setMappingValue(column, testsKey, testsSeq)
	}

	for _, item := range testsSeq.Content {
		if isEquivalentTest(item, test) {
			return false
		}
	}

	testsSeq.Content = append(testsSeq.Content, &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			scalar(relationshipsKey),
			{
				Kind: yaml.MappingNode,
				Content: []*yaml.Node{
					scalar(keyTo), scalar(artifacts.RefExpr(test.ToModel)),
					scalar(keyField), scalar(test.Field),
				},
			},
		},
	})
	return true
}

// isEquivalentTest matches relationships tests pointing at the same model
// and field, with or without the newer "arguments" nesting.
func isEquivalentTest(item *yaml.Node, test models.SchemaTest) bool {
	if item.Kind != yaml.MappingNode {
		return false
	}
	config := mappingValue(item, relationshipsKey)
	if config == nil || config.Kind != yaml.MappingNode {
		return false
	}
	if args := mappingValue(config, keyArguments); args != nil && args.Kind == yaml.MappingNode {
		config = args
	}

	to := mappingValue(config, keyTo)
	field := mappingValue(config, keyField)
	if to == nil || field == nil {
		return false
	}
	ref, ok := artifacts.ParseRef(to.Value)
	if !ok || ref.Kind != artifacts.RefKindModel {
		return false
	}
	return strings.EqualFold(ref.Name, test.ToModel) && strings.EqualFold(field.Value, test.Field)
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, scalar(key), value)
}

// findNamed returns the mapping in seq whose name matches (case-insensitive)
func findNamed(seq *yaml.Node, name string) *yaml.Node {
	for _, item := range seq.Content {
		if n := mappingValue(item, keyName); n != nil && strings.EqualFold(n.Value, name) {
			return item
		}
	}
	return nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
