package artifacts

import (
	"regexp"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// RefKind distinguishes ref() from source() targets
type RefKind string

const (
	RefKindModel  RefKind = "ref"
	RefKindSource RefKind = "source"
)

// Ref is a parsed dbt reference expression
type Ref struct {
	Kind    RefKind
	Package string
	Name    string
	Raw     string
}

// refPattern matches ref('name'), ref('pkg', 'name'), ref("name", v=2) and
// source('src', 'table'), optionally wrapped in jinja such as
// {{ get_where_subquery(ref('orders')) }}.
var refPattern = regexp.MustCompile(`\b(ref|source)\(\s*['"]([^'"]+)['"]\s*(?:,\s*['"]([^'"]+)['"])?\s*(?:,\s*(?:v|version)\s*=\s*[^)]*)?\)`)

// ParseRef extracts the first reference in expr. ok is false when expr contains none.
func ParseRef(expr string) (Ref, bool) {
	m := refPattern.FindStringSubmatch(expr)
	if m == nil {
		return Ref{}, false
	}

	ref := Ref{Kind: RefKind(m[1]), Raw: m[0]}
	switch {
	case ref.Kind == RefKindSource:
		ref.Package, ref.Name = m[2], m[3]
	case m[3] != "":
		ref.Package, ref.Name = m[2], m[3]
	default:
		ref.Name = m[2]
	}
	return ref, true
}

// ResolveRef maps a reference expression to a model unique id. Source
// references and names absent from the index do not resolve.
func ResolveRef(idx *models.ModelIndex, expr string) (string, bool) {
	ref, ok := ParseRef(expr)
	if !ok || ref.Kind != RefKindModel {
		return "", false
	}
	if m := idx.ByName(ref.Package, ref.Name); m != nil {
		return m.UniqueID, true
	}
	return "", false
}

// RefExpr renders the ref() expression used in schema files for a model name
func RefExpr(modelName string) string {
	return "ref('" + strings.TrimSpace(modelName) + "')"
}
