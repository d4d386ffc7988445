package models

// SchemaTest is a relationships test to be written into a dbt schema file
type SchemaTest struct {
	RelationshipID string `json:"relationship_id"`
	// Path is the schema file relative to the dbt project dir.
	Path string `json:"path"`
	// Model and Column locate the referencing (*-side) column.
	Model  string `json:"model"`
	Column string `json:"column"`
	// ToModel and Field name the referenced (1-side) model and column.
	ToModel string `json:"to_model"`
	Field   string `json:"field"`
}

// PushOutcome is the result of pushing one relationship to a schema file
type PushOutcome string

const (
	PushAdded          PushOutcome = "added"
	PushAlreadyPresent PushOutcome = "already_present"
	PushSkipped        PushOutcome = "skipped"
)

// PushItem reports what happened to one relationship during a schema push
type PushItem struct {
	RelationshipID string      `json:"relationship_id"`
	Outcome        PushOutcome `json:"outcome"`
	Reason         string      `json:"reason,omitempty"`
	Path           string      `json:"path,omitempty"`
	Model          string      `json:"model,omitempty"`
	Column         string      `json:"column,omitempty"`
}

// PushResult summarizes a schema push
type PushResult struct {
	Items        []PushItem `json:"items"`
	FilesWritten []string   `json:"files_written"`
	// Reformatted lists written files whose existing layout (blank lines,
	// indentation) was normalized by the YAML encoder.
	Reformatted []string `json:"reformatted"`
}

// Count returns the number of items with the given outcome
func (r *PushResult) Count(outcome PushOutcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}
