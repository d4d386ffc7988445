package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// orderedObject decodes a JSON object keeping key order, which Go maps lose.
// dbt writes nodes and columns in declaration order.
type orderedObject []orderedEntry

type orderedEntry struct {
	Key   string
	Value json.RawMessage
}

func (o *orderedObject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	var entries orderedObject
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		entries = append(entries, orderedEntry{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = entries
	return nil
}

type manifestFile struct {
	Metadata artifactMetadata `json:"metadata"`
	Nodes    orderedObject    `json:"nodes"`
}

type artifactMetadata struct {
	GeneratedAt string `json:"generated_at"`
	ProjectName string `json:"project_name"`
}

type manifestNode struct {
	UniqueID         string        `json:"unique_id"`
	Name             string        `json:"name"`
	ResourceType     string        `json:"resource_type"`
	PackageName      string        `json:"package_name"`
	Path             string        `json:"path"`
	OriginalFilePath string        `json:"original_file_path"`
	PatchPath        string        `json:"patch_path"`
	Description      string        `json:"description"`
	Tags             []string      `json:"tags"`
	Columns          orderedObject `json:"columns"`
}

type manifestColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DataType    string `json:"data_type"`
	Constraints []struct {
		Type string `json:"type"`
	} `json:"constraints"`
}

type catalogFile struct {
	Metadata artifactMetadata       `json:"metadata"`
	Nodes    map[string]catalogNode `json:"nodes"`
}

type catalogNode struct {
	UniqueID string                   `json:"unique_id"`
	Columns  map[string]catalogColumn `json:"columns"`
}

type catalogColumn struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}
