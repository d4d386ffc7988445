package datamodel

import (
	"slices"

	"gopkg.in/yaml.v3"
)

// Keys owned by models.Entity and models.Relationship. Any other key on an
// item belongs to the user and is carried through saves untouched.
var (
	entityKeys = []string{
		"id", "label", "description", "dbt_model", "additional_models",
		"drafted_fields", "tags", "sources",
	}
	relationshipKeys = []string{
		"id", "source", "target", "type", "source_field", "target_field",
		"label", "label_dx", "label_dy",
	}
)

// indexItems maps item ids to their nodes in a parsed sequence. The first
// item with an id wins.
func indexItems(seq *yaml.Node, n int, id func(int) string) map[string]*yaml.Node {
	nodes := make(map[string]*yaml.Node, n)
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nodes
	}
	for i, item := range seq.Content {
		if i >= n {
			break
		}
		key := id(i)
		if _, ok := nodes[key]; key == "" || ok {
			continue
		}
		nodes[key] = item
	}
	return nodes
}

func encodeNode(v any) (*yaml.Node, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	return &node, nil
}

// encodeItems renders items in order, patching each one over the node it
// was read from when there is one.
func encodeItems[T any](items []T, previous map[string]*yaml.Node, known []string, id func(T) string) ([]*yaml.Node, error) {
	out := make([]*yaml.Node, 0, len(items))
	for _, item := range items {
		fresh, err := encodeNode(item)
		if err != nil {
			return nil, err
		}
		if old, ok := previous[id(item)]; ok && old.Kind == yaml.MappingNode {
			fresh = patchMapping(cloneNode(old), fresh, known)
		}
		out = append(out, fresh)
	}
	return out, nil
}

// setSequence replaces the items under key, keeping the sequence node
// itself (and its comments) when the file already had one.
func setSequence(top *yaml.Node, key string, items []*yaml.Node) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	if i := keyIndex(top, key); i >= 0 && top.Content[i+1].Kind == yaml.SequenceNode {
		seq = top.Content[i+1]
	}
	seq.Content = items
	if len(items) == 0 {
		seq.Style = yaml.FlowStyle
	} else {
		seq.Style &^= yaml.FlowStyle
	}
	setMappingValue(top, key, seq)
}

// setMappingValue merges value into key's current value, or appends the
// pair when key is missing.
func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	if i := keyIndex(m, key); i >= 0 {
		m.Content[i+1] = mergeValue(m.Content[i+1], value)
		return
	}
	m.Content = append(m.Content, scalar(key), value)
}

// patchMapping writes the keys of fresh into old. Known keys missing from
// fresh are removed; keys outside known are left alone. A key the file never
// had is not added for an empty value.
func patchMapping(old, fresh *yaml.Node, known []string) *yaml.Node {
	for i := 0; i+1 < len(fresh.Content); i += 2 {
		key, value := fresh.Content[i], fresh.Content[i+1]
		switch j := keyIndex(old, key.Value); {
		case j >= 0:
			old.Content[j+1] = mergeValue(old.Content[j+1], value)
		case isEmptyScalar(value):
		case key.Value == "id":
			old.Content = append([]*yaml.Node{key, value}, old.Content...)
		default:
			old.Content = append(old.Content, key, value)
		}
	}

	kept := make([]*yaml.Node, 0, len(old.Content))
	for i := 0; i+1 < len(old.Content); i += 2 {
		key := old.Content[i].Value
		if slices.Contains(known, key) && keyIndex(fresh, key) < 0 {
			continue
		}
		kept = append(kept, old.Content[i], old.Content[i+1])
	}
	old.Content = kept
	return old
}

// mergeValue returns the node to write for a value that was old and is now
// fresh. Unchanged scalars keep their original quoting, and replaced values
// inherit the old node's comments.
func mergeValue(old, fresh *yaml.Node) *yaml.Node {
	switch {
	case old.Kind == yaml.ScalarNode && fresh.Kind == yaml.ScalarNode:
		if old.Value == fresh.Value && old.ShortTag() == fresh.ShortTag() {
			return old
		}
	case old.Kind == yaml.SequenceNode && fresh.Kind == yaml.SequenceNode:
		if len(old.Content) == len(fresh.Content) {
			for i := range fresh.Content {
				old.Content[i] = mergeValue(old.Content[i], fresh.Content[i])
			}
			return old
		}
		fresh.Style = old.Style
	case old.Kind == yaml.MappingNode && fresh.Kind == yaml.MappingNode:
		return patchMapping(old, fresh, mappingKeys(old))
	}

	fresh.HeadComment = old.HeadComment
	fresh.LineComment = old.LineComment
	fresh.FootComment = old.FootComment
	return fresh
}

func mappingKeys(m *yaml.Node) []string {
	keys := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

func keyIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func isEmptyScalar(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value == "" && n.ShortTag() == "!!str"
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
