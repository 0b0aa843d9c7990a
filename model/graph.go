package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GraphKeyProperty is the node property every mirrored entity carries its key in.
const GraphKeyProperty = "name"

// GraphNode is a vertex returned by the graph extension.
type GraphNode struct {
	ID         int64          `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// Name returns the key property of the node.
func (n *GraphNode) Name() string {
	if v, ok := n.Properties[GraphKeyProperty]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// EntityRef splits the label into namespace and entity name.
func (n *GraphNode) EntityRef() (namespace string, name string, err error) {
	return ParseLabel(n.Label)
}

// ParseVertex decodes an agtype vertex such as `{"id": 1, "label": "x_y", ...}::vertex`.
func ParseVertex(value any) (*GraphNode, error) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return nil, fmt.Errorf("unsupported vertex value %T", value)
	}

	if i := strings.LastIndex(raw, "::"); i >= 0 {
		raw = raw[:i]
	}

	node := &GraphNode{}
	if err := json.Unmarshal([]byte(raw), node); err != nil {
		return nil, fmt.Errorf("decode vertex: %w", err)
	}
	if node.Properties == nil {
		node.Properties = map[string]any{}
	}
	return node, nil
}

// ParseLabel splits a <namespace>_<entity-name> label on the first underscore.
func ParseLabel(label string) (string, string, error) {
	namespace, name, ok := strings.Cut(label, "_")
	if !ok || namespace == "" || name == "" {
		return "", "", fmt.Errorf("label %q is not of the form <namespace>_<name>", label)
	}
	return namespace, name, nil
}
