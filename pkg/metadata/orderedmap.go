package metadata

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// OrderedMap decodes a YAML mapping while preserving declaration order,
// which plain Go maps cannot do (Go deliberately randomizes map iteration).
// Declaration order matters here because it drives property insertion order
// on generated nodes (spec P3: deterministic, order-preserving output) and,
// for derived_node's source_entities, picks which alias the join loop
// anchors on.
type OrderedMap[V any] struct {
	keys []string
	vals map[string]V
}

func (m *OrderedMap[V]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got %v", node.Kind)
	}
	m.keys = nil
	m.vals = make(map[string]V, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var v V
		if err := valNode.Decode(&v); err != nil {
			return fmt.Errorf("key %q: %w", keyNode.Value, err)
		}
		if _, exists := m.vals[keyNode.Value]; !exists {
			m.keys = append(m.keys, keyNode.Value)
		}
		m.vals[keyNode.Value] = v
	}
	return nil
}

// Set inserts or overwrites key's value. The first Set of a given key fixes
// its position in Keys() order, matching UnmarshalYAML's behavior — useful
// for tests and any caller building a document programmatically rather than
// decoding one.
func (m *OrderedMap[V]) Set(key string, v V) {
	if m.vals == nil {
		m.vals = make(map[string]V)
	}
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Keys returns the declared keys in document order.
func (m *OrderedMap[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Len reports the number of entries.
func (m *OrderedMap[V]) Len() int { return len(m.keys) }
