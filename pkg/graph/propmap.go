package graph

import "github.com/lpgraph/lpgraph/pkg/value"

// PropertyMap is an insertion-ordered mapping from property name to Value.
// Ordered mapping is part of the contract (spec §3): report generation walks
// properties in the order they were first set, so a plain map — whose
// iteration order Go deliberately randomizes — cannot serve this role.
type PropertyMap struct {
	order []string
	data  map[string]value.Value
}

// NewPropertyMap returns an empty, ready-to-use PropertyMap.
func NewPropertyMap() *PropertyMap {
	return &PropertyMap{data: make(map[string]value.Value)}
}

// Set adds or overwrites a property. The first Set of a given name fixes its
// position in iteration order; later overwrites keep that position.
func (m *PropertyMap) Set(name string, v value.Value) {
	if _, exists := m.data[name]; !exists {
		m.order = append(m.order, name)
	}
	m.data[name] = v
}

// Get returns the property's value, or the null Value if unset.
func (m *PropertyMap) Get(name string) value.Value {
	return m.data[name]
}

// Has reports whether name has been set, distinguishing "unset" from "set
// to null".
func (m *PropertyMap) Has(name string) bool {
	_, ok := m.data[name]
	return ok
}

// Keys returns property names in insertion order.
func (m *PropertyMap) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of properties.
func (m *PropertyMap) Len() int { return len(m.order) }

// Clone returns an independent copy; mutating the clone never affects the
// original, matching the store's "returns borrowed views, not copies" rule
// for reads but giving write paths (enrichment, property computation) a safe
// scratch copy when they need one before committing.
func (m *PropertyMap) Clone() *PropertyMap {
	c := &PropertyMap{
		order: append([]string(nil), m.order...),
		data:  make(map[string]value.Value, len(m.data)),
	}
	for k, v := range m.data {
		c.data[k] = v
	}
	return c
}

// ToMap materializes a snapshot as an ordinary map, for callers that only
// need keyed access.
func (m *PropertyMap) ToMap() map[string]value.Value {
	out := make(map[string]value.Value, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}
