// Package metadata loads and validates the two structured-data documents
// that drive the engine: the schema (entities + relationships) and the
// transformations (rule list). Both are YAML documents — YAML is this
// implementation's concrete choice for spec §4.2's abstract "structured-data
// format"; since valid JSON is also valid YAML, gopkg.in/yaml.v3 accepts
// JSON-authored documents through the identical decode path with no
// additional code.
package metadata

import (
	"gopkg.in/yaml.v3"

	"github.com/lpgraph/lpgraph/pkg/lpgerr"
)

// Schema is the top-level schema document: entities sourced from tabular
// files plus the relationships joining them.
type Schema struct {
	Version       string         `yaml:"version"`
	Entities      []Entity       `yaml:"entities"`
	Relationships []Relationship `yaml:"relationships"`
}

// SourceSpec names the tabular input backing an entity.
type SourceSpec struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// PropertyDef declares one property of an entity: its tabular-to-Value
// coercion type, an optional output alias, and whether its absence from a
// source row is fatal.
type PropertyDef struct {
	Type     string `yaml:"type"`
	Alias    string `yaml:"alias"`
	Required bool   `yaml:"required"`
}

// Entity declares one node kind: where its rows come from, how to derive a
// node id from each row, and which columns become properties.
type Entity struct {
	Name       string                    `yaml:"name"`
	Source     SourceSpec                `yaml:"source"`
	IDField    string                    `yaml:"id_field"`
	IDTemplate string                    `yaml:"id_template"`
	Properties OrderedMap[PropertyDef]    `yaml:"properties"`
}

// Relationship declares one edge kind: the entities it joins, the predicate
// deciding which row pairs become edges, and optional edge properties.
type Relationship struct {
	Name          string                             `yaml:"name"`
	FromEntity    string                             `yaml:"from_entity"`
	ToEntity      string                             `yaml:"to_entity"`
	JoinCondition JoinCondition                       `yaml:"join_condition"`
	Properties    OrderedMap[PropertyComputation]     `yaml:"properties"`
}

// PropertyComputation is the shared shape behind every "how do I get this
// property's value" site in the document set: cross_link/derived_node/
// relationship properties, and (via Enrichment) enrich_properties
// enrichments. Exactly one of Literal/Expression/Source/Rules is populated,
// recorded in Kind.
type PropertyComputation struct {
	Kind       string // "value" | "expression" | "source" | "rules" | ""
	Literal    any
	Expression string
	Source     string
	Rules      []ConditionalValue
	Round      *int
}

// ConditionalValue is one entry of an enrichment's rule list: a string
// condition ("true" always matches) paired with the value to use when it
// does.
type ConditionalValue struct {
	Condition string `yaml:"condition"`
	Value     any    `yaml:"value"`
}

func (p *PropertyComputation) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Value      *yaml.Node         `yaml:"value"`
		Expression string             `yaml:"expression"`
		Source     string             `yaml:"source"`
		Rules      []ConditionalValue `yaml:"rules"`
		Round      *int               `yaml:"round"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	p.Round = raw.Round
	switch {
	case raw.Value != nil:
		p.Kind = "value"
		var v any
		if err := raw.Value.Decode(&v); err != nil {
			return err
		}
		p.Literal = v
	case raw.Expression != "":
		p.Kind = "expression"
		p.Expression = raw.Expression
	case raw.Source != "":
		p.Kind = "source"
		p.Source = raw.Source
	case len(raw.Rules) > 0:
		p.Kind = "rules"
		p.Rules = raw.Rules
	default:
		p.Kind = ""
	}
	return nil
}

// ParseSchema decodes raw YAML (or JSON) bytes into a Schema without validating
// it; call Validate separately so load and validate failures stay
// distinguishable in logs.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, lpgerr.Wrap(lpgerr.SchemaError, "malformed schema document", err)
	}
	return &s, nil
}

// Validate enforces spec §4.2's schema invariants, failing fast with
// SchemaError on the first violation.
func (s *Schema) Validate() error {
	if s.Version == "" {
		return lpgerr.New(lpgerr.SchemaError, "schema: version is required")
	}
	if len(s.Entities) == 0 {
		return lpgerr.New(lpgerr.SchemaError, "schema: entities must be a non-empty list")
	}

	names := make(map[string]struct{}, len(s.Entities))
	for i, e := range s.Entities {
		if e.Name == "" {
			return lpgerr.Newf(lpgerr.SchemaError, "entities[%d]: name is required", i)
		}
		if _, dup := names[e.Name]; dup {
			return lpgerr.Newf(lpgerr.SchemaError, "duplicate entity name: %s", e.Name).With("entity", e.Name)
		}
		names[e.Name] = struct{}{}

		if e.Source.Path == "" {
			return lpgerr.Newf(lpgerr.SchemaError, "entity %s: source.path is required", e.Name).With("entity", e.Name)
		}
		if e.Properties.Len() == 0 {
			return lpgerr.Newf(lpgerr.SchemaError, "entity %s: properties is required", e.Name).With("entity", e.Name)
		}
		hasField := e.IDField != ""
		hasTemplate := e.IDTemplate != ""
		if hasField == hasTemplate {
			return lpgerr.Newf(lpgerr.SchemaError, "entity %s: exactly one of id_field or id_template is required", e.Name).With("entity", e.Name)
		}
		for _, pname := range e.Properties.Keys() {
			pdef, _ := e.Properties.Get(pname)
			if !validPropertyType(pdef.Type) {
				return lpgerr.Newf(lpgerr.SchemaError, "entity %s property %s: invalid type %q", e.Name, pname, pdef.Type).
					With("entity", e.Name).With("property", pname)
			}
		}
	}

	for i, r := range s.Relationships {
		if r.Name == "" {
			return lpgerr.Newf(lpgerr.SchemaError, "relationships[%d]: name is required", i)
		}
		if r.FromEntity == "" || r.ToEntity == "" {
			return lpgerr.Newf(lpgerr.SchemaError, "relationship %s: from_entity and to_entity are required", r.Name).With("relationship", r.Name)
		}
		if _, ok := names[r.FromEntity]; !ok {
			return lpgerr.Newf(lpgerr.SchemaError, "relationship %s: from_entity %q is not a declared entity", r.Name, r.FromEntity).With("relationship", r.Name)
		}
		if _, ok := names[r.ToEntity]; !ok {
			return lpgerr.Newf(lpgerr.SchemaError, "relationship %s: to_entity %q is not a declared entity", r.Name, r.ToEntity).With("relationship", r.Name)
		}
		if r.JoinCondition.Expr == nil {
			return lpgerr.Newf(lpgerr.SchemaError, "relationship %s: join_condition is required", r.Name).With("relationship", r.Name)
		}
	}

	return nil
}

func validPropertyType(t string) bool {
	switch t {
	case "integer", "float", "string", "boolean":
		return true
	default:
		return false
	}
}

// EntityByName looks up a declared entity, for callers (the builder, the
// rule engine) that need its definition rather than just its name.
func (s *Schema) EntityByName(name string) (*Entity, error) {
	for i := range s.Entities {
		if s.Entities[i].Name == name {
			return &s.Entities[i], nil
		}
	}
	return nil, lpgerr.Newf(lpgerr.SchemaError, "unknown entity: %s", name).With("entity", name)
}
