package metadata

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lpgraph/lpgraph/pkg/lpgerr"
)

// Document is the top-level transformations document: an ordered list of
// rules, each tagged with a kind that decides which concrete struct its
// body decodes into.
type Document struct {
	Version string    `yaml:"version"`
	Rules   []RawRule `yaml:"transformations"`
}

// RawRule is the two-phase decode target for one transformations.yaml list
// entry. yaml.v3 cannot pick a concrete Go type from a sibling "type" field
// on its own, so RawRule captures the raw node alongside the common header
// fields and defers full decoding to Decode, called once the rule kind is
// known.
type RawRule struct {
	ID          string
	Type        string
	Enabled     bool
	Description string

	node *yaml.Node
}

func (r *RawRule) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		ID          string `yaml:"id"`
		Type        string `yaml:"type"`
		Enabled     *bool  `yaml:"enabled"`
		Description string `yaml:"description"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	r.ID = head.ID
	r.Type = head.Type
	r.Description = head.Description
	if head.Enabled == nil {
		r.Enabled = true // default per spec P4: absent enabled means active
	} else {
		r.Enabled = *head.Enabled
	}
	r.node = node
	return nil
}

// Decode re-decodes the rule's full body into a kind-specific struct, once
// the caller has dispatched on Type.
func (r *RawRule) Decode(v any) error {
	return r.node.Decode(v)
}

// CrossLinkRule adds edges between existing nodes of two labels wherever
// the join condition holds over the cartesian product of their instances.
type CrossLinkRule struct {
	ID         string                          `yaml:"id"`
	Type       string                          `yaml:"type"`
	Enabled    *bool                           `yaml:"enabled"`
	FromEntity string                          `yaml:"from_entity"`
	ToEntity   string                          `yaml:"to_entity"`
	LinkLabel  string                          `yaml:"link_label"`
	Condition  JoinCondition                   `yaml:"condition"`
	Properties OrderedMap[PropertyComputation] `yaml:"properties"`
}

// DerivedNodeRule materializes new nodes from matching tuples of existing
// nodes drawn from several source entities.
type DerivedNodeRule struct {
	ID             string                          `yaml:"id"`
	Type           string                          `yaml:"type"`
	Enabled        *bool                           `yaml:"enabled"`
	OutputEntity   string                          `yaml:"output_entity"`
	SourceEntities OrderedMap[string]              `yaml:"source_entities"` // alias -> label
	JoinCondition  JoinCondition                   `yaml:"join_condition"`
	NodeIDTemplate string                          `yaml:"node_id_template"`
	Properties     OrderedMap[PropertyComputation] `yaml:"properties"`
	Edges          []EdgeDef                       `yaml:"edges"`
}

// EdgeDef names one edge a derived_node or aggregation rule creates.
// From/To are endpoint references resolved by the engine at apply time:
// an alias name, the sentinel "new_node"/"aggregated_nodes", or
// "facility" (the group node in aggregation; otherwise the value of a bound
// facility_id property).
type EdgeDef struct {
	From       string                          `yaml:"from"`
	To         string                          `yaml:"to"`
	Label      string                          `yaml:"label"`
	Properties OrderedMap[PropertyComputation] `yaml:"properties"`
}

// EnrichPropertiesRule adds or overwrites properties on existing nodes of
// one entity, each property computed independently per node.
type EnrichPropertiesRule struct {
	ID           string       `yaml:"id"`
	Type         string       `yaml:"type"`
	Enabled      *bool        `yaml:"enabled"`
	TargetEntity string       `yaml:"target_entity"`
	Enrichments  []Enrichment `yaml:"enrichments"`
}

// Enrichment is one property-computation entry of an enrich_properties
// rule: the property name plus the usual value/expression/source/rules
// computation shape.
type Enrichment struct {
	Property string
	PropertyComputation
}

func (e *Enrichment) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Property string `yaml:"property"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	e.Property = head.Property
	return node.Decode(&e.PropertyComputation)
}

// AggregationRule computes summary statistics over each group node's
// successors of a given label and emits one new node per group carrying
// those statistics.
type AggregationRule struct {
	ID              string                          `yaml:"id"`
	Type            string                          `yaml:"type"`
	Enabled         *bool                           `yaml:"enabled"`
	OutputEntity    string                          `yaml:"output_entity"`
	GroupByEntity   string                          `yaml:"group_by_entity"`
	AggregateEntity string                          `yaml:"aggregate_entity"`
	NodeIDTemplate  string                          `yaml:"node_id_template"`
	Aggregations    OrderedMap[AggDef]              `yaml:"aggregations"` // output_name -> def
	Properties      OrderedMap[PropertyComputation] `yaml:"properties"`
	Edges           []EdgeDef                       `yaml:"edges"`
}

// AggDef names one aggregate to compute: a function over a numeric field
// of the collected node set, optionally rounded. Field is unused when
// Function is "count".
type AggDef struct {
	Function string `yaml:"function"`
	Field    string `yaml:"field"`
	Round    *int   `yaml:"round"`
}

// ParseDocument decodes raw YAML (or JSON) bytes into a transformations
// Document without validating it.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, lpgerr.Wrap(lpgerr.RuleDocumentError, "malformed transformations document", err)
	}
	return &d, nil
}

const (
	RuleCrossLink        = "cross_link"
	RuleDerivedNode      = "derived_node"
	RuleEnrichProperties = "enrich_properties"
	RuleAggregation      = "aggregation"
)

func validRuleType(t string) bool {
	switch t {
	case RuleCrossLink, RuleDerivedNode, RuleEnrichProperties, RuleAggregation:
		return true
	default:
		return false
	}
}

// Validate enforces spec §4.2's rule-document invariants: unique ids, known
// types, and per-kind required fields, mirroring the original loader's
// per-type validators.
func (d *Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Rules))
	for i, r := range d.Rules {
		if r.ID == "" {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "transformations[%d]: id is required", i)
		}
		if _, dup := seen[r.ID]; dup {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "duplicate rule id: %s", r.ID).With("rule", r.ID)
		}
		seen[r.ID] = struct{}{}

		if !validRuleType(r.Type) {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: unknown type %q", r.ID, r.Type).With("rule", r.ID)
		}

		if err := validateRuleBody(&r); err != nil {
			return err
		}
	}
	return nil
}

func validateRuleBody(r *RawRule) error {
	switch r.Type {
	case RuleCrossLink:
		var cl CrossLinkRule
		if err := r.Decode(&cl); err != nil {
			return lpgerr.Wrap(lpgerr.RuleDocumentError, fmt.Sprintf("rule %s: decoding cross_link", r.ID), err).With("rule", r.ID)
		}
		if cl.FromEntity == "" || cl.ToEntity == "" || cl.LinkLabel == "" {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: from_entity, to_entity and link_label are required", r.ID).With("rule", r.ID)
		}
		if cl.Condition.Expr == nil {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: condition is required", r.ID).With("rule", r.ID)
		}
	case RuleDerivedNode:
		var dn DerivedNodeRule
		if err := r.Decode(&dn); err != nil {
			return lpgerr.Wrap(lpgerr.RuleDocumentError, fmt.Sprintf("rule %s: decoding derived_node", r.ID), err).With("rule", r.ID)
		}
		if dn.OutputEntity == "" {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: output_entity is required", r.ID).With("rule", r.ID)
		}
		if dn.SourceEntities.Len() < 2 {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: source_entities needs at least two aliases", r.ID).With("rule", r.ID)
		}
		if dn.JoinCondition.Expr == nil {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: join_condition is required", r.ID).With("rule", r.ID)
		}
		if dn.NodeIDTemplate == "" {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: node_id_template is required", r.ID).With("rule", r.ID)
		}
	case RuleEnrichProperties:
		var ep EnrichPropertiesRule
		if err := r.Decode(&ep); err != nil {
			return lpgerr.Wrap(lpgerr.RuleDocumentError, fmt.Sprintf("rule %s: decoding enrich_properties", r.ID), err).With("rule", r.ID)
		}
		if ep.TargetEntity == "" {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: target_entity is required", r.ID).With("rule", r.ID)
		}
		if len(ep.Enrichments) == 0 {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: enrichments must be non-empty", r.ID).With("rule", r.ID)
		}
		for _, e := range ep.Enrichments {
			if e.Property == "" {
				return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: enrichment missing property name", r.ID).With("rule", r.ID)
			}
		}
	case RuleAggregation:
		var ag AggregationRule
		if err := r.Decode(&ag); err != nil {
			return lpgerr.Wrap(lpgerr.RuleDocumentError, fmt.Sprintf("rule %s: decoding aggregation", r.ID), err).With("rule", r.ID)
		}
		if ag.OutputEntity == "" || ag.GroupByEntity == "" || ag.AggregateEntity == "" {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: output_entity, group_by_entity and aggregate_entity are required", r.ID).With("rule", r.ID)
		}
		if ag.Aggregations.Len() == 0 {
			return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: aggregations must be non-empty", r.ID).With("rule", r.ID)
		}
		for _, name := range ag.Aggregations.Keys() {
			a, _ := ag.Aggregations.Get(name)
			if !validAggFunction(a.Function) {
				return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: unknown aggregation function %q", r.ID, a.Function).With("rule", r.ID)
			}
			if a.Function != "count" && a.Field == "" {
				return lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: aggregation %q requires a field", r.ID, name).With("rule", r.ID)
			}
		}
	}
	return nil
}

func validAggFunction(f string) bool {
	switch f {
	case "avg", "sum", "max", "min", "count", "stddev":
		return true
	default:
		return false
	}
}

// Enabled returns the rules of the document in declaration order, skipping
// those explicitly disabled (spec P4: rule evaluation honors declaration
// order and the enabled flag).
func (d *Document) Enabled() []RawRule {
	out := make([]RawRule, 0, len(d.Rules))
	for _, r := range d.Rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}
