// Package engine implements the rule engine (spec §4.5): it applies each
// enabled transformation, in declared order, to a mutated *graph.Graph. Each
// rule kind lives in its own file behind a common dispatch, mirroring the
// reference implementation's per-type `_apply_*` methods but as free
// functions over an explicit engine handle instead of methods closing over
// shared mutable state.
package engine

import (
	"context"
	"fmt"

	"github.com/lpgraph/lpgraph/pkg/eval"
	"github.com/lpgraph/lpgraph/pkg/graph"
	"github.com/lpgraph/lpgraph/pkg/lpgerr"
	"github.com/lpgraph/lpgraph/pkg/metadata"
	"github.com/lpgraph/lpgraph/pkg/obslog"
)

// RuleResult records one rule's outcome, letting a CLI or report layer print
// the same end-of-run transformation log the reference implementation did.
type RuleResult struct {
	ID    string
	Type  string
	Count int
	Err   error
}

// Engine owns the graph for the duration of one Apply call (spec §5: "Rule
// application holds an exclusive handle to the store for the duration of
// one rule").
type Engine struct {
	graph *graph.Graph
	eval  *eval.Evaluator
	sink  obslog.Sink
}

// New returns an Engine applying rules to g, evaluating expressions and
// conditions with ev, and reporting non-fatal conditions to sink. A nil sink
// is replaced with obslog.Discard.
func New(g *graph.Graph, ev *eval.Evaluator, sink obslog.Sink) *Engine {
	if sink == nil {
		sink = obslog.Discard{}
	}
	return &Engine{graph: g, eval: ev, sink: sink}
}

type ruleApplier func(e *Engine, raw *metadata.RawRule) (int, error)

var appliers = map[string]ruleApplier{
	metadata.RuleCrossLink:        applyCrossLink,
	metadata.RuleDerivedNode:      applyDerivedNode,
	metadata.RuleEnrichProperties: applyEnrichProperties,
	metadata.RuleAggregation:      applyAggregation,
}

// Apply runs every enabled rule in doc, in declared order (O1), checking
// ctx for cancellation between rules only (spec §5). A failed rule aborts
// the sequence without rolling back prior mutations; Apply returns every
// RuleResult produced so far, including the failing one, alongside the
// error.
func (e *Engine) Apply(ctx context.Context, doc *metadata.Document) ([]RuleResult, error) {
	var results []RuleResult

	for _, raw := range doc.Enabled() {
		if err := ctx.Err(); err != nil {
			cancelErr := lpgerr.Wrap(lpgerr.CancelledError, "cancelled before rule "+raw.ID, err).With("rule", raw.ID)
			results = append(results, RuleResult{ID: raw.ID, Type: raw.Type, Err: cancelErr})
			return results, cancelErr
		}

		apply, ok := appliers[raw.Type]
		if !ok {
			err := lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: unknown type %q", raw.ID, raw.Type).With("rule", raw.ID)
			results = append(results, RuleResult{ID: raw.ID, Type: raw.Type, Err: err})
			return results, err
		}

		e.eval.ClearCache() // O3: aggregation cache is rule-scoped
		count, err := apply(e, &raw)
		results = append(results, RuleResult{ID: raw.ID, Type: raw.Type, Count: count, Err: err})
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// resolveProperties builds a property map from an ordered set of
// computations, skipping (with a warning) any computation that fails — spec
// §4.5/§7: "A property whose computation raises an evaluator error is
// skipped with a warning; the node is still added."
func (e *Engine) resolveProperties(om metadata.OrderedMap[metadata.PropertyComputation], ctx eval.Context, ruleID string) *graph.PropertyMap {
	props := graph.NewPropertyMap()
	for _, name := range om.Keys() {
		comp, _ := om.Get(name)
		v, err := resolveComputation(e.eval, comp, ctx)
		if err != nil {
			e.sink.Warnf("rule %s: property %s: %v", ruleID, name, err)
			continue
		}
		props.Set(name, v)
	}
	return props
}

// createRuleEdges emits the edges declared by a derived_node or aggregation
// rule. boundIDs maps every context alias (plus "new_node" handled
// separately and, for aggregation, "facility") to a concrete node id;
// boundProps mirrors it with property maps for the Q2 facility_id scan.
// members backs the aggregation-only "aggregated_nodes" sentinel: when an
// edge's To is that sentinel, one edge is emitted per member instead of one
// edge for the whole rule application.
func (e *Engine) createRuleEdges(edges []metadata.EdgeDef, newNodeID string, boundIDs map[string]string, boundProps map[string]*graph.PropertyMap, members []string, ctx eval.Context, ruleID string) {
	for _, edgeDef := range edges {
		if edgeDef.To == "aggregated_nodes" {
			for _, memberID := range members {
				props := e.resolveProperties(edgeDef.Properties, ctx, ruleID)
				if _, err := e.graph.AddEdge(newNodeID, memberID, edgeDef.Label, props); err != nil {
					e.sink.Warnf("rule %s: edge %s->%s: %v", ruleID, edgeDef.From, edgeDef.To, err)
				}
			}
			continue
		}

		fromID, err := resolveEdgeEndpoint(edgeDef.From, newNodeID, boundIDs, boundProps)
		if err != nil {
			e.sink.Warnf("rule %s: edge endpoint %q: %v", ruleID, edgeDef.From, err)
			continue
		}
		toID, err := resolveEdgeEndpoint(edgeDef.To, newNodeID, boundIDs, boundProps)
		if err != nil {
			e.sink.Warnf("rule %s: edge endpoint %q: %v", ruleID, edgeDef.To, err)
			continue
		}

		props := e.resolveProperties(edgeDef.Properties, ctx, ruleID)
		if _, err := e.graph.AddEdge(fromID, toID, edgeDef.Label, props); err != nil {
			e.sink.Warnf("rule %s: edge %s->%s: %v", ruleID, edgeDef.From, edgeDef.To, err)
		}
	}
}

// resolveEdgeEndpoint resolves one edge endpoint reference: the sentinel
// "new_node", a bound alias (including aggregation's "facility", bound
// directly), or — per Q2 — the unbound sentinel "facility" scanned out of
// any bound property map carrying a "facility_id" property.
func resolveEdgeEndpoint(ref, newNodeID string, boundIDs map[string]string, boundProps map[string]*graph.PropertyMap) (string, error) {
	if ref == "new_node" {
		return newNodeID, nil
	}
	if id, ok := boundIDs[ref]; ok {
		return id, nil
	}
	if ref == "facility" {
		for _, props := range boundProps {
			if props.Has("facility_id") {
				v := props.Get("facility_id")
				if s, ok := v.AsString(); ok {
					return s, nil
				}
				return v.String(), nil
			}
		}
	}
	return "", fmt.Errorf("unresolved edge endpoint reference %q", ref)
}
