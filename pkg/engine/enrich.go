package engine

import (
	"github.com/lpgraph/lpgraph/pkg/eval"
	"github.com/lpgraph/lpgraph/pkg/lpgerr"
	"github.com/lpgraph/lpgraph/pkg/metadata"
)

// applyEnrichProperties adds or overwrites properties on every existing
// node of target_entity, in place (spec §4.5 enrich_properties).
func applyEnrichProperties(e *Engine, raw *metadata.RawRule) (int, error) {
	var rule metadata.EnrichPropertiesRule
	if err := raw.Decode(&rule); err != nil {
		return 0, lpgerr.Wrap(lpgerr.RuleDocumentError, "rule "+raw.ID+": decoding enrich_properties", err).With("rule", raw.ID)
	}

	// Precomputation: aggregation-containing expressions are detected
	// syntactically and evaluated once, before the node loop, against an
	// empty context — the Evaluator's per-rule aggregation cache (cleared
	// by Engine.Apply before this rule runs) then serves every per-node
	// evaluation that reaches the same aggregation call, so every enriched
	// node sees the identical benchmark value (spec §4.5 precomputation).
	for _, enr := range rule.Enrichments {
		warmAggregationCache(e.eval, enr.PropertyComputation)
	}

	nodeIDs := e.graph.NodesByLabel(rule.TargetEntity)
	count := 0
	for _, nodeID := range nodeIDs {
		node, err := e.graph.GetNode(nodeID)
		if err != nil {
			return count, err
		}

		ctx := eval.Context{}
		ctx.Prop("node", node.Props)

		changed := false
		for _, enr := range rule.Enrichments {
			v, err := resolveComputation(e.eval, enr.PropertyComputation, ctx)
			if err != nil {
				e.sink.Warnf("rule %s: property %s: %v", raw.ID, enr.Property, err)
				continue
			}
			node.Props.Set(enr.Property, v)
			changed = true
		}
		if changed {
			count++
		}
	}

	if count == 0 {
		e.sink.Warnf("rule %s (enrich_properties): target entity %s has no nodes", raw.ID, rule.TargetEntity) // Q1
	}
	return count, nil
}

// warmAggregationCache evaluates an enrichment's aggregation-containing
// expression or rule conditions once against an empty context, ignoring the
// result: its only purpose is to populate the evaluator's per-rule
// aggregation cache before the node loop begins.
func warmAggregationCache(ev *eval.Evaluator, comp metadata.PropertyComputation) {
	switch comp.Kind {
	case "expression":
		if ev.HasAggregation(comp.Expression) {
			_, _ = ev.Evaluate(comp.Expression, eval.Context{})
		}
	case "rules":
		for _, r := range comp.Rules {
			if ev.HasAggregation(r.Condition) {
				_, _ = ev.Evaluate(r.Condition, eval.Context{})
			}
		}
	}
}
