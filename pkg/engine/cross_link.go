package engine

import (
	"github.com/lpgraph/lpgraph/pkg/eval"
	"github.com/lpgraph/lpgraph/pkg/lpgerr"
	"github.com/lpgraph/lpgraph/pkg/metadata"
)

// applyCrossLink adds edges between existing nodes of two labels wherever
// the join condition holds over the cartesian product of their instances
// (spec §4.5 cross_link).
func applyCrossLink(e *Engine, raw *metadata.RawRule) (int, error) {
	var rule metadata.CrossLinkRule
	if err := raw.Decode(&rule); err != nil {
		return 0, lpgerr.Wrap(lpgerr.RuleDocumentError, "rule "+raw.ID+": decoding cross_link", err).With("rule", raw.ID)
	}

	fromIDs := e.graph.NodesByLabel(rule.FromEntity)
	toIDs := e.graph.NodesByLabel(rule.ToEntity)

	count := 0
	for _, fromID := range fromIDs {
		fromNode, err := e.graph.GetNode(fromID)
		if err != nil {
			return count, err
		}
		for _, toID := range toIDs {
			toNode, err := e.graph.GetNode(toID)
			if err != nil {
				return count, err
			}

			ctx := eval.Context{}
			ctx.Prop("from", fromNode.Props)
			ctx.Prop("to", toNode.Props)

			matched, err := e.eval.EvaluateCondition(rule.Condition.Expr, ctx)
			if err != nil {
				return count, lpgerr.Wrap(lpgerr.ParseError, "rule "+raw.ID+": condition", err).With("rule", raw.ID)
			}
			if !matched {
				continue
			}

			props := e.resolveProperties(rule.Properties, ctx, raw.ID)
			if _, err := e.graph.AddEdge(fromID, toID, rule.LinkLabel, props); err != nil {
				return count, lpgerr.Wrap(lpgerr.MissingNode, "rule "+raw.ID, err).With("rule", raw.ID)
			}
			count++
		}
	}

	if count == 0 {
		e.sink.Warnf("rule %s (cross_link): produced no edges", raw.ID) // Q1
	}
	return count, nil
}
