package engine

import (
	"regexp"

	"github.com/lpgraph/lpgraph/pkg/eval"
	"github.com/lpgraph/lpgraph/pkg/graph"
	"github.com/lpgraph/lpgraph/pkg/lpgerr"
	"github.com/lpgraph/lpgraph/pkg/metadata"
	"github.com/lpgraph/lpgraph/pkg/value"
)

// ruleTemplateRef matches "{alias.field}" or "{alias.field:format}"
// placeholders used by node_id_template in derived_node and aggregation
// rules — distinct from the builder's bare-field entity id_template, since
// rule templates dereference a bound alias rather than a source row.
var ruleTemplateRef = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*\.[A-Za-z_][A-Za-z0-9_]*)(?::([^}]+))?\}`)

func resolveRuleTemplate(template string, ctx eval.Context) (string, error) {
	var outerErr error
	result := ruleTemplateRef.ReplaceAllStringFunc(template, func(match string) string {
		if outerErr != nil {
			return match
		}
		groups := ruleTemplateRef.FindStringSubmatch(match)
		ref, format := groups[1], groups[2]
		v, err := resolveSourceRef(ref, ctx)
		if err != nil {
			outerErr = err
			return match
		}
		out, err := value.FormatPadded(v, format)
		if err != nil {
			outerErr = err
			return match
		}
		return out
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

// applyDerivedNode materializes new nodes from matching tuples of existing
// nodes drawn from several source entities (spec §4.5 derived_node).
func applyDerivedNode(e *Engine, raw *metadata.RawRule) (int, error) {
	var rule metadata.DerivedNodeRule
	if err := raw.Decode(&rule); err != nil {
		return 0, lpgerr.Wrap(lpgerr.RuleDocumentError, "rule "+raw.ID+": decoding derived_node", err).With("rule", raw.ID)
	}

	aliases := rule.SourceEntities.Keys()
	if len(aliases) == 0 {
		return 0, lpgerr.Newf(lpgerr.RuleDocumentError, "rule %s: source_entities is empty", raw.ID).With("rule", raw.ID)
	}
	firstAlias := aliases[0]

	entityNodes := make(map[string][]string, len(aliases))
	for _, alias := range aliases {
		label, _ := rule.SourceEntities.Get(alias)
		entityNodes[alias] = e.graph.NodesByLabel(label)
	}

	count := 0
	for _, firstID := range entityNodes[firstAlias] {
		firstNode, err := e.graph.GetNode(firstID)
		if err != nil {
			return count, err
		}

		matched, ok, err := e.findMatchingTuple(firstAlias, firstNode, aliases, entityNodes, rule.JoinCondition.Expr)
		if err != nil {
			return count, lpgerr.Wrap(lpgerr.ParseError, "rule "+raw.ID+": join_condition", err).With("rule", raw.ID)
		}
		if !ok {
			continue
		}

		boundIDs := map[string]string{firstAlias: firstID}
		boundProps := map[string]*graph.PropertyMap{firstAlias: firstNode.Props}

		ctx := eval.Context{}
		ctx.Prop(firstAlias, firstNode.Props)
		ctx.Scalar(firstAlias+"_node_id", value.OfString(firstID))
		for alias, id := range matched {
			node, err := e.graph.GetNode(id)
			if err != nil {
				return count, err
			}
			ctx.Prop(alias, node.Props)
			ctx.Scalar(alias+"_node_id", value.OfString(id))
			boundIDs[alias] = id
			boundProps[alias] = node.Props
		}

		nodeID, err := resolveRuleTemplate(rule.NodeIDTemplate, ctx)
		if err != nil {
			return count, lpgerr.Wrap(lpgerr.EvalError, "rule "+raw.ID+": node_id_template", err).With("rule", raw.ID)
		}

		props := e.resolveProperties(rule.Properties, ctx, raw.ID)
		if _, err := e.graph.AddNode(nodeID, rule.OutputEntity, props); err != nil {
			return count, lpgerr.Wrap(lpgerr.DuplicateNode, "rule "+raw.ID, err).With("rule", raw.ID).With("node", nodeID)
		}
		count++

		e.createRuleEdges(rule.Edges, nodeID, boundIDs, boundProps, nil, ctx, raw.ID)
	}

	if count == 0 {
		e.sink.Warnf("rule %s (derived_node): produced no nodes", raw.ID) // Q1
	}
	return count, nil
}

// findMatchingTuple binds, in alias order after the first, the first
// candidate node of each remaining alias for which join_condition holds
// given only the aliases bound so far — matching the reference
// implementation's per-alias greedy search rather than a full cartesian
// join over every alias at once.
func (e *Engine) findMatchingTuple(firstAlias string, firstNode *graph.Node, aliases []string, entityNodes map[string][]string, cond metadata.Condition) (map[string]string, bool, error) {
	matched := make(map[string]string)
	matchedProps := map[string]*graph.PropertyMap{firstAlias: firstNode.Props}

	for _, alias := range aliases {
		if alias == firstAlias {
			continue
		}
		found := false
		for _, candidateID := range entityNodes[alias] {
			candidateNode, err := e.graph.GetNode(candidateID)
			if err != nil {
				return nil, false, err
			}

			ctx := eval.Context{}
			ctx.Prop(firstAlias, firstNode.Props)
			ctx.Prop(alias, candidateNode.Props)
			for boundAlias, props := range matchedProps {
				if boundAlias != firstAlias {
					ctx.Prop(boundAlias, props)
				}
			}

			ok, err := e.eval.EvaluateCondition(cond, ctx)
			if err != nil {
				return nil, false, err
			}
			if ok {
				matched[alias] = candidateID
				matchedProps[alias] = candidateNode.Props
				found = true
				break
			}
		}
		if !found {
			return nil, false, nil
		}
	}
	return matched, true, nil
}
