package engine

import (
	"math"
	"sort"

	"github.com/lpgraph/lpgraph/pkg/eval"
	"github.com/lpgraph/lpgraph/pkg/graph"
	"github.com/lpgraph/lpgraph/pkg/lpgerr"
	"github.com/lpgraph/lpgraph/pkg/metadata"
	"github.com/lpgraph/lpgraph/pkg/value"
)

// applyAggregation generates one summary node per group_by_entity node that
// has at least one aggregate_entity successor (spec §4.5 aggregation).
func applyAggregation(e *Engine, raw *metadata.RawRule) (int, error) {
	var rule metadata.AggregationRule
	if err := raw.Decode(&rule); err != nil {
		return 0, lpgerr.Wrap(lpgerr.RuleDocumentError, "rule "+raw.ID+": decoding aggregation", err).With("rule", raw.ID)
	}

	groupIDs := e.graph.NodesByLabel(rule.GroupByEntity)
	count := 0
	for _, groupID := range groupIDs {
		groupNode, err := e.graph.GetNode(groupID)
		if err != nil {
			return count, err
		}

		members := e.graph.SuccessorsByLabel(groupID, rule.AggregateEntity)
		if len(members) == 0 {
			continue
		}
		memberIDs := make([]string, len(members))
		for i, m := range members {
			memberIDs[i] = m.ID
		}

		ctx := eval.Context{}
		ctx.Prop("facility", groupNode.Props)
		for _, name := range rule.Aggregations.Keys() {
			def, _ := rule.Aggregations.Get(name)
			v, err := aggregateOver(members, def)
			if err != nil {
				return count, lpgerr.Wrap(lpgerr.EvalError, "rule "+raw.ID+": aggregation "+name, err).With("rule", raw.ID)
			}
			ctx.Scalar(name, v)
		}

		nodeID, err := resolveRuleTemplate(rule.NodeIDTemplate, ctx)
		if err != nil {
			return count, lpgerr.Wrap(lpgerr.EvalError, "rule "+raw.ID+": node_id_template", err).With("rule", raw.ID)
		}

		props := graph.NewPropertyMap()
		for _, name := range rule.Aggregations.Keys() {
			entry, _ := ctx[name].(value.Value)
			props.Set(name, entry)
		}
		for _, name := range rule.Properties.Keys() {
			comp, _ := rule.Properties.Get(name)
			v, err := resolveComputation(e.eval, comp, ctx)
			if err != nil {
				e.sink.Warnf("rule %s: property %s: %v", raw.ID, name, err)
				continue
			}
			props.Set(name, v)
		}

		if _, err := e.graph.AddNode(nodeID, rule.OutputEntity, props); err != nil {
			return count, lpgerr.Wrap(lpgerr.DuplicateNode, "rule "+raw.ID, err).With("rule", raw.ID).With("node", nodeID)
		}
		count++

		boundIDs := map[string]string{"facility": groupID}
		boundProps := map[string]*graph.PropertyMap{"facility": groupNode.Props}
		e.createRuleEdges(rule.Edges, nodeID, boundIDs, boundProps, memberIDs, ctx, raw.ID)
	}

	if count == 0 {
		e.sink.Warnf("rule %s (aggregation): no %s node had %s successors", raw.ID, rule.GroupByEntity, rule.AggregateEntity) // B3/Q1
	}
	return count, nil
}

// aggregateOver computes one named aggregation over a fixed set of already
// collected nodes — distinct from the evaluator's avg(Entity.field), which
// scans the whole label; this aggregates exactly the group's successors,
// per spec §4.5's "collect the successor nodes... compute over the
// collection's property values".
func aggregateOver(nodes []*graph.Node, def metadata.AggDef) (value.Value, error) {
	if def.Function == "count" {
		return applyRound(value.OfInt(int64(len(nodes))), def.Round), nil
	}

	nums := make([]float64, 0, len(nodes))
	for _, n := range nodes {
		v := n.Props.Get(def.Field)
		if v.IsNull() {
			continue
		}
		if f, ok := v.AsFloat(); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return value.OfInt(0), nil // B3: empty aggregate collection is 0
	}

	switch def.Function {
	case "avg":
		return applyRound(value.OfFloat(mean(nums)), def.Round), nil
	case "sum":
		return applyRound(value.OfFloat(sum(nums)), def.Round), nil
	case "max":
		sort.Float64s(nums)
		return applyRound(value.OfFloat(nums[len(nums)-1]), def.Round), nil
	case "min":
		sort.Float64s(nums)
		return applyRound(value.OfFloat(nums[0]), def.Round), nil
	case "stddev":
		if len(nums) < 2 {
			return value.OfInt(0), nil
		}
		return applyRound(value.OfFloat(stddev(nums)), def.Round), nil
	default:
		return value.NullValue, nil
	}
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

func mean(xs []float64) float64 { return sum(xs) / float64(len(xs)) }

func stddev(xs []float64) float64 {
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}
