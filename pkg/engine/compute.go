package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/lpgraph/lpgraph/pkg/eval"
	"github.com/lpgraph/lpgraph/pkg/graph"
	"github.com/lpgraph/lpgraph/pkg/metadata"
	"github.com/lpgraph/lpgraph/pkg/value"
)

// resolveComputation evaluates the shared {value}/{expression}/{source}/
// {rules} property-definition shape used by every rule kind (spec §4.5).
func resolveComputation(ev *eval.Evaluator, comp metadata.PropertyComputation, ctx eval.Context) (value.Value, error) {
	switch comp.Kind {
	case "value":
		return applyRound(value.OfAny(comp.Literal), comp.Round), nil

	case "expression":
		v, err := ev.Evaluate(comp.Expression, ctx)
		if err != nil {
			return value.NullValue, err
		}
		return applyRound(v, comp.Round), nil

	case "source":
		v, err := resolveSourceRef(comp.Source, ctx)
		if err != nil {
			return value.NullValue, err
		}
		return applyRound(v, comp.Round), nil

	case "rules":
		for _, rule := range comp.Rules {
			matched := rule.Condition == "true"
			if !matched {
				v, err := ev.Evaluate(rule.Condition, ctx)
				if err != nil {
					return value.NullValue, err
				}
				matched = v.Truthy()
			}
			if matched {
				return applyRound(value.OfAny(rule.Value), comp.Round), nil
			}
		}
		return value.NullValue, nil

	default:
		return value.NullValue, nil
	}
}

// resolveSourceRef resolves a dotted "alias.field" reference against ctx —
// the shape both {source: "from.field"} property definitions and
// id-template placeholders use (Q3: source and a pure-field-reference
// expression must agree, and both paths converge here).
func resolveSourceRef(ref string, ctx eval.Context) (value.Value, error) {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) != 2 {
		return value.NullValue, fmt.Errorf("malformed source reference %q", ref)
	}
	entry, ok := ctx[parts[0]]
	if !ok {
		return value.NullValue, fmt.Errorf("source reference %q: unbound identifier %q", ref, parts[0])
	}
	pm, ok := entry.(*graph.PropertyMap)
	if !ok {
		return value.NullValue, fmt.Errorf("source reference %q: %q is not an entity reference", ref, parts[0])
	}
	return pm.Get(parts[1]), nil
}

func applyRound(v value.Value, n *int) value.Value {
	if n == nil {
		return v
	}
	f, ok := v.AsFloat()
	if !ok {
		return v
	}
	return value.OfFloat(roundTo(f, *n))
}

func roundTo(x float64, n int) float64 {
	mul := math.Pow(10, float64(n))
	return math.Round(x*mul) / mul
}
