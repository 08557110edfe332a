// Package eval implements the hand-written expression interpreter described
// in spec §4.4: a lexer, a recursive-descent parser producing a small AST,
// and a tree-walking evaluator. Deliberately not a host-language eval (the
// original implementation this system replaces literally shelled out to
// Python's eval() over a restricted builtins set) — every identifier this
// evaluator can resolve must come through the caller-supplied Context or the
// attached graph, never from the surrounding process.
package eval

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lpgraph/lpgraph/pkg/graph"
	"github.com/lpgraph/lpgraph/pkg/lpgerr"
	"github.com/lpgraph/lpgraph/pkg/metadata"
	"github.com/lpgraph/lpgraph/pkg/value"
)

// Context binds identifiers used by field references and bare identifiers
// to either a node's property map (an entity context, e.g. "from", "to", a
// derived_node alias) or a precomputed scalar (e.g. an aggregation result
// spread into a rule's per-node context).
type Context map[string]any

// Prop stores a property-map-valued context entry.
func (c Context) Prop(name string, pm *graph.PropertyMap) Context {
	c[name] = pm
	return c
}

// Scalar stores a scalar-valued context entry.
func (c Context) Scalar(name string, v value.Value) Context {
	c[name] = v
	return c
}

// GraphSource is the subset of the graph store the evaluator needs to
// resolve aggregation function calls against all nodes of a label.
type GraphSource interface {
	NodesByLabel(label string) []string
	GetNode(id string) (*graph.Node, error)
}

// Evaluator parses and evaluates expressions against a Context, with
// aggregation results cached for the lifetime of one rule application
// (spec §4.4: "cached within one rule application keyed by
// (function, label, field)").
type Evaluator struct {
	graph GraphSource
	clock Clock
	cache map[string]value.Value
}

// New returns an Evaluator reading aggregation inputs from g and the
// current time from clock.
func New(g GraphSource, clock Clock) *Evaluator {
	return &Evaluator{graph: g, clock: clock, cache: make(map[string]value.Value)}
}

// ClearCache discards cached aggregation results; call between rule
// applications (spec O3: aggregation caches are rule-scoped).
func (e *Evaluator) ClearCache() {
	e.cache = make(map[string]value.Value)
}

// Evaluate parses and evaluates expr against ctx.
func (e *Evaluator) Evaluate(expr string, ctx Context) (value.Value, error) {
	node, err := Parse(expr)
	if err != nil {
		return value.NullValue, lpgerr.Wrap(lpgerr.ParseError, "parsing expression", err).With("expression", expr)
	}
	return e.eval(node, ctx)
}

// HasAggregation reports whether expr syntactically contains an aggregation
// function call, for the enrich_properties precomputation step (spec
// §4.5: aggregation-containing expressions are evaluated once before the
// node loop).
func (e *Evaluator) HasAggregation(expr string) bool {
	node, err := Parse(expr)
	if err != nil {
		return false
	}
	return containsAggregation(node)
}

func containsAggregation(n Node) bool {
	switch v := n.(type) {
	case *CallNode:
		if isAggregationFunc(v.Name) {
			return true
		}
		for _, a := range v.Args {
			if containsAggregation(a) {
				return true
			}
		}
	case *BinaryNode:
		return containsAggregation(v.Left) || containsAggregation(v.Right)
	case *UnaryNode:
		return containsAggregation(v.Operand)
	}
	return false
}

func isAggregationFunc(name string) bool {
	switch strings.ToLower(name) {
	case "avg", "sum", "max", "min", "count", "stddev":
		return true
	default:
		return false
	}
}

func (e *Evaluator) eval(n Node, ctx Context) (value.Value, error) {
	switch node := n.(type) {
	case *LiteralNode:
		return value.OfAny(node.Value), nil

	case *FieldRefNode:
		entry, ok := ctx[node.Ident]
		if !ok {
			return value.NullValue, nil // unknown identifier -> null per spec §4.4
		}
		pm, ok := entry.(*graph.PropertyMap)
		if !ok {
			return value.NullValue, fmt.Errorf("%s is not an entity reference", node.Ident)
		}
		return pm.Get(node.Field), nil

	case *IdentNode:
		entry, ok := ctx[node.Name]
		if !ok {
			return value.NullValue, nil
		}
		v, ok := entry.(value.Value)
		if !ok {
			return value.NullValue, fmt.Errorf("%s is an entity reference, not a value", node.Name)
		}
		return v, nil

	case *UnaryNode:
		operand, err := e.eval(node.Operand, ctx)
		if err != nil {
			return value.NullValue, err
		}
		switch node.Op {
		case "not":
			return value.OfBool(!operand.Truthy()), nil
		case "-":
			if operand.IsNull() {
				return value.NullValue, nil
			}
			return value.Sub(value.OfInt(0), operand), nil
		}
		return value.NullValue, fmt.Errorf("unknown unary operator %q", node.Op)

	case *BinaryNode:
		return e.evalBinary(node, ctx)

	case *CallNode:
		return e.evalCall(node, ctx)
	}
	return value.NullValue, fmt.Errorf("unhandled expression node %T", n)
}

func (e *Evaluator) evalBinary(node *BinaryNode, ctx Context) (value.Value, error) {
	if node.Op == "and" {
		left, err := e.eval(node.Left, ctx)
		if err != nil {
			return value.NullValue, err
		}
		if !left.Truthy() {
			return value.OfBool(false), nil
		}
		right, err := e.eval(node.Right, ctx)
		if err != nil {
			return value.NullValue, err
		}
		return value.OfBool(right.Truthy()), nil
	}
	if node.Op == "or" {
		left, err := e.eval(node.Left, ctx)
		if err != nil {
			return value.NullValue, err
		}
		if left.Truthy() {
			return value.OfBool(true), nil
		}
		right, err := e.eval(node.Right, ctx)
		if err != nil {
			return value.NullValue, err
		}
		return value.OfBool(right.Truthy()), nil
	}

	left, err := e.eval(node.Left, ctx)
	if err != nil {
		return value.NullValue, err
	}
	right, err := e.eval(node.Right, ctx)
	if err != nil {
		return value.NullValue, err
	}

	switch node.Op {
	case "+":
		return value.Add(left, right), nil
	case "-":
		return value.Sub(left, right), nil
	case "*":
		return value.Mul(left, right), nil
	case "/":
		return value.Div(left, right), nil
	case "%":
		return value.Mod(left, right), nil
	case "**":
		return value.Pow(left, right), nil
	case "==":
		return value.OfBool(value.Equal(left, right)), nil
	case "!=":
		return value.OfBool(!value.Equal(left, right)), nil
	case "<", "<=", ">", ">=":
		cmp, ok := value.Compare(left, right)
		if !ok {
			return value.OfBool(false), nil
		}
		switch node.Op {
		case "<":
			return value.OfBool(cmp < 0), nil
		case "<=":
			return value.OfBool(cmp <= 0), nil
		case ">":
			return value.OfBool(cmp > 0), nil
		default:
			return value.OfBool(cmp >= 0), nil
		}
	}
	return value.NullValue, fmt.Errorf("unknown binary operator %q", node.Op)
}

func (e *Evaluator) evalCall(node *CallNode, ctx Context) (value.Value, error) {
	name := strings.ToLower(node.Name)
	if isAggregationFunc(name) {
		return e.evalAggregationCall(name, node.Args)
	}

	switch name {
	case "now":
		return value.OfTime(e.clock.Now()), nil

	case "round":
		if len(node.Args) != 2 {
			return value.NullValue, fmt.Errorf("round() takes exactly 2 arguments")
		}
		x, err := e.eval(node.Args[0], ctx)
		if err != nil {
			return value.NullValue, err
		}
		n, err := e.eval(node.Args[1], ctx)
		if err != nil {
			return value.NullValue, err
		}
		xf, ok := x.AsFloat()
		if !ok {
			return value.NullValue, nil
		}
		ni, _ := n.AsInt()
		return value.OfFloat(roundTo(xf, int(ni))), nil

	case "abs":
		if len(node.Args) != 1 {
			return value.NullValue, fmt.Errorf("abs() takes exactly 1 argument")
		}
		x, err := e.eval(node.Args[0], ctx)
		if err != nil {
			return value.NullValue, err
		}
		if x.Kind() == value.Int {
			n, _ := x.AsInt()
			if n < 0 {
				n = -n
			}
			return value.OfInt(n), nil
		}
		xf, ok := x.AsFloat()
		if !ok {
			return value.NullValue, nil
		}
		return value.OfFloat(math.Abs(xf)), nil

	case "len":
		if len(node.Args) != 1 {
			return value.NullValue, fmt.Errorf("len() takes exactly 1 argument")
		}
		x, err := e.eval(node.Args[0], ctx)
		if err != nil {
			return value.NullValue, err
		}
		if x.IsNull() {
			return value.NullValue, nil
		}
		return value.OfInt(int64(len([]rune(x.String())))), nil

	default:
		return value.NullValue, fmt.Errorf("unknown function %q", node.Name)
	}
}

// evalAggregationCall resolves avg/sum/max/min/count/stddev(Entity[.field])
// calls. The argument is never evaluated through Context: Entity is a graph
// label, bound structurally in the AST, not a context variable.
func (e *Evaluator) evalAggregationCall(function string, args []Node) (value.Value, error) {
	if len(args) != 1 {
		return value.NullValue, fmt.Errorf("%s() takes exactly 1 argument", function)
	}
	var label, field string
	switch arg := args[0].(type) {
	case *FieldRefNode:
		label, field = arg.Ident, arg.Field
	case *IdentNode:
		label = arg.Name
	default:
		return value.NullValue, fmt.Errorf("%s() argument must be Entity or Entity.field", function)
	}
	if function != "count" && field == "" {
		return value.NullValue, fmt.Errorf("%s() requires Entity.field", function)
	}

	cacheKey := function + "|" + label + "|" + field
	if cached, ok := e.cache[cacheKey]; ok {
		return cached, nil
	}

	if e.graph == nil {
		return value.NullValue, fmt.Errorf("aggregation function %s() used with no graph attached", function)
	}

	ids := e.graph.NodesByLabel(label)
	result, err := e.aggregate(function, ids, field)
	if err != nil {
		return value.NullValue, err
	}
	e.cache[cacheKey] = result
	return result, nil
}

func (e *Evaluator) aggregate(function string, ids []string, field string) (value.Value, error) {
	if function == "count" {
		return value.OfInt(int64(len(ids))), nil
	}

	values := make([]value.Value, 0, len(ids))
	for _, id := range ids {
		n, err := e.graph.GetNode(id)
		if err != nil {
			continue
		}
		if v := n.Props.Get(field); !v.IsNull() {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return value.OfInt(0), nil
	}

	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.AsFloat(); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return value.OfInt(0), nil
	}

	switch function {
	case "avg":
		return value.OfFloat(mean(nums)), nil
	case "sum":
		return value.OfFloat(sum(nums)), nil
	case "max":
		sort.Float64s(nums)
		return value.OfFloat(nums[len(nums)-1]), nil
	case "min":
		sort.Float64s(nums)
		return value.OfFloat(nums[0]), nil
	case "stddev":
		if len(nums) < 2 {
			return value.OfInt(0), nil
		}
		return value.OfFloat(stddev(nums)), nil
	default:
		return value.NullValue, fmt.Errorf("unsupported aggregation function %q", function)
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

func roundTo(x float64, n int) float64 {
	mul := math.Pow(10, float64(n))
	return math.Round(x*mul) / mul
}

// EvaluateCondition evaluates the recursive join-condition AST (spec §4.2)
// against ctx, short-circuiting AND/OR.
func (e *Evaluator) EvaluateCondition(cond metadata.Condition, ctx Context) (bool, error) {
	switch c := cond.(type) {
	case *metadata.FieldMatchFields:
		fromPM, ok := ctx["from"].(*graph.PropertyMap)
		if !ok {
			return false, fmt.Errorf("field_match requires a bound 'from' context")
		}
		toPM, ok := ctx["to"].(*graph.PropertyMap)
		if !ok {
			return false, fmt.Errorf("field_match requires a bound 'to' context")
		}
		return value.Equal(fromPM.Get(c.FromField), toPM.Get(c.ToField)), nil

	case *metadata.FieldMatchExpr:
		from, err := e.Evaluate(c.FromExpr, ctx)
		if err != nil {
			return false, err
		}
		to, err := e.Evaluate(c.ToExpr, ctx)
		if err != nil {
			return false, err
		}
		return value.Equal(from, to), nil

	case *metadata.ExpressionCond:
		v, err := e.Evaluate(c.Expression, ctx)
		if err != nil {
			return false, err
		}
		return v.Truthy(), nil

	case *metadata.AndCond:
		for _, sub := range c.Conditions {
			ok, err := e.EvaluateCondition(sub, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case *metadata.OrCond:
		for _, sub := range c.Conditions {
			ok, err := e.EvaluateCondition(sub, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case *metadata.NotCond:
		ok, err := e.EvaluateCondition(c.Condition, ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, fmt.Errorf("unknown condition type %T", cond)
	}
}
