package eval_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgraph/lpgraph/pkg/eval"
	"github.com/lpgraph/lpgraph/pkg/graph"
	"github.com/lpgraph/lpgraph/pkg/metadata"
	"github.com/lpgraph/lpgraph/pkg/value"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func newTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	for id, salary := range map[string]int64{"e1": 100, "e2": 200, "e3": 300} {
		props := graph.NewPropertyMap()
		props.Set("salary", value.OfInt(salary))
		_, err := g.AddNode(id, "Employee", props)
		require.NoError(t, err)
	}
	return g
}

func propCtx(pairs ...any) eval.Context {
	ctx := eval.Context{}
	for i := 0; i+1 < len(pairs); i += 2 {
		name := pairs[i].(string)
		pm := pairs[i+1].(*graph.PropertyMap)
		ctx.Prop(name, pm)
	}
	return ctx
}

func propMap(pairs ...any) *graph.PropertyMap {
	pm := graph.NewPropertyMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		pm.Set(pairs[i].(string), value.OfAny(pairs[i+1]))
	}
	return pm
}

func TestEvaluateArithmeticAndPrecedence(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	v, err := ev.Evaluate("2 + 3 * 4", eval.Context{})
	require.NoError(t, err)
	got, _ := v.AsInt()
	assert.Equal(t, int64(14), got)
}

func TestEvaluatePowerIsRightAssociative(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	v, err := ev.Evaluate("2 ** 3 ** 2", eval.Context{}) // 2 ** (3 ** 2) = 512
	require.NoError(t, err)
	got, _ := v.AsInt()
	assert.Equal(t, int64(512), got)
}

func TestEvaluateDivisionByZeroYieldsNull(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	v, err := ev.Evaluate("10 / 0", eval.Context{})
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestEvaluateIntFloatPromotion(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	v, err := ev.Evaluate("1 + 2.5", eval.Context{})
	require.NoError(t, err)
	assert.Equal(t, value.Float, v.Kind())
	f, _ := v.AsFloat()
	assert.Equal(t, 3.5, f)
}

func TestEvaluateFieldReference(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	ctx := propCtx("emission", propMap("co2", 45000), "energy", propMap("kwh", 100000))
	v, err := ev.Evaluate("emission.co2 / energy.kwh", ctx)
	require.NoError(t, err)
	f, _ := v.AsFloat()
	assert.Equal(t, 0.45, f)
}

func TestEvaluateComparisonAndLogical(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	ctx := propCtx("node", propMap("intensity", 0.45, "renewable", 0.3))
	v, err := ev.Evaluate("node.intensity < 0.5 and node.renewable > 0.2", ctx)
	require.NoError(t, err)
	assert.True(t, v.Truthy())
}

func TestEvaluateCrossTypeComparisonIsFalse(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	ctx := propCtx("n", propMap("a", "hello"))
	v, err := ev.Evaluate("n.a < 5", ctx)
	require.NoError(t, err)
	assert.False(t, v.Truthy())
}

func TestEvaluateNowReturnsInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := eval.New(nil, fixedClock{t: fixed})
	v, err := ev.Evaluate("now()", eval.Context{})
	require.NoError(t, err)
	got, ok := v.AsTime()
	require.True(t, ok)
	assert.True(t, got.Equal(fixed))
}

func TestEvaluateIntrinsics(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})

	v, err := ev.Evaluate("round(3.14159, 2)", eval.Context{})
	require.NoError(t, err)
	f, _ := v.AsFloat()
	assert.Equal(t, 3.14, f)

	v, err = ev.Evaluate("abs(0 - 5)", eval.Context{})
	require.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(5), i)

	v, err = ev.Evaluate("len('hello')", eval.Context{})
	require.NoError(t, err)
	i, _ = v.AsInt()
	assert.Equal(t, int64(5), i)
}

func TestEvaluateAggregationFunctionsOverLabel(t *testing.T) {
	g := newTestGraph(t)
	ev := eval.New(g, eval.SystemClock{})

	v, err := ev.Evaluate("avg(Employee.salary)", eval.Context{})
	require.NoError(t, err)
	f, _ := v.AsFloat()
	assert.Equal(t, 200.0, f)

	v, err = ev.Evaluate("count(Employee)", eval.Context{})
	require.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(3), i)
}

func TestEvaluateAggregationOverEmptyLabelYieldsZero(t *testing.T) {
	g := graph.New()
	ev := eval.New(g, eval.SystemClock{})
	v, err := ev.Evaluate("sum(Ghost.x)", eval.Context{})
	require.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(0), i)
}

func TestAggregationResultsAreCachedWithinARuleApplication(t *testing.T) {
	g := newTestGraph(t)
	ev := eval.New(g, eval.SystemClock{})

	first, err := ev.Evaluate("avg(Employee.salary)", eval.Context{})
	require.NoError(t, err)

	props := graph.NewPropertyMap()
	props.Set("salary", value.OfInt(1000))
	_, err = g.AddNode("e4", "Employee", props)
	require.NoError(t, err)

	second, err := ev.Evaluate("avg(Employee.salary)", eval.Context{})
	require.NoError(t, err)
	assert.True(t, value.Equal(first, second), "cached result should not reflect the new node")

	ev.ClearCache()
	third, err := ev.Evaluate("avg(Employee.salary)", eval.Context{})
	require.NoError(t, err)
	assert.False(t, value.Equal(first, third), "cleared cache should observe the new node")
}

func TestHasAggregationDetectsAggregationCalls(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	assert.True(t, ev.HasAggregation("avg(Employee.salary) + 1"))
	assert.False(t, ev.HasAggregation("1 + 2"))
}

func TestEvaluateConditionFieldMatchFields(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	ctx := propCtx("from", propMap("dept_id", "d1"), "to", propMap("dept_id", "d1"))
	cond := &metadata.FieldMatchFields{FromField: "dept_id", ToField: "dept_id"}
	ok, err := ev.EvaluateCondition(cond, ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateConditionAndOrNot(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	ctx := propCtx("from", propMap("year", 2020, "month", 1), "to", propMap("year", 2020, "month", 1))
	cond := &metadata.AndCond{Conditions: []metadata.Condition{
		&metadata.ExpressionCond{Expression: "from.year == to.year"},
		&metadata.NotCond{Condition: &metadata.ExpressionCond{Expression: "from.month != to.month"}},
	}}
	ok, err := ev.EvaluateCondition(cond, ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateConditionShortCircuitsOr(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	cond := &metadata.OrCond{Conditions: []metadata.Condition{
		&metadata.ExpressionCond{Expression: "true"},
		&metadata.ExpressionCond{Expression: "1 / 0 == 1"}, // would error if evaluated against a non-null-tolerant path; division-by-zero is null here, harmless
	}}
	ok, err := ev.EvaluateCondition(cond, eval.Context{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseRejectsMalformedExpression(t *testing.T) {
	ev := eval.New(nil, eval.SystemClock{})
	_, err := ev.Evaluate("1 + + ", eval.Context{})
	assert.Error(t, err)
}
