package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lpgraph/lpgraph/pkg/metadata"
)

func decodeCondition(t *testing.T, src string) metadata.Condition {
	t.Helper()
	var jc metadata.JoinCondition
	require.NoError(t, yaml.Unmarshal([]byte(src), &jc))
	return jc.Expr
}

func TestParseFieldMatchFields(t *testing.T) {
	c := decodeCondition(t, "type: field_match\nfrom_field: dept_id\nto_field: id\n")
	fm, ok := c.(*metadata.FieldMatchFields)
	require.True(t, ok)
	assert.Equal(t, "dept_id", fm.FromField)
	assert.Equal(t, "id", fm.ToField)
}

func TestParseFieldMatchExpr(t *testing.T) {
	c := decodeCondition(t, "type: field_match\nfrom_expression: lower(name)\nto_expression: lower(name)\n")
	fm, ok := c.(*metadata.FieldMatchExpr)
	require.True(t, ok)
	assert.Equal(t, "lower(name)", fm.FromExpr)
	assert.Equal(t, "lower(name)", fm.ToExpr)
}

func TestParseExpressionCondition(t *testing.T) {
	c := decodeCondition(t, "type: expression\nexpression: score > 10\n")
	ec, ok := c.(*metadata.ExpressionCond)
	require.True(t, ok)
	assert.Equal(t, "score > 10", ec.Expression)
}

func TestParseAndOrNot(t *testing.T) {
	src := `
operator: AND
conditions:
  - type: field_match
    from_field: a
    to_field: b
  - operator: NOT
    conditions:
      - type: expression
        expression: "x == 1"
`
	c := decodeCondition(t, src)
	and, ok := c.(*metadata.AndCond)
	require.True(t, ok)
	require.Len(t, and.Conditions, 2)
	_, ok = and.Conditions[0].(*metadata.FieldMatchFields)
	assert.True(t, ok)
	not, ok := and.Conditions[1].(*metadata.NotCond)
	require.True(t, ok)
	_, ok = not.Condition.(*metadata.ExpressionCond)
	assert.True(t, ok)
}

func TestParseNotRequiresExactlyOneCondition(t *testing.T) {
	var jc metadata.JoinCondition
	err := yaml.Unmarshal([]byte("operator: NOT\nconditions: []\n"), &jc)
	assert.Error(t, err)
}

func TestParseUnknownOperatorErrors(t *testing.T) {
	var jc metadata.JoinCondition
	err := yaml.Unmarshal([]byte("operator: XOR\nconditions: []\n"), &jc)
	assert.Error(t, err)
}

func TestParseUnknownTypeErrors(t *testing.T) {
	var jc metadata.JoinCondition
	err := yaml.Unmarshal([]byte("type: mystery\n"), &jc)
	assert.Error(t, err)
}
