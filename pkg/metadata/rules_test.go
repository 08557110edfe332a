package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgraph/lpgraph/pkg/metadata"
)

const validRulesYAML = `
version: "1"
transformations:
  - id: link-emp-dept
    type: cross_link
    from_entity: Employee
    to_entity: Department
    link_label: WORKS_IN
    condition:
      type: field_match
      from_field: dept_id
      to_field: dept_id
    properties:
      since:
        value: "2020"
  - id: team-derive
    type: derived_node
    output_entity: Team
    source_entities:
      emp: Employee
      dept: Department
    join_condition:
      type: field_match
      from_field: dept_id
      to_field: dept_id
    node_id_template: "team-{dept.dept_id}"
    properties:
      size:
        expression: "count(Employee)"
    edges:
      - from: emp
        to: new_node
        label: MEMBER_OF
  - id: enrich-emp
    type: enrich_properties
    target_entity: Employee
    enrichments:
      - property: tier
        rules:
          - condition: "salary > 100000"
            value: senior
          - condition: "true"
            value: junior
  - id: agg-dept
    type: aggregation
    output_entity: DeptSummary
    group_by_entity: Department
    aggregate_entity: Employee
    node_id_template: "summary-{facility.dept_id}"
    aggregations:
      avg_salary:
        function: avg
        field: salary
  - id: disabled-rule
    type: cross_link
    enabled: false
    from_entity: A
    to_entity: B
    link_label: L
    condition: {type: expression, expression: "true"}
`

func TestParseAndValidateDocument(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(validRulesYAML))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	require.Len(t, doc.Rules, 5)

	enabled := doc.Enabled()
	require.Len(t, enabled, 4)
	for _, r := range enabled {
		assert.NotEqual(t, "disabled-rule", r.ID)
	}
}

func TestRawRuleDecodesCrossLink(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(validRulesYAML))
	require.NoError(t, err)

	var cl metadata.CrossLinkRule
	require.NoError(t, doc.Rules[0].Decode(&cl))
	assert.Equal(t, "Employee", cl.FromEntity)
	assert.Equal(t, "WORKS_IN", cl.LinkLabel)
	require.NotNil(t, cl.Condition.Expr)
}

func TestRawRuleDecodesDerivedNode(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(validRulesYAML))
	require.NoError(t, err)

	var dn metadata.DerivedNodeRule
	require.NoError(t, doc.Rules[1].Decode(&dn))
	assert.Equal(t, "Team", dn.OutputEntity)
	assert.Equal(t, []string{"emp", "dept"}, dn.SourceEntities.Keys())
	label, ok := dn.SourceEntities.Get("emp")
	require.True(t, ok)
	assert.Equal(t, "Employee", label)
	require.Len(t, dn.Edges, 1)
	assert.Equal(t, "new_node", dn.Edges[0].To)
}

func TestRawRuleDecodesEnrichPropertiesRules(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(validRulesYAML))
	require.NoError(t, err)

	var ep metadata.EnrichPropertiesRule
	require.NoError(t, doc.Rules[2].Decode(&ep))
	require.Len(t, ep.Enrichments, 1)
	assert.Equal(t, "tier", ep.Enrichments[0].Property)
	assert.Equal(t, "rules", ep.Enrichments[0].Kind)
	require.Len(t, ep.Enrichments[0].Rules, 2)
	assert.Equal(t, "senior", ep.Enrichments[0].Rules[0].Value)
}

func TestRawRuleDecodesAggregation(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(validRulesYAML))
	require.NoError(t, err)

	var ag metadata.AggregationRule
	require.NoError(t, doc.Rules[3].Decode(&ag))
	assert.Equal(t, "Department", ag.GroupByEntity)
	assert.Equal(t, "Employee", ag.AggregateEntity)
	require.Equal(t, 1, ag.Aggregations.Len())
	def, ok := ag.Aggregations.Get("avg_salary")
	require.True(t, ok)
	assert.Equal(t, "avg", def.Function)
}

func TestDocumentValidateRejectsDuplicateID(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(`
version: "1"
transformations:
  - id: dup
    type: cross_link
    from_entity: A
    to_entity: B
    link_label: L
    condition: {type: expression, expression: "true"}
  - id: dup
    type: cross_link
    from_entity: A
    to_entity: B
    link_label: L
    condition: {type: expression, expression: "true"}
`))
	require.NoError(t, err)
	assert.Error(t, doc.Validate())
}

func TestDocumentValidateRejectsUnknownType(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(`
version: "1"
transformations:
  - id: r1
    type: mystery
`))
	require.NoError(t, err)
	assert.Error(t, doc.Validate())
}

func TestDocumentValidateRejectsDerivedNodeWithSingleSource(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(`
version: "1"
transformations:
  - id: r1
    type: derived_node
    output_entity: X
    source_entities:
      emp: Employee
    join_condition: {type: expression, expression: "true"}
    node_id_template: "x-{emp.id}"
`))
	require.NoError(t, err)
	assert.Error(t, doc.Validate())
}

func TestDocumentValidateRejectsUnknownAggFunction(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(`
version: "1"
transformations:
  - id: r1
    type: aggregation
    output_entity: S
    group_by_entity: Department
    aggregate_entity: Employee
    node_id_template: "s-{facility.id}"
    aggregations:
      p:
        function: median
        field: salary
`))
	require.NoError(t, err)
	assert.Error(t, doc.Validate())
}

func TestDocumentValidateRejectsAggregationMissingField(t *testing.T) {
	doc, err := metadata.ParseDocument([]byte(`
version: "1"
transformations:
  - id: r1
    type: aggregation
    output_entity: S
    group_by_entity: Department
    aggregate_entity: Employee
    node_id_template: "s-{facility.id}"
    aggregations:
      p:
        function: avg
`))
	require.NoError(t, err)
	assert.Error(t, doc.Validate())
}
