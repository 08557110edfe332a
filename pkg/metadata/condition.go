package metadata

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Condition is the recursive join-condition AST from spec §4.2: a tagged
// variant (FieldMatch* | Expression | And | Or | Not), never open
// inheritance, so the evaluator can exhaustively switch over concrete types
// instead of calling back into arbitrary document-defined behavior.
type Condition interface {
	conditionMarker()
}

// FieldMatchFields compares two named fields of the from/to contexts
// directly, without invoking the expression parser.
type FieldMatchFields struct {
	FromField string
	ToField   string
}

func (*FieldMatchFields) conditionMarker() {}

// FieldMatchExpr compares two evaluated expressions for equality.
type FieldMatchExpr struct {
	FromExpr string
	ToExpr   string
}

func (*FieldMatchExpr) conditionMarker() {}

// ExpressionCond evaluates a scalar expression and takes its truthiness.
type ExpressionCond struct {
	Expression string
}

func (*ExpressionCond) conditionMarker() {}

// AndCond is a short-circuiting conjunction.
type AndCond struct{ Conditions []Condition }

func (*AndCond) conditionMarker() {}

// OrCond is a short-circuiting disjunction.
type OrCond struct{ Conditions []Condition }

func (*OrCond) conditionMarker() {}

// NotCond negates its single operand.
type NotCond struct{ Condition Condition }

func (*NotCond) conditionMarker() {}

// JoinCondition wraps a Condition so it can be embedded directly as a YAML
// struct field: yaml.v3 dispatches custom unmarshalling by the static field
// type, and an interface type can't carry methods, so every join_condition
// field in the schema/transformations structs is typed JoinCondition rather
// than Condition directly.
type JoinCondition struct {
	Expr Condition
}

func (j *JoinCondition) UnmarshalYAML(node *yaml.Node) error {
	expr, err := parseCondition(node)
	if err != nil {
		return err
	}
	j.Expr = expr
	return nil
}

func parseCondition(node *yaml.Node) (Condition, error) {
	var head struct {
		Operator       string      `yaml:"operator"`
		Conditions     []yaml.Node `yaml:"conditions"`
		Type           string      `yaml:"type"`
		FromField      string      `yaml:"from_field"`
		ToField        string      `yaml:"to_field"`
		FromExpression string      `yaml:"from_expression"`
		ToExpression   string      `yaml:"to_expression"`
		Expression     string      `yaml:"expression"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, fmt.Errorf("decoding condition: %w", err)
	}

	if head.Operator != "" {
		conds := make([]Condition, 0, len(head.Conditions))
		for i := range head.Conditions {
			c, err := parseCondition(&head.Conditions[i])
			if err != nil {
				return nil, err
			}
			conds = append(conds, c)
		}
		switch strings.ToUpper(head.Operator) {
		case "AND":
			return &AndCond{Conditions: conds}, nil
		case "OR":
			return &OrCond{Conditions: conds}, nil
		case "NOT":
			if len(conds) != 1 {
				return nil, fmt.Errorf("NOT requires exactly one condition, got %d", len(conds))
			}
			return &NotCond{Condition: conds[0]}, nil
		default:
			return nil, fmt.Errorf("unknown boolean operator %q", head.Operator)
		}
	}

	switch head.Type {
	case "field_match":
		if head.FromField != "" || head.ToField != "" {
			return &FieldMatchFields{FromField: head.FromField, ToField: head.ToField}, nil
		}
		return &FieldMatchExpr{FromExpr: head.FromExpression, ToExpr: head.ToExpression}, nil
	case "expression":
		return &ExpressionCond{Expression: head.Expression}, nil
	case "":
		return nil, fmt.Errorf("condition missing both operator and type")
	default:
		return nil, fmt.Errorf("unknown condition type %q", head.Type)
	}
}
