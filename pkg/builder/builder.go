// Package builder implements the dynamic graph builder (spec §4.3): it
// consumes a loaded schema and tabular sources and materializes the base
// graph — one node per source row, then edges for every declared
// relationship — before any rule is applied.
package builder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lpgraph/lpgraph/pkg/config"
	"github.com/lpgraph/lpgraph/pkg/eval"
	"github.com/lpgraph/lpgraph/pkg/graph"
	"github.com/lpgraph/lpgraph/pkg/lpgerr"
	"github.com/lpgraph/lpgraph/pkg/metadata"
	"github.com/lpgraph/lpgraph/pkg/tabular"
	"github.com/lpgraph/lpgraph/pkg/value"
)

// Logger receives non-fatal observability messages (spec §6: a relationship
// producing zero edges is logged, not failed). nil is a valid Logger: a
// Builder built without one simply drops these messages.
type Logger interface {
	Warnf(format string, args ...any)
}

// Report summarizes one Build run, mirroring what a report-projection
// layer or CLI driver would want to print.
type Report struct {
	NodesByEntity map[string]int
	EdgesByRel    map[string]int
	Warnings      []string
}

// Builder materializes a Graph from a Schema and its tabular sources.
type Builder struct {
	schema     *metadata.Schema
	graph      *graph.Graph
	eval       *eval.Evaluator
	log        Logger
	strictness config.Strictness
}

// New returns a Builder that writes into g, using ev to evaluate
// relationship join conditions and property computations. A non-required
// property whose cell fails coercion is warned about and stored as null under
// config.StrictnessWarn (the default) or treated as fatal under
// config.StrictnessFail; an empty strictness behaves as StrictnessWarn.
func New(schema *metadata.Schema, g *graph.Graph, ev *eval.Evaluator, log Logger, strictness config.Strictness) *Builder {
	return &Builder{schema: schema, graph: g, eval: ev, log: log, strictness: strictness}
}

func (b *Builder) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if b.log != nil {
		b.log.Warnf("%s", msg)
	}
}

// Build materializes every declared entity's nodes, then every declared
// relationship's edges, in schema declaration order (spec O2).
func (b *Builder) Build() (*Report, error) {
	report := &Report{NodesByEntity: map[string]int{}, EdgesByRel: map[string]int{}}

	for _, entity := range b.schema.Entities {
		n, err := b.buildEntity(&entity)
		if err != nil {
			return nil, err
		}
		report.NodesByEntity[entity.Name] = n
	}

	for _, rel := range b.schema.Relationships {
		n, err := b.buildRelationship(&rel)
		if err != nil {
			return nil, err
		}
		report.EdgesByRel[rel.Name] = n
		if n == 0 {
			msg := fmt.Sprintf("relationship %s produced zero edges", rel.Name)
			report.Warnings = append(report.Warnings, msg)
			b.warnf("%s", msg)
		}
	}

	return report, nil
}

func (b *Builder) buildEntity(entity *metadata.Entity) (int, error) {
	src, err := tabular.ForFormat(entity.Source.Format)
	if err != nil {
		return 0, lpgerr.Wrap(lpgerr.InputError, "entity "+entity.Name, err).With("entity", entity.Name)
	}
	records, err := src.Open(entity.Source.Path)
	if err != nil {
		return 0, lpgerr.Wrap(lpgerr.InputError, "entity "+entity.Name, err).With("entity", entity.Name)
	}

	count := 0
	for _, rec := range records {
		id, err := b.resolveNodeID(entity, rec)
		if err != nil {
			return 0, err
		}
		props, err := b.buildProperties(entity, rec)
		if err != nil {
			return 0, err
		}
		if _, err := b.graph.AddNode(id, entity.Name, props); err != nil {
			return 0, lpgerr.Wrap(lpgerr.InputError, "entity "+entity.Name, err).With("entity", entity.Name).With("node", id)
		}
		count++
	}
	return count, nil
}

func (b *Builder) resolveNodeID(entity *metadata.Entity, rec tabular.Record) (string, error) {
	if entity.IDField != "" {
		cell, ok := rec[entity.IDField]
		if !ok {
			return "", lpgerr.Newf(lpgerr.MissingField, "entity %s: id_field %q missing from source row", entity.Name, entity.IDField).
				With("entity", entity.Name).With("field", entity.IDField)
		}
		return cell, nil
	}
	return b.resolveIDTemplate(entity, rec)
}

var templatePlaceholder = regexp.MustCompile(`\{(\w+)(?::([^}]+))?\}`)

func (b *Builder) resolveIDTemplate(entity *metadata.Entity, rec tabular.Record) (string, error) {
	var outerErr error
	result := templatePlaceholder.ReplaceAllStringFunc(entity.IDTemplate, func(match string) string {
		if outerErr != nil {
			return match
		}
		groups := templatePlaceholder.FindStringSubmatch(match)
		field, format := groups[1], groups[2]

		cell, ok := rec[field]
		if !ok {
			outerErr = lpgerr.Newf(lpgerr.MissingField, "entity %s: id_template field %q missing from source row", entity.Name, field).
				With("entity", entity.Name).With("field", field)
			return match
		}

		kind := declaredType(entity, field)
		v, err := value.CoerceString(cell, kind)
		if err != nil {
			outerErr = lpgerr.Wrap(lpgerr.InputError, fmt.Sprintf("entity %s: id_template field %q", entity.Name, field), err).
				With("entity", entity.Name).With("field", field)
			return match
		}
		out, err := value.FormatPadded(v, format)
		if err != nil {
			outerErr = lpgerr.Wrap(lpgerr.InputError, fmt.Sprintf("entity %s: id_template field %q", entity.Name, field), err).
				With("entity", entity.Name).With("field", field)
			return match
		}
		return out
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

func declaredType(entity *metadata.Entity, field string) string {
	if pdef, ok := entity.Properties.Get(field); ok {
		return pdef.Type
	}
	return "string"
}

func (b *Builder) buildProperties(entity *metadata.Entity, rec tabular.Record) (*graph.PropertyMap, error) {
	props := graph.NewPropertyMap()
	for _, name := range entity.Properties.Keys() {
		pdef, _ := entity.Properties.Get(name)
		cell, ok := rec[name]
		if !ok {
			if pdef.Required {
				return nil, lpgerr.Newf(lpgerr.MissingField, "entity %s: required field %q missing from source row", entity.Name, name).
					With("entity", entity.Name).With("field", name)
			}
			continue // non-required absent column: property is simply not set
		}

		v, err := value.CoerceString(cell, pdef.Type)
		if err != nil {
			if pdef.Required || b.strictness == config.StrictnessFail {
				return nil, lpgerr.Wrap(lpgerr.InputError, fmt.Sprintf("entity %s: field %q", entity.Name, name), err).
					With("entity", entity.Name).With("field", name)
			}
			b.warnf("entity %s: field %q: %v", entity.Name, name, err)
			v = value.NullValue
		}

		if pdef.Alias != "" {
			props.Set(pdef.Alias, v)
			props.Set(name, v) // dual storage for compatibility, per spec §4.3
		} else {
			props.Set(name, v)
		}
	}
	return props, nil
}

func (b *Builder) buildRelationship(rel *metadata.Relationship) (int, error) {
	fromEntity, err := b.schema.EntityByName(rel.FromEntity)
	if err != nil {
		return 0, err
	}
	toEntity, err := b.schema.EntityByName(rel.ToEntity)
	if err != nil {
		return 0, err
	}

	fromIDs := b.graph.NodesByLabel(fromEntity.Name)
	toIDs := b.graph.NodesByLabel(toEntity.Name)

	count := 0
	for _, fromID := range fromIDs {
		fromNode, err := b.graph.GetNode(fromID)
		if err != nil {
			return 0, err
		}
		for _, toID := range toIDs {
			toNode, err := b.graph.GetNode(toID)
			if err != nil {
				return 0, err
			}

			ctx := eval.Context{}
			ctx.Prop("from", fromNode.Props)
			ctx.Prop("to", toNode.Props)

			matched, err := b.eval.EvaluateCondition(rel.JoinCondition.Expr, ctx)
			if err != nil {
				return 0, lpgerr.Wrap(lpgerr.ParseError, "relationship "+rel.Name+": join_condition", err).With("relationship", rel.Name)
			}
			if !matched {
				continue
			}

			edgeProps, err := b.relationshipEdgeProperties(rel, fromNode.Props, toNode.Props)
			if err != nil {
				return 0, err
			}
			if _, err := b.graph.AddEdge(fromID, toID, rel.Name, edgeProps); err != nil {
				return 0, lpgerr.Wrap(lpgerr.InputError, "relationship "+rel.Name, err).With("relationship", rel.Name)
			}
			count++
		}
	}
	return count, nil
}

func (b *Builder) relationshipEdgeProperties(rel *metadata.Relationship, fromProps, toProps *graph.PropertyMap) (*graph.PropertyMap, error) {
	out := graph.NewPropertyMap()
	for _, name := range rel.Properties.Keys() {
		comp, _ := rel.Properties.Get(name)
		v, err := b.resolveSourceComputation(comp, fromProps, toProps)
		if err != nil {
			b.warnf("relationship %s: property %s: %v", rel.Name, name, err)
			continue
		}
		out.Set(name, v)
	}
	return out, nil
}

// resolveSourceComputation handles the {value} / {source: "from.<field>" |
// "to.<field>"} shape used by relationship edge properties (spec §4.3).
func (b *Builder) resolveSourceComputation(comp metadata.PropertyComputation, fromProps, toProps *graph.PropertyMap) (value.Value, error) {
	switch comp.Kind {
	case "value":
		return value.OfAny(comp.Literal), nil
	case "source":
		switch {
		case strings.HasPrefix(comp.Source, "from."):
			return fromProps.Get(strings.TrimPrefix(comp.Source, "from.")), nil
		case strings.HasPrefix(comp.Source, "to."):
			return toProps.Get(strings.TrimPrefix(comp.Source, "to.")), nil
		default:
			return value.NullValue, fmt.Errorf("unrecognized source reference %q", comp.Source)
		}
	case "expression":
		ctx := eval.Context{}
		ctx.Prop("from", fromProps)
		ctx.Prop("to", toProps)
		return b.eval.Evaluate(comp.Expression, ctx)
	default:
		return value.NullValue, nil
	}
}
