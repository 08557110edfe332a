// Package lpgerr defines the error taxonomy shared by every layer of the
// transformation engine: the metadata loader, the dynamic graph builder, the
// expression evaluator, and the rule engine all report failures as a single
// wrapped type distinguished by Kind, never by Go type assertions on
// package-private error structs.
package lpgerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure without requiring callers to know which layer
// produced it. Kinds, not types: every error that leaves this module is a
// *Error with one of these Kinds, so callers branch on Kind via Is.
type Kind string

const (
	// SchemaError marks a structural defect in the schema document
	// (missing field, dangling entity reference, duplicate entity name).
	SchemaError Kind = "schema_error"
	// RuleDocumentError marks a structural defect in the transformations
	// document (missing field, unknown rule type, duplicate rule id).
	RuleDocumentError Kind = "rule_document_error"
	// InputError marks a missing or unreadable tabular source, or a
	// required column absent from one.
	InputError Kind = "input_error"
	// ParseError marks a syntactically invalid expression.
	ParseError Kind = "parse_error"
	// EvalError marks a runtime failure evaluating an otherwise
	// well-formed expression (bad coercion, unresolvable source ref).
	EvalError Kind = "eval_error"
	// DuplicateNode marks an add_node call against an id already present.
	DuplicateNode Kind = "duplicate_node"
	// MissingNode marks a lookup or edge endpoint referencing an absent id.
	MissingNode Kind = "missing_node"
	// MissingField marks an id-template or required-property reference to
	// a column absent from the source row.
	MissingField Kind = "missing_field"
	// DuplicateRule marks two transformations sharing an id.
	DuplicateRule Kind = "duplicate_rule"
	// CancelledError marks a caller-requested cancellation observed
	// between rule applications.
	CancelledError Kind = "cancelled"
)

// Error is the single error type produced by this module. Context carries
// diagnostic breadcrumbs (rule id, node id, field name) named by the caller
// that raised it; it is deliberately a plain map rather than typed fields so
// each layer can attach whatever is relevant without growing this struct.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	for k, v := range e.Context {
		s += fmt.Sprintf(" [%s=%s]", k, v)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, lpgerr.New(kind, "")) style sentinel checks by
// comparing Kind alone, ignoring Message/Context/Cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an Error with no context and no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that chains an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// With attaches a context key/value and returns the same *Error for chaining:
//
//	return lpgerr.New(lpgerr.MissingField, "column absent from row").
//		With("entity", name).With("field", field)
func (e *Error) With(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string, 2)
	}
	e.Context[key] = value
	return e
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, reporting ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
