package metadata

import (
	"os"

	"github.com/lpgraph/lpgraph/pkg/lpgerr"
)

// Loader reads and validates schema and transformations documents from
// disk, mirroring the original implementation's two-file contract: a
// schema document describing entities/relationships, and a transformations
// document describing rules, loaded and validated independently so a
// caller can report which document failed.
type Loader struct {
	schema        *Schema
	transforms    *Document
}

// NewLoader returns an empty Loader; call LoadSchema and
// LoadTransformations to populate it.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadSchema reads, parses and validates the schema document at path.
func (l *Loader) LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lpgerr.Wrap(lpgerr.InputError, "reading schema file", err).With("path", path)
	}
	schema, err := ParseSchema(data)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	l.schema = schema
	return schema, nil
}

// LoadTransformations reads, parses and validates the transformations
// document at path.
func (l *Loader) LoadTransformations(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lpgerr.Wrap(lpgerr.InputError, "reading transformations file", err).With("path", path)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	l.transforms = doc
	return doc, nil
}

// Schema returns the most recently loaded schema, or nil if none has been
// loaded yet.
func (l *Loader) Schema() *Schema { return l.schema }

// Transformations returns the most recently loaded transformations
// document, or nil if none has been loaded yet.
func (l *Loader) Transformations() *Document { return l.transforms }

// EntityByName looks up a declared entity in the loaded schema.
func (l *Loader) EntityByName(name string) (*Entity, error) {
	if l.schema == nil {
		return nil, lpgerr.New(lpgerr.SchemaError, "no schema loaded")
	}
	return l.schema.EntityByName(name)
}

// EnabledRules returns the loaded transformations' rules with disabled
// entries filtered out, in declaration order.
func (l *Loader) EnabledRules() []RawRule {
	if l.transforms == nil {
		return nil
	}
	return l.transforms.Enabled()
}
