// Package validate checks store trees against a JSON Schema.
package validate

import (
	"errors"
	"fmt"
	"strings"

	stores "github.com/goliatone/go-stores"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalid = errors.New("validate: tree does not match schema")

// ValidationError lists the schema violations of one tree.
type ValidationError struct {
	Violations []Violation
}

// Violation is one failed schema rule.
type Violation struct {
	Field       string
	Description string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Description))
	}
	return fmt.Sprintf("%v: %s", ErrInvalid, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// SchemaValidator validates trees against a compiled schema.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles schema (JSON bytes).
func NewSchemaValidator(schema []byte) (*SchemaValidator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("validate: compile schema: %w", err)
	}
	return &SchemaValidator{schema: compiled}, nil
}

// Validate checks tree and returns a *ValidationError on violations.
func (v *SchemaValidator) Validate(tree any) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(tree))
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if result.Valid() {
		return nil
	}
	out := &ValidationError{}
	for _, desc := range result.Errors() {
		out.Violations = append(out.Violations, Violation{
			Field:       desc.Field(),
			Description: desc.Description(),
		})
	}
	return out
}

// Decorator reports a successful execution whose resulting tree violates the
// schema as a failure. The store is left as it is.
func Decorator(v *SchemaValidator) stores.CallbackDecorator {
	return func(next stores.ProcessCallback) stores.ProcessCallback {
		return func(result stores.ProcessResult, err error) {
			if err == nil && result.Store != nil {
				err = v.Validate(result.Store.State())
			}
			if next != nil {
				next(result, err)
			}
		}
	}
}
