// Package schemas provides JSON Schema validation for LLM extraction output.
package schemas

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JobExtractionSchema constrains the structured fields the extraction model
// must return. Every field is nullable: a posting that omits salary or
// location must still validate.
const JobExtractionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "company":       {"type": ["string", "null"]},
    "title":         {"type": ["string", "null"]},
    "location":      {"type": ["string", "null"]},
    "remote_policy": {"type": ["string", "null"]},
    "salary":        {"type": ["string", "null"]},
    "description":   {"type": ["string", "null"]},
    "requirements": {
      "type": ["array", "string", "null"],
      "items": {"type": "string"}
    },
    "benefits": {
      "type": ["array", "string", "null"],
      "items": {"type": "string"}
    }
  },
  "required": ["company", "title", "description"],
  "additionalProperties": true
}`

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema: %s", e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateDocument validates a JSON document string against a schema string
func ValidateDocument(schema, document string) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewStringLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{Message: "schema validation failed during load", Cause: err}
	}

	if result.Valid() {
		return nil
	}

	ve := &ValidationError{}
	for _, resultErr := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   resultErr.Field(),
			Message: resultErr.Description(),
		})
	}
	return ve
}

// ValidateExtraction validates the extraction model's JSON output
func ValidateExtraction(document string) error {
	return ValidateDocument(JobExtractionSchema, document)
}
