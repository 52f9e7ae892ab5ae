package searchindex

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "https://documenter-search.local/schema/search_index.json"

//go:embed schema.json
var schemaJSON []byte

var (
	compiledSchema *jsonschema.Schema
	schemaOnce     sync.Once
	schemaErr      error
)

// recordSchema compiles the embedded schema once
func recordSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("failed to parse embedded schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}

		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// validateSchema checks a raw JSON payload against the record schema
func validateSchema(payload []byte) error {
	schema, err := recordSchema()
	if err != nil {
		return err
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return &SchemaError{Errors: schemaViolations(validationErr)}
		}
		return err
	}
	return nil
}

// schemaViolations flattens the jsonschema error tree into its leaves
func schemaViolations(validationErr *jsonschema.ValidationError) []ValidationError {
	if len(validationErr.Causes) == 0 {
		path := "$"
		if len(validationErr.InstanceLocation) > 0 {
			path = "$." + strings.Join(validationErr.InstanceLocation, ".")
		}
		return []ValidationError{{
			Path:    path,
			Message: leafMessage(validationErr.Error()),
			Code:    "SCHEMA_VALIDATION_ERROR",
		}}
	}

	var violations []ValidationError
	for _, cause := range validationErr.Causes {
		violations = append(violations, schemaViolations(cause)...)
	}
	return violations
}

// leafMessage drops the "jsonschema validation failed ... at '<loc>': " prefix
func leafMessage(msg string) string {
	lines := strings.Split(strings.TrimSpace(msg), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	last = strings.TrimPrefix(last, "- ")
	if strings.HasPrefix(last, "at '") {
		if i := strings.Index(last, "': "); i >= 0 {
			return last[i+3:]
		}
	}
	return last
}
