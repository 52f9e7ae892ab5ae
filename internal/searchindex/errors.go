package searchindex

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSearchIndex is returned when input is neither the JS assignment nor a JSON object
	ErrNotSearchIndex = errors.New("input is not a search index")

	// ErrEmptyInput is returned for empty or whitespace-only input
	ErrEmptyInput = errors.New("empty search index input")
)

// SchemaError is returned by Decode when the payload violates the record schema
type SchemaError struct {
	Errors []ValidationError
}

func (e *SchemaError) Error() string {
	if len(e.Errors) == 0 {
		return "search index does not match schema"
	}
	first := e.Errors[0]
	if len(e.Errors) == 1 {
		return fmt.Sprintf("search index does not match schema: %s: %s", first.Path, first.Message)
	}
	return fmt.Sprintf("search index does not match schema: %s: %s (and %d more)",
		first.Path, first.Message, len(e.Errors)-1)
}
