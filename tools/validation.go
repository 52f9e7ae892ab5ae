package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/documenter-search/mcp-server/internal/searchindex"
)

// isFilePath determines if a string is a file path rather than index content.
// Content starts with "{" or a JS declaration, or spans several lines.
func isFilePath(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.Contains(trimmed, "\n") {
		return false
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return false
	}
	for _, keyword := range []string{"var ", "let ", "const "} {
		if strings.HasPrefix(trimmed, keyword) {
			return false
		}
	}

	// Unix absolute path
	if strings.HasPrefix(trimmed, "/") {
		return true
	}

	// Relative path
	if strings.HasPrefix(trimmed, "./") || strings.HasPrefix(trimmed, "../") {
		return true
	}

	// Windows absolute path (C:\, D:\, etc.)
	if len(trimmed) >= 3 && trimmed[1] == ':' && (trimmed[2] == '\\' || trimmed[2] == '/') {
		return true
	}

	return strings.HasSuffix(trimmed, ".js") || strings.HasSuffix(trimmed, ".json")
}

// ValidateSearchIndexInput defines input for validate_search_index tool
type ValidateSearchIndexInput struct {
	Content string `json:"content" jsonschema:"search_index.js content (JS assignment or bare JSON object) or a path to the file"`
}

// ValidateSearchIndexOutput defines output for validate_search_index tool
type ValidateSearchIndexOutput struct {
	Valid    bool                          `json:"valid"`
	Source   string                        `json:"source"` // "inline" or the file path
	Variable string                        `json:"variable,omitempty"`
	Records  int                           `json:"records"`
	Pages    int                           `json:"pages"`
	Sections int                           `json:"sections"`
	Errors   []searchindex.ValidationError `json:"errors"`
	Warnings []searchindex.ValidationError `json:"warnings"`
	Summary  string                        `json:"summary"`
}

// ValidateSearchIndex checks a search index against the record schema and
// the structural rules of the generator
func ValidateSearchIndex(ctx context.Context, req *mcp.CallToolRequest, input ValidateSearchIndexInput) (*mcp.CallToolResult, ValidateSearchIndexOutput, error) {
	return nil, validateSearchIndex(input.Content), nil
}

func validateSearchIndex(content string) ValidateSearchIndexOutput {
	output := ValidateSearchIndexOutput{
		Source:   "inline",
		Errors:   []searchindex.ValidationError{},
		Warnings: []searchindex.ValidationError{},
	}

	data := []byte(content)
	if isFilePath(content) {
		path := strings.TrimSpace(content)
		output.Source = path

		fileContent, err := os.ReadFile(path)
		if err != nil {
			var errMsg string
			switch {
			case os.IsNotExist(err):
				errMsg = fmt.Sprintf("Search index file not found: %s", path)
			case os.IsPermission(err):
				errMsg = fmt.Sprintf("Permission denied reading file: %s", path)
			default:
				errMsg = fmt.Sprintf("Failed to read search index file '%s': %s", path, err.Error())
			}
			output.Errors = append(output.Errors, searchindex.ValidationError{
				Path:    path,
				Message: errMsg,
				Code:    "FILE_READ_ERROR",
			})
			output.Summary = "Search index file could not be read"
			return output
		}
		data = fileContent
	}

	docs, err := searchindex.Decode(data)
	if err != nil {
		var schemaErr *searchindex.SchemaError
		switch {
		case errors.As(err, &schemaErr):
			output.Errors = append(output.Errors, schemaErr.Errors...)
			output.Summary = fmt.Sprintf("Search index does not match the record schema (%d violations)", len(schemaErr.Errors))
		case errors.Is(err, searchindex.ErrEmptyInput):
			output.Errors = append(output.Errors, searchindex.ValidationError{
				Path: "$", Message: err.Error(), Code: "EMPTY_INPUT",
			})
			output.Summary = "No search index content given"
		case errors.Is(err, searchindex.ErrNotSearchIndex):
			output.Errors = append(output.Errors, searchindex.ValidationError{
				Path: "$", Message: err.Error(), Code: "NOT_SEARCH_INDEX",
			})
			output.Summary = "Content is neither a search index assignment nor a JSON object"
		default:
			output.Errors = append(output.Errors, searchindex.ValidationError{
				Path: "$", Message: err.Error(), Code: "INVALID_JSON",
			})
			output.Summary = "Search index has JSON syntax errors"
		}
		return output
	}

	report := docs.Validate()
	pages := docs.Pages()
	sections := 0
	for _, page := range pages {
		sections += page.Sections
	}

	output.Valid = report.Valid()
	output.Variable = docs.Name
	output.Records = docs.Len()
	output.Pages = len(pages)
	output.Sections = sections
	output.Errors = append(output.Errors, report.Errors...)
	output.Warnings = append(output.Warnings, report.Warnings...)

	if output.Valid {
		output.Summary = fmt.Sprintf("Valid search index: %d records, %d pages, %d sections, %d warnings",
			output.Records, output.Pages, output.Sections, len(output.Warnings))
	} else {
		output.Summary = fmt.Sprintf("Search index has %d errors and %d warnings", len(output.Errors), len(output.Warnings))
	}
	return output
}

// RegisterValidationTools registers the search index validation tool
func RegisterValidationTools(server *mcp.Server) error {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "validate_search_index",
			Description: "Validate a Documenter search_index.js (inline content or file path): checks every record has location, page, title, text and category, that categories are page or section, and reports duplicate anchors and inconsistent page titles.",
		},
		ValidateSearchIndex,
	)
	return nil
}
