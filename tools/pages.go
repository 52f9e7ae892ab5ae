package tools

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/documenter-search/mcp-server/internal/searchindex"
)

const (
	defaultLookupLimit = 20
	maxLookupLimit     = 100
	snippetLength      = 200
)

// ListPagesInput defines input for list_pages tool
type ListPagesInput struct {
	// No input needed - returns all pages
}

// ListPagesOutput defines output for list_pages tool
type ListPagesOutput struct {
	Pages   []searchindex.PageSummary `json:"pages"`
	Count   int                       `json:"count"`
	Records int                       `json:"records"`
}

// ListPages returns the documentation pages in generator order
func ListPages(ctx context.Context, req *mcp.CallToolRequest, input ListPagesInput) (*mcp.CallToolResult, ListPagesOutput, error) {
	docs, err := currentDocs()
	if err != nil {
		return nil, ListPagesOutput{}, err
	}

	pages := docs.Pages()
	return nil, ListPagesOutput{
		Pages:   pages,
		Count:   len(pages),
		Records: docs.Len(),
	}, nil
}

// PageRecord is a search record with its resolved URL
type PageRecord struct {
	Location string               `json:"location"`
	Title    string               `json:"title"`
	Text     string               `json:"text"`
	Category searchindex.Category `json:"category"`
	URL      string               `json:"url"`
}

// GetPageInput defines input for get_page tool
type GetPageInput struct {
	Page string `json:"page" jsonschema:"Page path (start/) or title (Quick start); an empty path is the home page"`
}

// GetPageOutput defines output for get_page tool
type GetPageOutput struct {
	Page    searchindex.PageSummary `json:"page"`
	URL     string                  `json:"url"`
	Records []PageRecord            `json:"records"`
}

// GetPage returns every record of one page, in order
func GetPage(ctx context.Context, req *mcp.CallToolRequest, input GetPageInput) (*mcp.CallToolResult, GetPageOutput, error) {
	docs, err := currentDocs()
	if err != nil {
		return nil, GetPageOutput{}, err
	}

	summary, ok := docs.FindPage(input.Page)
	if !ok {
		return nil, GetPageOutput{}, fmt.Errorf("unknown page %q, use list_pages to see available pages", input.Page)
	}

	records := []PageRecord{}
	for _, rec := range docs.PageRecords(summary.Path) {
		records = append(records, PageRecord{
			Location: rec.Location,
			Title:    rec.Title,
			Text:     rec.Text,
			Category: rec.Category,
			URL:      searchindex.ResolveURL(settings.SiteURL, rec.Location),
		})
	}

	return nil, GetPageOutput{
		Page:    summary,
		URL:     searchindex.ResolveURL(settings.SiteURL, summary.Path),
		Records: records,
	}, nil
}

// LookupRecordsInput defines input for lookup_records tool
type LookupRecordsInput struct {
	Query string `json:"query" jsonschema:"Words that must all appear in a record title or text (case-insensitive)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of matches (optional, defaults to 20, at most 100)"`
}

// LookupMatch is one record found by lookup_records
type LookupMatch struct {
	Position int    `json:"position"`
	Field    string `json:"field"`
	Location string `json:"location"`
	Page     string `json:"page"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	URL      string `json:"url"`
}

// LookupRecordsOutput defines output for lookup_records tool
type LookupRecordsOutput struct {
	Query   string        `json:"query"`
	Matches []LookupMatch `json:"matches"`
	Count   int           `json:"count"`
}

// LookupRecords performs the substring lookup the documentation site's
// search box does over the raw records
func LookupRecords(ctx context.Context, req *mcp.CallToolRequest, input LookupRecordsInput) (*mcp.CallToolResult, LookupRecordsOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, LookupRecordsOutput{}, fmt.Errorf("query is required")
	}

	docs, err := currentDocs()
	if err != nil {
		return nil, LookupRecordsOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultLookupLimit
	}
	if limit > maxLookupLimit {
		limit = maxLookupLimit
	}

	found := docs.Lookup(input.Query, limit)
	matches := make([]LookupMatch, 0, len(found))
	for _, m := range found {
		matches = append(matches, LookupMatch{
			Position: m.Position,
			Field:    m.Field,
			Location: m.Record.Location,
			Page:     m.Record.Page,
			Title:    m.Record.Title,
			Snippet:  snippet(m.Record.Text, snippetLength),
			URL:      searchindex.ResolveURL(settings.SiteURL, m.Record.Location),
		})
	}

	return nil, LookupRecordsOutput{
		Query:   input.Query,
		Matches: matches,
		Count:   len(matches),
	}, nil
}

// snippet cuts text to at most n runes at a word boundary
func snippet(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

// RegisterPageTools registers the page browsing and lookup tools
func RegisterPageTools(server *mcp.Server) error {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_pages",
			Description: "List the documentation pages with their path, title, number of records and section headings, in site order.",
		},
		ListPages,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_page",
			Description: "Return every search record of one documentation page (by path or title), in order, with URLs. Use after list_pages or search_documentation to read a whole page.",
		},
		GetPage,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "lookup_records",
			Description: "Exact lookup over the raw search records: every query word must appear in the title or text. Title matches come first. Use for identifiers and exact phrases where ranked search is too fuzzy.",
		},
		LookupRecords,
	)

	return nil
}
