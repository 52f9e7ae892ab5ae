// Package searchindex reads, validates, writes and searches the search index
// Documenter generates for a documentation site (search_index.js).
package searchindex

// DefaultVariable is the global the generator binds the index to
const DefaultVariable = "documenterSearchIndex"

// Category tags a record as a whole-page paragraph or a section heading
type Category string

const (
	CategoryPage    Category = "page"
	CategorySection Category = "section"
)

// Valid reports whether c belongs to the closed category set
func (c Category) Valid() bool {
	return c == CategoryPage || c == CategorySection
}

// Record is one entry of the search index
type Record struct {
	Location string   `json:"location"` // page path plus anchor, e.g. "start/#Start-1"
	Page     string   `json:"page"`     // human readable page title
	Title    string   `json:"title"`    // section or page heading
	Text     string   `json:"text"`     // indexed body text, may be empty
	Category Category `json:"category"`
}

// Index is the ordered record sequence plus the variable name it was bound to
type Index struct {
	Name string   `json:"-"`
	Docs []Record `json:"docs"`
}

// Len returns the number of records
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.Docs)
}

// PageSummary describes one documentation page as seen through its records
type PageSummary struct {
	Path     string   `json:"path"`
	Title    string   `json:"title"`
	Records  int      `json:"records"`
	Sections int      `json:"sections"`
	Headings []string `json:"headings"`
}

// Match is a record found by Lookup
type Match struct {
	Position int    `json:"position"` // index of the record in Docs
	Field    string `json:"field"`    // "title" or "text"
	Record   Record `json:"record"`
}

// ValidationError describes one problem found in a search index
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Report collects the structural problems of an index
type Report struct {
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// Valid reports whether the index has no errors (warnings are allowed)
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}
