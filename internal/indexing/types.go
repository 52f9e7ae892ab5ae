package indexing

// DocChunk represents a documentation chunk in the search index
type DocChunk struct {
	ID         string   `json:"id"`
	Location   string   `json:"location"`              // Location of the record that opened the chunk
	PagePath   string   `json:"page_path"`             // Page part of the location, "/" for the home page
	Page       string   `json:"page"`                  // Page title
	Section    string   `json:"section"`               // Section heading the text belongs to
	Category   string   `json:"category"`              // "section" or "page" (text before the first heading)
	Content    string   `json:"content"`
	URL        string   `json:"url,omitempty"`
	Breadcrumb string   `json:"breadcrumb,omitempty"`  // "Page > Section"
	Keywords   []string `json:"keywords,omitempty"`    // Key terms extracted from content
	TokenCount int      `json:"token_count,omitempty"` // Estimated token count for monitoring
	Position   int      `json:"position"`              // Index of the first record in the search index
}
