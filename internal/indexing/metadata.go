package indexing

import (
	"strings"

	"github.com/documenter-search/mcp-server/internal/searchindex"
)

// stopWords are skipped by keyword extraction
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "as": true, "by": true, "is": true,
	"it": true, "be": true, "with": true, "from": true, "that": true,
	"this": true, "are": true, "we": true, "can": true, "you": true,
}

// EstimateTokens estimates the token count for a text string
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}

// ExtractKeywords extracts key terms from title and content, in order of
// first appearance
func ExtractKeywords(title, content string) []string {
	// Title words first, then the first 200 chars of content
	words := strings.Fields(strings.ToLower(title))

	contentPreview := content
	if len(content) > 200 {
		contentPreview = content[:200]
	}
	words = append(words, strings.Fields(strings.ToLower(contentPreview))...)

	seen := make(map[string]bool)
	keywords := make([]string, 0, MaxKeywords)
	for _, word := range words {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
		})
		if len(word) <= 2 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == MaxKeywords {
			break
		}
	}

	return keywords
}

// EnrichMetadata adds breadcrumb, keywords, URL, and token count to a chunk
// siteURL is the documentation root the record locations are relative to
func EnrichMetadata(chunk *DocChunk, siteURL string) {
	// Build breadcrumb (Page > Section)
	var breadcrumb []string
	if chunk.Page != "" {
		breadcrumb = append(breadcrumb, chunk.Page)
	}
	if chunk.Section != "" && chunk.Section != chunk.Page {
		breadcrumb = append(breadcrumb, chunk.Section)
	}
	if len(breadcrumb) > 0 {
		chunk.Breadcrumb = strings.Join(breadcrumb, " > ")
	}

	if siteURL != "" {
		chunk.URL = searchindex.ResolveURL(siteURL, chunk.Location)
	}

	chunk.Keywords = ExtractKeywords(chunk.Section, chunk.Content)
	chunk.TokenCount = EstimateTokens(chunk.Content)
}
