package indexing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/documenter-search/mcp-server/internal/searchindex"
)

// ForceSplitText splits text by character count at word boundaries
func ForceSplitText(text string, maxChars, overlapChars int) []string {
	var parts []string

	for len(text) > 0 {
		chunkSize := maxChars
		if len(text) < chunkSize {
			chunkSize = len(text)
		}

		if chunkSize < len(text) {
			// Look back for space or newline
			for i := chunkSize; i > chunkSize-100 && i > 0; i-- {
				if text[i] == ' ' || text[i] == '\n' {
					chunkSize = i
					break
				}
			}
			// Never cut inside a UTF-8 sequence
			for chunkSize > 0 && !utf8.RuneStart(text[chunkSize]) {
				chunkSize--
			}
			if chunkSize == 0 {
				chunkSize = min(maxChars, len(text))
			}
		}

		parts = append(parts, text[:chunkSize])

		// Move forward with overlap
		if chunkSize+overlapChars < len(text) {
			next := chunkSize - overlapChars
			for next > 0 && !utf8.RuneStart(text[next]) {
				next--
			}
			if next <= 0 {
				next = chunkSize
			}
			text = text[next:]
		} else {
			text = text[chunkSize:]
		}
	}

	return parts
}

// overlapTail returns the last n bytes of s, starting on a rune boundary
func overlapTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// splitParagraphs splits chunk content by blank lines, falling back to sentences
func splitParagraphs(content string) []string {
	paragraphs := strings.Split(content, "\n\n")
	if len(paragraphs) <= 1 {
		paragraphs = strings.Split(content, ". ")
		for i := range paragraphs {
			if i < len(paragraphs)-1 {
				paragraphs[i] += "."
			}
		}
	}

	cleaned := paragraphs[:0]
	for _, para := range paragraphs {
		if para = strings.TrimSpace(para); para != "" {
			cleaned = append(cleaned, para)
		}
	}
	return cleaned
}

// subchunk derives part i of a subdivided chunk
func subchunk(chunk DocChunk, index int, content string) DocChunk {
	part := chunk
	part.ID = fmt.Sprintf("%s_sub%d", chunk.ID, index)
	part.Content = content
	if index > 0 {
		part.Section = fmt.Sprintf("%s (part %d)", chunk.Section, index+1)
	}
	return part
}

// SubdivideChunk splits a large chunk into smaller ones with overlap
func SubdivideChunk(chunk DocChunk, siteURL string) []DocChunk {
	// If chunk is small enough, return as-is with enriched metadata
	if EstimateTokens(chunk.Content) <= MaxChunkTokens {
		EnrichMetadata(&chunk, siteURL)
		return []DocChunk{chunk}
	}

	maxChars := MaxChunkTokens * CharsPerToken
	overlapChars := OverlapTokens * CharsPerToken

	var contents []string
	var current strings.Builder
	var previous string

	flush := func() {
		if current.Len() == 0 {
			return
		}
		content := current.String()
		if tail := overlapTail(previous, overlapChars); tail != "" {
			content = tail + "\n\n" + content
		}
		contents = append(contents, content)
		previous = current.String()
		current.Reset()
	}

	for _, para := range splitParagraphs(chunk.Content) {
		// A single oversized paragraph (long code listings) is force-split
		if EstimateTokens(para) > MaxChunkTokens {
			flush()
			for _, piece := range ForceSplitText(para, maxChars, overlapChars) {
				contents = append(contents, piece)
				previous = piece
			}
			continue
		}

		if current.Len() > 0 && EstimateTokens(current.String())+EstimateTokens(para) > TargetChunkTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	// Last resort: split by fixed character chunks
	if len(contents) == 0 {
		contents = ForceSplitText(chunk.Content, maxChars, overlapChars)
	}

	subchunks := make([]DocChunk, 0, len(contents))
	for i, content := range contents {
		part := subchunk(chunk, i, content)
		EnrichMetadata(&part, siteURL)
		subchunks = append(subchunks, part)
	}
	return subchunks
}

// BuildChunks groups the ordered search records into chunks: a section
// record opens a chunk and the page paragraphs that follow it on the same
// page become its content. Paragraphs on a page with no open section get a
// page-level chunk.
func BuildChunks(records []searchindex.Record, siteURL string) []DocChunk {
	var finalChunks []DocChunk
	var currentChunk *DocChunk
	var paragraphs []string
	chunkID := 0

	saveCurrentChunk := func() {
		if currentChunk == nil {
			return
		}
		currentChunk.ID = fmt.Sprintf("chunk_%d", chunkID)
		currentChunk.Content = strings.Join(paragraphs, "\n\n")
		chunkID++

		finalChunks = append(finalChunks, SubdivideChunk(*currentChunk, siteURL)...)
		currentChunk = nil
		paragraphs = nil
	}

	for i, rec := range records {
		pagePath := PageKey(searchindex.PagePath(rec.Location))

		if rec.Category == searchindex.CategorySection {
			saveCurrentChunk()
			currentChunk = &DocChunk{
				Location: rec.Location,
				PagePath: pagePath,
				Page:     rec.Page,
				Section:  rec.Title,
				Category: string(searchindex.CategorySection),
				Position: i,
			}
		} else if currentChunk == nil || currentChunk.PagePath != pagePath {
			saveCurrentChunk()
			currentChunk = &DocChunk{
				Location: rec.Location,
				PagePath: pagePath,
				Page:     rec.Page,
				Section:  rec.Title,
				Category: string(searchindex.CategoryPage),
				Position: i,
			}
		}

		if text := strings.TrimSpace(rec.Text); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	// Save last chunk
	saveCurrentChunk()

	return finalChunks
}

// PageKey is the page_path value stored for a page. The home page has an
// empty path, which a keyword field cannot match, so it is keyed "/".
func PageKey(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// ParseDocumentation reads a search index file and turns it into chunks
func ParseDocumentation(indexFile, siteURL string) ([]DocChunk, error) {
	index, err := searchindex.ReadFile(indexFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse documentation: %w", err)
	}
	return BuildChunks(index.Docs, siteURL), nil
}
