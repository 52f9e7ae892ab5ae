package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/documenter-search/mcp-server/internal/searchindex"
)

func TestReadSearchIndexResource(t *testing.T) {
	setupDocSearch(t)
	loadFixtureDocs(t)

	result, err := ReadSearchIndexResource(context.Background(), nil)
	if err != nil {
		t.Fatalf("ReadSearchIndexResource() error = %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("Got %d contents, want 1", len(result.Contents))
	}

	content := result.Contents[0]
	if content.URI != SearchIndexResourceURI || content.MIMEType != "application/javascript" {
		t.Errorf("Unexpected resource metadata: %s %s", content.URI, content.MIMEType)
	}
	if content.Text != string(fixtureData(t)) {
		t.Error("Resource text should reproduce the search index byte for byte")
	}
}

func TestReadPagesResource(t *testing.T) {
	setupDocSearch(t)
	loadFixtureDocs(t)

	result, err := ReadPagesResource(context.Background(), nil)
	if err != nil {
		t.Fatalf("ReadPagesResource() error = %v", err)
	}

	var pages []searchindex.PageSummary
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &pages); err != nil {
		t.Fatalf("Pages resource is not JSON: %v", err)
	}
	if len(pages) != fixturePages {
		t.Fatalf("Got %d pages, want %d", len(pages), fixturePages)
	}
	if pages[0].Path != "start/" || pages[2].Path != "" {
		t.Errorf("Unexpected page order: %q, %q", pages[0].Path, pages[2].Path)
	}
}
