package tools

import (
	"os"
	"testing"

	"github.com/documenter-search/mcp-server/internal/searchindex"
)

const (
	testSiteURL     = "https://example.org/Coluna.jl/dev/"
	fixtureFile     = "data/docs/search_index.js"
	fixtureRecords  = 50
	fixturePages    = 3
	fixtureSections = 8
)

// setupDocSearch points the package at a fresh data directory and restores
// the previous state when the test ends
func setupDocSearch(t *testing.T) {
	t.Helper()

	oldDataDir, oldSettings, oldMgr := dataDir, settings, indexMgr
	dataDir = t.TempDir()
	settings.SiteURL = testSiteURL
	settings.MaxResults = 10
	indexMgr = &indexHolder{}

	t.Cleanup(func() {
		if err := CloseDocSearch(); err != nil {
			t.Errorf("CloseDocSearch() error = %v", err)
		}
		dataDir, settings, indexMgr = oldDataDir, oldSettings, oldMgr
	})
}

// fixtureData returns the bundled search_index.js
func fixtureData(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(fixtureFile)
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	return data
}

// loadFixtureDocs decodes the fixture and publishes it without an index
func loadFixtureDocs(t *testing.T) *searchindex.Index {
	t.Helper()
	docs, err := searchindex.Decode(fixtureData(t))
	if err != nil {
		t.Fatalf("Failed to decode fixture: %v", err)
	}
	indexMgr.docs.Store(docs)
	return docs
}
