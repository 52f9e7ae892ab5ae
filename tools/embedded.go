package tools

import "embed"

// The documentation search index shipped with the binary, so the server can
// answer queries offline on first start. The bleve index is built from it
// at startup rather than embedded: it is small and its layout depends on
// IndexSchemaVersion.
//
//go:embed data/docs/search_index.js
var embeddedFS embed.FS

// embeddedDataProvider serves files from embeddedFS
type embeddedDataProvider struct {
	fs embed.FS
}

// NewEmbeddedDataProvider creates the production DataProvider
func NewEmbeddedDataProvider() DataProvider {
	return &embeddedDataProvider{fs: embeddedFS}
}

// ReadFile reads the named file from the embedded filesystem.
func (p *embeddedDataProvider) ReadFile(name string) ([]byte, error) {
	return p.fs.ReadFile(name)
}

// defaultDataProvider is swapped for a mock in tests
var defaultDataProvider DataProvider = NewEmbeddedDataProvider()
