package tools

// DataProvider gives access to the data files bundled with the server.
//
// Implementations:
//   - embeddedDataProvider: embed.FS, used in production
//   - MockDataProvider: in-memory map, used in tests
type DataProvider interface {
	// ReadFile reads the named file, e.g. "data/docs/search_index.js".
	ReadFile(name string) ([]byte, error)
}
