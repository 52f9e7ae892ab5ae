package indexing

// Chunking strategy constants
const (
	// TargetChunkTokens is the optimal chunk size (~2000 chars)
	TargetChunkTokens = 500

	// MaxChunkTokens is the maximum before subdividing (~3200 chars)
	MaxChunkTokens = 800

	// OverlapTokens is the overlap between consecutive chunks (~400 chars)
	OverlapTokens = 100

	// CharsPerToken is the approximation for token estimation
	CharsPerToken = 4

	// MaxKeywords caps the keywords stored per chunk
	MaxKeywords = 10

	// IndexSchemaVersion increments when chunking logic or the index mapping changes
	// v1: line-based, v2: header chunking with metadata, v3: section-grouped search records
	IndexSchemaVersion = 3
)
