package indexing

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// NewIndexMapping returns the bleve mapping for DocChunk documents.
// Prose fields use the English analyzer; identifiers are indexed verbatim
// so they can be filtered with term queries.
func NewIndexMapping() mapping.IndexMapping {
	prose := bleve.NewTextFieldMapping()
	prose.Analyzer = en.AnalyzerName
	prose.Store = true

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.Store = true
	exact.IncludeInAll = false

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true
	stored.IncludeInAll = false

	numeric := bleve.NewNumericFieldMapping()
	numeric.Store = true
	numeric.IncludeInAll = false

	chunk := bleve.NewDocumentMapping()
	chunk.AddFieldMappingsAt("section", prose)
	chunk.AddFieldMappingsAt("page", prose)
	chunk.AddFieldMappingsAt("content", prose)
	chunk.AddFieldMappingsAt("keywords", exact)
	chunk.AddFieldMappingsAt("location", exact)
	chunk.AddFieldMappingsAt("page_path", exact)
	chunk.AddFieldMappingsAt("category", exact)
	chunk.AddFieldMappingsAt("url", stored)
	chunk.AddFieldMappingsAt("breadcrumb", stored)
	chunk.AddFieldMappingsAt("position", numeric)
	chunk.AddFieldMappingsAt("token_count", numeric)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = chunk
	indexMapping.DefaultAnalyzer = en.AnalyzerName
	return indexMapping
}
