package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// SearchIndexResourceURI serves the loaded index in generator format
	SearchIndexResourceURI = "documenter://search_index.js"

	// PagesResourceURI serves the page catalog as JSON
	PagesResourceURI = "documenter://pages"
)

// ReadSearchIndexResource re-encodes the loaded records as search_index.js
func ReadSearchIndexResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	docs, err := currentDocs()
	if err != nil {
		return nil, err
	}

	data, err := docs.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode search index: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      SearchIndexResourceURI,
			MIMEType: "application/javascript",
			Text:     string(data),
		}},
	}, nil
}

// ReadPagesResource lists the documentation pages
func ReadPagesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	docs, err := currentDocs()
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(docs.Pages(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode pages: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      PagesResourceURI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// RegisterResources registers the documentation resources
func RegisterResources(server *mcp.Server) {
	server.AddResource(&mcp.Resource{
		URI:         SearchIndexResourceURI,
		Name:        "search_index.js",
		Description: "The loaded documentation search index, in the format the documentation generator emits",
		MIMEType:    "application/javascript",
	}, ReadSearchIndexResource)

	server.AddResource(&mcp.Resource{
		URI:         PagesResourceURI,
		Name:        "pages",
		Description: "Documentation pages with titles, record counts and section headings",
		MIMEType:    "application/json",
	}, ReadPagesResource)
}
