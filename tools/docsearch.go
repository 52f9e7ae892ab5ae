package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/documenter-search/mcp-server/internal/config"
	"github.com/documenter-search/mcp-server/internal/indexing"
	"github.com/documenter-search/mcp-server/internal/logging"
	"github.com/documenter-search/mcp-server/internal/searchindex"
)

const (
	docsFile         = "docs/search_index.js"
	cacheMetaFile    = "docs/cache.meta"
	indexDir         = "search/index"
	indexVersionFile = "search/.index_version"
	embeddedDocsFile = "data/docs/search_index.js"

	maxResultsCap    = 20
	maxDownloadBytes = 64 << 20
)

// Settings holds what the documentation search needs from the configuration
type Settings struct {
	IndexURL        string
	SiteURL         string
	CacheTTL        time.Duration
	DownloadTimeout time.Duration
	MaxResults      int
}

var (
	log      = logging.Nop()
	dataDir  string // Data directory for documentation and search index
	settings = Settings{
		IndexURL:        config.DefaultIndexURL,
		SiteURL:         config.DefaultSiteURL,
		CacheTTL:        7 * 24 * time.Hour,
		DownloadTimeout: 30 * time.Second,
		MaxResults:      10,
	}

	indexMgr     = &indexHolder{}
	refreshGroup singleflight.Group
)

// Configure applies the loaded configuration. It must be called before any
// tool is registered.
func Configure(cfg *config.Config, logger *zap.SugaredLogger) {
	if logger != nil {
		log = logger
	}
	dataDir = cfg.DataDir
	settings = Settings{
		IndexURL:        cfg.IndexURL,
		SiteURL:         cfg.SiteURL,
		CacheTTL:        cfg.GetCacheTTL(),
		DownloadTimeout: cfg.GetDownloadTimeout(),
		MaxResults:      cfg.MaxResults,
	}
}

// SearchResult represents a search result with score
type SearchResult struct {
	Chunk indexing.DocChunk `json:"chunk"`
	Score float64           `json:"score"`
}

// SearchDocumentationInput defines input for search_documentation tool
type SearchDocumentationInput struct {
	Query      string `json:"query" jsonschema:"Search query for documentation"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (optional, defaults to 10, at most 20)"`
	Page       string `json:"page,omitempty" jsonschema:"Only search one page, given by path (start/) or title (Quick start) (optional)"`
}

// SearchDocumentationOutput defines output for search_documentation tool
type SearchDocumentationOutput struct {
	Results    []SearchResult `json:"results"`
	Query      string         `json:"query"`
	TotalHits  int            `json:"total_hits"`
	SourceURLs []string       `json:"source_urls"`
}

// RefreshDocumentationIndexInput defines input for refresh_documentation_index tool
type RefreshDocumentationIndexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Force re-download and re-indexing (optional, defaults to false)"`
}

// RefreshDocumentationIndexOutput defines output for refresh_documentation_index tool
type RefreshDocumentationIndexOutput struct {
	Updated       bool      `json:"updated"`
	LastUpdate    time.Time `json:"last_update"`
	Records       int       `json:"records"`
	ChunksIndexed int       `json:"chunks_indexed"`
	Message       string    `json:"message"`
}

// indexHolder manages concurrent access to the loaded documentation
type indexHolder struct {
	// current holds the active bleve index (lock-free reads)
	current atomic.Pointer[Index]

	// docs holds the decoded search records the index was built from
	docs atomic.Pointer[searchindex.Index]

	// refreshMu serializes initialization and rebuilds; searches on a
	// loaded index never take it
	refreshMu sync.Mutex

	// wg tracks in-flight searches so swapped-out indexes close cleanly
	wg sync.WaitGroup

	// closing tracks background closes of swapped-out indexes
	closing sync.WaitGroup
}

func indexPath() string   { return filepath.Join(dataDir, indexDir) }
func versionPath() string { return filepath.Join(dataDir, indexVersionFile) }

// removeIndex deletes the on-disk index and its version marker
func removeIndex() {
	os.RemoveAll(indexPath())
	os.Remove(versionPath())
}

// InitializeDocSearch loads the documentation records and opens the search index.
// Priority: local index (schema version matches) > rebuild from local docs > rebuild from embedded docs
// Concurrent callers are serialized with rebuilds; whoever comes second finds
// the index already loaded and returns.
func InitializeDocSearch() error {
	indexMgr.refreshMu.Lock()
	defer indexMgr.refreshMu.Unlock()

	if indexMgr.current.Load() != nil && indexMgr.docs.Load() != nil {
		return nil
	}

	startTime := time.Now()
	log.Infof("Initializing documentation search...")

	if dataDir == "" {
		dataDir = config.ResolveDataDir()
	}

	lockStart := time.Now()
	if err := acquireLock(); err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	log.Debugf("Lock acquired in %v", time.Since(lockStart).Round(time.Millisecond))

	docs, source, err := loadDocs()
	if err != nil {
		return err
	}
	indexMgr.docs.Store(docs)

	if _, err := os.Stat(indexPath()); err == nil {
		version := indexing.ReadVersion(versionPath())
		if version != indexing.IndexSchemaVersion {
			log.Infof("Index schema version mismatch (have: v%d, want: v%d), invalidating old index...",
				version, indexing.IndexSchemaVersion)
			removeIndex()
		} else if index, err := bleve.Open(indexPath()); err == nil {
			wrapped := NewBleveIndexWrapper(index)
			indexMgr.current.Store(&wrapped)
			count, _ := wrapped.DocCount()
			log.Infof("✓ Documentation search initialized (%d records, %d chunks, local index v%d) in %v",
				docs.Len(), count, indexing.IndexSchemaVersion, time.Since(startTime).Round(time.Millisecond))

			if needsRefresh() {
				log.Infof("ℹ️  Local documentation is older than %v. Consider using refresh_documentation_index to update.", settings.CacheTTL)
			}
			return nil
		} else {
			log.Warnf("Warning: Local index corrupted (%v), removing...", err)
			removeIndex()
		}
	}

	log.Infof("No usable local index, building one from %s documentation...", source)
	if err := reindex(docs); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	log.Infof("✓ Documentation search initialized (%d records, %s docs) in %v",
		docs.Len(), source, time.Since(startTime).Round(time.Millisecond))
	if source == "embedded" {
		log.Infof("ℹ️  Using embedded documentation (build-time). Use refresh_documentation_index to get latest docs.")
	}
	return nil
}

// loadDocs reads the local search_index.js, falling back to the embedded
// copy (which is then extracted for the next start)
func loadDocs() (*searchindex.Index, string, error) {
	localPath := filepath.Join(dataDir, docsFile)
	docs, err := searchindex.ReadFile(localPath)
	if err == nil {
		return docs, "local", nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("Warning: Local documentation unusable (%v), falling back to embedded copy", err)
	}

	data, err := defaultDataProvider.ReadFile(embeddedDocsFile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read embedded documentation: %w", err)
	}
	docs, err = searchindex.Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("embedded documentation is invalid: %w", err)
	}

	if err := writeDocs(data); err != nil {
		log.Warnf("Warning: Failed to extract embedded documentation: %v", err)
	}
	return docs, "embedded", nil
}

// writeDocs replaces the local search_index.js through a temp file
func writeDocs(data []byte) error {
	fullPath := filepath.Join(dataDir, docsFile)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create docs directory: %w", err)
	}

	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", fullPath, err)
	}
	return nil
}

// needsRefresh checks if the downloaded documentation is older than the cache TTL
func needsRefresh() bool {
	last, ok := lastUpdate()
	if !ok {
		return true
	}
	return time.Since(last) > settings.CacheTTL
}

// lastUpdate returns when the documentation was last downloaded
func lastUpdate() (time.Time, bool) {
	info, err := os.Stat(filepath.Join(dataDir, cacheMetaFile))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// downloadDocumentation fetches the published search_index.js and stores it
// locally once it has been validated
func downloadDocumentation(ctx context.Context) (*searchindex.Index, error) {
	log.Infof("Downloading documentation index from %s", settings.IndexURL)

	ctx, cancel := context.WithTimeout(ctx, settings.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, settings.IndexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("search index exceeds %d bytes", maxDownloadBytes)
	}

	// Validate before touching the local copy
	docs, err := searchindex.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("downloaded file is not a valid search index: %w", err)
	}
	if report := docs.Validate(); !report.Valid() {
		first := report.Errors[0]
		return nil, fmt.Errorf("downloaded search index has %d errors, first: %s: %s",
			len(report.Errors), first.Path, first.Message)
	}

	if err := writeDocs(data); err != nil {
		return nil, err
	}

	meta := fmt.Sprintf("last_update: %s\nsource: %s\nrecords: %d\n",
		time.Now().Format(time.RFC3339), settings.IndexURL, docs.Len())
	if err := os.WriteFile(filepath.Join(dataDir, cacheMetaFile), []byte(meta), 0644); err != nil {
		return nil, fmt.Errorf("failed to write cache metadata: %w", err)
	}

	log.Infof("✓ Documentation downloaded (%d records)", docs.Len())
	return docs, nil
}

// reindex chunks the records, rebuilds the search index and publishes both
func reindex(docs *searchindex.Index) error {
	parseStart := time.Now()
	chunks := indexing.BuildChunks(docs.Docs, settings.SiteURL)
	avg, oversized := indexing.ChunkStats(chunks)
	log.Infof("Chunked %d records into %d chunks (avg: %d tokens, %d over limit) in %v",
		docs.Len(), len(chunks), avg, oversized, time.Since(parseStart).Round(time.Millisecond))

	if err := indexChunks(chunks); err != nil {
		return err
	}
	indexMgr.docs.Store(docs)
	return nil
}

// indexChunks builds a new Bleve index next to the live one, swaps the
// directory into place and then the in-memory pointer
func indexChunks(chunks []indexing.DocChunk) error {
	startTime := time.Now()
	finalPath := indexPath()
	tempPath := finalPath + ".tmp"

	// Leftover from a crash mid-build
	os.RemoveAll(tempPath)

	err := indexing.CreateIndex(tempPath, chunks, func(done, total int) {
		log.Debugf("Indexed %d/%d chunks...", done, total)
	})
	if err != nil {
		return fmt.Errorf("failed to build temp index: %w", err)
	}

	if err := os.RemoveAll(finalPath); err != nil {
		os.RemoveAll(tempPath)
		return fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.RemoveAll(tempPath)
		return fmt.Errorf("failed to rename temp index: %w", err)
	}

	index, err := bleve.Open(finalPath)
	if err != nil {
		return fmt.Errorf("failed to open new index: %w", err)
	}
	wrapped := NewBleveIndexWrapper(index)
	swapIndex(wrapped)

	if err := indexing.WriteVersion(versionPath()); err != nil {
		log.Warnf("Warning: Failed to write index version: %v", err)
	}

	log.Infof("✓ Index of %d chunks swapped in after %v", len(chunks), time.Since(startTime).Round(time.Millisecond))
	return nil
}

// swapIndex publishes index and closes the previous one once in-flight
// searches have drained
func swapIndex(index Index) {
	old := indexMgr.current.Swap(&index)
	if old == nil {
		return
	}

	indexMgr.closing.Add(1)
	go func(oldPtr *Index) {
		defer indexMgr.closing.Done()
		waitStart := time.Now()
		indexMgr.wg.Wait()

		if err := (*oldPtr).Close(); err != nil {
			log.Warnf("Warning: Error closing old index: %v", err)
			return
		}
		log.Debugf("✓ Old index closed after waiting %v for searches", time.Since(waitStart).Round(time.Millisecond))
	}(old)
}

// refreshDocumentationIndex downloads and re-indexes documentation.
// It reports whether anything was rebuilt.
func refreshDocumentationIndex(ctx context.Context, force bool) (bool, error) {
	startTime := time.Now()

	if !force && !needsRefresh() {
		log.Infof("Documentation cache is fresh, skipping refresh")
		return false, nil
	}

	indexMgr.refreshMu.Lock()
	defer indexMgr.refreshMu.Unlock()

	// A rebuild may have finished while we waited
	if !force && !needsRefresh() {
		log.Infof("Documentation was refreshed by another goroutine, skipping")
		return false, nil
	}

	log.Infof("Starting documentation refresh (force=%v)...", force)

	if dataDir == "" {
		dataDir = config.ResolveDataDir()
	}
	// Released by CloseDocSearch when the process exits
	if err := acquireLock(); err != nil {
		return false, fmt.Errorf("failed to acquire lock for refresh: %w", err)
	}

	docs, err := downloadDocumentation(ctx)
	if err != nil {
		return false, fmt.Errorf("download failed: %w", err)
	}

	if err := reindex(docs); err != nil {
		return false, fmt.Errorf("indexing failed: %w", err)
	}

	log.Infof("✓ Documentation refresh completed in %v", time.Since(startTime).Round(time.Millisecond))
	return true, nil
}

// ReindexFromFile rebuilds the index from a locally generated
// search_index.js. The live index is kept if the file does not validate.
func ReindexFromFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	indexMgr.refreshMu.Lock()
	defer indexMgr.refreshMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	docs, err := searchindex.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if report := docs.Validate(); !report.Valid() {
		return fmt.Errorf("%s has %d validation errors, keeping current index", path, len(report.Errors))
	}

	if dataDir == "" {
		dataDir = config.ResolveDataDir()
	}
	if err := acquireLock(); err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if err := writeDocs(data); err != nil {
		return err
	}
	if err := reindex(docs); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	log.Infof("✓ Re-indexed %d records from %s", docs.Len(), path)
	return nil
}

// currentDocs returns the loaded records, initializing search on first use
func currentDocs() (*searchindex.Index, error) {
	if docs := indexMgr.docs.Load(); docs != nil {
		return docs, nil
	}

	log.Infof("Documentation not loaded, initializing now...")
	if err := InitializeDocSearch(); err != nil {
		return nil, fmt.Errorf("failed to initialize documentation index: %w", err)
	}
	docs := indexMgr.docs.Load()
	if docs == nil {
		return nil, fmt.Errorf("documentation still not loaded after initialization")
	}
	return docs, nil
}

// buildSearchQuery matches the text against headings, body and page title;
// pagePath, if set, restricts hits to one page
func buildSearchQuery(text, pagePath string) query.Query {
	section := bleve.NewMatchQuery(text)
	section.SetField("section")
	section.SetBoost(2.0)

	content := bleve.NewMatchQuery(text)
	content.SetField("content")

	page := bleve.NewMatchQuery(text)
	page.SetField("page")
	page.SetBoost(0.5)

	match := bleve.NewDisjunctionQuery(section, content, page)
	if pagePath == "" {
		return match
	}

	filter := bleve.NewTermQuery(pagePath)
	filter.SetField("page_path")
	return bleve.NewConjunctionQuery(match, filter)
}

// chunkFromHit rebuilds a chunk from the stored fields of a hit
func chunkFromHit(hit *search.DocumentMatch) indexing.DocChunk {
	chunk := indexing.DocChunk{ID: hit.ID}

	str := func(field string) string {
		s, _ := hit.Fields[field].(string)
		return s
	}
	chunk.Location = str("location")
	chunk.PagePath = str("page_path")
	chunk.Page = str("page")
	chunk.Section = str("section")
	chunk.Category = str("category")
	chunk.Content = str("content")
	chunk.URL = str("url")
	chunk.Breadcrumb = str("breadcrumb")

	// A single keyword comes back as a string, several as a slice
	switch keywords := hit.Fields["keywords"].(type) {
	case string:
		chunk.Keywords = []string{keywords}
	case []interface{}:
		chunk.Keywords = make([]string, 0, len(keywords))
		for _, kw := range keywords {
			if s, ok := kw.(string); ok {
				chunk.Keywords = append(chunk.Keywords, s)
			}
		}
	}

	if tokenCount, ok := hit.Fields["token_count"].(float64); ok {
		chunk.TokenCount = int(tokenCount)
	}
	if position, ok := hit.Fields["position"].(float64); ok {
		chunk.Position = int(position)
	}
	return chunk
}

// SearchDocumentation runs a ranked full-text search over the documentation
func SearchDocumentation(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentationInput) (*mcp.CallToolResult, SearchDocumentationOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchDocumentationOutput{}, fmt.Errorf("query is required")
	}

	// Track in-flight searches for graceful cleanup (MUST be before Load)
	indexMgr.wg.Add(1)
	defer indexMgr.wg.Done()

	indexPtr := indexMgr.current.Load()
	if indexPtr == nil {
		log.Infof("Doc index not initialized, initializing now...")
		if err := InitializeDocSearch(); err != nil {
			return nil, SearchDocumentationOutput{}, fmt.Errorf("failed to initialize documentation index: %w", err)
		}
		indexPtr = indexMgr.current.Load()
		if indexPtr == nil {
			return nil, SearchDocumentationOutput{}, fmt.Errorf("index still nil after initialization")
		}
	}
	index := *indexPtr

	pagePath := ""
	if input.Page != "" {
		docs, err := currentDocs()
		if err != nil {
			return nil, SearchDocumentationOutput{}, err
		}
		summary, ok := docs.FindPage(input.Page)
		if !ok {
			return nil, SearchDocumentationOutput{}, fmt.Errorf("unknown page %q, use list_pages to see available pages", input.Page)
		}
		pagePath = indexing.PageKey(summary.Path)
	}

	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = settings.MaxResults
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	searchReq := bleve.NewSearchRequest(buildSearchQuery(input.Query, pagePath))
	searchReq.Size = maxResults
	searchReq.Fields = []string{"*"}

	searchResults, err := index.Search(searchReq)
	if err != nil {
		return nil, SearchDocumentationOutput{}, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		results = append(results, SearchResult{
			Chunk: chunkFromHit(hit),
			Score: hit.Score,
		})
	}

	output := SearchDocumentationOutput{
		Results:    results,
		Query:      input.Query,
		TotalHits:  int(searchResults.Total),
		SourceURLs: []string{settings.SiteURL},
	}
	return nil, output, nil
}

// RefreshDocumentationIndex re-downloads and re-indexes the documentation.
// Concurrent calls share one refresh.
func RefreshDocumentationIndex(ctx context.Context, req *mcp.CallToolRequest, input RefreshDocumentationIndexInput) (*mcp.CallToolResult, RefreshDocumentationIndexOutput, error) {
	output := RefreshDocumentationIndexOutput{}

	if !input.Force && !needsRefresh() {
		output.LastUpdate, _ = lastUpdate()
		output.Records = indexMgr.docs.Load().Len()
		output.Message = fmt.Sprintf("Cache is fresh (last updated: %s)", output.LastUpdate.Format(time.RFC3339))
		return nil, output, nil
	}

	// The shared refresh must outlive the caller that started it
	refreshCtx := context.WithoutCancel(ctx)
	v, err, shared := refreshGroup.Do("refresh", func() (interface{}, error) {
		return refreshDocumentationIndex(refreshCtx, input.Force)
	})
	if err != nil {
		return nil, output, fmt.Errorf("refresh failed: %w", err)
	}
	if shared {
		log.Debugf("Joined an in-flight documentation refresh")
	}

	if indexPtr := indexMgr.current.Load(); indexPtr != nil {
		count, _ := (*indexPtr).DocCount()
		output.ChunksIndexed = int(count)
	}
	output.Updated = v.(bool)
	output.LastUpdate, _ = lastUpdate()
	output.Records = indexMgr.docs.Load().Len()
	if output.Updated {
		output.Message = fmt.Sprintf("Documentation refreshed successfully, %d records in %d chunks indexed",
			output.Records, output.ChunksIndexed)
	} else {
		output.Message = "Documentation was already fresh, nothing to do"
	}
	return nil, output, nil
}

// RegisterDocSearchTools registers documentation search tools
func RegisterDocSearchTools(server *mcp.Server) error {
	if err := InitializeDocSearch(); err != nil {
		log.Warnf("Warning: Documentation search initialization failed: %v", err)
		log.Warnf("Documentation search will attempt to initialize on first use")
	}

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_documentation",
			Description: "Search the documentation using full-text search over section headings, body text and page titles. Returns the most relevant sections with their URLs.",
		},
		SearchDocumentation,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "refresh_documentation_index",
			Description: "Re-download the published search_index.js and rebuild the search index (skipped if the cache is younger than the configured TTL unless force is set)",
		},
		RefreshDocumentationIndex,
	)

	return nil
}

// CloseDocSearch closes the documentation search index and releases the lock
func CloseDocSearch() error {
	var closeErr error

	// Swap to nil first so no new search picks up the index
	if indexPtr := indexMgr.current.Swap(nil); indexPtr != nil {
		log.Infof("Waiting for in-flight searches to complete before closing...")
		indexMgr.wg.Wait()

		if closeErr = (*indexPtr).Close(); closeErr != nil {
			log.Errorf("Error closing doc index: %v", closeErr)
		} else {
			log.Infof("✓ Doc index closed successfully")
		}
	}
	indexMgr.closing.Wait()
	indexMgr.docs.Store(nil)

	// Always attempt to release inter-process lock, even if close failed
	if dataDir != "" {
		if err := releaseLock(); err != nil {
			log.Errorf("Error releasing lock: %v", err)
			if closeErr == nil {
				closeErr = err
			}
		}
	}

	return closeErr
}
