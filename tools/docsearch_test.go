package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/documenter-search/mcp-server/internal/indexing"
	"github.com/documenter-search/mcp-server/internal/searchindex"
)

func TestIndexHolderConcurrentReads(t *testing.T) {
	mockIdx := newMockIndex(1)
	idx := Index(mockIdx)

	holder := &indexHolder{}
	holder.current.Store(&idx)

	const numReaders = 50
	errChan := make(chan error, numReaders)
	var wg sync.WaitGroup

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			holder.wg.Add(1)
			defer holder.wg.Done()

			indexPtr := holder.current.Load()
			if indexPtr == nil {
				errChan <- fmt.Errorf("goroutine %d: got nil index", id)
				return
			}

			count, err := (*indexPtr).DocCount()
			if err != nil {
				errChan <- fmt.Errorf("goroutine %d: DocCount failed: %v", id, err)
				return
			}
			if count != 100 {
				errChan <- fmt.Errorf("goroutine %d: expected 100, got %d", id, count)
			}
		}(i)
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		t.Error(err)
	}

	// Drained, returns immediately
	holder.wg.Wait()
}

func TestIndexHolderAtomicSwap(t *testing.T) {
	idx1 := Index(newMockIndex(1))
	idx2 := Index(newMockIndex(2))

	holder := &indexHolder{}
	holder.current.Store(&idx1)

	ptr1 := holder.current.Load()
	if ptr1 == nil || *ptr1 != idx1 {
		t.Fatal("Expected idx1 after store")
	}

	oldPtr := holder.current.Swap(&idx2)
	if oldPtr == nil || *oldPtr != idx1 {
		t.Fatal("Swap should return idx1")
	}

	ptr2 := holder.current.Load()
	if ptr2 == nil || *ptr2 != idx2 {
		t.Fatal("Expected idx2 after swap")
	}
	if ptr1 == ptr2 {
		t.Error("Old and new pointers should be different")
	}
}

func TestSwapIndexClosesOldAfterSearches(t *testing.T) {
	oldMgr := indexMgr
	indexMgr = &indexHolder{}
	defer func() { indexMgr = oldMgr }()

	first := newMockIndex(1)
	second := newMockIndex(2)
	swapIndex(first)

	// An in-flight search holds the old index open
	indexMgr.wg.Add(1)
	swapIndex(second)

	time.Sleep(50 * time.Millisecond)
	if first.IsClosed() {
		t.Fatal("Old index closed while a search was in flight")
	}

	indexMgr.wg.Done()
	indexMgr.closing.Wait()

	if !first.IsClosed() {
		t.Error("Old index should be closed once searches drain")
	}
	if second.IsClosed() {
		t.Error("Current index must stay open")
	}
	if got := *indexMgr.current.Load(); got != Index(second) {
		t.Error("Current index should be the second one")
	}
}

func TestIndexHolderRefreshMutexSerialization(t *testing.T) {
	holder := &indexHolder{}

	const numGoroutines = 10
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			holder.refreshMu.Lock()
			defer holder.refreshMu.Unlock()

			oldCounter := counter
			time.Sleep(time.Millisecond)
			counter = oldCounter + 1
		}()
	}
	wg.Wait()

	if counter != numGoroutines {
		t.Errorf("Expected counter=%d, got %d (mutex not properly serializing)", numGoroutines, counter)
	}
}

func TestInitializeDocSearchFromEmbedded(t *testing.T) {
	setupDocSearch(t)

	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch() error = %v", err)
	}

	if n := indexMgr.docs.Load().Len(); n != fixtureRecords {
		t.Errorf("Loaded %d records, want %d", n, fixtureRecords)
	}

	indexPtr := indexMgr.current.Load()
	if indexPtr == nil {
		t.Fatal("Index not published")
	}
	if count, _ := (*indexPtr).DocCount(); count != fixtureSections {
		t.Errorf("Index has %d chunks, want %d", count, fixtureSections)
	}

	// Embedded docs are extracted for the next start
	extracted, err := os.ReadFile(filepath.Join(dataDir, docsFile))
	if err != nil {
		t.Fatalf("Embedded docs not extracted: %v", err)
	}
	if string(extracted) != string(fixtureData(t)) {
		t.Error("Extracted docs differ from the embedded file")
	}

	if v := indexing.ReadVersion(versionPath()); v != indexing.IndexSchemaVersion {
		t.Errorf("Index version = %d, want %d", v, indexing.IndexSchemaVersion)
	}

	// Never downloaded, so a refresh is due
	if !needsRefresh() {
		t.Error("needsRefresh() should be true without cache metadata")
	}
}

func TestInitializeDocSearchReopensLocalIndex(t *testing.T) {
	setupDocSearch(t)

	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("First InitializeDocSearch() error = %v", err)
	}
	if err := CloseDocSearch(); err != nil {
		t.Fatalf("CloseDocSearch() error = %v", err)
	}

	// Second start must not touch the embedded data
	mock := NewMockDataProvider()
	SetDefaultDataProvider(mock)
	defer ResetDefaultDataProvider()

	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("Second InitializeDocSearch() error = %v", err)
	}
	if mock.Reads() != 0 {
		t.Errorf("Embedded data read %d times, want 0", mock.Reads())
	}
	if indexMgr.current.Load() == nil {
		t.Error("Local index not opened")
	}
}

func TestInitializeDocSearchRebuildsOnVersionMismatch(t *testing.T) {
	setupDocSearch(t)

	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch() error = %v", err)
	}
	if err := CloseDocSearch(); err != nil {
		t.Fatalf("CloseDocSearch() error = %v", err)
	}

	if err := os.WriteFile(versionPath(), []byte("2"), 0644); err != nil {
		t.Fatalf("Failed to write version: %v", err)
	}

	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch() after mismatch error = %v", err)
	}
	if v := indexing.ReadVersion(versionPath()); v != indexing.IndexSchemaVersion {
		t.Errorf("Index version = %d after rebuild, want %d", v, indexing.IndexSchemaVersion)
	}
	if indexMgr.current.Load() == nil {
		t.Error("Rebuilt index not published")
	}
}

func TestInitializeDocSearchMissingEmbedded(t *testing.T) {
	setupDocSearch(t)

	SetDefaultDataProvider(NewMockDataProvider())
	defer ResetDefaultDataProvider()

	err := InitializeDocSearch()
	if err == nil {
		t.Fatal("Expected error without local or embedded docs")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestSearchDocumentation(t *testing.T) {
	setupDocSearch(t)
	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch() error = %v", err)
	}
	ctx := context.Background()

	t.Run("ranked results", func(t *testing.T) {
		_, out, err := SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "package manager"})
		if err != nil {
			t.Fatalf("SearchDocumentation() error = %v", err)
		}
		if len(out.Results) == 0 {
			t.Fatal("Expected results for 'package manager'")
		}

		top := out.Results[0].Chunk
		if top.PagePath != "installation/" {
			t.Errorf("Top result page_path = %q, want installation/", top.PagePath)
		}
		if !strings.HasPrefix(top.URL, testSiteURL+"installation/#") {
			t.Errorf("Top result URL = %q", top.URL)
		}
		if top.Content == "" || top.Breadcrumb == "" || top.TokenCount == 0 {
			t.Errorf("Stored fields missing from hit: %+v", top)
		}
		if out.SourceURLs[0] != testSiteURL {
			t.Errorf("SourceURLs = %v", out.SourceURLs)
		}
	})

	t.Run("page filter", func(t *testing.T) {
		_, out, err := SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "Coluna", Page: "Home"})
		if err != nil {
			t.Fatalf("SearchDocumentation() error = %v", err)
		}
		if len(out.Results) == 0 {
			t.Fatal("Expected results on the home page")
		}
		for _, r := range out.Results {
			if r.Chunk.PagePath != "/" {
				t.Errorf("Result from %q leaked through the home page filter", r.Chunk.PagePath)
			}
		}
	})

	t.Run("unknown page", func(t *testing.T) {
		if _, _, err := SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "Coluna", Page: "api/"}); err == nil {
			t.Error("Expected error for unknown page")
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if _, _, err := SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "  "}); err == nil {
			t.Error("Expected error for empty query")
		}
	})
}

func TestConcurrentFirstUseInitializesOnce(t *testing.T) {
	setupDocSearch(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)

	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, out, err := SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "column generation"})
			if err == nil && len(out.Results) == 0 {
				err = fmt.Errorf("search returned no results")
			}
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, out, err := ListPages(ctx, nil, ListPagesInput{})
			if err == nil && out.Count != fixturePages {
				err = fmt.Errorf("list_pages returned %d pages", out.Count)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			failed++
			t.Errorf("Concurrent first use failed: %v", err)
		}
	}
	if failed > 0 {
		t.Fatalf("%d of %d concurrent first calls failed", failed, 2*workers)
	}

	if _, err := os.Stat(indexPath() + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary index directory left behind")
	}
	if indexMgr.current.Load() == nil {
		t.Error("Index not published after concurrent initialization")
	}
}

func TestSearchDocumentationResultLimits(t *testing.T) {
	setupDocSearch(t)
	loadFixtureDocs(t)

	mock := newMockIndex(1)
	swapIndex(mock)

	tests := []struct {
		requested int
		wantSize  int
	}{
		{requested: 0, wantSize: 10},
		{requested: -3, wantSize: 10},
		{requested: 5, wantSize: 5},
		{requested: 20, wantSize: 20},
		{requested: 500, wantSize: maxResultsCap},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max_results=%d", tt.requested), func(t *testing.T) {
			_, out, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{
				Query:      "branching",
				MaxResults: tt.requested,
			})
			if err != nil {
				t.Fatalf("SearchDocumentation() error = %v", err)
			}
			if size := mock.LastRequest().Size; size != tt.wantSize {
				t.Errorf("Request size = %d, want %d", size, tt.wantSize)
			}
			if out.TotalHits != 100 {
				t.Errorf("TotalHits = %d, want 100", out.TotalHits)
			}
		})
	}

	mock.searchError = errors.New("boom")
	if _, _, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "x"}); err == nil {
		t.Error("Expected search error to propagate")
	}
}

func TestChunkFromHit(t *testing.T) {
	chunks, err := indexing.ParseDocumentation(fixtureFile, testSiteURL)
	if err != nil {
		t.Fatalf("ParseDocumentation() error = %v", err)
	}

	index, err := bleve.NewMemOnly(indexing.NewIndexMapping())
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer index.Close()
	if err := indexing.IndexChunks(index, chunks, nil); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{chunks[2].ID}))
	req.Fields = []string{"*"}
	res, err := index.Search(req)
	if err != nil || len(res.Hits) != 1 {
		t.Fatalf("Search by ID: %v, %d hits", err, len(res.Hits))
	}

	got := chunkFromHit(res.Hits[0])
	want := chunks[2]
	if got.ID != want.ID || got.Location != want.Location || got.PagePath != want.PagePath ||
		got.Page != want.Page || got.Section != want.Section || got.Category != want.Category ||
		got.Content != want.Content || got.URL != want.URL || got.Breadcrumb != want.Breadcrumb ||
		got.TokenCount != want.TokenCount || got.Position != want.Position {
		t.Errorf("chunkFromHit() = %+v\nwant %+v", got, want)
	}
	gotKeywords := append([]string(nil), got.Keywords...)
	wantKeywords := append([]string(nil), want.Keywords...)
	sort.Strings(gotKeywords)
	sort.Strings(wantKeywords)
	if strings.Join(gotKeywords, ",") != strings.Join(wantKeywords, ",") {
		t.Errorf("Keywords = %v, want %v", got.Keywords, want.Keywords)
	}
}

// serveIndex starts a server returning body for every request and counting hits
func serveIndex(t *testing.T, status int, body []byte, delay time.Duration) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(delay)
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestRefreshDocumentationIndex(t *testing.T) {
	setupDocSearch(t)
	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch() error = %v", err)
	}

	server, hits := serveIndex(t, http.StatusOK, fixtureData(t), 0)
	settings.IndexURL = server.URL + "/dev/search_index.js"
	ctx := context.Background()

	_, out, err := RefreshDocumentationIndex(ctx, nil, RefreshDocumentationIndexInput{})
	if err != nil {
		t.Fatalf("RefreshDocumentationIndex() error = %v", err)
	}
	if !out.Updated || out.Records != fixtureRecords || out.ChunksIndexed != fixtureSections {
		t.Errorf("Unexpected refresh output: %+v", out)
	}
	if out.LastUpdate.IsZero() {
		t.Error("LastUpdate should be set after download")
	}

	meta, err := os.ReadFile(filepath.Join(dataDir, cacheMetaFile))
	if err != nil {
		t.Fatalf("Cache metadata missing: %v", err)
	}
	if !strings.Contains(string(meta), "records: 50") {
		t.Errorf("Cache metadata = %q", meta)
	}

	// Fresh cache: nothing downloaded
	_, out, err = RefreshDocumentationIndex(ctx, nil, RefreshDocumentationIndexInput{})
	if err != nil {
		t.Fatalf("Second refresh error = %v", err)
	}
	if out.Updated || !strings.Contains(out.Message, "fresh") {
		t.Errorf("Expected fresh cache, got %+v", out)
	}
	if hits.Load() != 1 {
		t.Errorf("Server hit %d times, want 1", hits.Load())
	}

	// Forced refresh downloads again
	if _, out, err = RefreshDocumentationIndex(ctx, nil, RefreshDocumentationIndexInput{Force: true}); err != nil || !out.Updated {
		t.Fatalf("Forced refresh: %+v, %v", out, err)
	}
	if hits.Load() != 2 {
		t.Errorf("Server hit %d times, want 2", hits.Load())
	}
}

func TestRefreshKeepsIndexOnBadDownload(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "oops"},
		{name: "not a search index", status: http.StatusOK, body: "<html>404</html>"},
		{name: "schema violation", status: http.StatusOK, body: `var documenterSearchIndex = {"docs":[{"location":"#"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupDocSearch(t)
			if err := InitializeDocSearch(); err != nil {
				t.Fatalf("InitializeDocSearch() error = %v", err)
			}
			before := indexMgr.current.Load()

			server, _ := serveIndex(t, tt.status, []byte(tt.body), 0)
			settings.IndexURL = server.URL

			if _, _, err := RefreshDocumentationIndex(context.Background(), nil, RefreshDocumentationIndexInput{Force: true}); err == nil {
				t.Fatal("Expected refresh error")
			}

			if indexMgr.current.Load() != before {
				t.Error("Live index replaced after a failed refresh")
			}
			if n := indexMgr.docs.Load().Len(); n != fixtureRecords {
				t.Errorf("Docs changed to %d records after a failed refresh", n)
			}
			local, err := os.ReadFile(filepath.Join(dataDir, docsFile))
			if err != nil || string(local) != string(fixtureData(t)) {
				t.Error("Local docs overwritten by a failed refresh")
			}
		})
	}
}

func TestRefreshConcurrentCallsShareDownload(t *testing.T) {
	setupDocSearch(t)
	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch() error = %v", err)
	}

	server, hits := serveIndex(t, http.StatusOK, fixtureData(t), 200*time.Millisecond)
	settings.IndexURL = server.URL

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, out, err := RefreshDocumentationIndex(context.Background(), nil, RefreshDocumentationIndexInput{Force: true})
			if err == nil && !out.Updated {
				err = fmt.Errorf("refresh reported no update")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
	if n := hits.Load(); n < 1 || n >= callers {
		t.Errorf("Server hit %d times by %d concurrent callers", n, callers)
	}
}

func TestReindexFromFile(t *testing.T) {
	setupDocSearch(t)
	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch() error = %v", err)
	}

	full, err := searchindex.Decode(fixtureData(t))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	// A rebuilt site with only the installation page
	rebuilt := &searchindex.Index{Name: full.Name, Docs: full.PageRecords("installation/")}
	data, err := rebuilt.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "search_index.js")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := ReindexFromFile(context.Background(), path); err != nil {
		t.Fatalf("ReindexFromFile() error = %v", err)
	}
	if n := indexMgr.docs.Load().Len(); n != 9 {
		t.Errorf("Docs have %d records, want 9", n)
	}
	if count, _ := (*indexMgr.current.Load()).DocCount(); count != 2 {
		t.Errorf("Index has %d chunks, want 2", count)
	}

	// A broken rebuild keeps the current index
	if err := os.WriteFile(path, []byte("var documenterSearchIndex = "), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := ReindexFromFile(context.Background(), path); err == nil {
		t.Error("Expected error for broken file")
	}
	if n := indexMgr.docs.Load().Len(); n != 9 {
		t.Errorf("Docs changed to %d records after a failed reindex", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ReindexFromFile(ctx, path); !errors.Is(err, context.Canceled) {
		t.Errorf("ReindexFromFile(cancelled) = %v", err)
	}
}

func TestCloseDocSearch(t *testing.T) {
	setupDocSearch(t)
	if err := InitializeDocSearch(); err != nil {
		t.Fatalf("InitializeDocSearch() error = %v", err)
	}

	if err := CloseDocSearch(); err != nil {
		t.Fatalf("CloseDocSearch() error = %v", err)
	}
	if indexMgr.current.Load() != nil || indexMgr.docs.Load() != nil {
		t.Error("State should be cleared after close")
	}
	if _, err := os.Stat(lockPath()); !os.IsNotExist(err) {
		t.Error("Lock should be released after close")
	}

	// Closing twice is harmless
	if err := CloseDocSearch(); err != nil {
		t.Errorf("Second CloseDocSearch() error = %v", err)
	}
}
