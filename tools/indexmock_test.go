package tools

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
)

// mockIndex is an in-memory stand-in for Index
type mockIndex struct {
	id          int
	docCount    uint64
	searchError error
	closeError  error
	closed      atomic.Bool

	mu          sync.Mutex
	lastRequest *bleve.SearchRequest
}

// newMockIndex creates a mock index reporting 100 documents
func newMockIndex(id int) *mockIndex {
	return &mockIndex{
		id:       id,
		docCount: 100,
	}
}

func (m *mockIndex) Search(req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("index closed")
	}
	m.mu.Lock()
	m.lastRequest = req
	m.mu.Unlock()

	if m.searchError != nil {
		return nil, m.searchError
	}
	return &bleve.SearchResult{
		Request: req,
		Total:   m.docCount,
	}, nil
}

func (m *mockIndex) DocCount() (uint64, error) {
	if m.closed.Load() {
		return 0, fmt.Errorf("index closed")
	}
	return m.docCount, nil
}

func (m *mockIndex) Close() error {
	if m.closed.Swap(true) {
		return fmt.Errorf("already closed")
	}
	return m.closeError
}

// IsClosed reports whether Close has been called
func (m *mockIndex) IsClosed() bool {
	return m.closed.Load()
}

// LastRequest returns the most recent search request
func (m *mockIndex) LastRequest() *bleve.SearchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}
