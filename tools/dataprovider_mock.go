package tools

import (
	"io/fs"
	"sync"
)

// MockDataProvider implements DataProvider over an in-memory map.
type MockDataProvider struct {
	mu    sync.RWMutex
	files map[string][]byte
	reads int
}

// NewMockDataProvider creates an empty mock data provider.
func NewMockDataProvider() *MockDataProvider {
	return &MockDataProvider{
		files: make(map[string][]byte),
	}
}

// AddFile adds a file to the mock provider.
func (m *MockDataProvider) AddFile(name string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = content
}

// ReadFile returns the stored content or fs.ErrNotExist.
func (m *MockDataProvider) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++

	content, exists := m.files[name]
	if !exists {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return content, nil
}

// Reads returns how many times ReadFile was called.
func (m *MockDataProvider) Reads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads
}

// SetDefaultDataProvider replaces the provider used by the package.
func SetDefaultDataProvider(provider DataProvider) {
	defaultDataProvider = provider
}

// ResetDefaultDataProvider restores the embedded provider.
func ResetDefaultDataProvider() {
	defaultDataProvider = NewEmbeddedDataProvider()
}
