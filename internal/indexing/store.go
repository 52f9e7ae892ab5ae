package indexing

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// BatchSize is the number of chunks submitted per bleve batch
const BatchSize = 100

// IndexChunks adds chunks to index in batches. progress, if set, is called
// after every submitted batch with the number of chunks indexed so far.
func IndexChunks(index bleve.Index, chunks []DocChunk, progress func(done, total int)) error {
	batch := index.NewBatch()
	for i, chunk := range chunks {
		if err := batch.Index(chunk.ID, chunk); err != nil {
			return fmt.Errorf("failed to add chunk %s to batch: %w", chunk.ID, err)
		}

		if batch.Size() == BatchSize {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to index batch: %w", err)
			}
			batch = index.NewBatch()
			if progress != nil {
				progress(i+1, len(chunks))
			}
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("failed to index final batch: %w", err)
		}
		if progress != nil {
			progress(len(chunks), len(chunks))
		}
	}
	return nil
}

// CreateIndex builds a new on-disk index at path from chunks. The path must
// not exist. On failure nothing is left behind.
func CreateIndex(path string, chunks []DocChunk, progress func(done, total int)) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	index, err := bleve.New(path, NewIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := IndexChunks(index, chunks, progress); err != nil {
		index.Close()
		os.RemoveAll(path)
		return err
	}

	if err := index.Close(); err != nil {
		os.RemoveAll(path)
		return fmt.Errorf("failed to close index: %w", err)
	}
	return nil
}

// ReadVersion returns the schema version stored in a version file, or 0 if
// the file is missing or unreadable.
func ReadVersion(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return version
}

// WriteVersion stores IndexSchemaVersion in a version file.
func WriteVersion(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create version directory: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(IndexSchemaVersion)), 0644)
}

// ChunkStats reports the average token count and how many chunks exceed
// MaxChunkTokens.
func ChunkStats(chunks []DocChunk) (avgTokens, oversized int) {
	if len(chunks) == 0 {
		return 0, 0
	}
	total := 0
	for _, chunk := range chunks {
		total += chunk.TokenCount
		if chunk.TokenCount > MaxChunkTokens {
			oversized++
		}
	}
	return total / len(chunks), oversized
}
