package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestFile_ChunksParagraphsAndRegistersContext(t *testing.T) {
	s := newTestStore(t)
	path := writeDataFile(t, "first paragraph\n\nsecond paragraph\n\n\n  third paragraph  \n")

	embedder := func(text string) ([]float32, error) { return []float32{1, 0}, nil }

	n, err := s.IngestFile(path, "Docs", "product docs", "docs", embedder)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	vc, err := s.GetVectorContextByCollection("docs")
	require.NoError(t, err)
	require.NotNil(t, vc)
	assert.Equal(t, "Docs", vc.Name)

	chunks, err := s.GetChunksByCollection("docs")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "first paragraph", chunks[0].Content)
	assert.Equal(t, "third paragraph", chunks[2].Content)
	assert.Equal(t, []float32{1, 0}, chunks[0].Embedding)
}

func TestIngestFile_ReplacesExistingCollection(t *testing.T) {
	s := newTestStore(t)
	embedder := func(text string) ([]float32, error) { return []float32{1, 0}, nil }

	first := writeDataFile(t, "old content")
	_, err := s.IngestFile(first, "Docs", "", "docs", embedder)
	require.NoError(t, err)

	second := writeDataFile(t, "new content one\n\nnew content two")
	n, err := s.IngestFile(second, "Docs", "", "docs", embedder)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	chunks, err := s.GetChunksByCollection("docs")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "new content one", chunks[0].Content)

	// Re-ingesting must not register a duplicate context.
	contexts, err := s.ListVectorContexts()
	require.NoError(t, err)
	assert.Len(t, contexts, 1)
}

func TestIngestFile_SkipsFailedEmbeddings(t *testing.T) {
	s := newTestStore(t)
	path := writeDataFile(t, "good one\n\nbad one\n\ngood two")

	embedder := func(text string) ([]float32, error) {
		if text == "bad one" {
			return nil, fmt.Errorf("embedding service hiccup")
		}
		return []float32{1, 0}, nil
	}

	n, err := s.IngestFile(path, "Docs", "", "docs", embedder)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngestFile_MissingFile(t *testing.T) {
	s := newTestStore(t)
	_, err := s.IngestFile("/does/not/exist.md", "Docs", "", "docs", nil)
	assert.Error(t, err)
}
