// Package vector implements retrieval over the persisted semantic index.
//
// Scores are cosine similarities: higher means more similar. Every
// comparison against the acceptance threshold uses that direction.
package vector

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"ragchat/internal/store"
)

// Embedder turns text into an embedding vector.
type Embedder func(text string) ([]float32, error)

// ChunkSource is the slice of the durable store the retriever needs.
type ChunkSource interface {
	GetChunksByCollection(collectionName string) ([]store.Chunk, error)
}

// Scored is one retrieved passage with its similarity to the query.
type Scored struct {
	Content string
	Score   float32
}

type Retriever struct {
	source    ChunkSource
	embed     Embedder
	threshold float32

	mu    sync.RWMutex
	cache map[string][]store.Chunk // collection name -> chunks
}

func NewRetriever(source ChunkSource, embed Embedder, threshold float64) *Retriever {
	return &Retriever{
		source:    source,
		embed:     embed,
		threshold: float32(threshold),
		cache:     make(map[string][]store.Chunk),
	}
}

// Search returns up to k passages from the named collection ranked by
// descending similarity to the query. Deterministic for a fixed index.
func (r *Retriever) Search(collectionName, query string, k int) ([]Scored, error) {
	chunks, err := r.collectionChunks(collectionName)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		log.Printf("Collection %s has no chunks, nothing to retrieve.", collectionName)
		return nil, nil
	}

	queryEmbedding, err := r.embed(query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]Scored, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			log.Printf("Skipping chunk %d in collection %s due to missing embedding.", chunk.ID, collectionName)
			continue
		}
		similarity, err := CosineSimilarity(queryEmbedding, chunk.Embedding)
		if err != nil {
			log.Printf("Error scoring chunk %d: %v. Skipping.", chunk.ID, err)
			continue
		}
		scored = append(scored, Scored{Content: chunk.Content, Score: similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Accepted reports whether a result list clears the acceptance
// threshold. An empty list never does; otherwise the best (first) score
// must be at least the threshold.
func (r *Retriever) Accepted(results []Scored) bool {
	return len(results) > 0 && results[0].Score >= r.threshold
}

func (r *Retriever) collectionChunks(collectionName string) ([]store.Chunk, error) {
	r.mu.RLock()
	chunks, ok := r.cache[collectionName]
	r.mu.RUnlock()
	if ok {
		return chunks, nil
	}

	chunks, err := r.source.GetChunksByCollection(collectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", collectionName, err)
	}

	r.mu.Lock()
	r.cache[collectionName] = chunks
	r.mu.Unlock()

	log.Printf("Loaded %d chunks for collection %s.", len(chunks), collectionName)
	return chunks, nil
}
