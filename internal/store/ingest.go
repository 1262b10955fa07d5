package store

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// IngestFile reads a markdown/plain-text file, splits it into paragraph
// chunks, embeds each one and stores them under the given collection,
// registering a VectorContext for the collection if none exists yet.
// Conversations may only reference collections built this way.
func (s *SQLiteStore) IngestFile(filePath, contextName, description, collectionName string, embedder func(string) ([]float32, error)) (int, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read data file %s: %w", filePath, err)
	}

	var rawChunks []string
	for _, block := range strings.Split(string(contentBytes), "\n\n") {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		rawChunks = append(rawChunks, trimmed)
	}

	if len(rawChunks) == 0 {
		log.Printf("No chunks generated from %s. Nothing to ingest.", filePath)
		return 0, nil
	}

	vc, err := s.GetVectorContextByCollection(collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to look up collection %s: %w", collectionName, err)
	}
	if vc == nil {
		if _, err := s.CreateVectorContext(contextName, description, collectionName); err != nil {
			return 0, fmt.Errorf("failed to register vector context: %w", err)
		}
	}

	if err := s.ClearCollection(collectionName); err != nil {
		return 0, err
	}

	log.Printf("Generated %d chunks. Now embedding (this may take a while)...", len(rawChunks))

	count := 0

	ticker := time.NewTicker(40 * time.Millisecond) // delay to not hit the embedding rate limit (1500/min)
	defer ticker.Stop()

	for i, rawChunk := range rawChunks {
		<-ticker.C

		embedding, err := embedder(rawChunk)
		if err != nil {
			log.Printf("Failed to generate embedding for chunk %d (%.50q...): %v. Skipping.", i+1, rawChunk, err)
			continue
		}

		chunk := Chunk{
			CollectionName: collectionName,
			Content:        rawChunk,
			Embedding:      embedding,
		}
		if err := s.createChunk(&chunk); err != nil {
			log.Printf("Failed to store chunk %d: %v. Skipping.", i+1, err)
			continue
		}
		count++
		if count%10 == 0 || count == len(rawChunks) {
			log.Printf("Ingested %d/%d chunks...", count, len(rawChunks))
		}
	}
	log.Printf("Successfully ingested %d chunks into collection %s.", count, collectionName)
	return count, nil
}
