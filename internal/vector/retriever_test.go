package vector

import (
	"fmt"
	"testing"

	"ragchat/internal/store"
)

type fakeChunkSource struct {
	chunks map[string][]store.Chunk
	err    error
	calls  int
}

func (f *fakeChunkSource) GetChunksByCollection(name string) ([]store.Chunk, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[name], nil
}

// identityEmbed treats the text as a label and returns a fixed vector
// per label so similarities are predictable.
func identityEmbed(vectors map[string][]float32) Embedder {
	return func(text string) ([]float32, error) {
		v, ok := vectors[text]
		if !ok {
			return nil, fmt.Errorf("no test vector for %q", text)
		}
		return v, nil
	}
}

func TestRetriever_SearchRanksByDescendingSimilarity(t *testing.T) {
	source := &fakeChunkSource{chunks: map[string][]store.Chunk{
		"docs": {
			{ID: 1, Content: "far", Embedding: []float32{0, 1}},
			{ID: 2, Content: "near", Embedding: []float32{1, 0.1}},
			{ID: 3, Content: "exact", Embedding: []float32{1, 0}},
		},
	}}
	embed := identityEmbed(map[string][]float32{"query": {1, 0}})
	r := NewRetriever(source, embed, 0.7)

	results, err := r.Search("docs", "query", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].Content != "exact" || results[1].Content != "near" || results[2].Content != "far" {
		t.Errorf("rank order = [%s %s %s], want [exact near far]",
			results[0].Content, results[1].Content, results[2].Content)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending at index %d", i)
		}
	}
}

func TestRetriever_SearchCapsAtK(t *testing.T) {
	source := &fakeChunkSource{chunks: map[string][]store.Chunk{
		"docs": {
			{ID: 1, Content: "a", Embedding: []float32{1, 0}},
			{ID: 2, Content: "b", Embedding: []float32{1, 0}},
			{ID: 3, Content: "c", Embedding: []float32{1, 0}},
		},
	}}
	embed := identityEmbed(map[string][]float32{"query": {1, 0}})
	r := NewRetriever(source, embed, 0.7)

	results, err := r.Search("docs", "query", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestRetriever_EmptyCollection(t *testing.T) {
	source := &fakeChunkSource{chunks: map[string][]store.Chunk{}}
	embed := identityEmbed(nil)
	r := NewRetriever(source, embed, 0.7)

	results, err := r.Search("empty", "query", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
	if r.Accepted(results) {
		t.Error("empty result list must not be accepted")
	}
}

func TestRetriever_SkipsChunksWithoutEmbedding(t *testing.T) {
	source := &fakeChunkSource{chunks: map[string][]store.Chunk{
		"docs": {
			{ID: 1, Content: "no embedding"},
			{ID: 2, Content: "good", Embedding: []float32{1, 0}},
		},
	}}
	embed := identityEmbed(map[string][]float32{"query": {1, 0}})
	r := NewRetriever(source, embed, 0.7)

	results, err := r.Search("docs", "query", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Content != "good" {
		t.Errorf("results = %v, want only the embedded chunk", results)
	}
}

func TestRetriever_AcceptedUsesThresholdOnBestScore(t *testing.T) {
	r := NewRetriever(&fakeChunkSource{}, identityEmbed(nil), 0.7)

	tests := []struct {
		name    string
		results []Scored
		want    bool
	}{
		{"empty", nil, false},
		{"best below threshold", []Scored{{Content: "a", Score: 0.69}}, false},
		{"best at threshold", []Scored{{Content: "a", Score: 0.7}}, true},
		{"best above threshold", []Scored{{Content: "a", Score: 0.9}, {Content: "b", Score: 0.1}}, true},
	}
	for _, tt := range tests {
		if got := r.Accepted(tt.results); got != tt.want {
			t.Errorf("%s: Accepted() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRetriever_CachesCollection(t *testing.T) {
	source := &fakeChunkSource{chunks: map[string][]store.Chunk{
		"docs": {{ID: 1, Content: "a", Embedding: []float32{1, 0}}},
	}}
	embed := identityEmbed(map[string][]float32{"query": {1, 0}})
	r := NewRetriever(source, embed, 0.7)

	if _, err := r.Search("docs", "query", 1); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, err := r.Search("docs", "query", 1); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if source.calls != 1 {
		t.Errorf("store hit %d times, want 1 (cached)", source.calls)
	}
}
