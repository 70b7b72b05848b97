package catalog

import (
	"context"
	"math"
	"time"
)

// Embedder turns texts into vectors. The production implementation lives
// in the ai package; tests plug in a fake.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	embedBatchSize  = 20
	embedBatchPause = 500 * time.Millisecond
	embedDimension  = 1536
)

// embedAll embeds texts in batches. A failed batch is filled with zero
// vectors so positions stay aligned with the plant list; zero vectors
// never win a similarity search.
func embedAll(ctx context.Context, embedder Embedder, texts []string) [][]float32 {
	vectors := make([][]float32, 0, len(texts))
	dim := embedDimension

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		embedded, err := embedder.Embed(ctx, batch)
		if err != nil || len(embedded) != len(batch) {
			log.Error("Embedding batch %d-%d failed: %v", start, end, err)
			for range batch {
				vectors = append(vectors, make([]float32, dim))
			}
		} else {
			if len(embedded) > 0 && len(embedded[0]) > 0 {
				dim = len(embedded[0])
			}
			vectors = append(vectors, embedded...)
		}

		if end < len(texts) {
			select {
			case <-ctx.Done():
				log.Warn("Embedding interrupted after %d of %d texts", len(vectors), len(texts))
				for len(vectors) < len(texts) {
					vectors = append(vectors, make([]float32, dim))
				}
				return vectors
			case <-time.After(embedBatchPause):
			}
		}
	}
	return vectors
}

// cosineSimilarity of two vectors; zero when either has zero norm.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
