package vectorstore

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/philippgille/chromem-go"
)

// EmbeddingFunc matches chromem-go's embedding function signature.
type EmbeddingFunc = chromem.EmbeddingFunc

// NewDeterministicEmbeddingFunc returns a dependency-free EmbeddingFunc that
// hashes text into a fixed-size vector. The embedding model itself is out of
// scope (spec.md §1): this mock lets the gateway, its similarity ranking and
// every caller above it be exercised without a real embeddings API, exactly
// as model.MockModel stands in for a real LLM. Swap in
// chromem.NewEmbeddingFuncOpenAI (or any other chromem-go embedding func) via
// Options.Embedder for production use.
func NewDeterministicEmbeddingFunc(dims int) EmbeddingFunc {
	if dims <= 0 {
		dims = 64
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		h := fnv.New64a()
		for i := 0; i < dims; i++ {
			h.Reset()
			_, _ = h.Write([]byte(text))
			_, _ = h.Write([]byte{byte(i)})
			vec[i] = float32(h.Sum64()%1000) / 1000.0
		}
		normalize(vec)
		return vec, nil
	}
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
