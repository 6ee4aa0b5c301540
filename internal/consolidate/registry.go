package consolidate

import (
	"log"
	"math"
)

// Registry is the ordered, growing set of global speaker identities built
// during a consolidation pass. Each identity keeps the embedding of its
// founding chunk-local speaker as the comparison target for later chunks.
// The registry never shrinks and never merges two already-assigned ids.
//
// It is owned exclusively by the single sequential consolidation pass, so no
// locking is needed by construction.
type Registry struct {
	centroids [][]float64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Count returns the number of global speakers registered so far.
func (r *Registry) Count() int {
	return len(r.centroids)
}

// Add registers a new global speaker with the given founding embedding and
// returns its id. Ids are assigned in registration order starting at 0, so
// the earliest chunk's speakers claim the lowest ids. A nil vector registers
// a placeholder identity that later chunks can never match against.
func (r *Registry) Add(vector []float64) int {
	id := len(r.centroids)
	centroid := make([]float64, len(vector))
	copy(centroid, vector)
	r.centroids = append(r.centroids, centroid)
	return id
}

// BestMatch compares vector against every registered speaker and returns the
// id and cosine similarity of the closest one. ok is false when the registry
// is empty.
func (r *Registry) BestMatch(vector []float64) (id int, similarity float64, ok bool) {
	best := -1
	bestSim := 0.0
	for i, centroid := range r.centroids {
		if len(centroid) == 0 {
			continue
		}
		sim := cosineSimilarity(vector, centroid)
		if best < 0 || sim > bestSim {
			best = i
			bestSim = sim
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return best, bestSim, true
}

// cosineSimilarity computes (A·B) / (||A|| * ||B||). Mismatched or
// zero-magnitude vectors compare as 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		log.Printf("Cosine similarity: vector length mismatch (%d vs %d)", len(a), len(b))
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
