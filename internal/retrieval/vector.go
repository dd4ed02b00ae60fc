package retrieval

import (
	"hash/fnv"
	"math"
	"sort"
)

// hashDim is the dimensionality of the fallback embedding space.
const hashDim = 64

// HashEmbed is the deterministic fallback embedding: tokens hashed into a
// fixed number of buckets, L2-normalized. It captures lexical overlap
// only, which keeps vector retrieval functional when no embedding model
// is reachable.
func HashEmbed(text string) []float32 {
	vec := make([]float32, hashDim)
	for _, t := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(t))
		vec[h.Sum32()%hashDim]++
	}
	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// cosine returns the cosine similarity of two vectors, 0 when the
// dimensions differ or either vector is zero.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// vectorTopK ranks items by cosine similarity against the query vector.
func vectorTopK(queryVec []float32, items []Item, vecs [][]float32, k int) []Result {
	results := make([]Result, 0, len(items))
	for i, it := range items {
		s := cosine(queryVec, vecs[i])
		if s > 0 {
			results = append(results, Result{Item: it, Score: s})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}
