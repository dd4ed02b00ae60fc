// Package retrieval selects the ledger snippets most relevant to a chat
// question. Lexical and vector scoring run independently with their own
// top-K budgets; their unions are deduplicated, lexical hits first.
package retrieval

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-assistant/internal/ai"
)

// Default result budgets per scorer.
const (
	DefaultLexicalK = 5
	DefaultVectorK  = 5
)

// Item is one indexable snippet, usually a rendered transaction or note.
type Item struct {
	ID   string
	Text string
}

// Result pairs an item with its scorer-local score. Scores from different
// scorers are not comparable with each other.
type Result struct {
	Item  Item
	Score float64
}

// Retriever scores items against a query. The embedder and cache are
// optional: without an embedder the deterministic hash embedding is used,
// and without a cache every embedding is recomputed.
type Retriever struct {
	embedder ai.Embedder
	model    string
	cache    *VectorCache
	lexK     int
	vecK     int
	log      zerolog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithEmbedder sets the embedding backend and the model tag used for
// cache keys.
func WithEmbedder(e ai.Embedder, model string) Option {
	return func(r *Retriever) {
		r.embedder = e
		r.model = model
	}
}

// WithCache persists item vectors between calls.
func WithCache(c *VectorCache) Option {
	return func(r *Retriever) { r.cache = c }
}

// WithTopK overrides the per-scorer result budgets.
func WithTopK(lexical, vector int) Option {
	return func(r *Retriever) {
		r.lexK = lexical
		r.vecK = vector
	}
}

// WithLogger sets the logger for embedding fallbacks.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Retriever) { r.log = log }
}

// NewRetriever builds a retriever with default budgets.
func NewRetriever(opts ...Option) *Retriever {
	r := &Retriever{
		model: "hash",
		lexK:  DefaultLexicalK,
		vecK:  DefaultVectorK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the merged lexical and vector results for the query.
// Duplicates keep their first (lexical) occurrence.
func (r *Retriever) Retrieve(ctx context.Context, query string, items []Item) []Result {
	if query == "" || len(items) == 0 {
		return nil
	}

	lexical := lexicalTopK(query, items, r.lexK)

	queryVec := r.embed(ctx, query)
	vecs := make([][]float32, len(items))
	for i, it := range items {
		vecs[i] = r.itemVector(ctx, it.Text)
	}
	vector := vectorTopK(queryVec, items, vecs, r.vecK)

	seen := make(map[string]bool, len(lexical)+len(vector))
	merged := make([]Result, 0, len(lexical)+len(vector))
	for _, res := range lexical {
		seen[res.Item.ID] = true
		merged = append(merged, res)
	}
	for _, res := range vector {
		if seen[res.Item.ID] {
			continue
		}
		seen[res.Item.ID] = true
		merged = append(merged, res)
	}
	return merged
}

// Warm computes and caches the embedding for one item text ahead of any
// query, so background indexing keeps queries cheap.
func (r *Retriever) Warm(ctx context.Context, text string) {
	r.itemVector(ctx, text)
}

// itemVector resolves an item embedding through the cache.
func (r *Retriever) itemVector(ctx context.Context, text string) []float32 {
	if r.cache != nil {
		if vec := r.cache.Get(r.model, text); vec != nil {
			return vec
		}
	}
	vec := r.embed(ctx, text)
	if r.cache != nil && vec != nil {
		if err := r.cache.Put(r.model, text, vec); err != nil {
			r.log.Warn().Err(err).Msg("retrieval: vector cache write failed")
		}
	}
	return vec
}

// embed calls the configured embedder, dropping to the hash embedding on
// failure so retrieval keeps working without the model.
func (r *Retriever) embed(ctx context.Context, text string) []float32 {
	if r.embedder == nil {
		return HashEmbed(text)
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.log.Warn().Err(err).Msg("retrieval: embedding failed, using hash fallback")
		return HashEmbed(text)
	}
	return vec
}
