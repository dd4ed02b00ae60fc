package retrieval

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/boltdb/bolt"
)

var vectorBucket = []byte("vectors")

// VectorCache persists embeddings on disk so item vectors survive
// restarts and repeated queries do not re-call the embedding model.
type VectorCache struct {
	db *bolt.DB
}

// OpenVectorCache opens (creating if needed) the bolt file at path.
func OpenVectorCache(path string) (*VectorCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval.OpenVectorCache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(vectorBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("retrieval.OpenVectorCache: %w", err)
	}
	return &VectorCache{db: db}, nil
}

// Close releases the underlying database file.
func (c *VectorCache) Close() error { return c.db.Close() }

// cacheKey derives the storage key from the embedding model and text.
func cacheKey(model, text string) []byte {
	h := fnv.New64a()
	h.Write([]byte(text))
	return []byte(fmt.Sprintf("%s:%x", model, h.Sum64()))
}

// Get returns the cached vector for the model/text pair, or nil on miss.
func (c *VectorCache) Get(model, text string) []float32 {
	var vec []float32
	c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(vectorBucket).Get(cacheKey(model, text))
		if raw == nil {
			return nil
		}
		return gob.NewDecoder(bytes.NewReader(raw)).Decode(&vec)
	})
	return vec
}

// Put stores the vector for the model/text pair.
func (c *VectorCache) Put(model, text string, vec []float32) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vec); err != nil {
		return fmt.Errorf("retrieval.Put: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(vectorBucket).Put(cacheKey(model, text), buf.Bytes())
	})
}
