package lm

import (
	"context"
	"encoding/binary"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/aretw0/cogflow/pkg/ports"
)

// DefaultCacheSize is the number of prefixes a Cache keeps.
const DefaultCacheSize = 4096

type cacheEntry struct {
	tokens []int
	logps  []float64
}

// Cache memoizes NextTokenLogProbs by token prefix. Entries are evicted in
// insertion order once Size is reached. It is safe for concurrent use.
type Cache struct {
	model ports.LanguageModel
	size  int

	mu      sync.Mutex
	entries map[uint64]cacheEntry
	order   []uint64
	hits    int
	misses  int
}

// NewCache wraps model. A size of 0 or less uses DefaultCacheSize.
func NewCache(model ports.LanguageModel, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{model: model, size: size, entries: make(map[uint64]cacheEntry)}
}

func prefixKey(tokens []int) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, t := range tokens {
		binary.LittleEndian.PutUint64(buf[:], uint64(t))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Tokenize implements ports.LanguageModel.
func (c *Cache) Tokenize(ctx context.Context, text string) ([]int, error) {
	return c.model.Tokenize(ctx, text)
}

// Detokenize implements ports.LanguageModel.
func (c *Cache) Detokenize(ctx context.Context, tokens []int) (string, error) {
	return c.model.Detokenize(ctx, tokens)
}

// NextTokenLogProbs implements ports.LanguageModel.
func (c *Cache) NextTokenLogProbs(ctx context.Context, tokens []int) ([]float64, error) {
	key := prefixKey(tokens)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && slices.Equal(e.tokens, tokens) {
		c.hits++
		c.mu.Unlock()
		return e.logps, nil
	}
	c.misses++
	c.mu.Unlock()

	logps, err := c.model.NextTokenLogProbs(ctx, tokens)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		if len(c.order) >= c.size {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{tokens: slices.Clone(tokens), logps: logps}
	return logps, nil
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
