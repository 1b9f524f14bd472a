package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/dgnsrekt/parley/internal/ttypes"
	"github.com/klauspost/compress/zstd"
)

// MemoryCache is an in-memory LRU of synthesis results with a byte
// capacity. When compression is enabled the audio is stored zstd
// compressed and capacity counts compressed bytes.
type MemoryCache struct {
	capacity int64 // Maximum size in bytes
	size     int64 // Current size in bytes

	// LRU implementation
	items    map[string]*list.Element
	eviction *list.List

	// Compression, nil when disabled
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.Mutex
	stats Stats
}

type memoryCacheEntry struct {
	key       string
	audio     []byte
	rawSize   int64
	size      int64
	duration  time.Duration
	timings   []ttypes.WordTiming
	timestamp time.Time
	hits      int64
}

// NewMemoryCache creates a cache holding up to capacity bytes.
// A compressionLevel of zero stores audio uncompressed.
func NewMemoryCache(capacity int64, compressionLevel int) (*MemoryCache, error) {
	c := &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats:    Stats{Capacity: capacity},
	}

	if compressionLevel > 0 {
		var err error
		c.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}

		c.decoder, err = zstd.NewReader(nil)
		if err != nil {
			c.encoder.Close()
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}

	return c, nil
}

// Get returns a copy of the cached result for key.
func (c *MemoryCache) Get(key string) (ttypes.SynthesisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return ttypes.SynthesisResult{}, false
	}

	entry := elem.Value.(*memoryCacheEntry)
	audio, err := c.decode(entry.audio)
	if err != nil {
		// drop the corrupted entry and report a miss
		c.removeElement(elem)
		c.stats.Misses++
		return ttypes.SynthesisResult{}, false
	}

	c.eviction.MoveToFront(elem)
	entry.hits++
	c.stats.Hits++

	return ttypes.SynthesisResult{
		Audio:       audio,
		Duration:    entry.duration,
		WordTimings: append([]ttypes.WordTiming(nil), entry.timings...),
	}, true
}

// Put stores a result, evicting least recently used entries to make room.
func (c *MemoryCache) Put(key string, res ttypes.SynthesisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.encode(res.Audio)
	size := int64(len(stored))
	if size > c.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	for c.size+size > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	entry := &memoryCacheEntry{
		key:       key,
		audio:     stored,
		rawSize:   int64(len(res.Audio)),
		size:      size,
		duration:  res.Duration,
		timings:   append([]ttypes.WordTiming(nil), res.WordTimings...),
		timestamp: time.Now(),
	}
	c.items[key] = c.eviction.PushFront(entry)
	c.size += size
	c.stats.RawBytes += entry.rawSize

	return nil
}

// Delete removes an entry from the cache.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Contains checks if a key exists without updating LRU order.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

// Clear removes all entries from the cache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
	c.stats.RawBytes = 0
}

// Size returns the current cache size in bytes.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size
	stats.ItemCount = int64(len(c.items))
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}

// Prune removes entries older than maxAge and returns how many went.
func (c *MemoryCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0

	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryCacheEntry).timestamp.Before(cutoff) {
			c.removeElement(elem)
			pruned++
		}
		elem = prev
	}
	return pruned
}

// Close releases the compression workers.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.encoder != nil {
		if err := c.encoder.Close(); err != nil {
			return err
		}
		c.encoder = nil
	}
	if c.decoder != nil {
		c.decoder.Close()
		c.decoder = nil
	}
	return nil
}

func (c *MemoryCache) encode(audio []byte) []byte {
	if c.encoder == nil {
		return append([]byte(nil), audio...)
	}
	return c.encoder.EncodeAll(audio, nil)
}

func (c *MemoryCache) decode(stored []byte) ([]byte, error) {
	if c.decoder == nil {
		return append([]byte(nil), stored...), nil
	}
	audio, err := c.decoder.DecodeAll(stored, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	return audio, nil
}

// evictOldest removes the least recently used item (must be called with lock held).
func (c *MemoryCache) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
	}
}

// removeElement removes an element from the cache (must be called with lock held).
func (c *MemoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*memoryCacheEntry)
	delete(c.items, entry.key)
	c.size -= entry.size
	c.stats.RawBytes -= entry.rawSize
}
