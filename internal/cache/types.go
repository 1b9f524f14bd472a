package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when a stored payload cannot be decoded
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// DefaultCompressionLevel is the zstd level used when none is configured.
const DefaultCompressionLevel = 3

// Stats holds cache performance metrics
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	ItemCount int64 // Number of items in cache

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	// RawBytes is the uncompressed size of the stored audio
	RawBytes int64
}

// Key derives the cache key for a line. Traits are order-insensitive.
func Key(text, speakerID, emotion string, traits []string) string {
	sorted := append([]string(nil), traits...)
	sort.Strings(sorted)

	data := fmt.Sprintf("%s|%s|%s|%s", strings.TrimSpace(text), speakerID, emotion, strings.Join(sorted, ","))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
