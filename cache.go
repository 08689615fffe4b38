package sqlmap

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Cache is the interface for memoizing statement results.
// Implementations live in the cache package; decorators wrap a base Cache
// to add eviction, expiry, copying and locking.
type Cache interface {
	// ID returns the cache identifier, usually the owning namespace.
	ID() string

	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(key *CacheKey) (any, error)

	// Put stores a value under key.
	Put(key *CacheKey, value any) error

	// Remove removes the value stored under key, if any.
	Remove(key *CacheKey) error

	// Clear removes all values from the cache.
	Clear() error

	// Size returns the number of stored entries.
	Size() int
}

const (
	defaultMultiplier = 37
	defaultHashcode   = 17
)

// NullCacheKey marks a call that must not be cached. It cannot be updated.
var NullCacheKey = &CacheKey{
	multiplier: defaultMultiplier,
	hashcode:   defaultHashcode,
	immutable:  true,
}

// CacheKey is an order-sensitive composite identity built from the values
// that determine the result of a lookup (statement id, bounds, SQL text,
// parameter values).
//
// The hash, checksum and count are a fast-reject filter; Equal always falls
// back to element-wise structural comparison of the contributing values.
// Slices and arrays contribute by content, never by identity.
//
// A CacheKey is mutable while being built and must not be updated after it
// has been handed to a Cache.
type CacheKey struct {
	multiplier int
	hashcode   int
	checksum   int64
	count      int
	updates    []any
	immutable  bool
}

// NewCacheKey returns a key seeded with the given values, in order.
func NewCacheKey(values ...any) *CacheKey {
	k := &CacheKey{
		multiplier: defaultMultiplier,
		hashcode:   defaultHashcode,
	}
	for _, v := range values {
		k.update(v)
	}
	return k
}

// Update folds v into the key.
func (k *CacheKey) Update(v any) error {
	if k.immutable {
		return ErrInvalidMutation
	}
	k.update(v)
	return nil
}

// UpdateAll folds every value into the key in order.
func (k *CacheKey) UpdateAll(values ...any) error {
	if k.immutable {
		return ErrInvalidMutation
	}
	for _, v := range values {
		k.update(v)
	}
	return nil
}

func (k *CacheKey) update(v any) {
	base := StructuralHash(v)
	k.count++
	k.checksum += int64(base)
	base *= k.count
	k.hashcode = k.multiplier*k.hashcode + base
	k.updates = append(k.updates, v)
}

// UpdateCount returns the number of values folded into the key.
func (k *CacheKey) UpdateCount() int {
	return len(k.updates)
}

// HashCode returns the accumulated hash.
func (k *CacheKey) HashCode() int {
	return k.hashcode
}

// Checksum returns the accumulated checksum.
func (k *CacheKey) Checksum() int64 {
	return k.checksum
}

// Equal reports whether both keys were built from structurally equal values
// in the same order.
func (k *CacheKey) Equal(other *CacheKey) bool {
	if k == other {
		return true
	}
	if k == nil || other == nil {
		return false
	}
	if k.hashcode != other.hashcode || k.checksum != other.checksum || k.count != other.count {
		return false
	}
	for i := range k.updates {
		if !StructuralEqual(k.updates[i], other.updates[i]) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the key. Updating either key
// afterwards does not affect the other.
func (k *CacheKey) Clone() *CacheKey {
	c := *k
	c.updates = make([]any, len(k.updates))
	copy(c.updates, k.updates)
	return &c
}

// String returns "hash:checksum:v1:v2:...".
func (k *CacheKey) String() string {
	parts := make([]string, 0, len(k.updates)+2)
	parts = append(parts, strconv.Itoa(k.hashcode), strconv.FormatInt(k.checksum, 10))
	for _, v := range k.updates {
		parts = append(parts, formatValue(v))
	}
	return strings.Join(parts, ":")
}

func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "null"
		}
		elems := make([]string, rv.Len())
		for i := range elems {
			elems[i] = formatValue(rv.Index(i).Interface())
		}
		return "[" + strings.Join(elems, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}
