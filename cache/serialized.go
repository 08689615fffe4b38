package cache

import (
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/sqlmap"
)

// Serialized stores msgpack-encoded copies, so callers never share mutable
// values through the cache. Values must round-trip through msgpack.
type Serialized struct {
	sqlmap.Cache
}

type serializedValue struct {
	typ  reflect.Type
	data []byte
}

// NewSerialized wraps delegate.
func NewSerialized(delegate sqlmap.Cache) *Serialized {
	return &Serialized{Cache: delegate}
}

// Put implements sqlmap.Cache.
func (c *Serialized) Put(key *sqlmap.CacheKey, value any) error {
	if value == nil {
		return c.Cache.Put(key, nil)
	}
	data, err := msgpack.Marshal(value)
	if err != nil {
		return &sqlmap.CacheError{Cache: c.ID(), Err: err}
	}
	return c.Cache.Put(key, serializedValue{typ: reflect.TypeOf(value), data: data})
}

// Get implements sqlmap.Cache. Every call returns a fresh copy.
func (c *Serialized) Get(key *sqlmap.CacheKey) (any, error) {
	v, err := c.Cache.Get(key)
	if err != nil || v == nil {
		return nil, err
	}
	sv, ok := v.(serializedValue)
	if !ok {
		return v, nil
	}
	out := reflect.New(sv.typ)
	if err := msgpack.Unmarshal(sv.data, out.Interface()); err != nil {
		return nil, &sqlmap.CacheError{Cache: c.ID(), Err: err}
	}
	return out.Elem().Interface(), nil
}
