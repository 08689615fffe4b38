package cache

import (
	"cmp"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/reflection"
)

// Names of the builtin base cache and eviction policies.
const (
	KindPerpetual = "PERPETUAL"
	EvictionLRU   = "LRU"
	EvictionFIFO  = "FIFO"
)

type (
	// Factory creates a base cache for a namespace id.
	Factory func(id string) sqlmap.Cache
	// Decorator wraps a cache with an eviction policy of the given size.
	Decorator func(delegate sqlmap.Cache, size int) sqlmap.Cache
)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{KindPerpetual: func(id string) sqlmap.Cache { return NewPerpetual(id) }}
	evictions = map[string]Decorator{
		EvictionLRU:  func(c sqlmap.Cache, size int) sqlmap.Cache { return NewLRU(c, size) },
		EvictionFIFO: func(c sqlmap.Cache, size int) sqlmap.Cache { return NewFIFO(c, size) },
	}
)

// Register makes a base cache implementation available under name.
// Names are case-insensitive.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return sqlmap.NewConfigError("CacheType", name, "name and factory are required")
	}
	mu.Lock()
	defer mu.Unlock()
	key := strings.ToUpper(name)
	if _, ok := factories[key]; ok {
		return sqlmap.NewConfigError("CacheType", name, "cache type already registered")
	}
	factories[key] = f
	return nil
}

// RegisterEviction makes an eviction decorator available under name.
func RegisterEviction(name string, d Decorator) error {
	if name == "" || d == nil {
		return sqlmap.NewConfigError("Eviction", name, "name and decorator are required")
	}
	mu.Lock()
	defer mu.Unlock()
	key := strings.ToUpper(name)
	if _, ok := evictions[key]; ok {
		return sqlmap.NewConfigError("Eviction", name, "eviction policy already registered")
	}
	evictions[key] = d
	return nil
}

// Kinds returns the registered base cache names, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// Builder assembles the cache of one namespace.
type Builder struct {
	ID string
	// Kind names the base implementation; empty selects PERPETUAL.
	Kind string
	// Eviction names the eviction policy; empty selects LRU.
	Eviction      string
	FlushInterval time.Duration
	// Size is the eviction capacity; zero keeps the policy default.
	Size      int
	ReadWrite bool
	Blocking  bool
	// Properties are assigned to same-named settable fields of the base
	// cache.
	Properties map[string]string
	Logger     *slog.Logger
}

// Build creates the base cache, applies properties and wraps it with the
// standard decorators: eviction, scheduled flush, serialized copies,
// logging, locking and blocking. Custom base caches only get logging.
func (b *Builder) Build() (sqlmap.Cache, error) {
	if b.ID == "" {
		return nil, sqlmap.Builderf("cache id cannot be empty")
	}
	kind := strings.ToUpper(cmp.Or(b.Kind, KindPerpetual))
	eviction := strings.ToUpper(cmp.Or(b.Eviction, EvictionLRU))

	mu.RLock()
	factory, ok := factories[kind]
	decorate, evictOK := evictions[eviction]
	mu.RUnlock()
	if !ok {
		return nil, sqlmap.Builderf("unknown cache type %q", b.Kind)
	}
	if !evictOK {
		return nil, sqlmap.Builderf("unknown cache eviction policy %q", b.Eviction)
	}

	var c sqlmap.Cache = factory(b.ID)
	if err := setProperties(c, b.Properties); err != nil {
		return nil, err
	}
	if _, builtin := c.(*Perpetual); !builtin {
		return NewLogging(c, b.Logger), nil
	}
	c = decorate(c, b.Size)
	if b.FlushInterval > 0 {
		c = NewScheduled(c, b.FlushInterval)
	}
	if b.ReadWrite {
		c = NewSerialized(c)
	}
	c = NewLogging(c, b.Logger)
	c = NewSynchronized(c)
	if b.Blocking {
		c = NewBlocking(c, 0)
	}
	return c, nil
}

// setProperties assigns string properties to settable fields of c,
// converting to the field type.
func setProperties(c sqlmap.Cache, props map[string]string) error {
	if len(props) == 0 {
		return nil
	}
	meta := reflection.Forward(c, nil)
	for _, name := range slices.Sorted(maps.Keys(props)) {
		prop := meta.FindProperty(name, true)
		if prop == "" || !meta.HasSetter(prop) {
			return sqlmap.Builderf("cache %s has no settable property %q", c.ID(), name)
		}
		t, err := meta.SetterType(prop)
		if err != nil {
			return err
		}
		v, err := parseProperty(props[name], t)
		if err != nil {
			return sqlmap.NewBuilderError("cache property "+name, err)
		}
		if err := meta.SetValue(prop, v); err != nil {
			return err
		}
	}
	return nil
}

var durationType = reflect.TypeFor[time.Duration]()

func parseProperty(s string, t reflect.Type) (any, error) {
	if t == durationType {
		return time.ParseDuration(s)
	}
	switch t.Kind() {
	case reflect.String:
		return s, nil
	case reflect.Bool:
		return strconv.ParseBool(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.ParseInt(s, 10, 64)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.ParseUint(s, 10, 64)
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(s, 64)
	}
	return nil, sqlmap.NewReflectionError("", "unsupported property type %s", t)
}
