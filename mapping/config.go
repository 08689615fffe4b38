// Package mapping holds the resolved mapping metadata: result maps,
// statements, caches and the Configuration that owns them.
package mapping

import (
	"log/slog"
	"maps"
	"reflect"
	"strings"
	"sync"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/parsing"
	"github.com/syssam/sqlmap/reflection"
)

// AutoMapping controls how unmapped columns are copied into results.
type AutoMapping int

// Auto-mapping behaviors.
const (
	// AutoMappingPartial auto-maps results without nested result maps.
	AutoMappingPartial AutoMapping = iota
	// AutoMappingNone disables auto-mapping.
	AutoMappingNone
	// AutoMappingFull auto-maps every result.
	AutoMappingFull
)

// Option configures a Configuration.
type Option func(*Configuration) error

// WithDatabaseID selects the database variant. Declarations scoped to
// another variant are skipped.
func WithDatabaseID(id string) Option {
	return func(c *Configuration) error {
		if strings.TrimSpace(id) == "" {
			return sqlmap.NewConfigError("DatabaseID", id, "database id cannot be blank")
		}
		c.DatabaseID = id
		return nil
	}
}

// WithEnvironment names the environment. It takes part in cache keys.
func WithEnvironment(env string) Option {
	return func(c *Configuration) error {
		c.Environment = env
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Configuration) error {
		if l == nil {
			return sqlmap.NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// WithObjectFactory sets the factory used to instantiate results and
// intermediate values.
func WithObjectFactory(f reflection.ObjectFactory) Option {
	return func(c *Configuration) error {
		if f == nil {
			return sqlmap.NewConfigError("ObjectFactory", nil, "object factory cannot be nil")
		}
		c.ObjectFactory = f
		return nil
	}
}

// WithVariables adds "${name}" variables substituted into declarations.
func WithVariables(vars map[string]string) Option {
	return func(c *Configuration) error {
		if c.Variables == nil {
			c.Variables = make(map[string]string, len(vars))
		}
		maps.Copy(c.Variables, vars)
		return nil
	}
}

// WithMapUnderscoreToCamelCase maps column user_name to property UserName.
func WithMapUnderscoreToCamelCase(enabled bool) Option {
	return func(c *Configuration) error {
		c.MapUnderscoreToCamelCase = enabled
		return nil
	}
}

// WithLazyLoading makes nested queries lazy by default.
func WithLazyLoading(enabled bool) Option {
	return func(c *Configuration) error {
		c.LazyLoading = enabled
		return nil
	}
}

// WithCacheEnabled toggles second level caches.
func WithCacheEnabled(enabled bool) Option {
	return func(c *Configuration) error {
		c.CacheEnabled = enabled
		return nil
	}
}

// WithAutoMapping sets the auto-mapping behavior.
func WithAutoMapping(m AutoMapping) Option {
	return func(c *Configuration) error {
		if m < AutoMappingPartial || m > AutoMappingFull {
			return sqlmap.NewConfigError("AutoMapping", m, "unknown auto-mapping behavior")
		}
		c.AutoMapping = m
		return nil
	}
}

// WithTypeAlias registers a type alias.
func WithTypeAlias(alias string, t reflect.Type) Option {
	return func(c *Configuration) error {
		return c.Types.Register(alias, t)
	}
}

// Configuration owns every resolved declaration of one mapping setup.
// Registration methods are safe for concurrent use.
type Configuration struct {
	DatabaseID               string
	Environment              string
	Variables                map[string]string
	MapUnderscoreToCamelCase bool
	LazyLoading              bool
	CacheEnabled             bool
	AutoMapping              AutoMapping
	Logger                   *slog.Logger
	ObjectFactory            reflection.ObjectFactory
	Types                    *TypeRegistry

	statements *strictMap[*MappedStatement]
	resultMaps *strictMap[*ResultMap]
	caches     *strictMap[sqlmap.Cache]

	mu        sync.Mutex
	loaded    map[string]struct{}
	cacheRefs map[string]string
	fragments map[string]*parsing.Node
}

// NewConfiguration returns a Configuration with defaults applied, then the
// given options.
func NewConfiguration(opts ...Option) (*Configuration, error) {
	c := &Configuration{
		CacheEnabled:  true,
		Logger:        slog.Default(),
		ObjectFactory: reflection.DefaultObjectFactory{},
		Types:         NewTypeRegistry(),
		statements:    newStrictMap[*MappedStatement](sqlmap.KindStatement),
		resultMaps:    newStrictMap[*ResultMap](sqlmap.KindResultMap),
		caches:        newStrictMap[sqlmap.Cache](sqlmap.KindCache),
		loaded:        make(map[string]struct{}),
		cacheRefs:     make(map[string]string),
		fragments:     make(map[string]*parsing.Node),
	}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply applies the given options.
func (c *Configuration) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// NewMetaObject wraps v with the configured object factory.
func (c *Configuration) NewMetaObject(v any) *reflection.MetaObject {
	return reflection.Forward(v, c.ObjectFactory)
}

// MarkLoaded records resource as loaded. It returns false if the resource
// was loaded before.
func (c *Configuration) MarkLoaded(resource string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.loaded[resource]; ok {
		return false
	}
	c.loaded[resource] = struct{}{}
	return true
}

// IsResourceLoaded reports whether resource was loaded.
func (c *Configuration) IsResourceLoaded(resource string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.loaded[resource]
	return ok
}

// AddMappedStatement registers ms under its id.
func (c *Configuration) AddMappedStatement(ms *MappedStatement) error {
	return c.statements.put(ms.ID, ms)
}

// MappedStatement returns the statement for a qualified or unique short id.
func (c *Configuration) MappedStatement(id string) (*MappedStatement, error) {
	return c.statements.get(id)
}

// HasStatement reports whether id resolves to exactly one statement.
func (c *Configuration) HasStatement(id string) bool {
	return c.statements.has(id)
}

// StatementIDs returns the qualified ids of all statements.
func (c *Configuration) StatementIDs() []string {
	return c.statements.ids()
}

// AddResultMap registers rm under its id.
func (c *Configuration) AddResultMap(rm *ResultMap) error {
	if err := c.resultMaps.put(rm.ID, rm); err != nil {
		return err
	}
	c.markDiscriminatedNesting(rm)
	return nil
}

// markDiscriminatedNesting flags rm as nested when one of its discriminator
// branches is.
func (c *Configuration) markDiscriminatedNesting(rm *ResultMap) {
	if rm.HasNestedResultMaps || rm.Discriminator == nil {
		return
	}
	for _, id := range rm.Discriminator.Cases {
		if branch, err := c.resultMaps.get(id); err == nil && branch.HasNestedResultMaps {
			rm.HasNestedResultMaps = true
			return
		}
	}
}

// ResultMap returns the result map for a qualified or unique short id.
func (c *Configuration) ResultMap(id string) (*ResultMap, error) {
	return c.resultMaps.get(id)
}

// HasResultMap reports whether id resolves to exactly one result map.
func (c *Configuration) HasResultMap(id string) bool {
	return c.resultMaps.has(id)
}

// ResultMapIDs returns the qualified ids of all result maps.
func (c *Configuration) ResultMapIDs() []string {
	return c.resultMaps.ids()
}

// AddCache registers a namespace cache.
func (c *Configuration) AddCache(cache sqlmap.Cache) error {
	return c.caches.put(cache.ID(), cache)
}

// Cache returns the cache of a namespace.
func (c *Configuration) Cache(namespace string) (sqlmap.Cache, error) {
	return c.caches.get(namespace)
}

// Caches returns every registered cache.
func (c *Configuration) Caches() []sqlmap.Cache {
	ids := c.caches.ids()
	out := make([]sqlmap.Cache, 0, len(ids))
	for _, id := range ids {
		if cache, err := c.caches.get(id); err == nil {
			out = append(out, cache)
		}
	}
	return out
}

// AddCacheRef records that namespace shares the cache of ref.
func (c *Configuration) AddCacheRef(namespace, ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheRefs[namespace] = ref
}

// CacheRef returns the namespace whose cache namespace uses.
func (c *Configuration) CacheRef(namespace string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.cacheRefs[namespace]
	return ref, ok
}

// AddFragment stores a reusable SQL fragment. With required set, only
// fragments of that database id are taken. Otherwise only generic fragments
// are taken, and never over a variant-specific one already stored.
// It reports whether the fragment was stored.
func (c *Configuration) AddFragment(id, databaseID, required string, node *parsing.Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case required != "":
		if databaseID != required {
			return false
		}
	case databaseID != "":
		return false
	default:
		if prev, ok := c.fragments[id]; ok && prev.Attr("databaseId") != "" {
			return false
		}
	}
	c.fragments[id] = node
	return true
}

// Fragment returns the fragment stored under a qualified id.
func (c *Configuration) Fragment(id string) (*parsing.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.fragments[id]
	return n, ok
}
