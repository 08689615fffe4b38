package builder

import (
	"reflect"
	"strings"
	"sync"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/cache"
	"github.com/syssam/sqlmap/mapping"
	"github.com/syssam/sqlmap/reflection"
)

// Assistant registers the declarations of one namespace in a
// Configuration. It qualifies ids with the namespace and reports forward
// references as *sqlmap.IncompleteElementError.
type Assistant struct {
	config   *mapping.Configuration
	resource string

	mu                 sync.Mutex
	namespace          string
	currentCache       sqlmap.Cache
	unresolvedCacheRef string
}

// NewAssistant returns an assistant for declarations read from resource.
func NewAssistant(config *mapping.Configuration, resource string) *Assistant {
	return &Assistant{config: config, resource: resource}
}

// Namespace returns the current namespace.
func (a *Assistant) Namespace() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.namespace
}

// SetNamespace sets the namespace. It cannot be blank or changed once set.
func (a *Assistant) SetNamespace(ns string) error {
	if ns == "" {
		return sqlmap.Builderf("the mapper element requires a namespace attribute")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.namespace != "" && a.namespace != ns {
		return sqlmap.Builderf("wrong namespace: expected %q but found %q", a.namespace, ns)
	}
	a.namespace = ns
	return nil
}

// ApplyNamespace qualifies base with the current namespace. References that
// already contain a dot are taken as qualified; declared ids may not
// contain dots unless they already carry the current namespace.
func (a *Assistant) ApplyNamespace(base string, isReference bool) (string, error) {
	if base == "" {
		return "", nil
	}
	ns := a.Namespace()
	if isReference {
		if strings.Contains(base, ".") {
			return base, nil
		}
	} else {
		if strings.HasPrefix(base, ns+".") {
			return base, nil
		}
		if strings.Contains(base, ".") {
			return "", sqlmap.Builderf("dots are not allowed in element names, please remove it from %s", base)
		}
	}
	return ns + "." + base, nil
}

func (a *Assistant) reference(base string) string {
	id, _ := a.ApplyNamespace(base, true)
	return id
}

// UseCacheRef makes the namespace share the cache of ns.
func (a *Assistant) UseCacheRef(ns string) (sqlmap.Cache, error) {
	if ns == "" {
		return nil, sqlmap.Builderf("cache-ref element requires a namespace attribute")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unresolvedCacheRef = ns
	c, err := a.config.Cache(ns)
	switch {
	case sqlmap.IsNotFound(err):
		return nil, sqlmap.NewIncompleteElementError(sqlmap.KindCacheRef, a.namespace, ns)
	case err != nil:
		return nil, err
	}
	a.currentCache = c
	a.unresolvedCacheRef = ""
	return c, nil
}

// UseNewCache builds the namespace cache from b and registers it.
func (a *Assistant) UseNewCache(b cache.Builder) (sqlmap.Cache, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b.ID = a.namespace
	if b.Logger == nil {
		b.Logger = a.config.Logger
	}
	c, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := a.config.AddCache(c); err != nil {
		return nil, err
	}
	a.currentCache = c
	return c, nil
}

// AddResultMap registers a result map. With extends set, the parent's
// mappings are appended to mappings, skipping properties the child maps
// itself and the parent's constructor mappings when the child declares
// its own.
func (a *Assistant) AddResultMap(id string, typ reflect.Type, extends string, d *mapping.Discriminator, mappings []*mapping.ResultMapping, autoMapping *bool) (*mapping.ResultMap, error) {
	id, err := a.ApplyNamespace(id, false)
	if err != nil {
		return nil, err
	}
	all := mappings
	if extends != "" {
		extends = a.reference(extends)
		parent, err := a.config.ResultMap(extends)
		switch {
		case sqlmap.IsNotFound(err):
			return nil, sqlmap.NewIncompleteElementError(sqlmap.KindResultMap, id, extends)
		case err != nil:
			return nil, err
		}
		all = mergeMappings(mappings, parent.Mappings)
	}
	rm, err := mapping.NewResultMap(id, typ, all, d, autoMapping)
	if err != nil {
		return nil, err
	}
	if err := a.config.AddResultMap(rm); err != nil {
		return nil, err
	}
	return rm, nil
}

func mergeMappings(child, parent []*mapping.ResultMapping) []*mapping.ResultMapping {
	declared := make(map[string]bool, len(child))
	hasConstructor := false
	for _, m := range child {
		if m.Property != "" {
			declared[m.Property] = true
		}
		hasConstructor = hasConstructor || m.Flags.Has(mapping.FlagConstructor)
	}
	all := make([]*mapping.ResultMapping, 0, len(child)+len(parent))
	all = append(all, child...)
	for _, m := range parent {
		if declared[m.Property] || (hasConstructor && m.Flags.Has(mapping.FlagConstructor)) {
			continue
		}
		all = append(all, m)
	}
	return all
}

// MappingArgs holds the attributes of one result mapping declaration.
type MappingArgs struct {
	Property        string
	Column          string
	GoType          string
	NestedSelect    string
	NestedResultMap string
	NotNullColumn   string
	ColumnPrefix    string
	ResultSet       string
	ForeignColumn   string
	Flags           mapping.ResultFlag
	Lazy            bool
}

// BuildResultMapping builds a mapping onto a property of resultType. The
// property type is the declared GoType, or else the type of the field.
func (a *Assistant) BuildResultMapping(resultType reflect.Type, args MappingArgs) (*mapping.ResultMapping, error) {
	m := &mapping.ResultMapping{
		Property:          args.Property,
		Column:            args.Column,
		NestedQueryID:     a.reference(args.NestedSelect),
		NestedResultMapID: a.reference(args.NestedResultMap),
		NotNullColumns:    splitColumns(args.NotNullColumn),
		ColumnPrefix:      args.ColumnPrefix,
		Flags:             args.Flags,
		ResultSet:         args.ResultSet,
		ForeignColumn:     args.ForeignColumn,
		Lazy:              args.Lazy,
	}
	typ, err := a.config.Types.Resolve(args.GoType)
	if err != nil {
		return nil, err
	}
	if typ == nil && resultType != nil && args.Property != "" {
		typ, _ = reflection.DescriptorOf(resultType).PropertyType(args.Property)
	}
	m.Type = typ
	if strings.ContainsAny(args.Column, "=,") {
		m.Column = ""
		for _, pair := range splitColumns(args.Column) {
			prop, col, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, sqlmap.Builderf("invalid composite column %q for property %s", args.Column, args.Property)
			}
			m.Composites = append(m.Composites, &mapping.ResultMapping{
				Property: strings.TrimSpace(prop),
				Column:   strings.TrimSpace(col),
			})
		}
	}
	switch {
	case m.NestedQueryID != "" && m.NestedResultMapID != "":
		return nil, sqlmap.Builderf("cannot define both a nested query and a nested result map for property %s", args.Property)
	case m.NestedQueryID != "" && m.Column == "" && !m.IsComposite():
		return nil, sqlmap.Builderf("mapping is missing column attribute for property %s", args.Property)
	}
	return m, nil
}

func splitColumns(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "{}")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// BuildDiscriminator builds a discriminator on column. Case result map ids
// are qualified with the namespace.
func (a *Assistant) BuildDiscriminator(resultType reflect.Type, column, goType string, cases map[string]string) (*mapping.Discriminator, error) {
	m, err := a.BuildResultMapping(resultType, MappingArgs{Column: column, GoType: goType})
	if err != nil {
		return nil, err
	}
	d := &mapping.Discriminator{Mapping: m, Cases: make(map[string]string, len(cases))}
	for value, id := range cases {
		d.Cases[value] = a.reference(id)
	}
	return d, nil
}

// AddMappedStatement qualifies ms.ID, attaches the namespace cache and the
// result maps, and registers ms. resultMaps is a comma separated list of
// result map ids; without it, resultType yields an inline result map.
func (a *Assistant) AddMappedStatement(ms *mapping.MappedStatement, resultMaps string, resultType reflect.Type) error {
	id, err := a.ApplyNamespace(ms.ID, false)
	if err != nil {
		return err
	}
	a.mu.Lock()
	ref, c := a.unresolvedCacheRef, a.currentCache
	a.mu.Unlock()
	if ref != "" {
		return sqlmap.NewIncompleteElementError(sqlmap.KindStatement, id, ref)
	}
	ms.ID = id
	ms.Resource = a.resource
	ms.Cache = c
	ms.ResultMaps = nil
	for _, name := range splitColumns(resultMaps) {
		name = a.reference(name)
		rm, err := a.config.ResultMap(name)
		switch {
		case sqlmap.IsNotFound(err):
			return sqlmap.NewIncompleteElementError(sqlmap.KindStatement, id, name)
		case err != nil:
			return err
		}
		ms.ResultMaps = append(ms.ResultMaps, rm)
	}
	if len(ms.ResultMaps) == 0 && resultType != nil {
		rm, err := mapping.NewResultMap(id+"-Inline", resultType, nil, nil, nil)
		if err != nil {
			return err
		}
		ms.ResultMaps = append(ms.ResultMaps, rm)
	}
	return a.config.AddMappedStatement(ms)
}
