package builder

import (
	"reflect"
	"slices"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/cache"
	"github.com/syssam/sqlmap/mapping"
	"github.com/syssam/sqlmap/parsing"
	"github.com/syssam/sqlmap/reflection"
)

// Element names of a declaration document.
const (
	elemMapper        = "mapper"
	elemCacheRef      = "cache-ref"
	elemCache         = "cache"
	elemResultMap     = "resultMap"
	elemConstructor   = "constructor"
	elemDiscriminator = "discriminator"
	elemID            = "id"
	elemIDArg         = "idArg"
	elemAssociation   = "association"
	elemCollection    = "collection"
	elemCase          = "case"
	elemSQL           = "sql"
	elemInclude       = "include"
)

var statementElements = []string{"select", "insert", "update", "delete"}

// mapperBuilder parses one document into the configuration. Declarations
// with forward references are queued in pending.
type mapperBuilder struct {
	config    *mapping.Configuration
	pending   *Pending
	assistant *Assistant
	root      *parsing.Node
}

func newMapperBuilder(config *mapping.Configuration, pending *Pending, resource string, root *parsing.Node) *mapperBuilder {
	return &mapperBuilder{
		config:    config,
		pending:   pending,
		assistant: NewAssistant(config, resource),
		root:      root,
	}
}

func (b *mapperBuilder) parse() error {
	root := b.root
	if root.Name != elemMapper {
		return sqlmap.Builderf("root element must be <mapper>, found <%s>", root.Name)
	}
	if err := b.assistant.SetNamespace(root.Attr("namespace")); err != nil {
		return err
	}
	if n := root.Element(elemCacheRef); n != nil {
		if err := b.cacheRefElement(n); err != nil {
			return err
		}
	}
	if n := root.Element(elemCache); n != nil {
		if err := b.cacheElement(n); err != nil {
			return err
		}
	}
	for _, n := range root.Elements(elemResultMap) {
		if _, err := b.resultMapElement(n, nil, nil); err != nil && !sqlmap.IsIncomplete(err) {
			return err
		}
	}
	if err := b.sqlElements(root.Elements(elemSQL)); err != nil {
		return err
	}
	return b.statementElements(root.Elements(statementElements...))
}

func (b *mapperBuilder) cacheRefElement(n *parsing.Node) error {
	ns := n.Attr("namespace")
	b.config.AddCacheRef(b.assistant.Namespace(), ns)
	resolve := func() error {
		_, err := b.assistant.UseCacheRef(ns)
		return err
	}
	if err := resolve(); err != nil {
		return b.pending.Add(sqlmap.KindCacheRef, b.assistant.Namespace(), err, resolve)
	}
	return nil
}

func (b *mapperBuilder) cacheElement(n *parsing.Node) error {
	interval, err := n.DurationAttr("flushInterval")
	if err != nil {
		return err
	}
	size, err := n.IntAttr("size")
	if err != nil {
		return err
	}
	readOnly, err := n.BoolAttrOr("readOnly", false)
	if err != nil {
		return err
	}
	blocking, err := n.BoolAttrOr("blocking", false)
	if err != nil {
		return err
	}
	_, err = b.assistant.UseNewCache(cache.Builder{
		Kind:          n.AttrOr("type", cache.KindPerpetual),
		Eviction:      n.AttrOr("eviction", cache.EvictionLRU),
		FlushInterval: interval,
		Size:          size,
		ReadWrite:     !readOnly,
		Blocking:      blocking,
		Properties:    n.ChildrenAsProperties(),
	})
	return err
}

// resultMapElement builds the result map declared by n and returns its
// qualified id. additional mappings are inherited from an enclosing
// declaration. An incomplete result map is queued and its id returned
// along with the error.
func (b *mapperBuilder) resultMapElement(n *parsing.Node, additional []*mapping.ResultMapping, enclosing reflect.Type) (string, error) {
	typ, err := b.assistant.config.Types.Resolve(firstAttr(n, "type", "ofType", "resultType", "goType"))
	if err != nil {
		return "", err
	}
	if typ == nil {
		if typ, err = b.inheritEnclosingType(n, enclosing); err != nil {
			return "", err
		}
	}
	var (
		d        *mapping.Discriminator
		mappings = slices.Clone(additional)
	)
	for _, c := range n.Elements() {
		switch c.Name {
		case elemConstructor:
			for _, arg := range c.Elements() {
				flags := mapping.FlagConstructor
				if arg.Name == elemIDArg {
					flags |= mapping.FlagID
				}
				m, err := b.resultMapping(arg, typ, flags)
				if err != nil {
					return "", err
				}
				mappings = append(mappings, m)
			}
		case elemDiscriminator:
			if d, err = b.discriminatorElement(c, typ, mappings); err != nil {
				return "", err
			}
		default:
			var flags mapping.ResultFlag
			if c.Name == elemID {
				flags = mapping.FlagID
			}
			m, err := b.resultMapping(c, typ, flags)
			if err != nil {
				return "", err
			}
			mappings = append(mappings, m)
		}
	}
	id, err := b.assistant.ApplyNamespace(n.AttrOr("id", n.ValueBasedID()), false)
	if err != nil {
		return "", err
	}
	autoMapping, set, err := n.BoolAttr("autoMapping")
	if err != nil {
		return "", err
	}
	var am *bool
	if set {
		am = &autoMapping
	}
	extends := n.Attr("extends")
	resolve := func() error {
		_, err := b.assistant.AddResultMap(id, typ, extends, d, mappings, am)
		return err
	}
	if err := resolve(); err != nil {
		if perr := b.pending.Add(sqlmap.KindResultMap, id, err, resolve); perr != nil {
			return id, perr
		}
		return id, err
	}
	return id, nil
}

// inheritEnclosingType types an inline association by the property it
// fills, an inline collection by the element type of that property, and an
// inline case by the enclosing result map.
func (b *mapperBuilder) inheritEnclosingType(n *parsing.Node, enclosing reflect.Type) (reflect.Type, error) {
	if enclosing == nil || n.HasAttr("resultMap") {
		return nil, nil
	}
	switch n.Name {
	case elemAssociation, elemCollection:
		prop := n.Attr("property")
		if prop == "" {
			return nil, nil
		}
		t, err := reflection.DescriptorOf(enclosing).PropertyType(prop)
		if err != nil {
			return nil, sqlmap.NewBuilderError(n.Name+" "+prop, err)
		}
		if n.Name == elemCollection {
			if k := t.Kind(); k == reflect.Slice || k == reflect.Array {
				t = t.Elem()
			}
		}
		return t, nil
	case elemCase:
		return enclosing, nil
	}
	return nil, nil
}

func (b *mapperBuilder) discriminatorElement(n *parsing.Node, typ reflect.Type, mappings []*mapping.ResultMapping) (*mapping.Discriminator, error) {
	cases := make(map[string]string)
	for _, c := range n.Elements(elemCase) {
		id := c.Attr("resultMap")
		if id == "" {
			var err error
			if id, err = b.nestedResultMap(c, mappings, typ); err != nil {
				return nil, err
			}
		}
		cases[c.Attr("value")] = id
	}
	return b.assistant.BuildDiscriminator(typ, n.Attr("column"), n.Attr("goType"), cases)
}

func (b *mapperBuilder) resultMapping(n *parsing.Node, resultType reflect.Type, flags mapping.ResultFlag) (*mapping.ResultMapping, error) {
	property := n.Attr("property")
	if flags.Has(mapping.FlagConstructor) {
		property = firstAttr(n, "name", "property")
	}
	nested := n.Attr("resultMap")
	if nested == "" {
		var err error
		if nested, err = b.nestedResultMap(n, nil, resultType); err != nil {
			return nil, err
		}
	}
	lazy := b.config.LazyLoading
	if fetch := n.Attr("fetchType"); fetch != "" {
		lazy = fetch == "lazy"
	}
	return b.assistant.BuildResultMapping(resultType, MappingArgs{
		Property:        property,
		Column:          n.Attr("column"),
		GoType:          n.Attr("goType"),
		NestedSelect:    n.Attr("select"),
		NestedResultMap: nested,
		NotNullColumn:   n.Attr("notNullColumn"),
		ColumnPrefix:    n.Attr("columnPrefix"),
		ResultSet:       n.Attr("resultSet"),
		ForeignColumn:   n.Attr("foreignColumn"),
		Flags:           flags,
		Lazy:            lazy,
	})
}

// nestedResultMap builds the anonymous result map of an inline
// association, collection or case and returns its id. A nested map that
// is only incomplete keeps its id; it resolves on a later pass.
func (b *mapperBuilder) nestedResultMap(n *parsing.Node, mappings []*mapping.ResultMapping, enclosing reflect.Type) (string, error) {
	switch n.Name {
	case elemAssociation, elemCollection, elemCase:
	default:
		return "", nil
	}
	if n.Attr("select") != "" {
		return "", nil
	}
	if n.Name == elemCollection && !n.HasAttr("goType") && !n.HasAttr("ofType") {
		prop := n.Attr("property")
		if enclosing == nil || !reflection.DescriptorOf(enclosing).HasProperty(prop) {
			return "", sqlmap.Builderf("ambiguous collection type for property %q: specify ofType or resultMap", prop)
		}
	}
	id, err := b.resultMapElement(n, mappings, enclosing)
	if err != nil && !sqlmap.IsIncomplete(err) {
		return "", err
	}
	return id, nil
}

// sqlElements stores reusable fragments. With a database id configured,
// fragments of that id are taken first, then generic ones that do not
// shadow them.
func (b *mapperBuilder) sqlElements(nodes []*parsing.Node) error {
	for _, required := range b.databasePasses() {
		for _, n := range nodes {
			id, err := b.assistant.ApplyNamespace(n.Attr("id"), false)
			if err != nil {
				return err
			}
			if id == "" {
				return sqlmap.Builderf("sql element requires an id attribute")
			}
			b.config.AddFragment(id, n.Attr("databaseId"), required, n)
		}
	}
	return nil
}

func (b *mapperBuilder) statementElements(nodes []*parsing.Node) error {
	for _, required := range b.databasePasses() {
		for _, n := range nodes {
			sb := &statementBuilder{config: b.config, assistant: b.assistant, node: n, required: required}
			if err := sb.parse(); err != nil {
				if perr := b.pending.Add(sqlmap.KindStatement, sb.id(), err, sb.parse); perr != nil {
					return perr
				}
			}
		}
	}
	return nil
}

func (b *mapperBuilder) databasePasses() []string {
	if b.config.DatabaseID != "" {
		return []string{b.config.DatabaseID, ""}
	}
	return []string{""}
}

func firstAttr(n *parsing.Node, names ...string) string {
	for _, name := range names {
		if v := n.Attr(name); v != "" {
			return v
		}
	}
	return ""
}
