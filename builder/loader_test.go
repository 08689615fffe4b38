package builder_test

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/builder"
	"github.com/syssam/sqlmap/cache"
	"github.com/syssam/sqlmap/mapping"
)

func decode(t *testing.T, resource, data string) *builder.Document {
	t.Helper()
	doc, err := builder.DecodeYAML(resource, []byte(data))
	require.NoError(t, err)
	return doc
}

func boundSQL(t *testing.T, cfg *mapping.Configuration, id string, param any) string {
	t.Helper()
	ms, err := cfg.MappedStatement(id)
	require.NoError(t, err)
	b, err := ms.BoundSQL(param)
	require.NoError(t, err)
	return b.SQL
}

const authorMapper = `
mapper:
  namespace: blog.AuthorMapper
  children:
    - cache:
        eviction: FIFO
        size: 16
        readOnly: true
    - resultMap:
        id: author
        type: Author
        children:
          - id: {property: ID, column: author_id}
          - result: {property: Name, column: author_name}
          - association:
              property: Home
              columnPrefix: home_
              children:
                - result: {property: Street, column: street}
          - collection:
              property: Posts
              children:
                - id: {property: ID, column: post_id}
                - result: {property: Title, column: post_title}
    - sql:
        id: columns
        text: "${alias}.id, ${alias}.name"
    - select:
        id: findByID
        resultMap: author
        timeout: 5
        children:
          - SELECT
          - include:
              refid: columns
              children:
                - property: {name: alias, value: a}
          - "FROM authors a WHERE a.id = #{id}"
    - insert:
        id: insert
        parameterType: Author
        keyProperty: ID
        text: "INSERT INTO authors (name) VALUES (#{Name})"
`

func TestLoaderDocument(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	l := builder.NewLoader(cfg)
	require.NoError(t, l.Load(decode(t, "author.yaml", authorMapper)))
	require.NoError(t, l.Finish())
	assert.True(t, cfg.IsResourceLoaded("author.yaml"))

	rm, err := cfg.ResultMap("blog.AuthorMapper.author")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[Author](), rm.Type)
	require.Len(t, rm.Mappings, 4)
	require.Len(t, rm.IDMappings, 1)
	assert.True(t, rm.HasNestedResultMaps)

	home := rm.Mappings[2]
	assert.Equal(t, "home_", home.ColumnPrefix)
	assert.Equal(t, "blog.AuthorMapper.mapper_resultMap[author]_association[Home]", home.NestedResultMapID)
	nested, err := cfg.ResultMap(home.NestedResultMapID)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[*Address](), nested.Type)

	posts := rm.Mappings[3]
	assert.Equal(t, reflect.TypeFor[[]Post](), posts.Type)
	nested, err = cfg.ResultMap(posts.NestedResultMapID)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[Post](), nested.Type)
	assert.Len(t, nested.Mappings, 2)

	ms, err := cfg.MappedStatement("blog.AuthorMapper.findByID")
	require.NoError(t, err)
	assert.Equal(t, mapping.CommandSelect, ms.Command)
	assert.True(t, ms.UseCache)
	assert.False(t, ms.FlushCache)
	assert.Equal(t, "5s", ms.Timeout.String())
	assert.Same(t, rm, ms.ResultMaps[0])
	require.NotNil(t, ms.Cache)
	assert.Equal(t, "blog.AuthorMapper", ms.Cache.ID())
	assert.Equal(t, "SELECT a.id, a.name FROM authors a WHERE a.id = ?", boundSQL(t, cfg, "findByID", nil))

	ins, err := cfg.MappedStatement("blog.AuthorMapper.insert")
	require.NoError(t, err)
	assert.Equal(t, mapping.CommandInsert, ins.Command)
	assert.True(t, ins.FlushCache)
	assert.False(t, ins.UseCache)
	assert.Equal(t, reflect.TypeFor[Author](), ins.ParameterType)
	assert.Equal(t, []string{"ID"}, ins.KeyProperties)
	assert.Nil(t, ins.ResultType())

	// Loading the same resource again is a no-op.
	require.NoError(t, l.Load(decode(t, "author.yaml", authorMapper)))
}

func TestLoaderDiscriminator(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	require.NoError(t, builder.Load(context.Background(), cfg, decode(t, "garage.yaml", `
mapper:
  namespace: garage
  children:
    - resultMap:
        id: vehicle
        type: Vehicle
        children:
          - id: {property: ID, column: id}
          - discriminator:
              column: kind
              children:
                - case:
                    value: car
                    children:
                      - result: {property: Doors, column: doors}
                - case: {value: bike, resultMap: bike}
    - resultMap:
        id: bike
        type: Vehicle
        extends: vehicle
        autoMapping: false
        children:
          - result: {property: Kind, column: kind}
`)))

	rm, err := cfg.ResultMap("garage.vehicle")
	require.NoError(t, err)
	require.NotNil(t, rm.Discriminator)
	assert.Equal(t, "kind", rm.Discriminator.Mapping.Column)

	carID, ok := rm.Discriminator.MapIDFor("car")
	require.True(t, ok)
	assert.Equal(t, "garage.mapper_resultMap[vehicle]_discriminator_case[car]", carID)
	car, err := cfg.ResultMap(carID)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[Vehicle](), car.Type)
	require.Len(t, car.Mappings, 2, "case inherits the mappings declared before the discriminator")
	assert.Equal(t, "ID", car.Mappings[0].Property)
	assert.Equal(t, "Doors", car.Mappings[1].Property)

	bikeID, _ := rm.Discriminator.MapIDFor("bike")
	assert.Equal(t, "garage.bike", bikeID)
	bike, err := cfg.ResultMap(bikeID)
	require.NoError(t, err)
	require.Len(t, bike.Mappings, 2)
	assert.Equal(t, "Kind", bike.Mappings[0].Property)
	assert.Equal(t, "ID", bike.Mappings[1].Property)
	require.NotNil(t, bike.AutoMapping)
	assert.False(t, *bike.AutoMapping)
}

const (
	orderMapper = `
mapper:
  namespace: shop.OrderMapper
  children:
    - resultMap:
        id: detailed
        type: Order
        extends: shop.BaseMapper.base
        children:
          - result: {property: Total, column: total}
    - select:
        id: find
        resultMap: detailed
        text: "SELECT * FROM orders WHERE id = #{id}"
    - select:
        id: list
        resultMap: shop.BaseMapper.base
        children:
          - SELECT
          - include: {refid: shop.BaseMapper.cols}
          - FROM orders
`
	baseMapper = `
mapper:
  namespace: shop.BaseMapper
  children:
    - resultMap:
        id: base
        type: Order
        children:
          - id: {property: ID, column: id}
    - sql: {id: cols, text: "id, total"}
`
)

func TestLoaderForwardReferences(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	l := builder.NewLoader(cfg)
	require.NoError(t, l.Load(decode(t, "order.yaml", orderMapper)))
	assert.Equal(t, 1, l.Pending().Len(sqlmap.KindResultMap))
	assert.Equal(t, 2, l.Pending().Len(sqlmap.KindStatement))
	assert.False(t, cfg.HasStatement("shop.OrderMapper.find"))

	require.NoError(t, l.Load(decode(t, "base.yaml", baseMapper)))
	assert.Zero(t, l.Pending().Len(sqlmap.KindResultMap))
	assert.Zero(t, l.Pending().Len(sqlmap.KindStatement))
	require.NoError(t, l.Finish())

	detailed, err := cfg.ResultMap("shop.OrderMapper.detailed")
	require.NoError(t, err)
	require.Len(t, detailed.Mappings, 2)
	assert.Equal(t, "Total", detailed.Mappings[0].Property)
	assert.Equal(t, "ID", detailed.Mappings[1].Property)

	assert.Equal(t, "SELECT id, total FROM orders", boundSQL(t, cfg, "shop.OrderMapper.list", nil))
	ms, err := cfg.MappedStatement("shop.OrderMapper.find")
	require.NoError(t, err)
	assert.Same(t, detailed, ms.ResultMaps[0])
}

func TestLoaderUnresolvedReference(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	l := builder.NewLoader(cfg)
	require.NoError(t, l.Load(decode(t, "order.yaml", orderMapper)))

	err := l.Finish()
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlmap.ErrUnresolvedReference)

	var ure *sqlmap.UnresolvedReferenceError
	require.ErrorAs(t, err, &ure)
	assert.Equal(t, sqlmap.KindResultMap, ure.Kind)
	assert.Equal(t, "shop.OrderMapper.detailed", ure.ID)
	assert.Equal(t, "shop.BaseMapper.base", ure.Missing)
	assert.Contains(t, err.Error(), `missing reference "shop.BaseMapper.cols"`)
	assert.Len(t, l.Pending().Unresolved(), 3)
}

const nestedRefsMapper = `
mapper:
  namespace: shop.X
  children:
    - resultMap:
        id: author
        type: Author
        children:
          - id: {property: ID, column: id}
          - association: {property: Home, resultMap: shop.Y.owner}
          - collection: {property: Posts, resultMap: shop.Y.item}
    - resultMap:
        id: vehicle
        type: Vehicle
        children:
          - discriminator:
              column: kind
              children:
                - case: {value: car, resultMap: shop.Y.caseA}
`

func TestLoaderNestedResultMapReferences(t *testing.T) {
	t.Parallel()

	aliases := []mapping.Option{
		mapping.WithTypeAlias("Address", reflect.TypeFor[Address]()),
		mapping.WithTypeAlias("Post", reflect.TypeFor[Post]()),
	}

	t.Run("Missing", func(t *testing.T) {
		cfg := newConfig(t)
		l := builder.NewLoader(cfg)
		require.NoError(t, l.Load(decode(t, "x.yaml", nestedRefsMapper)))
		assert.True(t, cfg.HasResultMap("shop.X.author"), "registered before validation")

		err := l.Finish()
		require.Error(t, err)
		assert.ErrorIs(t, err, sqlmap.ErrUnresolvedReference)

		var agg *sqlmap.AggregateError
		require.ErrorAs(t, err, &agg)
		var got [][2]string
		for _, e := range agg.Errors {
			var ure *sqlmap.UnresolvedReferenceError
			require.ErrorAs(t, e, &ure)
			assert.Equal(t, sqlmap.KindResultMap, ure.Kind)
			got = append(got, [2]string{ure.ID, ure.Missing})
		}
		assert.Equal(t, [][2]string{
			{"shop.X.author", "shop.Y.owner"},
			{"shop.X.author", "shop.Y.item"},
			{"shop.X.vehicle", "shop.Y.caseA"},
		}, got)
	})

	t.Run("LoadedLater", func(t *testing.T) {
		cfg := newConfig(t, aliases...)
		l := builder.NewLoader(cfg)
		require.NoError(t, l.Load(decode(t, "x.yaml", nestedRefsMapper)))
		require.NoError(t, l.Load(decode(t, "y.yaml", `
mapper:
  namespace: shop.Y
  children:
    - resultMap:
        id: owner
        type: Address
        children:
          - result: {property: City, column: city}
    - resultMap:
        id: item
        type: Post
        children:
          - id: {property: ID, column: post_id}
    - resultMap:
        id: caseA
        type: Vehicle
        children:
          - result: {property: Doors, column: doors}
`)))
		require.NoError(t, l.Finish())
	})

	t.Run("MutuallyNested", func(t *testing.T) {
		cfg := newConfig(t)
		require.NoError(t, builder.Load(context.Background(), cfg, decode(t, "fleet.yaml", `
mapper:
  namespace: shop.Fleet
  children:
    - resultMap:
        id: car
        type: Vehicle
        children:
          - discriminator:
              column: kind
              children:
                - case: {value: truck, resultMap: truck}
    - resultMap:
        id: truck
        type: Vehicle
        children:
          - discriminator:
              column: kind
              children:
                - case: {value: car, resultMap: car}
`)))
		assert.True(t, cfg.HasResultMap("shop.Fleet.truck"))
	})
}

func TestLoaderCacheRef(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	l := builder.NewLoader(cfg)
	require.NoError(t, l.Load(decode(t, "item.yaml", `
mapper:
  namespace: shop.ItemMapper
  children:
    - cache-ref: {namespace: shop.SharedMapper}
    - select: {id: all, resultType: map, text: SELECT * FROM items}
`)))
	assert.Equal(t, 1, l.Pending().Len(sqlmap.KindCacheRef))
	assert.Equal(t, 1, l.Pending().Len(sqlmap.KindStatement))

	require.NoError(t, l.Load(decode(t, "shared.yaml", `
mapper:
  namespace: shop.SharedMapper
  children:
    - cache: {eviction: LRU, flushInterval: 1m, blocking: true}
`)))
	require.NoError(t, l.Finish())

	shared, err := cfg.Cache("shop.SharedMapper")
	require.NoError(t, err)
	assert.IsType(t, &cache.Blocking{}, shared)
	ms, err := cfg.MappedStatement("shop.ItemMapper.all")
	require.NoError(t, err)
	assert.Same(t, shared, ms.Cache)
	assert.Equal(t, reflect.TypeFor[map[string]any](), ms.ResultType())

	ref, ok := cfg.CacheRef("shop.ItemMapper")
	assert.True(t, ok)
	assert.Equal(t, "shop.SharedMapper", ref)
}

func TestLoaderDatabaseID(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t, mapping.WithDatabaseID("sqlite"))
	require.NoError(t, builder.Load(context.Background(), cfg, decode(t, "db.yaml", `
mapper:
  namespace: db.Mapper
  children:
    - sql: {id: now, text: "NOW()"}
    - sql: {id: now, databaseId: sqlite, text: CURRENT_TIMESTAMP}
    - select: {id: clock, resultType: string, children: [SELECT, {include: {refid: now}}]}
    - select: {id: one, text: SELECT 1}
    - select: {id: one, databaseId: sqlite, text: SELECT 1 AS one}
    - select: {id: pg, databaseId: postgres, text: SELECT 2}
`)))

	assert.Equal(t, []string{"db.Mapper.clock", "db.Mapper.one"}, cfg.StatementIDs())
	assert.Equal(t, "SELECT CURRENT_TIMESTAMP", boundSQL(t, cfg, "db.Mapper.clock", nil))
	assert.Equal(t, "SELECT 1 AS one", boundSQL(t, cfg, "db.Mapper.one", nil))
	ms, err := cfg.MappedStatement("db.Mapper.one")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", ms.DatabaseID)
}

func TestLoaderVariables(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t, mapping.WithVariables(map[string]string{"table": "people"}))
	require.NoError(t, builder.Load(context.Background(), cfg, decode(t, "people.yaml", `
mapper:
  namespace: app.People
  children:
    - select:
        id: byName
        resultType: map
        text: "SELECT * FROM ${table} WHERE name = '${name}'"
`)))
	assert.Equal(t,
		"SELECT * FROM people WHERE name = 'bo'",
		boundSQL(t, cfg, "app.People.byName", map[string]any{"name": "bo"}),
	)
}

func TestLoaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "NoNamespace", doc: "mapper: {}"},
		{name: "NotMapper", doc: "config: {namespace: a}"},
		{name: "DottedID", doc: "mapper: {namespace: a, children: [{select: {id: x.y, text: SELECT 1}}]}"},
		{name: "UnknownType", doc: "mapper: {namespace: a, children: [{select: {id: x, resultType: Nope, text: SELECT 1}}]}"},
		{name: "UnsupportedElement", doc: "mapper: {namespace: a, children: [{select: {id: x, children: [{if: {test: y}}]}}]}"},
		{name: "MissingID", doc: "mapper: {namespace: a, children: [{delete: {text: DELETE FROM t}}]}"},
		{name: "BadBool", doc: "mapper: {namespace: a, children: [{select: {id: x, useCache: maybe, text: SELECT 1}}]}"},
		{name: "UnknownCache", doc: "mapper: {namespace: a, children: [{cache: {type: nope}}]}"},
		{name: "AmbiguousCollection", doc: "mapper: {namespace: a, children: [{resultMap: {id: r, type: Order, children: [{collection: {property: Lines}}]}}]}"},
		{name: "DuplicateInclude", doc: `
mapper:
  namespace: a
  children:
    - sql: {id: s, text: x}
    - select:
        id: x
        children:
          - include:
              refid: s
              children:
                - property: {name: p, value: "1"}
                - property: {name: p, value: "2"}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := builder.NewLoader(newConfig(t)).Load(decode(t, "bad.yaml", tt.doc))
			require.Error(t, err)
			assert.True(t, sqlmap.IsBuilderError(err), "%v", err)
			assert.Contains(t, err.Error(), "bad.yaml")
		})
	}

	t.Run("NilDocument", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, builder.NewLoader(newConfig(t)).Load(nil))
	})
}

func TestLoaderLoadAllConcurrent(t *testing.T) {
	t.Parallel()

	// Each namespace extends the next one, so most declarations start out
	// pending regardless of load order.
	const n = 12
	docs := make([]*builder.Document, n)
	for i := range n {
		extends := ""
		if i < n-1 {
			extends = fmt.Sprintf("extends: chain.M%d.r", i+1)
		}
		docs[i] = decode(t, fmt.Sprintf("m%d.yaml", i), fmt.Sprintf(`
mapper:
  namespace: chain.M%d
  children:
    - resultMap:
        id: r
        type: map
        %s
        children:
          - result: {property: p%d, column: c%d}
    - select: {id: s, resultMap: r, text: SELECT %d}
`, i, extends, i, i, i))
	}

	cfg := newConfig(t)
	l := builder.NewLoader(cfg)
	require.NoError(t, l.LoadAll(context.Background(), docs...))
	require.NoError(t, l.Finish())

	rm, err := cfg.ResultMap("chain.M0.r")
	require.NoError(t, err)
	assert.Len(t, rm.Mappings, n)
	assert.Len(t, cfg.StatementIDs(), n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = builder.NewLoader(newConfig(t)).LoadAll(ctx, docs...)
	assert.ErrorIs(t, err, context.Canceled)
}
