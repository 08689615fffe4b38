package sql

import (
	"context"
	"log/slog"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/binding"
	"github.com/syssam/sqlmap/builder"
	"github.com/syssam/sqlmap/dialect"
	"github.com/syssam/sqlmap/mapping"
	"github.com/syssam/sqlmap/reflection"
)

type (
	address struct {
		Street string
		City   string
	}
	post struct {
		ID    int64
		Title string
	}
	author struct {
		ID       int64
		UserName string
		Home     *address
		Posts    []post
	}
	profile struct {
		ID     int64
		Latest any
	}
	vehicle struct {
		ID    int64
		Kind  string
		Doors int
	}
)

const blogMapper = `
mapper:
  namespace: blog.Author
  children:
    - cache: {}
    - resultMap:
        id: detail
        type: Author
        children:
          - id: {property: ID, column: id}
          - result: {property: UserName, column: user_name}
          - association:
              property: Home
              columnPrefix: home_
              children:
                - result: {property: Street, column: street}
                - result: {property: City, column: city}
          - collection:
              property: Posts
              children:
                - id: {property: ID, column: post_id}
                - result: {property: Title, column: post_title}
    - resultMap:
        id: withPosts
        type: Author
        children:
          - id: {property: ID, column: id}
          - collection: {property: Posts, column: id, select: postsByAuthor}
    - resultMap:
        id: profile
        type: Profile
        children:
          - id: {property: ID, column: id}
          - association: {property: Latest, column: id, select: latestPost, fetchType: lazy}
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
    - select:
        id: find
        resultType: Author
        useCache: false
        text: "SELECT id, user_name FROM authors WHERE id = #{id}"
    - select:
        id: cached
        resultType: Author
        text: "SELECT id, user_name FROM authors WHERE id = #{id}"
    - select:
        id: all
        resultType: Author
        useCache: false
        text: SELECT id, user_name FROM authors
    - select:
        id: count
        resultType: int64
        useCache: false
        text: SELECT COUNT(*) FROM authors
    - select:
        id: detail
        resultMap: detail
        useCache: false
        text: SELECT id, user_name, home_street, home_city, post_id, post_title FROM author_posts
    - select:
        id: withPosts
        resultMap: withPosts
        useCache: false
        text: "SELECT id, user_name FROM authors WHERE id = #{id}"
    - select:
        id: postsByAuthor
        resultType: Post
        useCache: false
        text: "SELECT id, title FROM posts WHERE author_id = #{id}"
    - select:
        id: profile
        resultMap: profile
        useCache: false
        text: "SELECT id FROM authors WHERE id = #{id}"
    - select:
        id: latestPost
        resultType: Post
        useCache: false
        text: "SELECT id, title FROM posts WHERE author_id = #{id} LIMIT 1"
    - select:
        id: vehicles
        resultMap: vehicle
        useCache: false
        text: SELECT id, kind, doors FROM vehicles
    - insert:
        id: insert
        keyProperty: ID
        text: "INSERT INTO authors (user_name) VALUES (#{UserName})"
    - insert:
        id: insertPost
        text: "INSERT INTO posts (author_id, title) VALUES (#{authorID}, #{title})"
    - update:
        id: rename
        text: "UPDATE authors SET user_name = #{name} WHERE id = #{id}"
    - delete:
        id: remove
        text: "DELETE FROM authors WHERE id = #{id}"
`

const (
	findSQL   = "SELECT id, user_name FROM authors WHERE id = ?"
	allSQL    = "SELECT id, user_name FROM authors"
	postsSQL  = "SELECT id, title FROM posts WHERE author_id = ?"
	renameSQL = "UPDATE authors SET user_name = ? WHERE id = ?"
)

func newBlogConfig(t *testing.T, opts ...mapping.Option) *mapping.Configuration {
	t.Helper()
	opts = append([]mapping.Option{
		mapping.WithLogger(slog.New(slog.DiscardHandler)),
		mapping.WithMapUnderscoreToCamelCase(true),
		mapping.WithTypeAlias("Author", reflect.TypeFor[author]()),
		mapping.WithTypeAlias("Post", reflect.TypeFor[post]()),
		mapping.WithTypeAlias("Profile", reflect.TypeFor[profile]()),
		mapping.WithTypeAlias("Vehicle", reflect.TypeFor[vehicle]()),
	}, opts...)
	cfg, err := mapping.NewConfiguration(opts...)
	require.NoError(t, err)
	doc, err := builder.DecodeYAML("blog.yaml", []byte(blogMapper))
	require.NoError(t, err)
	require.NoError(t, builder.Load(context.Background(), cfg, doc))
	return cfg
}

func newMock(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return OpenDB(dialect.SQLite, db), mock
}

func authorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_name"})
}

func TestSessionSelect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := newBlogConfig(t)

	t.Run("One", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ann"))
		s := NewSession(cfg, drv)
		v, err := s.SelectOne(ctx, "blog.Author.find", int64(1))
		require.NoError(t, err)
		assert.Equal(t, author{ID: 1, UserName: "ann"}, v)
	})
	t.Run("NoRows", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(findSQL).WithArgs(int64(9)).WillReturnRows(authorRows())
		v, err := NewSession(cfg, drv).SelectOne(ctx, "find", int64(9))
		require.NoError(t, err)
		assert.Nil(t, v)
	})
	t.Run("TooMany", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(allSQL).WillReturnRows(authorRows().AddRow(int64(1), "ann").AddRow(int64(2), "bob"))
		_, err := NewSession(cfg, drv).SelectOne(ctx, "blog.Author.all", nil)
		require.Error(t, err)
		assert.True(t, sqlmap.IsBindingError(err))
		assert.Contains(t, err.Error(), "found: 2")
	})
	t.Run("Scalar", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery("SELECT COUNT(*) FROM authors").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(3)))
		v, err := NewSession(cfg, drv).SelectOne(ctx, "blog.Author.count", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	})
	t.Run("Bounds", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(allSQL).WillReturnRows(authorRows().
			AddRow(int64(1), "ann").AddRow(int64(2), "bob").AddRow(int64(3), "cy"))
		list, err := NewSession(cfg, drv).SelectList(ctx, "blog.Author.all", nil, binding.RowBounds{Offset: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []any{author{ID: 2, UserName: "bob"}}, list)
	})
	t.Run("Map", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(allSQL).WillReturnRows(authorRows().AddRow(int64(1), "ann").AddRow(int64(2), "bob"))
		m, err := NewSession(cfg, drv).SelectMap(ctx, "blog.Author.all", nil, "ID", binding.RowBounds{})
		require.NoError(t, err)
		assert.Equal(t, map[any]any{
			int64(1): author{ID: 1, UserName: "ann"},
			int64(2): author{ID: 2, UserName: "bob"},
		}, m)
	})
	t.Run("Unknown", func(t *testing.T) {
		drv, _ := newMock(t)
		_, err := NewSession(cfg, drv).SelectList(ctx, "blog.Author.nope", nil, binding.RowBounds{})
		assert.True(t, sqlmap.IsNotFound(err))
	})
	t.Run("MissingParameter", func(t *testing.T) {
		drv, _ := newMock(t)
		_, err := NewSession(cfg, drv).Update(ctx, "blog.Author.rename", binding.ParamMap{"id": int64(1), "param1": int64(1)})
		require.Error(t, err)
		assert.True(t, sqlmap.IsBindingError(err))
		assert.Contains(t, err.Error(), `parameter "name" not found`)
	})
}

func TestSessionAutoMapping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("CamelCase", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), []byte("ann")))
		v, err := NewSession(newBlogConfig(t), drv).SelectOne(ctx, "blog.Author.find", int64(1))
		require.NoError(t, err)
		assert.Equal(t, author{ID: 1, UserName: "ann"}, v)
	})
	t.Run("Exact", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ann"))
		cfg := newBlogConfig(t, mapping.WithMapUnderscoreToCamelCase(false))
		v, err := NewSession(cfg, drv).SelectOne(ctx, "blog.Author.find", int64(1))
		require.NoError(t, err)
		assert.Equal(t, author{ID: 1}, v)
	})
	t.Run("None", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ann"))
		cfg := newBlogConfig(t, mapping.WithAutoMapping(mapping.AutoMappingNone))
		v, err := NewSession(cfg, drv).SelectOne(ctx, "blog.Author.find", int64(1))
		require.NoError(t, err)
		assert.Nil(t, v, "a row without mapped values yields nil")
	})
}

func TestSessionNestedResults(t *testing.T) {
	t.Parallel()
	drv, mock := newMock(t)
	mock.ExpectQuery("SELECT id, user_name, home_street, home_city, post_id, post_title FROM author_posts").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_name", "home_street", "home_city", "post_id", "post_title"}).
			AddRow(int64(1), "ann", "Main", "Oslo", int64(10), "first").
			AddRow(int64(1), "ann", "Main", "Oslo", int64(11), "second").
			AddRow(int64(2), "bob", nil, nil, nil, nil))

	list, err := NewSession(newBlogConfig(t), drv).SelectList(context.Background(), "blog.Author.detail", nil, binding.RowBounds{})
	require.NoError(t, err)
	assert.Equal(t, []any{
		author{
			ID:       1,
			UserName: "ann",
			Home:     &address{Street: "Main", City: "Oslo"},
			Posts:    []post{{ID: 10, Title: "first"}, {ID: 11, Title: "second"}},
		},
		author{ID: 2, UserName: "bob"},
	}, list)
}

func TestSessionNestedResultsLimit(t *testing.T) {
	t.Parallel()
	drv, mock := newMock(t)
	mock.ExpectQuery("SELECT id, user_name, home_street, home_city, post_id, post_title FROM author_posts").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_name", "home_street", "home_city", "post_id", "post_title"}).
			AddRow(int64(1), "ann", nil, nil, int64(10), "first").
			AddRow(int64(1), "ann", nil, nil, int64(11), "second").
			AddRow(int64(2), "bob", nil, nil, int64(12), "third"))

	list, err := NewSession(newBlogConfig(t), drv).SelectList(context.Background(), "blog.Author.detail", nil, binding.RowBounds{Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].(author).Posts, 2, "limit counts results, not rows")
}

func TestSessionNestedQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Eager", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ann"))
		mock.ExpectQuery(postsSQL).WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(10), "first").AddRow(int64(11), "second"))
		v, err := NewSession(newBlogConfig(t), drv).SelectOne(ctx, "blog.Author.withPosts", int64(1))
		require.NoError(t, err)
		assert.Equal(t, author{ID: 1, UserName: "ann", Posts: []post{{ID: 10, Title: "first"}, {ID: 11, Title: "second"}}}, v)
	})
	t.Run("Lazy", func(t *testing.T) {
		drv, mock := newMock(t)
		cfg := newBlogConfig(t)
		mock.ExpectQuery("SELECT id FROM authors WHERE id = ?").WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		v, err := NewSession(cfg, drv).SelectOne(ctx, "blog.Author.profile", int64(1))
		require.NoError(t, err)
		p := v.(profile)
		require.IsType(t, reflection.LazyFunc(nil), p.Latest, "not loaded before it is read")
		require.NoError(t, mock.ExpectationsWereMet())

		mock.ExpectQuery("SELECT id, title FROM posts WHERE author_id = ? LIMIT 1").WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(10), "first"))
		meta := cfg.NewMetaObject(&p)
		latest, err := meta.GetValue("Latest")
		require.NoError(t, err)
		assert.Equal(t, post{ID: 10, Title: "first"}, latest)
		assert.Equal(t, post{ID: 10, Title: "first"}, p.Latest, "loaded value replaces the loader")

		title, err := meta.GetValue("Latest.Title")
		require.NoError(t, err)
		assert.Equal(t, "first", title, "read again without a query")
	})
}

func TestSessionDiscriminator(t *testing.T) {
	t.Parallel()
	drv, mock := newMock(t)
	mock.ExpectQuery("SELECT id, kind, doors FROM vehicles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "doors"}).
			AddRow(int64(1), "car", int64(4)).
			AddRow(int64(2), "bike", nil).
			AddRow(int64(3), "truck", int64(6)))
	list, err := NewSession(newBlogConfig(t), drv).SelectList(context.Background(), "blog.Author.vehicles", nil, binding.RowBounds{})
	require.NoError(t, err)
	assert.Equal(t, []any{
		vehicle{ID: 1, Kind: "car", Doors: 4},
		vehicle{ID: 2, Kind: "bike"},
		vehicle{ID: 3, Kind: "truck", Doors: 6},
	}, list)
}

func TestSessionUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := newBlogConfig(t)

	t.Run("GeneratedKey", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectExec("INSERT INTO authors (user_name) VALUES (?)").WithArgs("cy").
			WillReturnResult(sqlmock.NewResult(7, 1))
		a := &author{UserName: "cy"}
		n, err := NewSession(cfg, drv).Insert(ctx, "blog.Author.insert", a)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, int64(7), a.ID)
	})
	t.Run("Named", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectExec(renameSQL).WithArgs("bob", int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
		n, err := NewSession(cfg, drv).Update(ctx, "blog.Author.rename", binding.ParamMap{"id": int64(1), "name": "bob"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
	t.Run("Error", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectExec("DELETE FROM authors WHERE id = ?").WithArgs(int64(1)).WillReturnError(assert.AnError)
		_, err := NewSession(cfg, drv).Delete(ctx, "blog.Author.remove", int64(1))
		require.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "blog.Author.remove")
	})
	t.Run("Flush", func(t *testing.T) {
		drv, _ := newMock(t)
		results, err := NewSession(cfg, drv).FlushStatements(ctx)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSessionLocalCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	drv, mock := newMock(t)
	s := NewSession(newBlogConfig(t), drv)

	mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ann"))
	for range 2 {
		v, err := s.SelectOne(ctx, "blog.Author.find", int64(1))
		require.NoError(t, err)
		assert.Equal(t, author{ID: 1, UserName: "ann"}, v)
	}
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(findSQL).WithArgs(int64(2)).WillReturnRows(authorRows().AddRow(int64(2), "bob"))
	_, err := s.SelectOne(ctx, "blog.Author.find", int64(2))
	require.NoError(t, err)

	mock.ExpectExec(renameSQL).WithArgs("ada", int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = s.Update(ctx, "blog.Author.rename", binding.ParamMap{"id": int64(1), "name": "ada"})
	require.NoError(t, err)

	mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ada"))
	v, err := s.SelectOne(ctx, "blog.Author.find", int64(1))
	require.NoError(t, err)
	assert.Equal(t, author{ID: 1, UserName: "ada"}, v, "updates clear the session cache")

	require.NoError(t, s.ClearCache())
	mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ada"))
	_, err = s.SelectOne(ctx, "blog.Author.find", int64(1))
	require.NoError(t, err)
}

func TestSessionSecondLevelCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := newBlogConfig(t)
	drv, mock := newMock(t)

	mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ann"))
	v, err := NewSession(cfg, drv).SelectOne(ctx, "blog.Author.cached", int64(1))
	require.NoError(t, err)
	assert.Equal(t, author{ID: 1, UserName: "ann"}, v)
	require.NoError(t, mock.ExpectationsWereMet())

	v, err = NewSession(cfg, drv).SelectOne(ctx, "blog.Author.cached", int64(1))
	require.NoError(t, err)
	assert.Equal(t, author{ID: 1, UserName: "ann"}, v, "served by the namespace cache")

	mock.ExpectExec("DELETE FROM authors WHERE id = ?").WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = NewSession(cfg, drv).Delete(ctx, "blog.Author.remove", int64(2))
	require.NoError(t, err)

	mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ann"))
	_, err = NewSession(cfg, drv).SelectOne(ctx, "blog.Author.cached", int64(1))
	require.NoError(t, err)

	t.Run("Disabled", func(t *testing.T) {
		cfg := newBlogConfig(t, mapping.WithCacheEnabled(false))
		drv, mock := newMock(t)
		for range 2 {
			mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ann"))
			_, err := NewSession(cfg, drv).SelectOne(ctx, "blog.Author.cached", int64(1))
			require.NoError(t, err)
		}
	})
}

func TestSessionCursor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := newBlogConfig(t)

	t.Run("Bounds", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(allSQL).WillReturnRows(authorRows().
			AddRow(int64(1), "ann").AddRow(int64(2), "bob").AddRow(int64(3), "cy"))
		c, err := NewSession(cfg, drv).SelectCursor(ctx, "blog.Author.all", nil, binding.RowBounds{Offset: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, -1, c.Index())
		require.True(t, c.Next())
		assert.Equal(t, author{ID: 2, UserName: "bob"}, c.Value())
		assert.Equal(t, 0, c.Index())
		assert.False(t, c.Next())
		require.NoError(t, c.Err())
		require.NoError(t, c.Close())
	})
	t.Run("Nested", func(t *testing.T) {
		drv, _ := newMock(t)
		_, err := NewSession(cfg, drv).SelectCursor(ctx, "blog.Author.detail", nil, binding.RowBounds{})
		require.Error(t, err)
		assert.True(t, sqlmap.IsBindingError(err))
	})
	t.Run("Handler", func(t *testing.T) {
		drv, mock := newMock(t)
		mock.ExpectQuery(allSQL).WillReturnRows(authorRows().AddRow(int64(1), "ann").AddRow(int64(2), "bob"))
		var seen []any
		err := NewSession(cfg, drv).Select(ctx, "blog.Author.all", nil, binding.RowBounds{},
			binding.ResultHandlerFunc(func(rc *binding.ResultContext) error {
				seen = append(seen, rc.Result)
				if rc.Count == 1 {
					rc.Stop()
				}
				return nil
			}))
		require.NoError(t, err)
		assert.Equal(t, []any{author{ID: 1, UserName: "ann"}}, seen)
	})
}

var blogInterface = &binding.Interface{Name: "blog.Author", Methods: []binding.Method{
	{Name: "find", Params: []binding.Param{{Name: "id"}}, Return: reflect.TypeFor[*author]()},
	{Name: "all", Params: []binding.Param{{Type: reflect.TypeFor[binding.RowBounds]()}}, Return: reflect.TypeFor[[]author]()},
	{Name: "rename", Params: []binding.Param{{Name: "id"}, {Name: "name"}}, Return: reflect.TypeFor[bool]()},
}}

func TestSessionMapper(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := newBlogConfig(t)
	drv, mock := newMock(t)
	r := binding.NewRegistry(cfg)
	require.NoError(t, r.AddMapper(blogInterface))
	stats := NewStatsDriver(drv)
	m, err := r.Bind(NewSession(cfg, stats), "blog.Author")
	require.NoError(t, err)

	mock.ExpectQuery(findSQL).WithArgs(int64(1)).WillReturnRows(authorRows().AddRow(int64(1), "ann"))
	found, err := binding.Invoke[*author](ctx, m, "find", int64(1))
	require.NoError(t, err)
	assert.Equal(t, &author{ID: 1, UserName: "ann"}, found)

	mock.ExpectQuery(allSQL).WillReturnRows(authorRows().AddRow(int64(1), "ann").AddRow(int64(2), "bob"))
	list, err := binding.Invoke[[]author](ctx, m, "all", binding.RowBounds{})
	require.NoError(t, err)
	assert.Equal(t, []author{{ID: 1, UserName: "ann"}, {ID: 2, UserName: "bob"}}, list)

	mock.ExpectExec(renameSQL).WithArgs("bob", int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := binding.Invoke[bool](ctx, m, "rename", int64(1), "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	for id, want := range map[string]StatementStats{
		"blog.Author.find":   {Queries: 1},
		"blog.Author.all":    {Queries: 1},
		"blog.Author.rename": {Execs: 1},
	} {
		got, ok := stats.Statement(id)
		require.True(t, ok, id)
		assert.Equal(t, want.Queries, got.Queries, id)
		assert.Equal(t, want.Execs, got.Execs, id)
		assert.Zero(t, got.Errors, id)
	}
	_, ok = stats.Statement("")
	assert.False(t, ok, "every statement is tagged with its id")
}
