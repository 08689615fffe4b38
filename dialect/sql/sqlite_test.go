package sql

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/sqlmap/binding"
	"github.com/syssam/sqlmap/dialect"
)

func TestSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	drv, err := Open(dialect.SQLite, "file:"+filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	defer drv.Close()
	for _, stmt := range []string{
		"CREATE TABLE authors (id INTEGER PRIMARY KEY AUTOINCREMENT, user_name TEXT NOT NULL)",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, author_id INTEGER NOT NULL, title TEXT NOT NULL)",
		`CREATE VIEW author_posts AS
			SELECT a.id, a.user_name, NULL AS home_street, NULL AS home_city, p.id AS post_id, p.title AS post_title
			FROM authors a LEFT JOIN posts p ON p.author_id = a.id ORDER BY a.id, p.id`,
	} {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}

	cfg := newBlogConfig(t)
	s := NewSession(cfg, drv)
	ann, bob := &author{UserName: "ann"}, &author{UserName: "bob"}
	for _, a := range []*author{ann, bob} {
		n, err := s.Insert(ctx, "blog.Author.insert", a)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}
	assert.Equal(t, int64(1), ann.ID)
	assert.Equal(t, int64(2), bob.ID)
	for _, title := range []string{"first", "second"} {
		_, err := s.Insert(ctx, "blog.Author.insertPost", binding.ParamMap{"authorID": ann.ID, "title": title})
		require.NoError(t, err)
	}

	t.Run("NestedQuery", func(t *testing.T) {
		v, err := NewSession(cfg, drv).SelectOne(ctx, "blog.Author.withPosts", ann.ID)
		require.NoError(t, err)
		assert.Equal(t, author{ID: 1, UserName: "ann", Posts: []post{{ID: 1, Title: "first"}, {ID: 2, Title: "second"}}}, v)
	})
	t.Run("NestedResults", func(t *testing.T) {
		list, err := NewSession(cfg, drv).SelectList(ctx, "blog.Author.detail", nil, binding.RowBounds{})
		require.NoError(t, err)
		assert.Equal(t, []any{
			author{ID: 1, UserName: "ann", Posts: []post{{ID: 1, Title: "first"}, {ID: 2, Title: "second"}}},
			author{ID: 2, UserName: "bob"},
		}, list)
	})
	t.Run("Rollback", func(t *testing.T) {
		tx, err := drv.Tx(ctx)
		require.NoError(t, err)
		_, err = NewSession(cfg, tx).Delete(ctx, "blog.Author.remove", bob.ID)
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		v, err := NewSession(cfg, drv).SelectOne(ctx, "blog.Author.count", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), v)
	})
}
