package parsing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/parsing"
)

func userMapper() (*parsing.Node, *parsing.Node) {
	assoc := parsing.NewNode("association", map[string]string{"property": "address.home"},
		parsing.NewNode("result", map[string]string{"property": "street", "column": "street"}),
	)
	root := parsing.NewNode("mapper", map[string]string{"namespace": "app.UserMapper"},
		parsing.NewNode("resultMap", map[string]string{"id": "user", "type": "User"}, assoc),
		parsing.NewNode("select", map[string]string{"id": "find", "timeout": "1500", "useCache": "false"},
			parsing.TextNode("SELECT * FROM users WHERE id = #{id} AND tenant = '${tenant}'"),
		),
		parsing.NewNode("cache", nil,
			parsing.NewNode("property", map[string]string{"name": "size", "value": "${size:64}"}),
			parsing.NewNode("property", map[string]string{"name": "flush", "value": "1m"}),
			parsing.NewNode("property", map[string]string{"value": "orphan"}),
		),
	)
	return root, assoc
}

func TestNodeNavigation(t *testing.T) {
	t.Parallel()

	root, assoc := userMapper()
	assert.Nil(t, root.Parent())
	assert.Same(t, root, assoc.Parent().Parent())

	assert.Len(t, root.Elements(), 3)
	assert.Len(t, root.Elements("select", "cache"), 2)
	assert.Empty(t, root.Elements("insert"))
	assert.Nil(t, root.Element("insert"))

	sel := root.Element("select")
	require.NotNil(t, sel)
	assert.False(t, sel.IsText())
	assert.True(t, sel.Children[0].IsText())
	assert.Empty(t, sel.Elements())
	assert.Equal(t, "SELECT * FROM users WHERE id = #{id} AND tenant = '${tenant}'", sel.Body())

	assert.Equal(t,
		map[string]string{"size": "${size:64}", "flush": "1m"},
		root.Element("cache").ChildrenAsProperties(),
	)
}

func TestNodeAttributes(t *testing.T) {
	t.Parallel()

	n := parsing.NewNode("select", map[string]string{
		"id":        "find",
		"timeout":   "1500",
		"flush":     "2s",
		"useCache":  "false",
		"fetchSize": "100",
		"bad":       "maybe",
	})

	assert.Equal(t, "find", n.Attr("id"))
	assert.Empty(t, n.Attr("resultMap"))
	assert.True(t, n.HasAttr("useCache"))
	assert.False(t, n.HasAttr("resultMap"))
	assert.Equal(t, "fallback", n.AttrOr("resultMap", "fallback"))
	assert.Equal(t, "find", n.AttrOr("id", "fallback"))

	b, ok, err := n.BoolAttr("useCache")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, b)

	_, ok, err = n.BoolAttr("flushCache")
	require.NoError(t, err)
	assert.False(t, ok)

	b, err = n.BoolAttrOr("flushCache", true)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = n.BoolAttrOr("bad", true)
	require.Error(t, err)
	assert.True(t, sqlmap.IsBuilderError(err))

	i, err := n.IntAttr("fetchSize")
	require.NoError(t, err)
	assert.Equal(t, 100, i)
	i, err = n.IntAttr("missing")
	require.NoError(t, err)
	assert.Zero(t, i)
	_, err = n.IntAttr("bad")
	assert.Error(t, err)

	d, err := n.DurationAttr("timeout")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
	d, err = n.DurationAttr("flush")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
	_, err = n.DurationAttr("bad")
	assert.Error(t, err)
}

func TestNodeValueBasedID(t *testing.T) {
	t.Parallel()

	root, assoc := userMapper()
	assert.Equal(t, "mapper_resultMap[user]_association[address_home]", assoc.ValueBasedID())
	assert.Equal(t, "mapper", root.ValueBasedID())

	c := parsing.NewNode("case", map[string]string{"value": "car"})
	d := parsing.NewNode("discriminator", map[string]string{"column": "kind"}, c)
	parsing.NewNode("resultMap", map[string]string{"id": "vehicle"}, d)
	assert.Equal(t, "resultMap[vehicle]_discriminator_case[car]", c.ValueBasedID())
}

func TestNodeExpand(t *testing.T) {
	t.Parallel()

	root, _ := userMapper()
	expanded := root.Expand(map[string]string{
		"tenant":                 "acme",
		parsing.KeyEnableDefault: "true",
	})
	require.NotSame(t, root, expanded)
	assert.Nil(t, expanded.Parent())

	sel := expanded.Element("select")
	assert.Same(t, expanded, sel.Parent())
	assert.Equal(t, "SELECT * FROM users WHERE id = #{id} AND tenant = 'acme'", sel.Body())
	assert.Equal(t, "64", expanded.Element("cache").ChildrenAsProperties()["size"])

	// The source tree is untouched.
	assert.Contains(t, root.Element("select").Body(), "${tenant}")

	clone := root.Clone()
	clone.Element("select").Attrs["id"] = "other"
	assert.Equal(t, "find", root.Element("select").Attr("id"))
	assert.Equal(t, root.Element("select").Body(), clone.Element("select").Body())
	assert.Same(t, clone, clone.Element("select").Parent())
}
