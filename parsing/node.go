package parsing

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/sqlmap"
)

// Node is one element of a declaration document: a name, attributes and an
// ordered list of children. Text content is held by child nodes with an
// empty Name.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
	Text     string

	parent *Node
}

// NewNode returns an element node and links the given children to it.
func NewNode(name string, attrs map[string]string, children ...*Node) *Node {
	n := &Node{Name: name, Attrs: attrs}
	for _, c := range children {
		n.Append(c)
	}
	return n
}

// TextNode returns a text node.
func TextNode(text string) *Node {
	return &Node{Text: text}
}

// Append adds c as the last child of n.
func (n *Node) Append(c *Node) {
	c.parent = n
	n.Children = append(n.Children, c)
}

// Parent returns the enclosing element, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n.Name == "" }

// Attr returns the attribute value, or "" if absent.
func (n *Node) Attr(name string) string {
	return n.Attrs[name]
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attrs[name]
	return ok
}

// AttrOr returns the attribute value, or def if absent.
func (n *Node) AttrOr(name, def string) string {
	if v, ok := n.Attrs[name]; ok {
		return v
	}
	return def
}

// BoolAttr parses a boolean attribute. The second result is false when the
// attribute is absent.
func (n *Node) BoolAttr(name string) (bool, bool, error) {
	v, ok := n.Attrs[name]
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, n.attrError(name, v, err)
	}
	return b, true, nil
}

// BoolAttrOr parses a boolean attribute with a default.
func (n *Node) BoolAttrOr(name string, def bool) (bool, error) {
	b, ok, err := n.BoolAttr(name)
	if err != nil || !ok {
		return def, err
	}
	return b, nil
}

// IntAttr parses an integer attribute; absent yields 0.
func (n *Node) IntAttr(name string) (int, error) {
	v, ok := n.Attrs[name]
	if !ok || v == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, n.attrError(name, v, err)
	}
	return i, nil
}

// DurationAttr parses a duration attribute. Plain integers are read as
// milliseconds; anything else goes through time.ParseDuration.
func (n *Node) DurationAttr(name string) (time.Duration, error) {
	v, ok := n.Attrs[name]
	if !ok || v == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, n.attrError(name, v, err)
	}
	return d, nil
}

func (n *Node) attrError(name, value string, cause error) error {
	return sqlmap.NewBuilderError("invalid attribute "+name+"="+strconv.Quote(value)+" on <"+n.Name+">", cause)
}

// Elements returns the element children with the given names, in document
// order. No names selects every element child.
func (n *Node) Elements(names ...string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.IsText() {
			continue
		}
		if len(names) == 0 || slices.Contains(names, c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// Element returns the first element child with the given name.
func (n *Node) Element(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Body concatenates the text of n and all its descendants.
func (n *Node) Body() string {
	var b strings.Builder
	n.writeBody(&b)
	return b.String()
}

func (n *Node) writeBody(b *strings.Builder) {
	b.WriteString(n.Text)
	for _, c := range n.Children {
		c.writeBody(b)
	}
}

// ChildrenAsProperties collects name/value attributes of <property> children.
func (n *Node) ChildrenAsProperties() map[string]string {
	props := make(map[string]string)
	for _, c := range n.Elements("property") {
		if name := c.Attr("name"); name != "" {
			props[name] = c.Attr("value")
		}
	}
	return props
}

// ValueBasedID identifies n by its position in the document, e.g.
// "mapper_resultMap[user]_association[address]". It is used as the id of
// anonymous nested declarations.
func (n *Node) ValueBasedID() string {
	var parts []string
	for cur := n; cur != nil; cur = cur.parent {
		id := cur.Attr("id")
		if id == "" {
			id = cur.Attr("value")
		}
		if id == "" {
			id = cur.Attr("property")
		}
		part := strings.ReplaceAll(cur.Name, ".", "_")
		if id != "" {
			part += "[" + strings.ReplaceAll(id, ".", "_") + "]"
		}
		parts = append(parts, part)
	}
	slices.Reverse(parts)
	return strings.Join(parts, "_")
}

// Expand returns a deep copy of n with ${name} variables substituted in
// attributes and text. The copy has no parent.
func (n *Node) Expand(vars map[string]string) *Node {
	p := NewPropertyParser(vars)
	return n.expand(p, nil)
}

func (n *Node) expand(p *PropertyParser, parent *Node) *Node {
	c := &Node{Name: n.Name, Text: p.Parse(n.Text), parent: parent}
	if n.Attrs != nil {
		c.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			c.Attrs[k] = p.Parse(v)
		}
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.expand(p, c))
	}
	return c
}

// Clone returns a deep copy of n without substitution.
func (n *Node) Clone() *Node {
	c := &Node{Name: n.Name, Text: n.Text, Attrs: maps.Clone(n.Attrs)}
	for _, child := range n.Children {
		c.Append(child.Clone())
	}
	return c
}
