package reflection

import "strings"

// PropertyTokenizer splits a property path such as "orders[0].customer.name"
// into its first segment and the remaining children.
type PropertyTokenizer struct {
	Name        string // "orders"
	IndexedName string // "orders[0]"
	Index       string // "0"
	Children    string // "customer.name"
}

// NewPropertyTokenizer tokenizes the first segment of path.
func NewPropertyTokenizer(path string) *PropertyTokenizer {
	t := &PropertyTokenizer{}
	name := path
	if i := strings.IndexByte(path, '.'); i > -1 {
		name, t.Children = path[:i], path[i+1:]
	}
	t.IndexedName = name
	if i := strings.IndexByte(name, '['); i > -1 {
		end := len(name)
		if strings.HasSuffix(name, "]") {
			end--
		}
		t.Index = name[i+1 : end]
		name = name[:i]
	}
	t.Name = name
	return t
}

// HasNext reports whether the path has segments after the first one.
func (t *PropertyTokenizer) HasNext() bool {
	return t.Children != ""
}

// Next tokenizes the children.
func (t *PropertyTokenizer) Next() *PropertyTokenizer {
	return NewPropertyTokenizer(t.Children)
}

// Indexed reports whether the first segment carries an index.
func (t *PropertyTokenizer) Indexed() bool {
	return t.Index != ""
}
