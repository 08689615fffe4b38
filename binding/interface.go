// Package binding dispatches mapper method calls to mapped statements.
//
// A mapper is described by an Interface: a named scope, its parent scopes
// and its methods. Each method binds once to a statement named
// "<scope>.<method>" and is then executed against a Session.
package binding

import (
	"reflect"
	"slices"
	"strings"

	"github.com/syssam/sqlmap"
)

// Param describes one method parameter. Parameters without a name are
// reachable as "arg<N>" and, like named ones, as "param<N>".
type Param struct {
	Name string
	Type reflect.Type
}

// Method describes one mapper method.
type Method struct {
	Name   string
	Params []Param
	// Return is the declared result type; nil means no result.
	Return reflect.Type
	// MapKey names the property used as key for map results.
	MapKey string
	// Flush marks a method that flushes batched statements when no
	// statement is bound to it.
	Flush bool
}

// Interface describes a mapper scope. Name is the namespace of the
// statements it binds to.
type Interface struct {
	Name    string
	Extends []*Interface
	Methods []Method
}

// Lookup returns the method declared on i or, depth-first, on one of its
// parents, along with the declaring interface.
func (i *Interface) Lookup(name string) (Method, *Interface, bool) {
	for _, m := range i.Methods {
		if m.Name == name {
			return m, i, true
		}
	}
	for _, p := range i.Extends {
		if m, decl, ok := p.Lookup(name); ok {
			return m, decl, true
		}
	}
	return Method{}, nil, false
}

// MethodNames returns the names of all methods reachable from i, sorted.
func (i *Interface) MethodNames() []string {
	seen := make(map[string]struct{})
	var walk func(*Interface)
	walk = func(i *Interface) {
		for _, m := range i.Methods {
			seen[m.Name] = struct{}{}
		}
		for _, p := range i.Extends {
			walk(p)
		}
	}
	walk(i)
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// extends reports whether i is decl or inherits from it.
func (i *Interface) extends(decl *Interface) bool {
	if i == decl {
		return true
	}
	for _, p := range i.Extends {
		if p.extends(decl) {
			return true
		}
	}
	return false
}

// validate checks names and rejects inheritance cycles.
func (i *Interface) validate() error {
	return i.check(nil)
}

func (i *Interface) check(path []*Interface) error {
	if strings.TrimSpace(i.Name) == "" {
		return sqlmap.NewBindingError("", "mapper interface must have a name")
	}
	if slices.Contains(path, i) {
		return sqlmap.NewBindingError(i.Name, "mapper interface inherits from itself")
	}
	names := make(map[string]struct{}, len(i.Methods))
	for _, m := range i.Methods {
		if m.Name == "" {
			return sqlmap.NewBindingError(i.Name, "method must have a name")
		}
		if _, ok := names[m.Name]; ok {
			return sqlmap.NewBindingError(i.Name, "method %s declared twice", m.Name)
		}
		names[m.Name] = struct{}{}
	}
	path = append(path, i)
	for _, p := range i.Extends {
		if p == nil {
			return sqlmap.NewBindingError(i.Name, "nil parent interface")
		}
		if err := p.check(path); err != nil {
			return err
		}
	}
	return nil
}
