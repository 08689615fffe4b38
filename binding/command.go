package binding

import (
	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/mapping"
)

// SQLCommand is the statement a method is bound to.
type SQLCommand struct {
	// Name is the qualified statement id; empty for flush commands.
	Name string
	Type mapping.CommandType
}

// NewSQLCommand binds method m of iface. The statement "<iface>.<m>" is
// preferred; otherwise the parents of iface that inherit the declaring
// interface are searched depth-first and the first match wins.
func NewSQLCommand(config *mapping.Configuration, iface *Interface, m Method) (*SQLCommand, error) {
	_, decl, ok := iface.Lookup(m.Name)
	if !ok {
		decl = iface
	}
	ms := resolveStatement(config, iface, m.Name, decl)
	if ms == nil {
		if !m.Flush {
			return nil, sqlmap.NewMissingOperationError(iface.Name, m.Name)
		}
		return &SQLCommand{Type: mapping.CommandFlush}, nil
	}
	if ms.Command == mapping.CommandUnknown {
		return nil, sqlmap.NewBindingError(ms.ID, "unknown execution method")
	}
	return &SQLCommand{Name: ms.ID, Type: ms.Command}, nil
}

func resolveStatement(config *mapping.Configuration, iface *Interface, name string, decl *Interface) *mapping.MappedStatement {
	id := iface.Name + "." + name
	if config.HasStatement(id) {
		if ms, err := config.MappedStatement(id); err == nil {
			return ms
		}
	}
	if iface == decl {
		return nil
	}
	for _, p := range iface.Extends {
		if !p.extends(decl) {
			continue
		}
		if ms := resolveStatement(config, p, name, decl); ms != nil {
			return ms
		}
	}
	return nil
}
