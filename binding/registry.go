package binding

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/mapping"
)

// Registry holds the known mapper interfaces of a Configuration.
type Registry struct {
	config *mapping.Configuration

	mu    sync.RWMutex
	known map[string]*entry
}

// entry pairs an interface with the methods bound so far. Bound methods
// are shared by every Mapper of the interface.
type entry struct {
	iface   *Interface
	methods sync.Map // method name -> *MapperMethod
}

// NewRegistry returns an empty registry for config.
func NewRegistry(config *mapping.Configuration) *Registry {
	return &Registry{config: config, known: make(map[string]*entry)}
}

// AddMapper registers iface. Names are unique per registry.
func (r *Registry) AddMapper(iface *Interface) error {
	if iface == nil {
		return sqlmap.NewBindingError("", "mapper interface cannot be nil")
	}
	if err := iface.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.known[iface.Name]; ok {
		return sqlmap.NewBindingError(iface.Name, "type is already known to the registry")
	}
	r.known[iface.Name] = &entry{iface: iface}
	r.config.Logger.Debug("mapper registered", "mapper", iface.Name, "methods", len(iface.MethodNames()))
	return nil
}

// HasMapper reports whether name is registered.
func (r *Registry) HasMapper(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[name]
	return ok
}

// Mappers returns the registered interface names, sorted.
func (r *Registry) Mappers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.known))
}

// Bind returns the mapper name executing on session.
func (r *Registry) Bind(session Session, name string) (*Mapper, error) {
	r.mu.RLock()
	e, ok := r.known[name]
	r.mu.RUnlock()
	if !ok {
		return nil, sqlmap.NewBindingError(name, "type is not known to the registry")
	}
	return &Mapper{entry: e, session: session}, nil
}

// Mapper is an interface bound to a session.
type Mapper struct {
	*entry
	session Session
}

// Name returns the interface name.
func (m *Mapper) Name() string { return m.iface.Name }

// Method returns the bound form of the named method, binding it on first
// use.
func (m *Mapper) Method(name string) (*MapperMethod, error) {
	if mm, ok := m.methods.Load(name); ok {
		return mm.(*MapperMethod), nil
	}
	decl, _, ok := m.iface.Lookup(name)
	if !ok {
		return nil, sqlmap.NewBindingError(m.iface.Name+"."+name, "method is not declared")
	}
	mm, err := NewMapperMethod(m.session.Configuration(), m.iface, decl)
	if err != nil {
		return nil, err
	}
	actual, _ := m.methods.LoadOrStore(name, mm)
	return actual.(*MapperMethod), nil
}

// Invoke calls the named method with args.
func (m *Mapper) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	mm, err := m.Method(method)
	if err != nil {
		return nil, err
	}
	return mm.Execute(ctx, m.session, args)
}

// Invoke calls method on m and asserts the result to T. A nil result
// yields the zero T.
func Invoke[T any](ctx context.Context, m *Mapper, method string, args ...any) (T, error) {
	var zero T
	v, err := m.Invoke(ctx, method, args...)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, sqlmap.NewTypeShapeError(m.Name()+"."+method, "result of type %s is not %s",
			reflect.TypeOf(v), reflect.TypeFor[T]())
	}
	return t, nil
}
