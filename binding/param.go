package binding

import (
	"maps"
	"slices"
	"strings"

	"github.com/syssam/sqlmap"
)

// GenericParamPrefix prefixes the positional names of parameters:
// "param1", "param2" and so on.
const GenericParamPrefix = "param"

// ParamMap holds the named arguments of a call.
type ParamMap map[string]any

// Get returns the argument stored under name. Unlike a plain index, a
// missing name is a BindingError listing the available ones.
func (p ParamMap) Get(name string) (any, error) {
	v, ok := p[name]
	if !ok {
		return nil, sqlmap.NewBindingError("", "parameter %q not found. Available parameters are [%s]",
			name, strings.Join(slices.Sorted(maps.Keys(p)), ", "))
	}
	return v, nil
}
