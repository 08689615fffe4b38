package mapping

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/sqlmap/parsing"
	"github.com/syssam/sqlmap/reflection"
)

// ParamName is the name under which a whole simple parameter is reachable
// in "${...}" and "#{...}" expressions.
const ParamName = "_parameter"

// ParameterMapping describes one "#{property,key=value}" placeholder.
type ParameterMapping struct {
	Property string
	Options  map[string]string
}

func parseParameterMapping(content string) ParameterMapping {
	parts := strings.Split(content, ",")
	pm := ParameterMapping{Property: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		if pm.Options == nil {
			pm.Options = make(map[string]string)
		}
		pm.Options[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return pm
}

// BoundSQL is the SQL text of one call with "?" placeholders, plus the
// parameter mappings and the parameter object they read from.
type BoundSQL struct {
	SQL               string
	ParameterMappings []ParameterMapping
	Parameter         any

	additional map[string]any
}

// SetAdditional binds a value that takes precedence over the parameter
// object for the given property.
func (b *BoundSQL) SetAdditional(name string, v any) {
	if b.additional == nil {
		b.additional = make(map[string]any)
	}
	b.additional[name] = v
}

// Args resolves the placeholder values in order.
func (b *BoundSQL) Args(factory reflection.ObjectFactory) ([]any, error) {
	args := make([]any, len(b.ParameterMappings))
	var meta *reflection.MetaObject
	for i, pm := range b.ParameterMappings {
		v, ok := b.additional[pm.Property]
		switch {
		case ok:
		case b.Parameter == nil:
		case pm.Property == ParamName || IsSimpleType(reflect.TypeOf(b.Parameter)):
			v = b.Parameter
		default:
			if meta == nil {
				meta = reflection.Forward(b.Parameter, factory)
			}
			var err error
			if v, err = meta.GetValue(pm.Property); err != nil {
				return nil, err
			}
		}
		args[i] = v
	}
	return args, nil
}

// SQLSource produces the BoundSQL of a statement for a parameter object.
type SQLSource interface {
	BoundSQL(param any) (*BoundSQL, error)
}

// NewSQLSource returns a static source when text has no "${...}"
// substitutions, and a text source otherwise.
func NewSQLSource(text string, factory reflection.ObjectFactory) SQLSource {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "${") {
		return &TextSQLSource{Text: text, factory: factory}
	}
	return NewStaticSQLSource(text)
}

// StaticSQLSource holds SQL whose placeholders are parsed once.
type StaticSQLSource struct {
	SQL               string
	ParameterMappings []ParameterMapping
}

// NewStaticSQLSource parses the "#{...}" placeholders of text.
func NewStaticSQLSource(text string) *StaticSQLSource {
	s := &StaticSQLSource{}
	s.SQL = parsing.Parse(text, "#{", "}", func(content string) string {
		s.ParameterMappings = append(s.ParameterMappings, parseParameterMapping(content))
		return "?"
	})
	return s
}

// BoundSQL implements SQLSource.
func (s *StaticSQLSource) BoundSQL(param any) (*BoundSQL, error) {
	return &BoundSQL{SQL: s.SQL, ParameterMappings: s.ParameterMappings, Parameter: param}, nil
}

// TextSQLSource substitutes "${...}" from the parameter object on every
// call, then parses "#{...}" placeholders.
type TextSQLSource struct {
	Text string

	factory reflection.ObjectFactory
}

// BoundSQL implements SQLSource.
func (s *TextSQLSource) BoundSQL(param any) (*BoundSQL, error) {
	var (
		meta *reflection.MetaObject
		err  error
	)
	text := parsing.Parse(s.Text, "${", "}", func(content string) string {
		if err != nil {
			return ""
		}
		var v any
		switch {
		case param == nil:
		case content == ParamName || IsSimpleType(reflect.TypeOf(param)):
			v = param
		default:
			if meta == nil {
				meta = reflection.Forward(param, s.factory)
			}
			v, err = meta.GetValue(strings.TrimSpace(content))
		}
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
	if err != nil {
		return nil, err
	}
	return NewStaticSQLSource(text).BoundSQL(param)
}
