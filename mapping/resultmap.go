package mapping

import (
	"reflect"
	"strings"

	"github.com/syssam/sqlmap"
)

// ResultFlag marks special result mappings.
type ResultFlag uint8

// Result flags.
const (
	FlagID ResultFlag = 1 << iota
	FlagConstructor
)

// Has reports whether all bits of x are set in f.
func (f ResultFlag) Has(x ResultFlag) bool { return f&x == x }

// ResultMapping maps one column (or a nested result) onto one property.
type ResultMapping struct {
	Property string
	Column   string
	// Type is the declared property type, if any.
	Type reflect.Type
	// NestedResultMapID names the result map used for association,
	// collection and case elements.
	NestedResultMapID string
	// NestedQueryID names a statement executed to load the property.
	NestedQueryID  string
	NotNullColumns []string
	ColumnPrefix   string
	Flags          ResultFlag
	// Composites holds the {prop=col,...} pairs passed to a nested query.
	Composites    []*ResultMapping
	ResultSet     string
	ForeignColumn string
	Lazy          bool
}

// IsComposite reports whether the mapping passes several columns to its
// nested query.
func (m *ResultMapping) IsComposite() bool { return len(m.Composites) > 0 }

// Discriminator selects a branch result map by the value of a column.
type Discriminator struct {
	Mapping *ResultMapping
	// Cases maps a column value to a result map id.
	Cases map[string]string
}

// MapIDFor returns the result map id for a discriminator value.
func (d *Discriminator) MapIDFor(value string) (string, bool) {
	id, ok := d.Cases[value]
	return id, ok
}

// ResultMap describes how rows become values of Type.
type ResultMap struct {
	ID   string
	Type reflect.Type
	// Mappings holds every mapping in declaration order.
	Mappings            []*ResultMapping
	IDMappings          []*ResultMapping
	ConstructorMappings []*ResultMapping
	PropertyMappings    []*ResultMapping
	Discriminator       *Discriminator
	HasNestedResultMaps bool
	HasNestedQueries    bool
	// AutoMapping overrides the configured behavior when non-nil.
	AutoMapping *bool

	mappedColumns    map[string]struct{}
	mappedProperties map[string]struct{}
}

// NewResultMap builds a result map and its derived indexes. With no id
// mappings, every mapping takes part in row identity.
func NewResultMap(id string, typ reflect.Type, mappings []*ResultMapping, discriminator *Discriminator, autoMapping *bool) (*ResultMap, error) {
	if id == "" {
		return nil, sqlmap.Builderf("result maps must have an id")
	}
	rm := &ResultMap{
		ID:               id,
		Type:             typ,
		Mappings:         mappings,
		Discriminator:    discriminator,
		AutoMapping:      autoMapping,
		mappedColumns:    make(map[string]struct{}),
		mappedProperties: make(map[string]struct{}),
	}
	for _, m := range mappings {
		rm.HasNestedQueries = rm.HasNestedQueries || m.NestedQueryID != ""
		rm.HasNestedResultMaps = rm.HasNestedResultMaps || (m.NestedResultMapID != "" && m.ResultSet == "")
		if m.Column != "" {
			rm.mappedColumns[strings.ToUpper(m.Column)] = struct{}{}
		}
		for _, c := range m.Composites {
			rm.mappedColumns[strings.ToUpper(c.Column)] = struct{}{}
		}
		if m.Property != "" {
			rm.mappedProperties[m.Property] = struct{}{}
		}
		if m.Flags.Has(FlagConstructor) {
			rm.ConstructorMappings = append(rm.ConstructorMappings, m)
		} else {
			rm.PropertyMappings = append(rm.PropertyMappings, m)
		}
		if m.Flags.Has(FlagID) {
			rm.IDMappings = append(rm.IDMappings, m)
		}
	}
	if len(rm.IDMappings) == 0 {
		rm.IDMappings = mappings
	}
	return rm, nil
}

// HasMappedColumn reports whether column is mapped explicitly. Column
// names compare case-insensitively.
func (rm *ResultMap) HasMappedColumn(column string) bool {
	_, ok := rm.mappedColumns[strings.ToUpper(column)]
	return ok
}

// HasMappedProperty reports whether property is mapped explicitly.
func (rm *ResultMap) HasMappedProperty(property string) bool {
	_, ok := rm.mappedProperties[property]
	return ok
}
