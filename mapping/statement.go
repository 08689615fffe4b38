package mapping

import (
	"reflect"
	"strings"
	"time"

	"github.com/syssam/sqlmap"
)

// CommandType is the kind of command a statement runs.
type CommandType int

// Command types.
const (
	CommandUnknown CommandType = iota
	CommandInsert
	CommandUpdate
	CommandDelete
	CommandSelect
	CommandFlush
)

var commandNames = [...]string{
	CommandUnknown: "UNKNOWN",
	CommandInsert:  "INSERT",
	CommandUpdate:  "UPDATE",
	CommandDelete:  "DELETE",
	CommandSelect:  "SELECT",
	CommandFlush:   "FLUSH",
}

// String returns the upper-case command name.
func (c CommandType) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return commandNames[CommandUnknown]
	}
	return commandNames[c]
}

// ParseCommandType maps an element name such as "select" to its command.
func ParseCommandType(name string) CommandType {
	for c, n := range commandNames {
		if strings.EqualFold(n, name) {
			return CommandType(c)
		}
	}
	return CommandUnknown
}

// MappedStatement is a fully resolved operation declaration.
type MappedStatement struct {
	ID         string
	Resource   string
	DatabaseID string
	Command    CommandType
	SQLSource  SQLSource
	// ParameterType is the declared parameter type, if any.
	ParameterType reflect.Type
	ResultMaps    []*ResultMap
	// Cache is the second level cache of the namespace, if any.
	Cache         sqlmap.Cache
	UseCache      bool
	FlushCache    bool
	Timeout       time.Duration
	FetchSize     int
	KeyProperties []string
	KeyColumns    []string
	ResultOrdered bool
}

// Namespace returns the qualifying part of the id.
func (ms *MappedStatement) Namespace() string {
	if i := strings.LastIndexByte(ms.ID, '.'); i >= 0 {
		return ms.ID[:i]
	}
	return ""
}

// BoundSQL builds the SQL of one call.
func (ms *MappedStatement) BoundSQL(param any) (*BoundSQL, error) {
	if ms.SQLSource == nil {
		return nil, sqlmap.Builderf("statement %s has no SQL", ms.ID)
	}
	return ms.SQLSource.BoundSQL(param)
}

// ResultType returns the type produced by the first result map, or nil for
// statements without results.
func (ms *MappedStatement) ResultType() reflect.Type {
	if len(ms.ResultMaps) == 0 {
		return nil
	}
	return ms.ResultMaps[0].Type
}
