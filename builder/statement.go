package builder

import (
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/mapping"
	"github.com/syssam/sqlmap/parsing"
)

// maxIncludeDepth bounds nested <include> expansion.
const maxIncludeDepth = 32

// statementBuilder parses one select, insert, update or delete element.
// parse is also its pending Resolver, so it must not queue itself.
type statementBuilder struct {
	config    *mapping.Configuration
	assistant *Assistant
	node      *parsing.Node
	required  string
}

func (s *statementBuilder) id() string {
	id, err := s.assistant.ApplyNamespace(s.node.Attr("id"), false)
	if err != nil {
		return s.node.Attr("id")
	}
	return id
}

func (s *statementBuilder) parse() error {
	n := s.node
	if n.Attr("id") == "" {
		return sqlmap.Builderf("<%s> requires an id attribute", n.Name)
	}
	id, err := s.assistant.ApplyNamespace(n.Attr("id"), false)
	if err != nil {
		return err
	}
	databaseID := n.Attr("databaseId")
	if !s.matchesDatabase(id, databaseID) {
		return nil
	}
	command := mapping.ParseCommandType(n.Name)
	isSelect := command == mapping.CommandSelect
	ms := &mapping.MappedStatement{
		ID:            id,
		DatabaseID:    databaseID,
		Command:       command,
		KeyProperties: splitColumns(n.Attr("keyProperty")),
		KeyColumns:    splitColumns(n.Attr("keyColumn")),
	}
	if ms.FlushCache, err = n.BoolAttrOr("flushCache", !isSelect); err != nil {
		return err
	}
	if ms.UseCache, err = n.BoolAttrOr("useCache", isSelect); err != nil {
		return err
	}
	if ms.ResultOrdered, err = n.BoolAttrOr("resultOrdered", false); err != nil {
		return err
	}
	if ms.Timeout, err = timeoutAttr(n); err != nil {
		return err
	}
	if ms.FetchSize, err = n.IntAttr("fetchSize"); err != nil {
		return err
	}
	if ms.ParameterType, err = s.config.Types.Resolve(n.Attr("parameterType")); err != nil {
		return err
	}
	resultType, err := s.config.Types.Resolve(n.Attr("resultType"))
	if err != nil {
		return err
	}
	var pieces []string
	if err := s.render(n, maps.Clone(s.config.Variables), false, 0, &pieces); err != nil {
		return err
	}
	ms.SQLSource = mapping.NewSQLSource(strings.Join(pieces, " "), s.config.ObjectFactory)
	return s.assistant.AddMappedStatement(ms, n.Attr("resultMap"), resultType)
}

// matchesDatabase reports whether the statement belongs to this pass. A
// generic statement is skipped when a variant-specific one was taken.
func (s *statementBuilder) matchesDatabase(id, databaseID string) bool {
	if s.required != "" {
		return databaseID == s.required
	}
	if databaseID != "" {
		return false
	}
	prev, err := s.config.MappedStatement(id)
	if err != nil {
		return true
	}
	return prev.DatabaseID == ""
}

// render appends the text of n to pieces, expanding <include> elements.
// Text inside included fragments has ${name} substituted from vars.
func (s *statementBuilder) render(n *parsing.Node, vars map[string]string, included bool, depth int, pieces *[]string) error {
	for _, c := range n.Children {
		switch {
		case c.IsText():
			text := c.Text
			if included && len(vars) > 0 {
				text = parsing.ParseProperties(text, vars)
			}
			if text = strings.TrimSpace(text); text != "" {
				*pieces = append(*pieces, text)
			}
		case c.Name == elemInclude:
			if depth >= maxIncludeDepth {
				return sqlmap.Builderf("includes of statement %s nest deeper than %d; check for circular includes", s.id(), maxIncludeDepth)
			}
			refid := parsing.ParseProperties(c.Attr("refid"), vars)
			if refid == "" {
				return sqlmap.Builderf("include in statement %s requires a refid attribute", s.id())
			}
			ref := s.assistant.reference(refid)
			frag, ok := s.config.Fragment(ref)
			if !ok {
				return sqlmap.NewIncompleteElementError(sqlmap.KindStatement, s.id(), ref)
			}
			inner, err := includeVars(c, vars)
			if err != nil {
				return err
			}
			if err := s.render(frag, inner, true, depth+1, pieces); err != nil {
				return err
			}
		default:
			return sqlmap.Builderf("unsupported element <%s> in statement %s", c.Name, s.id())
		}
	}
	return nil
}

// includeVars returns vars overridden by the <property> children of an
// include. Property values may themselves use ${name} from vars.
func includeVars(include *parsing.Node, vars map[string]string) (map[string]string, error) {
	props := include.Elements("property")
	if len(props) == 0 {
		return vars, nil
	}
	declared := make(map[string]string, len(props))
	for _, p := range props {
		name := p.Attr("name")
		if _, dup := declared[name]; dup {
			return nil, sqlmap.Builderf("variable %s defined twice in the same include definition", name)
		}
		declared[name] = parsing.ParseProperties(p.Attr("value"), vars)
	}
	out := maps.Clone(vars)
	if out == nil {
		out = make(map[string]string, len(declared))
	}
	maps.Copy(out, declared)
	return out, nil
}

// timeoutAttr reads the timeout attribute. Plain integers are seconds.
func timeoutAttr(n *parsing.Node) (time.Duration, error) {
	if secs, err := strconv.Atoi(n.Attr("timeout")); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return n.DurationAttr("timeout")
}
