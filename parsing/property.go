package parsing

import "strings"

// Keys recognized in a variables map to configure PropertyParser.
const (
	// KeyEnableDefault turns on "${key:default}" handling when set to "true".
	KeyEnableDefault = "sqlmap.parsing.enable-default-value"
	// KeyDefaultSeparator overrides the ":" separator between key and default.
	KeyDefaultSeparator = "sqlmap.parsing.default-value-separator"

	defaultSeparator = ":"
)

// PropertyParser substitutes "${key}" placeholders from a variables map.
// Unknown keys are left untouched so later stages can still see them.
type PropertyParser struct {
	vars          map[string]string
	enableDefault bool
	separator     string
}

// NewPropertyParser returns a parser over vars. Default-value handling and
// the separator are read from the reserved keys in vars.
func NewPropertyParser(vars map[string]string) *PropertyParser {
	p := &PropertyParser{vars: vars, separator: defaultSeparator}
	if vars != nil {
		p.enableDefault = vars[KeyEnableDefault] == "true"
		if sep, ok := vars[KeyDefaultSeparator]; ok && sep != "" {
			p.separator = sep
		}
	}
	return p
}

// Parse substitutes every "${key}" in text.
func (p *PropertyParser) Parse(text string) string {
	return Parse(text, "${", "}", p.handle)
}

func (p *PropertyParser) handle(content string) string {
	if p.vars != nil {
		key := content
		if p.enableDefault {
			if i := strings.Index(content, p.separator); i >= 0 {
				key = content[:i]
				if v, ok := p.vars[key]; ok {
					return v
				}
				return content[i+len(p.separator):]
			}
		}
		if v, ok := p.vars[key]; ok {
			return v
		}
	}
	return "${" + content + "}"
}

// ParseProperties is shorthand for NewPropertyParser(vars).Parse(text).
func ParseProperties(text string, vars map[string]string) string {
	return NewPropertyParser(vars).Parse(text)
}
