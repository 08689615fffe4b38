// Package parsing scans text for delimited, escapable placeholder tokens.
package parsing

import "strings"

// Escape is the character that disables the delimiter immediately after it.
const Escape = '\\'

// Handler maps the expression found between delimiters to its replacement.
type Handler func(expression string) string

// TokenParser replaces every Open...Close span of a text with the result of
// Handler applied to the enclosed expression.
type TokenParser struct {
	Open    string
	Close   string
	Handler Handler
}

// NewTokenParser returns a TokenParser for the given delimiters.
func NewTokenParser(open, close string, handler Handler) *TokenParser {
	return &TokenParser{Open: open, Close: close, Handler: handler}
}

// Parse scans text left to right.
//
// An open delimiter preceded by a backslash is emitted literally and the
// backslash dropped. Inside an expression an escaped close delimiter becomes
// part of the expression. An open delimiter without a matching close is
// emitted verbatim together with the rest of the text.
func (p *TokenParser) Parse(text string) string {
	if text == "" {
		return ""
	}
	start := strings.Index(text, p.Open)
	if start == -1 {
		return text
	}
	var (
		b      strings.Builder
		expr   strings.Builder
		offset int
	)
	b.Grow(len(text))
	for start > -1 {
		if start > 0 && text[start-1] == Escape {
			b.WriteString(text[offset : start-1])
			b.WriteString(p.Open)
			offset = start + len(p.Open)
		} else {
			expr.Reset()
			b.WriteString(text[offset:start])
			offset = start + len(p.Open)
			end := indexFrom(text, p.Close, offset)
			for end > -1 {
				if end <= offset || text[end-1] != Escape {
					expr.WriteString(text[offset:end])
					break
				}
				expr.WriteString(text[offset : end-1])
				expr.WriteString(p.Close)
				offset = end + len(p.Close)
				end = indexFrom(text, p.Close, offset)
			}
			if end == -1 {
				b.WriteString(text[start:])
				offset = len(text)
			} else {
				b.WriteString(p.Handler(expr.String()))
				offset = end + len(p.Close)
			}
		}
		start = indexFrom(text, p.Open, offset)
	}
	if offset < len(text) {
		b.WriteString(text[offset:])
	}
	return b.String()
}

// Parse is shorthand for NewTokenParser(open, close, handler).Parse(text).
func Parse(text, open, close string, handler Handler) string {
	return NewTokenParser(open, close, handler).Parse(text)
}

func indexFrom(s, substr string, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.Index(s[from:], substr)
	if i == -1 {
		return -1
	}
	return i + from
}
