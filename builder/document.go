// Package builder turns declaration documents into resolved mapping
// metadata. Declarations may reference each other in any order: the ones
// that cannot resolve yet are kept pending and retried after every loaded
// document, until the Loader is finished.
package builder

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/parsing"
)

// Document is one declaration source: a resource name and its root
// "mapper" element.
type Document struct {
	Resource string
	Root     *parsing.Node
}

// NewDocument returns a document for root.
func NewDocument(resource string, root *parsing.Node) *Document {
	return &Document{Resource: resource, Root: root}
}

// DecodeYAML reads a document from its YAML form. Every element is a
// single-key mapping from the element name to its body. Scalar keys of the
// body are attributes; "children" lists child elements and text in order,
// and "text" is shorthand for a single text child:
//
//	mapper:
//	  namespace: app.UserMapper
//	  children:
//	    - select:
//	        id: findByID
//	        resultType: User
//	        text: SELECT * FROM users WHERE id = #{id}
func DecodeYAML(resource string, data []byte) (*Document, error) {
	var root element
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &sqlmap.BuilderError{Resource: resource, Message: "decoding yaml", Cause: err}
	}
	if root.node == nil {
		return nil, &sqlmap.BuilderError{Resource: resource, Message: "empty document"}
	}
	return NewDocument(resource, root.node), nil
}

// element adapts a YAML subtree to a parsing.Node.
type element struct {
	node *parsing.Node
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *element) UnmarshalYAML(value *yaml.Node) error {
	n, err := decodeElement(value)
	if err != nil {
		return err
	}
	e.node = n
	return nil
}

func decodeElement(value *yaml.Node) (*parsing.Node, error) {
	if value.Kind == yaml.DocumentNode && len(value.Content) == 1 {
		value = value.Content[0]
	}
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return nil, fmt.Errorf("line %d: element must be a mapping with a single key", value.Line)
	}
	n := parsing.NewNode(value.Content[0].Value, nil)
	body := value.Content[1]
	switch body.Kind {
	case yaml.ScalarNode:
		if body.Tag != "!!null" {
			n.Append(parsing.TextNode(body.Value))
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(body.Content); i += 2 {
			if err := decodeEntry(n, body.Content[i], body.Content[i+1]); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("line %d: body of <%s> must be a mapping or a scalar", body.Line, n.Name)
	}
	return n, nil
}

func decodeEntry(n *parsing.Node, k, v *yaml.Node) error {
	switch k.Value {
	case "children":
		if v.Kind != yaml.SequenceNode {
			return fmt.Errorf("line %d: children of <%s> must be a sequence", v.Line, n.Name)
		}
		for _, c := range v.Content {
			if c.Kind == yaml.ScalarNode {
				n.Append(parsing.TextNode(c.Value))
				continue
			}
			child, err := decodeElement(c)
			if err != nil {
				return err
			}
			n.Append(child)
		}
	case "text":
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: text of <%s> must be a scalar", v.Line, n.Name)
		}
		n.Append(parsing.TextNode(v.Value))
	default:
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: attribute %s of <%s> must be a scalar", v.Line, k.Value, n.Name)
		}
		if n.Attrs == nil {
			n.Attrs = make(map[string]string)
		}
		n.Attrs[k.Value] = v.Value
	}
	return nil
}
