package xmltree

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// ParseError reports a rejected XML payload with the offending line when
// the tokenizer can supply one.
type ParseError struct {
	Message string
	Line    int
}

func (e *ParseError) Error() string {
	return "xmltree: " + e.Message
}

// Parse builds a Document from raw XML, capturing element attributes.
// Empty input yields an empty document, not an error.
func Parse(raw string) (*Document, error) {
	return parse(raw, true)
}

// ParseValues builds a Document without attribute capture; leaf elements
// collapse to bare scalar values.
func ParseValues(raw string) (*Document, error) {
	return parse(raw, false)
}

func parse(raw string, captureAttrs bool) (*Document, error) {
	root := &Node{kind: KindElement, children: map[string]*Node{}}
	doc := &Document{root: root}

	if strings.TrimSpace(raw) == "" {
		return doc, nil
	}

	dec := xml.NewDecoder(strings.NewReader(raw))
	// The platform emits Latin-1 content with no declaration on some
	// endpoints; pass bytes through untouched.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	stack := []*Node{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child := &Node{kind: KindElement, children: map[string]*Node{}}
			if captureAttrs && len(t.Attr) > 0 {
				child.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					child.attrs[a.Name.Local] = a.Value
				}
			}
			parent := stack[len(stack)-1]
			parent.insert(t.Name.Local, child)
			stack = append(stack, child)

		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.text += string(t)

		case xml.EndElement:
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			// Leaves with no retained attributes collapse to scalars.
			if len(cur.children) == 0 && len(cur.attrs) == 0 {
				cur.kind = KindScalar
			}
		}
	}

	if len(stack) != 1 {
		return nil, &ParseError{Message: "unbalanced document"}
	}
	return doc, nil
}

// insert attaches a child under name, converting an existing single entry
// into a list on the first duplicate.
func (n *Node) insert(name string, child *Node) {
	existing, ok := n.children[name]
	if !ok {
		n.children[name] = child
		return
	}
	if existing.kind == KindList {
		existing.items = append(existing.items, child)
		return
	}
	n.children[name] = &Node{kind: KindList, items: []*Node{existing, child}}
}

func parseError(err error) *ParseError {
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		return &ParseError{Message: syn.Msg, Line: syn.Line}
	}
	return &ParseError{Message: err.Error()}
}
