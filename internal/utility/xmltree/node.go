// Package xmltree converts the enrollment platform's ad hoc XML responses
// into a uniform tree. The platform wraps repeated elements inconsistently,
// so every parsed value is normalized into one of three shapes: a scalar
// string, an element with optional attributes and children, or a list of
// repeated siblings. Downstream readers only ever handle those three shapes.
package xmltree

import "strings"

// Kind identifies the shape of a parsed node.
type Kind int

const (
	// KindScalar is a leaf element carrying only character data.
	KindScalar Kind = iota
	// KindElement is an element with attributes and/or child elements.
	KindElement
	// KindList is an ordered run of repeated sibling elements.
	KindList
)

// Node is one parsed XML value. A node is never simultaneously a single
// element and a list; the parser converts the first duplicate sibling into
// a two-element list before appending further duplicates.
type Node struct {
	kind     Kind
	text     string
	attrs    map[string]string
	children map[string]*Node
	items    []*Node
}

// Kind returns the node shape.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindScalar
	}
	return n.kind
}

// Text returns the trimmed character data of a scalar or element node.
// For a list it returns the text of the first item.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	if n.kind == KindList {
		if len(n.items) == 0 {
			return ""
		}
		return n.items[0].Text()
	}
	return strings.TrimSpace(n.text)
}

// Attr returns the named attribute value and whether it was present.
// Lists delegate to their first item.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	if n.kind == KindList {
		if len(n.items) == 0 {
			return "", false
		}
		return n.items[0].Attr(name)
	}
	v, ok := n.attrs[name]
	return v, ok
}

// Attrs returns the attribute map. Callers must not mutate it.
func (n *Node) Attrs() map[string]string {
	if n == nil {
		return nil
	}
	return n.attrs
}

// Child returns the named child node, or nil. For a list node the lookup
// descends into the first item, matching how the platform's single-element
// responses are read.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	if n.kind == KindList {
		if len(n.items) == 0 {
			return nil
		}
		return n.items[0].Child(name)
	}
	return n.children[name]
}

// Has reports whether the named child exists.
func (n *Node) Has(name string) bool {
	return n.Child(name) != nil
}

// ChildText returns the text of the named child, or "" when absent.
func (n *Node) ChildText(name string) string {
	return n.Child(name).Text()
}

// Items normalizes single-or-list access: a list node returns its items,
// any other non-nil node returns itself as a one-element slice.
func (n *Node) Items() []*Node {
	if n == nil {
		return nil
	}
	if n.kind == KindList {
		return n.items
	}
	return []*Node{n}
}

// Len returns the number of items a list carries, 1 for a single node.
func (n *Node) Len() int {
	return len(n.Items())
}

// Document is an immutable parsed response, a mapping from top-level tag
// name (conventionally a single "message" wrapper) to its node tree.
type Document struct {
	root *Node
}

// Root returns the synthetic root whose children are the top-level tags.
func (d *Document) Root() *Node {
	if d == nil {
		return nil
	}
	return d.root
}

// Empty reports whether the document has no top-level elements.
func (d *Document) Empty() bool {
	return d == nil || d.root == nil || len(d.root.children) == 0
}

// Lookup walks a path of child names from the root, descending into the
// first item of any list encountered. Returns nil when the path is absent.
func (d *Document) Lookup(path ...string) *Node {
	n := d.Root()
	for _, name := range path {
		n = n.Child(name)
		if n == nil {
			return nil
		}
	}
	return n
}

// Text returns the text at a path, or "" when absent.
func (d *Document) Text(path ...string) string {
	return d.Lookup(path...).Text()
}
