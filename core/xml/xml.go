// Package xml turns markup documents into the element trees walked by the
// converter, and offers XPath selection for surveying a corpus.
//
// Security Notes:
//   - The xmlquery library is used for parsing, which uses Go's encoding/xml
//     internally and inherits its security properties: external entities are
//     never fetched.
package xml

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Attr is one attribute of an element, in document order.
type Attr struct {
	Space string // Namespace prefix or URI, empty when unqualified
	Name  string // Local name
	Value string
}

// QName returns the attribute name as it appeared in the source,
// prefixed with its namespace when it had one.
func (a Attr) QName() string {
	if a.Space == "" {
		return a.Name
	}
	return a.Space + ":" + a.Name
}

// Element is an immutable view of one markup element.
type Element struct {
	Tag      string // Local tag name
	Space    string // Namespace prefix, empty when unqualified
	Attrs    []Attr
	Text     string // Text before the first child node
	HasText  bool   // False when the element has no leading text at all
	Tail     string // Text after the end tag, up to the next sibling node
	Children []*Element
}

// Attr returns the value of the attribute with the given local name.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Node represents an XML node returned from an XPath query.
type Node struct {
	node *xmlquery.Node
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseElement parses XML data and returns its root element tree.
func ParseElement(data []byte) (*Element, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parsing XML: document has no root element")
	}
	return root, nil
}

// Root returns the root element of the document.
func (d *Document) Root() *Element {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return convert(child)
		}
	}
	return nil
}

// convert builds an Element from an xmlquery element node. Comments,
// processing instructions and text nodes never become children.
func convert(n *xmlquery.Node) *Element {
	e := &Element{
		Tag:   n.Data,
		Space: n.Prefix,
	}
	for _, a := range n.Attr {
		if isNamespaceDecl(a) {
			continue
		}
		e.Attrs = append(e.Attrs, Attr{Space: a.Name.Space, Name: a.Name.Local, Value: a.Value})
	}

	e.Text, e.HasText = leadingText(n.FirstChild)

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		ce := convert(child)
		ce.Tail, _ = leadingText(child.NextSibling)
		e.Children = append(e.Children, ce)
	}
	return e
}

// leadingText concatenates the run of text nodes starting at n.
func leadingText(n *xmlquery.Node) (string, bool) {
	var sb strings.Builder
	found := false
	for ; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.TextNode && n.Type != xmlquery.CharDataNode {
			break
		}
		found = true
		sb.WriteString(n.Data)
	}
	return sb.String(), found
}

func isNamespaceDecl(a xmlquery.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}

	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// Name returns the element name.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns all text content of the node and its descendants.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Attributes returns the attributes of the node in document order,
// namespace declarations excluded.
func (n *Node) Attributes() []Attr {
	if n.node == nil {
		return nil
	}
	var attrs []Attr
	for _, a := range n.node.Attr {
		if isNamespaceDecl(a) {
			continue
		}
		attrs = append(attrs, Attr{Space: a.Name.Space, Name: a.Name.Local, Value: a.Value})
	}
	return attrs
}
