package xmlspan

import (
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// NodeError wraps an error with the location of the offending node and a
// rendered excerpt of the surrounding tree, for diagnostics that want to show
// the user where in the document something went wrong.
type NodeError struct {
	err error
	loc Location
	doc *etree.Element
}

func NewNodeError(el *Element, err error) *NodeError {
	return &NodeError{
		err: err,
		loc: el.Location(),
		doc: buildErrorContext(el),
	}
}

func (e *NodeError) Error() string {
	return e.loc.String() + ": " + e.err.Error()
}

func (e *NodeError) Unwrap() error {
	return e.err
}

// Location returns the offending node's location at the time the error was
// created.
func (e *NodeError) Location() Location {
	return e.loc
}

// Context returns the markup excerpt around the offending node.
func (e *NodeError) Context() string {
	return renderErrorContext(e.doc)
}

// errorContextBuilder is a type to organize helper functions for building error context trees.
type errorContextBuilder struct{}

func (b errorContextBuilder) siblings(n Node) ([]Node, int) {
	p := n.Parent()
	if p == nil {
		return nil, -1
	}
	for i, c := range p.Children {
		if c == n {
			return p.Children, i
		}
	}
	return nil, -1
}

func (b errorContextBuilder) addPrevSiblings(doc *etree.Element, n Node) {
	siblings, i := b.siblings(n)
	if i < 0 {
		return
	}

	for j, c := i-1, 0; j >= 0; j-- {
		// skip white space text nodes
		if t, ok := siblings[j].(*Text); ok && t.IsWhitespace() {
			continue
		}
		if c == 2 {
			doc.AddChild(etree.NewText("..."))
			break
		} else {
			b.addNode(doc, siblings[j])
			c++
		}
	}
}

func (b errorContextBuilder) addNextSiblings(doc *etree.Element, n Node) {
	siblings, i := b.siblings(n)
	if i < 0 {
		return
	}

	for j, c := i+1, 0; j < len(siblings); j++ {
		// skip white space text nodes
		if t, ok := siblings[j].(*Text); ok && t.IsWhitespace() {
			continue
		}
		if c == 2 {
			doc.AddChild(etree.NewText("..."))
			break
		} else {
			b.addNode(doc, siblings[j])
			c++
		}
	}
}

func (b errorContextBuilder) addNode(doc *etree.Element, n Node) {
	switch el := n.(type) {
	case *Element:
		clone := etree.NewElement(el.FullName())
		clone.Attr = make([]etree.Attr, 0, len(el.Attrs))
		for _, a := range el.Attrs {
			clone.Attr = append(clone.Attr, etree.Attr{Space: a.Name.Space, Key: a.Name.Local, Value: a.Value})
		}
		if len(el.ChildElements()) > 0 {
			clone.AddChild(etree.NewText("..."))
		} else {
			clone.SetText(el.Text())
		}
		doc.AddChild(clone)
	case *Text:
		if !el.IsWhitespace() {
			doc.AddChild(etree.NewText(el.Data))
		}
	}
}

func (b errorContextBuilder) wrapParent(doc *etree.Element, n Node) *etree.Element {
	parent := n.Parent()
	if parent == nil {
		return doc // do not wrap the root element
	}

	doc.Space = parent.Name.Space
	doc.Tag = parent.Name.Local
	doc.Attr = make([]etree.Attr, 0, len(parent.Attrs))
	for _, a := range parent.Attrs {
		doc.Attr = append(doc.Attr, etree.Attr{Space: a.Name.Space, Key: a.Name.Local, Value: a.Value})
	}

	wrapper := &etree.Element{}
	wrapper.AddChild(doc)

	return wrapper
}

// buildErrorContext creates an XML tree around the node n to provide context for an error.
func buildErrorContext(n Node) *etree.Element {
	doc := &etree.Element{}
	b := errorContextBuilder{}
	b.addPrevSiblings(doc, n)
	b.addNode(doc, n)
	b.addNextSiblings(doc, n)
	doc = b.wrapParent(doc, n)
	return doc
}

func renderErrorContext(doc *etree.Element) string {
	dst := &html.Node{Type: html.DocumentNode}

	// traverse the etree.Element and build the html.Node
	var render func(*html.Node, *etree.Element)
	render = func(dst *html.Node, src *etree.Element) {
		for _, c := range src.Child {
			switch t := c.(type) {
			case *etree.Element:
				n := &html.Node{Type: html.ElementNode, Data: t.FullTag()}
				for _, a := range t.Attr {
					n.Attr = append(n.Attr, html.Attribute{Key: a.FullKey(), Val: a.Value})
				}
				dst.AppendChild(n)
				render(n, t)
			case *etree.CharData:
				dst.AppendChild(&html.Node{Type: html.TextNode, Data: t.Data})
			}
		}
	}

	render(dst, doc)

	var buf strings.Builder
	_ = html.Render(&buf, dst)

	return buf.String()
}
