package xmlspan

import (
	"encoding/xml"
	"strings"
	"sync/atomic"
)

const whitespace = " \t\r\n\f"

// Node is implemented by every member of a document tree.
type Node interface {
	Parent() *Element
}

// Element is an XML element carrying a source span. The start position is
// fixed at construction; the end position is initialized equal to the start
// and refined exactly once, when the close notification for the element
// arrives during loading.
type Element struct {
	Name     xml.Name
	Attrs    []*Attr
	Children []Node

	parent *Element
	doc    *Document

	span        Span
	endSet      bool
	selfClosing bool

	// cache holds the last computed Location; it is valid only while its
	// path matches the owning document's current path (case-insensitively).
	cache atomic.Pointer[Location]
}

// NewElement returns an element without positional information: all span
// fields are zero and HasLineInfo reports false.
func NewElement(name xml.Name) *Element {
	return &Element{Name: name, selfClosing: true}
}

// NewElementAt returns an element starting at the given 1-based position.
// Line-info XML readers report the column of the first character of the tag
// name; the stored column is shifted one left to point at the opening angle
// bracket, which is always adjacent in well-formed input. A zero column means
// no positional info (stream input) and is left unadjusted.
func NewElementAt(name xml.Name, line, col int) *Element {
	if col != 0 {
		col--
	}
	return &Element{
		Name:        name,
		selfClosing: true,
		span: Span{
			StartLine: line,
			StartCol:  col,
			EndLine:   line,
			EndCol:    col,
		},
	}
}

func (e *Element) Parent() *Element { return e.parent }

// Span returns the element's source range.
func (e *Element) Span() Span { return e.span }

// HasLineInfo reports whether the element carries positional information.
func (e *Element) HasLineInfo() bool { return e.span.StartLine != 0 }

// Location returns the element's location computed against the owning
// document's current path. The result is cached; the cache is discarded and
// the location transparently recomputed whenever the document's path no
// longer matches. Callers must rely on value equality only, never identity.
func (e *Element) Location() Location {
	path := documentPath(e.doc)
	if loc := e.cache.Load(); loc != nil && strings.EqualFold(loc.Path, path) {
		return *loc
	}
	loc := NewSpanLocation(path, e.span)
	e.cache.Store(&loc)
	return loc
}

// setEnd refines the element's end position from its close notification.
// The notification is delivered exactly once per element; later calls are
// ignored.
func (e *Element) setEnd(line, col int) {
	if e.endSet {
		return
	}
	e.span.EndLine = line
	e.span.EndCol = col
	e.endSet = true
}

// SelfClosing reports whether the element serializes as a self-closing tag
// rather than an open+close pair.
func (e *Element) SelfClosing() bool { return e.selfClosing }

// FullName returns the element's name as written, prefix included.
func (e *Element) FullName() string { return fullName(e.Name) }

// AppendChild attaches child as the last child of e. An element with
// children always serializes as an open+close pair.
func (e *Element) AppendChild(child Node) {
	setParent(child, e)
	setDoc(child, e.doc)
	e.Children = append(e.Children, child)
	e.selfClosing = false
}

// RemoveChild detaches child from e and reports whether it was found.
// Removing the child that leaves the element empty switches the element to
// self-closing serialization mode; other removals do not.
func (e *Element) RemoveChild(child Node) bool {
	for i, c := range e.Children {
		if c == child {
			e.Children = append(e.Children[:i], e.Children[i+1:]...)
			setParent(child, nil)
			if len(e.Children) == 0 {
				e.selfClosing = true
			}
			return true
		}
	}
	return false
}

// AddAttr attaches an attribute to e.
func (e *Element) AddAttr(a *Attr) {
	a.parent = e
	a.doc = e.doc
	e.Attrs = append(e.Attrs, a)
}

// Attr returns the value of the named attribute (as written, prefix
// included) and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if fullName(a.Name) == name {
			return a.Value, true
		}
	}
	return "", false
}

// ChildElements returns the element children of e, in document order.
func (e *Element) ChildElements() []*Element {
	var els []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			els = append(els, el)
		}
	}
	return els
}

// Text returns the concatenated character data directly under e.
func (e *Element) Text() string {
	var sb strings.Builder
	for _, c := range e.Children {
		if t, ok := c.(*Text); ok {
			sb.WriteString(t.Data)
		}
	}
	return sb.String()
}

// Attr is an XML attribute carrying a source position. Attributes are
// point-like for reporting purposes: their end position permanently equals
// their start position and never receives a refinement.
type Attr struct {
	Name  xml.Name
	Value string

	parent *Element
	doc    *Document

	span  Span
	cache atomic.Pointer[Location]
}

// NewAttr returns an attribute without positional information.
func NewAttr(name xml.Name, value string) *Attr {
	return &Attr{Name: name, Value: value}
}

// NewAttrAt returns an attribute positioned at the given 1-based start.
// Unlike elements, no column adjustment is applied: the reported position of
// an attribute already points at its first character.
func NewAttrAt(name xml.Name, value string, line, col int) *Attr {
	return &Attr{
		Name:  name,
		Value: value,
		span: Span{
			StartLine: line,
			StartCol:  col,
			EndLine:   line,
			EndCol:    col,
		},
	}
}

func (a *Attr) Parent() *Element { return a.parent }

// Span returns the attribute's (point-like) source range.
func (a *Attr) Span() Span { return a.span }

// HasLineInfo reports whether the attribute carries positional information.
func (a *Attr) HasLineInfo() bool { return a.span.StartLine != 0 }

// Location returns the attribute's location computed against the owning
// document's current path, with the same caching behavior as
// Element.Location.
func (a *Attr) Location() Location {
	path := documentPath(a.doc)
	if loc := a.cache.Load(); loc != nil && strings.EqualFold(loc.Path, path) {
		return *loc
	}
	loc := NewPointLocation(path, a.span.StartLine, a.span.StartCol)
	a.cache.Store(&loc)
	return loc
}

// FullName returns the attribute's name as written, prefix included.
func (a *Attr) FullName() string { return fullName(a.Name) }

var (
	_ LineInfo = (*Element)(nil)
	_ LineInfo = (*Attr)(nil)
)

// Text is a character data node.
type Text struct {
	Data   string
	parent *Element
}

func (t *Text) Parent() *Element { return t.parent }

func (t *Text) IsWhitespace() bool {
	return strings.TrimLeft(t.Data, whitespace) == ""
}

// Comment is a <!-- --> node.
type Comment struct {
	Data   string
	parent *Element
}

func (c *Comment) Parent() *Element { return c.parent }

// ProcInst is a <?target inst?> node.
type ProcInst struct {
	Target string
	Inst   string
	parent *Element
}

func (p *ProcInst) Parent() *Element { return p.parent }

// Directive is a <!DOCTYPE ...>-style node.
type Directive struct {
	Data   string
	parent *Element
}

func (d *Directive) Parent() *Element { return d.parent }

func fullName(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

func documentPath(d *Document) string {
	if d == nil {
		return ""
	}
	return d.Path()
}

func setParent(n Node, p *Element) {
	switch t := n.(type) {
	case *Element:
		t.parent = p
	case *Text:
		t.parent = p
	case *Comment:
		t.parent = p
	case *ProcInst:
		t.parent = p
	case *Directive:
		t.parent = p
	}
}

func setDoc(n Node, d *Document) {
	el, ok := n.(*Element)
	if !ok {
		return
	}
	el.doc = d
	for _, a := range el.Attrs {
		a.doc = d
	}
	for _, c := range el.Children {
		setDoc(c, d)
	}
}
