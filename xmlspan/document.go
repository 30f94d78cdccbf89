package xmlspan

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrNoRootElement is returned when the input contains no element at all.
	ErrNoRootElement = errors.New("xmlspan: document has no root element")

	// ErrMultipleRoots is returned when a second top-level element follows
	// the document root.
	ErrMultipleRoots = errors.New("xmlspan: document has multiple root elements")
)

// Document owns a parsed XML tree and the path it was loaded from. The path
// is mutable: reassigning it (a "save as") invalidates every node's cached
// Location, which is then transparently recomputed on the next query.
type Document struct {
	path string
	root *Element

	// prolog and epilog hold the nodes outside the root element
	// (declaration, doctype, comments, trailing whitespace).
	prolog []Node
	epilog []Node
}

// NewDocument returns an empty document with the given path.
func NewDocument(path string) *Document {
	return &Document{path: path}
}

// Path returns the document's current path. It is empty for documents loaded
// from an anonymous stream.
func (d *Document) Path() string { return d.path }

// SetPath reassigns the document to a new path. Node locations queried after
// the change carry the new path.
func (d *Document) SetPath(path string) { d.path = path }

// Root returns the document's root element, nil before a successful load.
func (d *Document) Root() *Element { return d.root }

// Load parses r into a document associated with path. Every element and
// attribute in the resulting tree carries its source span.
func Load(r io.Reader, path string) (*Document, error) {
	d := NewDocument(path)
	if err := d.load(NewReader(r)); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadString parses s as an anonymous (pathless) document.
func LoadString(s string) (*Document, error) {
	return Load(strings.NewReader(s), "")
}

// LoadFile parses the named file.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, path)
}

// LoadTokens parses an already constructed token stream, for callers that
// bring their own reader. The token reader must expose InputOffset or
// ErrIncompatibleTokenReader is returned; with no byte stream to track, all
// node positions are zero, the same degradation as stream-loaded input.
func LoadTokens(tr xml.TokenReader, path string) (*Document, error) {
	rd, err := Wrap(tr, nil)
	if err != nil {
		return nil, err
	}
	d := NewDocument(path)
	if err := d.load(rd); err != nil {
		return nil, err
	}
	return d, nil
}

// load drives the reader token by token and builds the tree. Node creation,
// end-position refinement and close notifications all happen synchronously
// on the calling goroutine, in document order.
func (d *Document) load(rd *Reader) error {
	var stack []*Element
	top := func() *Element {
		if len(stack) > 0 {
			return stack[len(stack)-1]
		}
		return nil
	}

	rd.OnTagClose(func(ev TagClose) {
		if el := top(); el != nil && el.Name == ev.Name {
			el.setEnd(ev.EndLine, ev.EndCol)
		}
	})

	addLoose := func(n Node) {
		if d.root == nil {
			d.prolog = append(d.prolog, n)
		} else {
			d.epilog = append(d.epilog, n)
		}
	}

	for {
		tok, err := rd.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("xmlspan: parse %s: %w", d.describe(), err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			line, col := rd.Pos()
			el := NewElementAt(t.Name, line, col)
			d.addAttrs(el, t, rd)
			switch {
			case top() != nil:
				top().AppendChild(el)
			case d.root == nil:
				setDoc(el, d)
				d.root = el
			default:
				return fmt.Errorf("xmlspan: parse %s: %w: second root <%s> at %d:%d", d.describe(), ErrMultipleRoots, el.FullName(), el.Span().StartLine, el.Span().StartCol)
			}
			stack = append(stack, el)

		case xml.EndElement:
			el := top()
			if el == nil || el.Name != t.Name {
				line, col := rd.Pos()
				return fmt.Errorf("xmlspan: parse %s: unexpected </%s> at %d:%d", d.describe(), fullName(t.Name), line, col)
			}
			stack = stack[:len(stack)-1]
			// An end element synthesized from a self-closing tag consumes
			// no input; an explicit close pair keeps the element expanded.
			if start, end := rd.TokenSpan(); start != end {
				el.selfClosing = false
			}

		case xml.CharData:
			n := &Text{Data: string(t)}
			if el := top(); el != nil {
				el.AppendChild(n)
			} else {
				addLoose(n)
			}

		case xml.Comment:
			n := &Comment{Data: string(t)}
			if el := top(); el != nil {
				el.AppendChild(n)
			} else {
				addLoose(n)
			}

		case xml.ProcInst:
			n := &ProcInst{Target: t.Target, Inst: string(t.Inst)}
			if el := top(); el != nil {
				el.AppendChild(n)
			} else {
				addLoose(n)
			}

		case xml.Directive:
			n := &Directive{Data: string(t)}
			if el := top(); el != nil {
				el.AppendChild(n)
			} else {
				addLoose(n)
			}
		}
	}

	if len(stack) > 0 {
		return fmt.Errorf("xmlspan: parse %s: unexpected EOF, <%s> not closed", d.describe(), top().FullName())
	}
	if d.root == nil {
		return ErrNoRootElement
	}
	return nil
}

// addAttrs creates positioned attribute nodes for a start tag. Attribute
// positions are not part of the tokenizer's contract; they are recovered by
// scanning the raw tag bytes.
func (d *Document) addAttrs(el *Element, t xml.StartElement, rd *Reader) {
	var offsets map[string]int64
	if start, end := rd.TokenSpan(); end > start {
		if raw := rd.RawBytes(start, end); raw != nil {
			offsets = scanAttrOffsets(raw, start)
		}
	}
	for _, a := range t.Attr {
		line, col := 0, 0
		if off, ok := offsets[fullName(a.Name)]; ok {
			line, col = rd.PositionAt(off)
		}
		el.AddAttr(NewAttrAt(a.Name, a.Value, line, col))
	}
}

func (d *Document) describe() string {
	if d.path == "" {
		return "<stream>"
	}
	return d.path
}

// WriteTo serializes the document. Round-trip output is not guaranteed to be
// byte-identical to the input; the one invariant honored is the element
// serialization mode: elements flagged self-closing are written as a single
// tag, everything else as an open+close pair.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for _, n := range d.prolog {
		writeNode(&sb, n)
	}
	if d.root != nil {
		writeElement(&sb, d.root)
	}
	for _, n := range d.epilog {
		writeNode(&sb, n)
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func (d *Document) String() string {
	var sb strings.Builder
	_, _ = d.WriteTo(&sb)
	return sb.String()
}

func writeElement(sb *strings.Builder, el *Element) {
	sb.WriteByte('<')
	sb.WriteString(el.FullName())
	for _, a := range el.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.FullName())
		sb.WriteString(`="`)
		sb.WriteString(escapeAttr(a.Value))
		sb.WriteByte('"')
	}
	if el.SelfClosing() && len(el.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteByte('>')
	for _, c := range el.Children {
		writeNode(sb, c)
	}
	sb.WriteString("</")
	sb.WriteString(el.FullName())
	sb.WriteByte('>')
}

func writeNode(sb *strings.Builder, n Node) {
	switch t := n.(type) {
	case *Element:
		writeElement(sb, t)
	case *Text:
		sb.WriteString(escapeText(t.Data))
	case *Comment:
		sb.WriteString("<!--")
		sb.WriteString(t.Data)
		sb.WriteString("-->")
	case *ProcInst:
		sb.WriteString("<?")
		sb.WriteString(t.Target)
		if t.Inst != "" {
			sb.WriteByte(' ')
			sb.WriteString(t.Inst)
		}
		sb.WriteString("?>")
	case *Directive:
		sb.WriteString("<!")
		sb.WriteString(t.Data)
		sb.WriteString(">")
	}
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
