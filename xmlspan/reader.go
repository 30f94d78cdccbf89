package xmlspan

import (
	"encoding/xml"
	"errors"
	"io"
	"sort"
)

// ErrIncompatibleTokenReader is returned when a wrapped token reader does not
// expose its input offset. Without it the end of a closed element cannot be
// recovered, so the wrapper fails at construction instead of silently
// reporting wrong positions later.
var ErrIncompatibleTokenReader = errors.New("xmlspan: token reader does not expose input offsets")

// TagClose is the node-complete notification: it is delivered synchronously,
// exactly once per element, immediately after the element's closing tag has
// been consumed and before Token returns.
//
// Start line/column are the recorded start position of the matching open tag
// (1-based, pointing at the `<`). The end column is the absolute stream
// offset minus the offset of the line it falls on, i.e. the zero-based column
// of the character immediately following the closing tag.
type TagClose struct {
	Name      xml.Name
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// CloseHandler observes TagClose notifications. Handlers run on the calling
// goroutine, in document order: inner elements close before outer ones.
type CloseHandler func(TagClose)

// offsetReader is the part of the wrapped reader's public contract that the
// end-position recovery relies on. *xml.Decoder satisfies it.
type offsetReader interface {
	InputOffset() int64
}

type openTag struct {
	name xml.Name
	line int
	col  int
}

// Reader wraps a streaming XML token reader and recovers the position of the
// end of each just-closed element, which the wrapped reader does not provide
// on its own.
type Reader struct {
	next    func() (xml.Token, error)
	off     offsetReader
	src     *TrackingReader
	onClose CloseHandler

	// stack of open elements; the top is the innermost open tag.
	stack []openTag

	tok      xml.Token
	tokStart int64 // offset of the first byte of the current token
	tokEnd   int64 // offset just past the current token
}

// NewReader returns a Reader tokenizing r with an xml.Decoder routed through
// a position-tracking source. Tokens are read raw: namespace prefixes are
// preserved as written, which the serializer relies on.
func NewReader(r io.Reader) *Reader {
	src := NewTrackingReader(r)
	dec := xml.NewDecoder(src)
	return &Reader{
		next: dec.RawToken,
		off:  dec,
		src:  src,
	}
}

// Wrap adapts an existing token reader. The reader must expose
// InputOffset (stdlib *xml.Decoder does), otherwise end positions cannot be
// recovered and ErrIncompatibleTokenReader is returned. src may be nil when
// the underlying byte stream is not available; all positions then degrade to
// zero, the "unknown" value.
func Wrap(tr xml.TokenReader, src *TrackingReader) (*Reader, error) {
	off, ok := tr.(offsetReader)
	if !ok {
		return nil, ErrIncompatibleTokenReader
	}
	return &Reader{
		next: tr.Token,
		off:  off,
		src:  src,
	}, nil
}

// OnTagClose registers the close notification handler. A nil handler
// disables delivery.
func (r *Reader) OnTagClose(fn CloseHandler) {
	r.onClose = fn
}

// Token behaves exactly like the wrapped reader's Token, with one addition:
// if the token just produced is an end element, the close notification is
// delivered before Token returns.
func (r *Reader) Token() (xml.Token, error) {
	r.tokStart = r.off.InputOffset()
	tok, err := r.next()
	if err != nil {
		return tok, err
	}
	r.tokEnd = r.off.InputOffset()
	r.tok = tok

	switch t := tok.(type) {
	case xml.StartElement:
		line, col := r.position(r.tokStart)
		r.stack = append(r.stack, openTag{name: t.Name, line: line, col: col})
	case xml.EndElement:
		r.notifyClose(t)
	}
	return tok, nil
}

// Pos returns the start position of the current token, 1-based. For start
// elements it points at the first character of the tag name, matching the
// convention of line-info XML readers; node constructors compensate with a
// −1 column adjustment to land on the opening angle bracket.
func (r *Reader) Pos() (line, col int) {
	if _, ok := r.tok.(xml.StartElement); ok {
		return r.position(r.tokStart + 1)
	}
	return r.position(r.tokStart)
}

// TokenSpan returns the byte offsets [start, end) of the current token.
// Both are equal for end elements synthesized from a self-closing tag.
func (r *Reader) TokenSpan() (start, end int64) {
	return r.tokStart, r.tokEnd
}

// RawBytes returns the retained input bytes in [from, to), or nil when the
// byte stream is not being tracked.
func (r *Reader) RawBytes(from, to int64) []byte {
	if r.src == nil {
		return nil
	}
	return r.src.Bytes(from, to)
}

// PositionAt maps an absolute byte offset to a 1-based line and column.
func (r *Reader) PositionAt(off int64) (line, col int) {
	return r.position(off)
}

func (r *Reader) position(off int64) (line, col int) {
	if r.src == nil {
		return 0, 0
	}
	return r.src.Position(off)
}

func (r *Reader) notifyClose(t xml.EndElement) {
	var open openTag
	if n := len(r.stack); n > 0 {
		// Pop even on a name mismatch so a malformed document cannot grow
		// the stack unbounded; the document loader reports the mismatch.
		open = r.stack[n-1]
		r.stack = r.stack[:n-1]
	}
	if r.onClose == nil {
		return
	}
	ev := TagClose{
		Name:      t.Name,
		StartLine: open.line,
		StartCol:  open.col,
	}
	if r.src != nil {
		ev.EndLine = r.src.LineAt(r.tokEnd)
		ev.EndCol = int(r.tokEnd - r.src.LineStart(ev.EndLine))
	}
	r.onClose(ev)
}

// TrackingReader forwards reads while retaining the bytes read so far and
// recording the offset of every line start. It is the source of truth for
// offset-to-position mapping; columns are counted in bytes.
type TrackingReader struct {
	r          io.Reader
	buf        []byte
	lineStarts []int64
}

func NewTrackingReader(r io.Reader) *TrackingReader {
	return &TrackingReader{r: r, lineStarts: []int64{0}}
}

func (t *TrackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	base := int64(len(t.buf))
	t.buf = append(t.buf, p[:n]...)
	for i, b := range p[:n] {
		if b == '\n' {
			t.lineStarts = append(t.lineStarts, base+int64(i)+1)
		}
	}
	return n, err
}

// LineAt returns the 1-based line number containing the given offset.
func (t *TrackingReader) LineAt(off int64) int {
	return sort.Search(len(t.lineStarts), func(i int) bool {
		return t.lineStarts[i] > off
	})
}

// LineStart returns the offset of the first byte of the given 1-based line.
func (t *TrackingReader) LineStart(line int) int64 {
	if line < 1 || line > len(t.lineStarts) {
		return 0
	}
	return t.lineStarts[line-1]
}

// Position returns the 1-based line and column of the given offset.
func (t *TrackingReader) Position(off int64) (line, col int) {
	line = t.LineAt(off)
	col = int(off-t.LineStart(line)) + 1
	return line, col
}

// Bytes returns the retained input in [from, to), or nil if the range is out
// of bounds.
func (t *TrackingReader) Bytes(from, to int64) []byte {
	if from < 0 || to > int64(len(t.buf)) || from > to {
		return nil
	}
	return t.buf[from:to]
}
