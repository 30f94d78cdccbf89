package xmlspan

import "fmt"

// Location is the externally visible source location of a node: the owning
// document's path plus the node's span at the time of computation.
//
// Location is a comparable value; equality is exact-field comparison,
// including a case-sensitive path. Case-insensitive path matching is a cache
// validity rule (see Element.Location), not a property of the value itself.
type Location struct {
	Path      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// NewPointLocation returns a Location whose end equals its start. Used when
// only a single coordinate matters, e.g. for attributes.
func NewPointLocation(path string, line, col int) Location {
	return Location{
		Path:      path,
		StartLine: line,
		StartCol:  col,
		EndLine:   line,
		EndCol:    col,
	}
}

// NewSpanLocation returns a Location with explicit end coordinates.
func NewSpanLocation(path string, span Span) Location {
	return Location{
		Path:      path,
		StartLine: span.StartLine,
		StartCol:  span.StartCol,
		EndLine:   span.EndLine,
		EndCol:    span.EndCol,
	}
}

// Span returns the location's range without the path.
func (l Location) Span() Span {
	return Span{
		StartLine: l.StartLine,
		StartCol:  l.StartCol,
		EndLine:   l.EndLine,
		EndCol:    l.EndCol,
	}
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", l.Path, l.StartLine, l.StartCol, l.EndLine, l.EndCol)
}
