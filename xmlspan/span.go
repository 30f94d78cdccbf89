package xmlspan

// Span represents the source range a parsed construct occupies.
// Lines and columns are 1-based; 0 means "unknown", which is what nodes
// built from a non-seekable stream (no file backing) carry.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// IsZero returns true if the span is uninitialized.
func (s Span) IsZero() bool {
	return s.StartLine == 0 && s.StartCol == 0 && s.EndLine == 0 && s.EndCol == 0
}

// IsPoint returns true if the span's end equals its start.
func (s Span) IsPoint() bool {
	return s.StartLine == s.EndLine && s.StartCol == s.EndCol
}

// LineInfo is the line/column capability every located node exposes.
type LineInfo interface {
	// Span returns the node's source range. The end equals the start for
	// point-like nodes (attributes, unrefined elements).
	Span() Span

	// HasLineInfo reports whether the node carries any positional
	// information. It is true iff the start line is non-zero.
	HasLineInfo() bool

	// Location returns the node's location within its owning document,
	// computed against the document's current path.
	Location() Location
}
