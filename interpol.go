package msbuild

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/compiler"
	"github.com/expr-lang/expr/conf"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

const (
	eof        rune = -1
	leftDelim       = "$("
	rightDelim      = ")"
)

// Interpolate converts a string with $()-style property references to a
// compiled program evaluated against the property environment.
// If the string is a simple text with no references, it returns (nil, nil).
// References are full expressions, so `$(Configuration)` and
// `$(Platform + "-" + Configuration)` both work; undefined properties expand
// to the empty string.
func Interpolate(s string, props map[string]any) (*vm.Program, error) {
	l := &lexer{
		input: s,
		items: make([]item, 0),
	}

	for state := lexText; state != nil; {
		state = state(l)
	}

	if l.items[0].typ == itemError {
		return nil, fmt.Errorf("%s", l.items[0].val)
	} else if l.items[0].typ == itemEOF {
		// Empty input.
		return nil, nil
	} else if l.items[0].typ == itemText && len(l.items) == 2 && l.items[1].typ == itemEOF {
		// A single text item followed by EOF: nothing to interpolate.
		return nil, nil
	}

	in := make([]ast.Node, 0, len(l.items))

loop:
	for _, item := range l.items {
		switch item.typ {
		case itemError:
			return nil, fmt.Errorf("%s", item.val)
		case itemEOF:
			break loop
		case itemText:
			in = append(in, &ast.StringNode{Value: item.val})
		case itemExpr:
			p, err := expr.Compile(item.val,
				expr.Env(props),
				expr.AllowUndefinedVariables())
			if err != nil {
				return nil, err
			}
			in = append(in, p.Node())
		}
	}

	tree := &parser.Tree{
		Node: &ast.CallNode{
			Callee: &ast.IdentifierNode{
				Value: "combine",
			},
			Arguments: in,
		},
	}

	c := conf.CreateNew()

	opts := []expr.Option{
		expr.Env(props),
		expr.AllowUndefinedVariables(),
		expr.Function("combine", func(args ...any) (any, error) {
			var sb strings.Builder
			for _, arg := range args {
				if arg == nil {
					continue
				}
				sb.WriteString(fmt.Sprint(arg))
			}
			return sb.String(), nil
		}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return compiler.Compile(tree, c)
}

// Implementation of the lexer based on https://go.dev/talks/2011/lex.slide

type itemType int

const (
	itemError itemType = iota
	itemText
	itemExpr
	itemEOF
)

type item struct {
	typ itemType
	val string
}

type stateFn func(*lexer) stateFn

// lexer holds the state of the scanner.
type lexer struct {
	input      string // the string being scanned
	start      int    // start position of this item.
	pos        int    // current position in the input.
	width      int    // width of last rune read from input.
	parenDepth int    // nesting depth of parentheses inside a reference
	items      []item
}

// emit passes an item back to the client.
func (l *lexer) emit(t itemType) stateFn {
	l.items = append(l.items, item{t, l.input[l.start:l.pos]})
	l.start = l.pos
	return nil
}

// errorf returns an error token and terminates the scan
// by passing back a nil pointer that will be the next
// state, terminating the run loop.
func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.items = append(l.items, item{
		itemError,
		fmt.Sprintf(format, args...),
	})
	return nil
}

func (l *lexer) scanString(quote rune) {
	for ch := l.next(); ch != quote; ch = l.next() {
		if ch == '\n' || ch == eof {
			l.errorf("unterminated string")
			return
		}
		if ch == '\\' {
			l.next()
		}
	}
}

// next returns the next rune in the input.
func (l *lexer) next() (r rune) {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, l.width = utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += l.width
	return r
}

// ignore skips over the pending input before this point.
func (l *lexer) ignore() {
	l.start = l.pos
}

// atRightDelim reports whether the lexer is at the closing parenthesis of
// the reference.
func (l *lexer) atRightDelim() bool {
	return l.parenDepth == 0 && strings.HasPrefix(l.input[l.pos:], rightDelim)
}

func lexText(l *lexer) stateFn {
	if x := strings.Index(l.input[l.pos:], leftDelim); x >= 0 {
		if x > 0 {
			l.pos += x
			l.emit(itemText)
		}
		return lexLeftDelim
	}
	l.pos = len(l.input)
	// Correctly reached EOF.
	if l.pos > l.start {
		l.emit(itemText)
	}
	return l.emit(itemEOF)
}

func lexLeftDelim(l *lexer) stateFn {
	l.pos += len(leftDelim)
	l.ignore()
	return lexExpr // Now inside $( ).
}

func lexRightDelim(l *lexer) stateFn {
	l.pos += len(rightDelim)
	l.ignore()
	return lexText
}

func lexExpr(l *lexer) stateFn {
	if l.atRightDelim() {
		l.emit(itemExpr)
		return lexRightDelim
	}
	switch r := l.next(); {
	case r == eof:
		return l.errorf("unclosed property reference")
	case r == '\'' || r == '"':
		l.scanString(r)
	case r == '(':
		l.parenDepth++
	case r == ')':
		l.parenDepth--
	}
	return lexExpr
}
