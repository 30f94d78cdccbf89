package msbuild

import (
	"testing"

	"github.com/expr-lang/expr/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runInterpol(t *testing.T, s string, props map[string]any) string {
	t.Helper()
	prog, err := Interpolate(s, props)
	require.NoError(t, err)
	if prog == nil {
		return s
	}
	out, err := vm.Run(prog, props)
	require.NoError(t, err)
	if out == nil {
		return ""
	}
	return out.(string)
}

func TestInterpolatePlainTextShortCircuits(t *testing.T) {
	for _, input := range []string{"no references here", "", "a)b", "$ (not a ref)"} {
		prog, err := Interpolate(input, nil)
		require.NoError(t, err, "input %q", input)
		assert.Nil(t, prog, "input %q", input)
	}

	// A property reference does produce a program.
	prog, err := Interpolate("$(A)", map[string]any{"A": "x"})
	require.NoError(t, err)
	assert.NotNil(t, prog)
}

func TestInterpolate(t *testing.T) {
	props := map[string]any{
		"Configuration": "Debug",
		"Platform":      "x64",
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lone reference", input: "$(Configuration)", want: "Debug"},
		{name: "embedded", input: "bin/$(Configuration)/out", want: "bin/Debug/out"},
		{name: "two references", input: "$(Platform)-$(Configuration)", want: "x64-Debug"},
		{name: "expression", input: `$(Platform + "-" + Configuration)`, want: "x64-Debug"},
		{name: "undefined expands empty", input: "a$(Missing)b", want: "ab"},
		{name: "nested parens", input: `$(upper(Platform))`, want: "X64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runInterpol(t, tt.input, props))
		})
	}
}

func TestInterpolateErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unclosed reference", input: "$(Configuration"},
		{name: "unterminated string", input: `$('abc)`},
		{name: "bad expression", input: "$(1 +)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Interpolate(tt.input, nil)
			assert.Error(t, err)
		})
	}
}
