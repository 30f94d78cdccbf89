package xmlspan

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeError(t *testing.T) {
	doc, err := Load(strings.NewReader(`<r><x/><bad a="1">t</bad><y/></r>`), "f.xml")
	require.NoError(t, err)

	els := doc.Root().ChildElements()
	require.Len(t, els, 3)
	bad := els[1]

	cause := errors.New("boom")
	ne := NewNodeError(bad, cause)

	assert.ErrorIs(t, ne, cause)
	assert.Equal(t, bad.Location(), ne.Location())
	assert.True(t, strings.HasPrefix(ne.Error(), "f.xml:"))
	assert.Contains(t, ne.Error(), "boom")
}

func TestNodeErrorContext(t *testing.T) {
	doc, err := LoadString(`<r><x/><bad a="1">t</bad><y/></r>`)
	require.NoError(t, err)

	bad := doc.Root().ChildElements()[1]
	ne := NewNodeError(bad, errors.New("boom"))

	ctx := ne.Context()
	assert.Contains(t, ctx, `<bad a="1">t</bad>`)
	assert.Contains(t, ctx, "<x>")
	assert.Contains(t, ctx, "<y>")
	// The excerpt is wrapped in the offending node's parent.
	assert.Contains(t, ctx, "<r>")
}

func TestNodeErrorContextElidesDistantSiblings(t *testing.T) {
	doc, err := LoadString(`<r><s1/><s2/><s3/><s4/><bad/><t1/><t2/><t3/><t4/></r>`)
	require.NoError(t, err)

	var bad *Element
	for _, el := range doc.Root().ChildElements() {
		if el.FullName() == "bad" {
			bad = el
		}
	}
	require.NotNil(t, bad)

	ctx := NewNodeError(bad, errors.New("boom")).Context()
	assert.Contains(t, ctx, "...")
	assert.NotContains(t, ctx, "<s1>")
	assert.NotContains(t, ctx, "<t4>")
	assert.Contains(t, ctx, "<s3>")
	assert.Contains(t, ctx, "<t2>")
}

func TestNodeErrorContextRootHasNoWrapper(t *testing.T) {
	doc, err := LoadString(`<only/>`)
	require.NoError(t, err)

	ctx := NewNodeError(doc.Root(), errors.New("boom")).Context()
	assert.Contains(t, ctx, "<only>")
}
