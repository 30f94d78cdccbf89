package msbuild

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roywill/msbuild/xmlspan"
)

const sampleProject = `<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
    <OutDir>bin/$(Configuration)</OutDir>
  </PropertyGroup>
  <PropertyGroup Condition="'$(Configuration)' == 'Release'">
    <Optimize>true</Optimize>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="main.go"/>
    <Compile Include="$(OutDir)/gen.go">
      <Generated>true</Generated>
    </Compile>
  </ItemGroup>
</Project>`

func parseProject(t *testing.T, src, path string) *Project {
	t.Helper()
	p, err := Parse(strings.NewReader(src), path, slog.Default())
	require.NoError(t, err)
	require.NoError(t, p.Evaluate())
	return p
}

func TestProjectEvaluatesProperties(t *testing.T) {
	p := parseProject(t, sampleProject, "f.proj")

	cfg, ok := p.Property("Configuration")
	require.True(t, ok)
	assert.Equal(t, "Debug", cfg.Value)
	assert.Equal(t, "f.proj", cfg.Location.Path)
	assert.Equal(t, 3, cfg.Location.StartLine)

	outDir, ok := p.Property("OutDir")
	require.True(t, ok)
	assert.Equal(t, "bin/Debug", outDir.Value)

	// The conditioned group does not apply.
	_, ok = p.Property("Optimize")
	assert.False(t, ok)

	names := make([]string, 0, 2)
	for _, prop := range p.Properties() {
		names = append(names, prop.Name)
	}
	assert.Equal(t, []string{"Configuration", "OutDir"}, names)
}

func TestProjectEvaluatesItems(t *testing.T) {
	p := parseProject(t, sampleProject, "f.proj")

	items := p.Items()
	require.Len(t, items, 2)

	assert.Equal(t, "Compile", items[0].Type)
	assert.Equal(t, "main.go", items[0].Include)
	assert.Nil(t, items[0].Metadata)

	assert.Equal(t, "bin/Debug/gen.go", items[1].Include)
	assert.Equal(t, map[string]string{"Generated": "true"}, items[1].Metadata)
	assert.Equal(t, "f.proj", items[1].Location.Path)
}

func TestProjectConditionTrue(t *testing.T) {
	src := `<Project>
  <PropertyGroup>
    <Configuration>Release</Configuration>
  </PropertyGroup>
  <PropertyGroup Condition="'$(Configuration)' == 'Release'">
    <Optimize>true</Optimize>
  </PropertyGroup>
</Project>`
	p := parseProject(t, src, "f.proj")

	opt, ok := p.Property("Optimize")
	require.True(t, ok)
	assert.Equal(t, "true", opt.Value)
}

func TestProjectPropertyRedefinition(t *testing.T) {
	src := `<Project>
  <PropertyGroup>
    <A>one</A>
    <A>two</A>
  </PropertyGroup>
</Project>`
	p := parseProject(t, src, "f.proj")

	a, ok := p.Property("A")
	require.True(t, ok)
	assert.Equal(t, "two", a.Value)
	assert.Len(t, p.Properties(), 1)
}

func TestProjectPropertyCondition(t *testing.T) {
	src := `<Project>
  <PropertyGroup>
    <A>x</A>
    <B Condition="'$(A)' == 'y'">skipped</B>
    <C Condition="'$(A)' == 'x'">kept</C>
  </PropertyGroup>
</Project>`
	p := parseProject(t, src, "f.proj")

	_, ok := p.Property("B")
	assert.False(t, ok)
	c, ok := p.Property("C")
	require.True(t, ok)
	assert.Equal(t, "kept", c.Value)
}

func TestProjectConditionErrorCarriesLocation(t *testing.T) {
	src := `<Project>
  <PropertyGroup Condition="'$(A)' ==">
    <B>x</B>
  </PropertyGroup>
</Project>`
	p, err := Parse(strings.NewReader(src), "f.proj", nil)
	require.NoError(t, err)

	err = p.Evaluate()
	require.Error(t, err)

	var ne *xmlspan.NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "f.proj", ne.Location().Path)
	assert.Equal(t, 2, ne.Location().StartLine)
}

func TestProjectRejectsNonProjectRoot(t *testing.T) {
	_, err := Parse(strings.NewReader(`<NotAProject/>`), "f.proj", nil)
	assert.ErrorIs(t, err, ErrNotProject)
}

func TestProjectReEvaluatesAfterDocumentPathChange(t *testing.T) {
	p := parseProject(t, sampleProject, "f.proj")

	p.Document().SetPath("moved.proj")
	require.NoError(t, p.Evaluate())

	cfg, ok := p.Property("Configuration")
	require.True(t, ok)
	assert.Equal(t, "moved.proj", cfg.Location.Path)
}
