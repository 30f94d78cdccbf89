// Package msbuild reads MSBuild-style XML project documents with full source
// spans on every element and attribute, and evaluates property and item
// groups over them so diagnostics can point at the exact range a value came
// from.
package msbuild

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/roywill/msbuild/xmlspan"
)

var (
	// ErrNotProject is returned when the document's root element is not
	// <Project>.
	ErrNotProject = errors.New("msbuild: root element is not <Project>")
)

const conditionAttr = "Condition"

// Property is an evaluated property together with the source range of the
// element that defined it.
type Property struct {
	Name     string
	Value    string
	Location xmlspan.Location
}

// Item is an evaluated item together with the source range of the element
// that declared it.
type Item struct {
	Type     string
	Include  string
	Metadata map[string]string
	Location xmlspan.Location
}

// Project wraps a loaded document and evaluates its property and item groups
// in document order.
type Project struct {
	doc    *xmlspan.Document
	logger *slog.Logger

	props     map[string]*Property
	propOrder []string
	items     []Item

	vm vm.VM
}

// NewProject wraps an already loaded document. A nil logger defaults to
// slog.Default().
func NewProject(doc *xmlspan.Document, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root := doc.Root()
	if root == nil || root.Name.Local != "Project" {
		return nil, ErrNotProject
	}
	return &Project{
		doc:    doc,
		logger: logger,
		props:  make(map[string]*Property),
	}, nil
}

// Parse loads a project from r, associated with path for location reporting.
func Parse(r io.Reader, path string, logger *slog.Logger) (*Project, error) {
	doc, err := xmlspan.Load(r, path)
	if err != nil {
		return nil, err
	}
	return NewProject(doc, logger)
}

// Open loads a project from the named file.
func Open(path string, logger *slog.Logger) (*Project, error) {
	doc, err := xmlspan.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewProject(doc, logger)
}

// Document returns the underlying located document.
func (p *Project) Document() *xmlspan.Document { return p.doc }

// Evaluate walks the project's top-level groups in document order,
// evaluating conditions and expanding property references. It can be called
// again after the underlying document changed; state is rebuilt from
// scratch.
func (p *Project) Evaluate() error {
	p.props = make(map[string]*Property)
	p.propOrder = nil
	p.items = nil

	for _, el := range p.doc.Root().ChildElements() {
		ok, err := p.evalCondition(el)
		if err != nil {
			return err
		}
		if !ok {
			cond, _ := el.Attr(conditionAttr)
			p.logger.Debug("skipping group",
				slog.String("group", el.FullName()),
				slog.String("condition", cond),
				slog.String("location", el.Location().String()))
			continue
		}
		switch el.Name.Local {
		case "PropertyGroup":
			if err := p.evalPropertyGroup(el); err != nil {
				return err
			}
		case "ItemGroup":
			if err := p.evalItemGroup(el); err != nil {
				return err
			}
		}
	}
	return nil
}

// Property returns the evaluated property with the given name.
func (p *Project) Property(name string) (Property, bool) {
	if prop, ok := p.props[name]; ok {
		return *prop, true
	}
	return Property{}, false
}

// Properties returns the evaluated properties in definition order.
func (p *Project) Properties() []Property {
	out := make([]Property, 0, len(p.propOrder))
	for _, name := range p.propOrder {
		out = append(out, *p.props[name])
	}
	return out
}

// Items returns the evaluated items in document order.
func (p *Project) Items() []Item {
	return p.items
}

func (p *Project) evalPropertyGroup(group *xmlspan.Element) error {
	for _, el := range group.ChildElements() {
		ok, err := p.evalCondition(el)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		value, err := p.expand(el.Text())
		if err != nil {
			return xmlspan.NewNodeError(el, err)
		}
		name := el.Name.Local
		if prev, redefined := p.props[name]; redefined {
			p.logger.Debug("property redefined",
				slog.String("name", name),
				slog.String("previous", prev.Location.String()),
				slog.String("location", el.Location().String()))
		} else {
			p.propOrder = append(p.propOrder, name)
		}
		p.props[name] = &Property{
			Name:     name,
			Value:    value,
			Location: el.Location(),
		}
	}
	return nil
}

func (p *Project) evalItemGroup(group *xmlspan.Element) error {
	for _, el := range group.ChildElements() {
		ok, err := p.evalCondition(el)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		include, _ := el.Attr("Include")
		include, err = p.expand(include)
		if err != nil {
			return xmlspan.NewNodeError(el, err)
		}
		item := Item{
			Type:     el.Name.Local,
			Include:  include,
			Location: el.Location(),
		}
		for _, meta := range el.ChildElements() {
			value, err := p.expand(meta.Text())
			if err != nil {
				return xmlspan.NewNodeError(meta, err)
			}
			if item.Metadata == nil {
				item.Metadata = make(map[string]string)
			}
			item.Metadata[meta.Name.Local] = value
		}
		p.items = append(p.items, item)
	}
	return nil
}

// evalCondition evaluates the element's Condition attribute against the
// current property environment. An absent or blank condition is true.
func (p *Project) evalCondition(el *xmlspan.Element) (bool, error) {
	cond, ok := el.Attr(conditionAttr)
	if !ok || strings.TrimSpace(cond) == "" {
		return true, nil
	}
	expanded, err := p.expand(cond)
	if err != nil {
		return false, xmlspan.NewNodeError(el, fmt.Errorf("condition %q: %w", cond, err))
	}
	out, err := expr.Eval(expanded, p.env())
	if err != nil {
		return false, xmlspan.NewNodeError(el, fmt.Errorf("condition %q: %w", cond, err))
	}
	b, ok := out.(bool)
	if !ok {
		return false, xmlspan.NewNodeError(el, fmt.Errorf("condition %q did not evaluate to a boolean", cond))
	}
	return b, nil
}

// expand interpolates $() property references in s. Plain text passes
// through unchanged.
func (p *Project) expand(s string) (string, error) {
	prog, err := Interpolate(s, p.env())
	if err != nil {
		return "", err
	}
	if prog == nil {
		return s, nil
	}
	out, err := p.vm.Run(prog, p.env())
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return fmt.Sprint(out), nil
}

func (p *Project) env() map[string]any {
	env := make(map[string]any, len(p.props))
	for name, prop := range p.props {
		env[name] = prop.Value
	}
	return env
}
