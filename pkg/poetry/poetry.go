// Package poetry reads the [tool.poetry] section of a pyproject.toml and
// exposes it as a [uvify.Project].
//
// Loading validates what the translator relies on: the section exists,
// dependency names are valid Python package names, version constraints
// translate to PEP 440, index URLs use http(s), and every dependency
// "source" names a declared [[tool.poetry.source]] entry.
//
// Groups are reported in this order:
//
//   - "main" from [tool.poetry.dependencies] (its "python" entry becomes the
//     Python constraint, not a dependency)
//   - "dev" from the legacy [tool.poetry.dev-dependencies]
//   - every [tool.poetry.group.<name>.dependencies] in document order, with
//     a "dev" group merged after the legacy entries
package poetry

import (
	"path/filepath"
	"slices"

	"github.com/matzehuels/poetry-uvify/pkg/errors"
	"github.com/matzehuels/poetry-uvify/pkg/pyproject"
	"github.com/matzehuels/poetry-uvify/pkg/uvify"
)

// Project is a validated Poetry project.
type Project struct {
	root   string
	tool   *pyproject.Table
	meta   *pyproject.Table // [project], set by Poetry 2 projects
	python string
	groups []string
	deps   map[string][]uvify.Dependency
}

var _ uvify.Project = (*Project)(nil)

// Load reads the pyproject.toml at path and returns both the project view
// and the parsed document.
func Load(path string) (*Project, *pyproject.Document, error) {
	doc, err := pyproject.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", path)
	}
	p, err := FromDocument(doc, filepath.Dir(abs))
	if err != nil {
		return nil, nil, err
	}
	return p, doc, nil
}

// FromDocument builds a Project from a parsed document whose file lives in
// root.
func FromDocument(doc *pyproject.Document, root string) (*Project, error) {
	tool, ok := doc.Path("tool", "poetry")
	if !ok {
		return nil, errors.New(errors.ErrCodeMissingSection, "document has no [tool.poetry] section")
	}

	p := &Project{
		root: root,
		tool: tool,
		deps: make(map[string][]uvify.Dependency),
	}
	p.meta, _ = doc.Table("project")
	if err := errors.ValidatePythonPackageName(p.Name()); err != nil {
		return nil, err
	}
	if err := p.loadGroups(); err != nil {
		return nil, err
	}
	if p.python == "" && p.meta != nil {
		p.python, _ = p.meta.GetString("requires-python")
	}
	if err := p.validateSources(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) loadGroups() error {
	if runtime, ok := p.tool.Table("dependencies"); ok {
		if v, ok := runtime.GetString("python"); ok {
			c, err := Constraint(v)
			if err != nil {
				return err
			}
			p.python = c
		}
		if err := p.addGroup(uvify.MainGroup, runtime); err != nil {
			return err
		}
	}

	if dev, ok := p.tool.Table("dev-dependencies"); ok {
		if err := p.addGroup("dev", dev); err != nil {
			return err
		}
	}

	groups, ok := p.tool.Table("group")
	if !ok {
		return nil
	}
	for _, name := range groups.Keys() {
		g, _ := groups.Table(name)
		if g == nil {
			return errors.New(errors.ErrCodeInvalidManifest, "group %q must be a table", name)
		}
		deps, ok := g.Table("dependencies")
		if !ok {
			continue
		}
		if err := p.addGroup(name, deps); err != nil {
			return err
		}
	}
	return nil
}

func (p *Project) addGroup(name string, t *pyproject.Table) error {
	if !slices.Contains(p.groups, name) {
		p.groups = append(p.groups, name)
	}
	for _, dep := range t.Keys() {
		if name == uvify.MainGroup && dep == "python" {
			continue
		}
		v, _ := t.Get(dep)
		parsed, err := parseDependency(dep, v, p.root)
		if err != nil {
			return errors.Wrap(errors.GetCode(err), err, "group %q", name)
		}
		p.deps[name] = append(p.deps[name], parsed...)
	}
	return nil
}

func (p *Project) validateSources() error {
	declared := make(map[string]bool)
	for _, src := range p.sources() {
		name, _ := src.GetString("name")
		if name == "" {
			return errors.New(errors.ErrCodeInvalidManifest, "package source without a name")
		}
		url, _ := src.GetString("url")
		if err := errors.ValidateIndexURL(url); err != nil {
			// Poetry allows url-less sources for the built-in PyPI entry.
			if url != "" || name != "PyPI" {
				return err
			}
		}
		declared[name] = true
	}
	for _, group := range p.groups {
		for _, d := range p.deps[group] {
			if d.Source != "" && !declared[d.Source] {
				return errors.New(errors.ErrCodeInvalidManifest,
					"dependency %q references undeclared source %q", d.Name, d.Source)
			}
		}
	}
	return nil
}

func (p *Project) sources() []*pyproject.Table {
	v, _ := p.tool.Get("source")
	switch v := v.(type) {
	case []*pyproject.Table:
		return v
	case []any:
		var out []*pyproject.Table
		for _, e := range v {
			if t, ok := e.(*pyproject.Table); ok {
				out = append(out, t)
			}
		}
		return out
	}
	return nil
}

// str reads a scalar from [tool.poetry], falling back to [project] where
// Poetry 2 keeps the package metadata.
func (p *Project) str(key string) string {
	if s, ok := p.tool.GetString(key); ok {
		return s
	}
	if p.meta != nil {
		s, _ := p.meta.GetString(key)
		return s
	}
	return ""
}

func (p *Project) strs(key string) []string {
	v, _ := p.tool.Get(key)
	return stringList(v)
}

func (p *Project) Name() string        { return p.str("name") }
func (p *Project) Version() string     { return p.str("version") }
func (p *Project) Description() string { return p.str("description") }
func (p *Project) RootDir() string     { return p.root }
func (p *Project) Authors() []string   { return p.strs("authors") }

func (p *Project) Maintainers() []string { return p.strs("maintainers") }

// PythonConstraint returns the PEP 440 specifier set for Python. A project
// without a python entry, or with Poetry's "*", accepts any version, which
// PEP 440 spells as the empty specifier set "".
func (p *Project) PythonConstraint() string { return p.python }

// Readme returns the first declared readme joined to the project root.
func (p *Project) Readme() string {
	v, ok := p.tool.Get("readme")
	if !ok {
		return ""
	}
	var readme string
	switch v := v.(type) {
	case string:
		readme = v
	default:
		if list := stringList(v); len(list) > 0 {
			readme = list[0]
		}
	}
	if readme == "" {
		return ""
	}
	return filepath.Join(p.root, filepath.FromSlash(readme))
}

func (p *Project) GroupNames() []string { return slices.Clone(p.groups) }

func (p *Project) Group(name string) ([]uvify.Dependency, error) {
	if !slices.Contains(p.groups, name) {
		return nil, errors.New(errors.ErrCodeMissingGroup, "no dependency group %q", name)
	}
	return slices.Clone(p.deps[name]), nil
}

func (p *Project) ToolConfig() *pyproject.Table { return p.tool }

func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
