package uvify

import (
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/poetry-uvify/pkg/errors"
	"github.com/matzehuels/poetry-uvify/pkg/pyproject"
)

// Group is a dependency group rendered as PEP 508 strings, in declaration
// order.
type Group struct {
	Name         string
	Requirements []string
}

// Uvifyer converts one Poetry project. It records which dependencies come
// from custom indexes while grouping, so a Uvifyer is not safe for
// concurrent use.
type Uvifyer struct {
	Project Project
	// BuildSystem replaces [build-system] when non-nil; nil keeps the
	// original declaration.
	BuildSystem *BuildSystem
	Logger      *log.Logger

	sources     map[string]string
	sourceOrder []string
}

// New creates a Uvifyer that writes the Hatchling build backend.
// If logger is nil, log.Default() is used.
func New(p Project, logger *log.Logger) *Uvifyer {
	if logger == nil {
		logger = log.Default()
	}
	bs := Hatchling
	return &Uvifyer{
		Project:     p,
		BuildSystem: &bs,
		Logger:      logger,
	}
}

// DependencyGroups renders every group of the project. Dependencies pulled
// from a custom index are recorded in the sources table under their
// canonical name; when the same package is sourced in several groups the
// last group wins.
func (u *Uvifyer) DependencyGroups() ([]Group, error) {
	u.sources = make(map[string]string)
	u.sourceOrder = nil

	names := u.Project.GroupNames()
	groups := make([]Group, 0, len(names))
	for _, name := range names {
		deps, err := u.Project.Group(name)
		if err != nil {
			return nil, err
		}
		reqs := make([]string, 0, len(deps))
		for _, d := range deps {
			if d.Source != "" {
				u.recordSource(CanonicalName(d.Name), d.Source)
			}
			reqs = append(reqs, d.PEP508())
		}
		u.Logger.Debug("grouped dependencies", "group", name, "count", len(reqs))
		groups = append(groups, Group{Name: name, Requirements: reqs})
	}
	return groups, nil
}

func (u *Uvifyer) recordSource(dep, index string) {
	prev, seen := u.sources[dep]
	switch {
	case !seen:
		u.sourceOrder = append(u.sourceOrder, dep)
	case prev != index:
		u.Logger.Debug("dependency source overridden", "dependency", dep, "from", prev, "to", index)
	}
	u.sources[dep] = index
}

// Sources returns the dependency-to-index mapping collected by the last
// DependencyGroups call, as {name = {index = "..."}} entries.
func (u *Uvifyer) Sources() *pyproject.Table {
	t := pyproject.NewTable()
	for _, dep := range u.sourceOrder {
		ref := pyproject.NewInlineTable()
		ref.Set("index", u.sources[dep])
		t.Set(dep, ref)
	}
	return t
}

// ProjectFragment builds the PEP 621 [project] table. Optional keys appear
// only when the project has data for them.
func (u *Uvifyer) ProjectFragment() (*pyproject.Table, error) {
	groups, err := u.DependencyGroups()
	if err != nil {
		return nil, err
	}

	var mainGroup *Group
	var extras []Group
	for i := range groups {
		if groups[i].Name == MainGroup {
			mainGroup = &groups[i]
			continue
		}
		extras = append(extras, groups[i])
	}
	if mainGroup == nil {
		return nil, errors.New(errors.ErrCodeMissingGroup, "project has no %q dependency group", MainGroup)
	}

	p := u.Project
	project := pyproject.NewTable()
	project.Set("name", p.Name())
	project.Set("version", p.Version())
	project.Set("description", p.Description())
	project.Set("requires-python", p.PythonConstraint())
	project.Set("dependencies", mainGroup.Requirements)

	if readme := p.Readme(); readme != "" {
		rel, err := relativeTo(p.RootDir(), readme)
		if err != nil {
			return nil, err
		}
		project.Set("readme", rel)
	}

	if authors := p.Authors(); len(authors) > 0 {
		people, err := parsePeople(authors)
		if err != nil {
			return nil, err
		}
		project.Set("authors", people)
	}

	if maintainers := p.Maintainers(); len(maintainers) > 0 {
		people, err := parsePeople(maintainers)
		if err != nil {
			return nil, err
		}
		project.Set("maintainers", people)
	}

	if len(extras) > 0 {
		optional := pyproject.NewTable()
		for _, g := range extras {
			optional.Set(g.Name, g.Requirements)
		}
		project.Set("optional-dependencies", optional)
	}

	if scripts, ok := u.scripts(); ok {
		project.Set("scripts", scripts)
	}

	return project, nil
}

func (u *Uvifyer) scripts() (any, bool) {
	tool := u.Project.ToolConfig()
	if tool == nil {
		return nil, false
	}
	v, ok := tool.Get("scripts")
	if !ok {
		return nil, false
	}
	if t, isTable := v.(*pyproject.Table); isTable && t.Len() == 0 {
		return nil, false
	}
	return pyproject.CloneValue(v), true
}

func parsePeople(entries []string) ([]*pyproject.Table, error) {
	out := make([]*pyproject.Table, 0, len(entries))
	for _, e := range entries {
		person, err := ParsePerson(e)
		if err != nil {
			return nil, err
		}
		out = append(out, person.table())
	}
	return out, nil
}

func relativeTo(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "readme %s", path)
	}
	rel = filepath.ToSlash(rel)
	if err := errors.ValidateRelativePath(rel); err != nil {
		return "", err
	}
	return rel, nil
}

// IndexFragment builds uv index entries from the tool section's "source"
// list. Each entry is a new table without the "priority" key; entries
// repeating an earlier name are dropped. The project is never modified.
func (u *Uvifyer) IndexFragment() []*pyproject.Table {
	tool := u.Project.ToolConfig()
	if tool == nil {
		return nil
	}
	var out []*pyproject.Table
	seen := make(map[string]bool)
	for _, src := range sourceTables(tool) {
		name, _ := src.GetString("name")
		if seen[name] {
			u.Logger.Debug("skipping duplicate index", "name", name)
			continue
		}
		seen[name] = true
		out = append(out, src.Without("priority"))
	}
	return out
}

// sourceTables accepts both [[source]] blocks and an inline array of tables.
func sourceTables(tool *pyproject.Table) []*pyproject.Table {
	v, ok := tool.Get("source")
	if !ok {
		return nil
	}
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

// Eject converts doc, the full pyproject.toml the project was loaded from.
// The result is a new document: [tool.poetry] removed, [project] inserted
// first, [build-system] replaced when configured and [tool.uv] carrying
// index and sources. ok is false when the project uses no custom indexes,
// meaning there is nothing to add; doc is never modified.
func (u *Uvifyer) Eject(doc *pyproject.Document) (out *pyproject.Document, ok bool, err error) {
	out = doc.Clone()
	tool, hasTool := out.Table("tool")
	if !hasTool || !tool.Delete("poetry") {
		return nil, false, errors.New(errors.ErrCodeMissingSection, "document has no [tool.poetry] section")
	}

	project, err := u.ProjectFragment()
	if err != nil {
		return nil, false, err
	}

	ext := pyproject.NewTable()
	index := u.IndexFragment()
	if len(index) > 0 {
		ext.Set("index", index)
	}
	if sources := u.Sources(); sources.Len() > 0 {
		ext.Set("sources", sources)
	}
	if ext.Len() == 0 {
		u.Logger.Debug("no custom indexes or sourced dependencies")
		return nil, false, nil
	}

	out.Insert(0, "project", project)
	if u.BuildSystem != nil {
		out.Insert(1, "build-system", u.BuildSystem.table())
	}

	uv, hasUV := tool.Table("uv")
	if !hasUV {
		uv = pyproject.NewTable()
		tool.Set("uv", uv)
	}
	for _, k := range ext.Keys() {
		v, _ := ext.Get(k)
		uv.Set(k, v)
	}

	u.Logger.Debug("ejected project",
		"sourced", len(u.sourceOrder),
		"indexes", len(index))
	return out, true, nil
}
