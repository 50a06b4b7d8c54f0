package uvify

import (
	"regexp"
	"strings"

	"github.com/matzehuels/poetry-uvify/pkg/errors"
	"github.com/matzehuels/poetry-uvify/pkg/pyproject"
)

// MainGroup is the dependency group holding unconditional runtime
// dependencies.
const MainGroup = "main"

// Project is the read-only view of a parsed and validated Poetry project.
// Implementations guarantee that every Dependency.Source names an entry of
// the tool section's "source" list.
type Project interface {
	Name() string
	Version() string
	Description() string
	// PythonConstraint is the PEP 440 form of the supported Python range.
	PythonConstraint() string
	// RootDir is the directory holding pyproject.toml.
	RootDir() string
	// Readme is the readme path, or "" when the project declares none.
	Readme() string
	// Authors and Maintainers are raw "Name <email>" entries.
	Authors() []string
	Maintainers() []string
	// GroupNames lists dependency groups in declaration order.
	GroupNames() []string
	Group(name string) ([]Dependency, error)
	// ToolConfig is the tool-specific configuration section.
	ToolConfig() *pyproject.Table
}

// Dependency is one requirement of a dependency group.
type Dependency struct {
	Name       string
	Extras     []string
	Constraint string // PEP 440 specifier set, "" for any version
	Markers    string // PEP 508 environment markers
	URL        string // direct reference, replaces Constraint when set
	Source     string // custom index name, "" for the default index
}

// PEP508 renders d as a PEP 508 requirement string.
func (d Dependency) PEP508() string {
	var b strings.Builder
	b.WriteString(d.Name)
	if len(d.Extras) > 0 {
		b.WriteString("[" + strings.Join(d.Extras, ",") + "]")
	}
	switch {
	case d.URL != "":
		b.WriteString(" @ " + d.URL)
		if d.Markers != "" {
			b.WriteString(" ")
		}
	case d.Constraint != "":
		b.WriteString(d.Constraint)
	}
	if d.Markers != "" {
		b.WriteString("; " + d.Markers)
	}
	return b.String()
}

var separatorRunRE = regexp.MustCompile(`[-_.]+`)

// CanonicalName normalizes a distribution name the way package indexes and
// uv compare them: lowercased, with runs of "-", "_" and "." collapsed to "-".
func CanonicalName(name string) string {
	return separatorRunRE.ReplaceAllString(strings.ToLower(name), "-")
}

// Person is an author or maintainer record.
type Person struct {
	Name  string
	Email string
}

// ParsePerson splits a "Name <email>" entry. The name keeps any trailing
// whitespace. Entries without exactly one "<" are rejected.
func ParsePerson(entry string) (Person, error) {
	parts := strings.Split(entry, "<")
	if len(parts) != 2 {
		return Person{}, errors.New(errors.ErrCodeInvalidPerson,
			"person entry %q must contain exactly one <email> part, found %d", entry, len(parts)-1)
	}
	return Person{
		Name:  parts[0],
		Email: strings.ReplaceAll(parts[1], ">", ""),
	}, nil
}

func (p Person) table() *pyproject.Table {
	t := pyproject.NewInlineTable()
	t.Set("name", p.Name)
	t.Set("email", p.Email)
	return t
}

// BuildSystem is a [build-system] declaration.
type BuildSystem struct {
	Requires []string
	Backend  string
}

// Hatchling is the build backend written by default.
var Hatchling = BuildSystem{
	Requires: []string{"hatchling"},
	Backend:  "hatchling.build",
}

func (b BuildSystem) table() *pyproject.Table {
	t := pyproject.NewTable()
	t.Set("requires", b.Requires)
	t.Set("build-backend", b.Backend)
	return t
}
