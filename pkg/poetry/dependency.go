package poetry

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matzehuels/poetry-uvify/pkg/errors"
	"github.com/matzehuels/poetry-uvify/pkg/pyproject"
	"github.com/matzehuels/poetry-uvify/pkg/uvify"
)

// parseDependency reads one dependency entry. A list of tables (Poetry's
// multiple-constraints form) yields one Dependency per element.
func parseDependency(name string, v any, root string) ([]uvify.Dependency, error) {
	if err := errors.ValidatePythonPackageName(name); err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case string:
		c, err := Constraint(v)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConstraint, err, "dependency %q", name)
		}
		return []uvify.Dependency{{Name: name, Constraint: c}}, nil
	case *pyproject.Table:
		d, err := fromTable(name, v, root)
		if err != nil {
			return nil, err
		}
		return []uvify.Dependency{d}, nil
	case []*pyproject.Table:
		return fromTables(name, v, root)
	case []any:
		tables := make([]*pyproject.Table, 0, len(v))
		for _, e := range v {
			t, ok := e.(*pyproject.Table)
			if !ok {
				return nil, errors.New(errors.ErrCodeInvalidManifest, "dependency %q: list entries must be tables", name)
			}
			tables = append(tables, t)
		}
		return fromTables(name, tables, root)
	default:
		return nil, errors.New(errors.ErrCodeInvalidManifest, "dependency %q has unsupported value %v", name, v)
	}
}

func fromTables(name string, tables []*pyproject.Table, root string) ([]uvify.Dependency, error) {
	out := make([]uvify.Dependency, 0, len(tables))
	for _, t := range tables {
		d, err := fromTable(name, t, root)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func fromTable(name string, t *pyproject.Table, root string) (uvify.Dependency, error) {
	d := uvify.Dependency{Name: name}
	get := func(k string) string {
		s, _ := t.GetString(k)
		return s
	}

	if extras, ok := t.Get("extras"); ok {
		d.Extras = stringList(extras)
	}
	d.Source = get("source")

	switch {
	case get("git") != "":
		d.URL = gitURL(t)
	case get("path") != "":
		path := filepath.FromSlash(get("path"))
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		d.URL = "file://" + filepath.ToSlash(path)
	case get("url") != "":
		d.URL = get("url")
	default:
		c, err := Constraint(get("version"))
		if err != nil {
			return d, errors.Wrap(errors.ErrCodeInvalidConstraint, err, "dependency %q", name)
		}
		d.Constraint = c
	}

	markers, err := dependencyMarkers(t)
	if err != nil {
		return d, errors.Wrap(errors.ErrCodeInvalidConstraint, err, "dependency %q", name)
	}
	d.Markers = markers
	return d, nil
}

// scpLikeRE matches scp-style SSH remotes such as git@github.com:org/repo.git.
var scpLikeRE = regexp.MustCompile(`^([A-Za-z0-9._-]+@[A-Za-z0-9.-]+):(.+)$`)

// gitURL renders a PEP 440 direct reference for a git dependency.
func gitURL(t *pyproject.Table) string {
	repo, _ := t.GetString("git")
	if !strings.Contains(repo, "://") {
		if m := scpLikeRE.FindStringSubmatch(repo); m != nil {
			repo = "ssh://" + m[1] + "/" + strings.TrimPrefix(m[2], "/")
		}
	}
	if !strings.HasPrefix(repo, "git+") {
		repo = "git+" + repo
	}
	for _, k := range []string{"rev", "tag", "branch"} {
		if ref, ok := t.GetString(k); ok && ref != "" {
			repo += "@" + ref
			break
		}
	}
	if sub, ok := t.GetString("subdirectory"); ok && sub != "" {
		repo += "#subdirectory=" + sub
	}
	return repo
}

// dependencyMarkers joins the python, platform and explicit marker
// restrictions of a dependency with "and".
func dependencyMarkers(t *pyproject.Table) (string, error) {
	var clauses []string
	if py, ok := t.GetString("python"); ok {
		m, err := pythonMarker(py)
		if err != nil {
			return "", err
		}
		if m != "" {
			clauses = append(clauses, m)
		}
	}
	if platform, ok := t.GetString("platform"); ok && platform != "" {
		clauses = append(clauses, `sys_platform == "`+platform+`"`)
	}
	if m, ok := t.GetString("markers"); ok && m != "" {
		if len(clauses) > 0 && strings.Contains(m, " or ") {
			m = "(" + m + ")"
		}
		clauses = append(clauses, m)
	}
	return strings.Join(clauses, " and "), nil
}
