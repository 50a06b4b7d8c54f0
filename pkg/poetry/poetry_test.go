package poetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/poetry-uvify/pkg/errors"
	"github.com/matzehuels/poetry-uvify/pkg/pyproject"
	"github.com/matzehuels/poetry-uvify/pkg/uvify"
)

const fullProject = `[tool.poetry]
name = "demo"
version = "1.4.0"
description = "A demo project"
authors = ["Ada Lovelace <ada@example.org>"]
maintainers = ["Grace Hopper <grace@example.org>"]
readme = "README.md"

[tool.poetry.dependencies]
python = "^3.10"
requests = { version = "^2.31", extras = ["socks"] }
internal-lib = { version = "~1.2", source = "priv" }
tomli = { version = ">=2.0", python = "<3.11" }
pywin32 = { version = "*", platform = "win32" }
mylib = { path = "libs/mylib" }
vendored = { git = "https://github.com/acme/vendored.git", tag = "v1.0" }

[tool.poetry.dev-dependencies]
black = "^24.1"

[tool.poetry.group.dev.dependencies]
pytest = "^8.0"

[tool.poetry.group.docs.dependencies]
mkdocs = "1.5.3"

[tool.poetry.scripts]
demo = "demo.cli:main"

[[tool.poetry.source]]
name = "priv"
url = "https://pypi.example.org/simple/"
priority = "explicit"
`

func load(t *testing.T, text string) *Project {
	t.Helper()
	doc, err := pyproject.Parse([]byte(text))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p, err := FromDocument(doc, "/work/demo")
	if err != nil {
		t.Fatalf("FromDocument failed: %v", err)
	}
	return p
}

func TestFromDocumentScalars(t *testing.T) {
	p := load(t, fullProject)

	if p.Name() != "demo" || p.Version() != "1.4.0" || p.Description() != "A demo project" {
		t.Errorf("scalars = %q %q %q", p.Name(), p.Version(), p.Description())
	}
	if got := p.PythonConstraint(); got != ">=3.10,<4.0" {
		t.Errorf("PythonConstraint() = %q, want >=3.10,<4.0", got)
	}
	if got := p.Readme(); got != filepath.Join("/work/demo", "README.md") {
		t.Errorf("Readme() = %q", got)
	}
	if diff := cmp.Diff([]string{"Ada Lovelace <ada@example.org>"}, p.Authors()); diff != "" {
		t.Errorf("Authors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Grace Hopper <grace@example.org>"}, p.Maintainers()); diff != "" {
		t.Errorf("Maintainers mismatch (-want +got):\n%s", diff)
	}
	if p.RootDir() != "/work/demo" {
		t.Errorf("RootDir() = %q", p.RootDir())
	}
	if _, ok := p.ToolConfig().Table("scripts"); !ok {
		t.Error("ToolConfig() should expose [tool.poetry.scripts]")
	}
}

func TestGroups(t *testing.T) {
	p := load(t, fullProject)

	if diff := cmp.Diff([]string{"main", "dev", "docs"}, p.GroupNames()); diff != "" {
		t.Fatalf("GroupNames mismatch (-want +got):\n%s", diff)
	}

	main, err := p.Group(uvify.MainGroup)
	if err != nil {
		t.Fatalf("Group(main) failed: %v", err)
	}
	var got []string
	for _, d := range main {
		got = append(got, d.PEP508())
	}
	want := []string{
		"requests[socks]>=2.31,<3.0",
		"internal-lib>=1.2,<1.3",
		`tomli>=2.0; python_version < "3.11"`,
		`pywin32; sys_platform == "win32"`,
		"mylib @ file:///work/demo/libs/mylib",
		"vendored @ git+https://github.com/acme/vendored.git@v1.0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("main group mismatch (-want +got):\n%s", diff)
	}
	if main[1].Source != "priv" {
		t.Errorf("internal-lib source = %q, want priv", main[1].Source)
	}

	dev, _ := p.Group("dev")
	if len(dev) != 2 || dev[0].Name != "black" || dev[1].Name != "pytest" {
		t.Errorf("dev group = %+v, want black then pytest", dev)
	}

	docs, _ := p.Group("docs")
	if len(docs) != 1 || docs[0].PEP508() != "mkdocs==1.5.3" {
		t.Errorf("docs group = %+v", docs)
	}

	if _, err := p.Group("missing"); !errors.Is(err, errors.ErrCodeMissingGroup) {
		t.Errorf("Group(missing) err = %v, want %s", err, errors.ErrCodeMissingGroup)
	}
}

func TestMultipleConstraints(t *testing.T) {
	p := load(t, `[tool.poetry]
name = "demo"

[tool.poetry.dependencies]
numpy = [
  { version = "<1.25", python = "<3.9" },
  { version = ">=1.25", python = ">=3.9", markers = "platform_machine == 'x86_64' or platform_machine == 'arm64'" },
]
`)
	main, _ := p.Group(uvify.MainGroup)
	var got []string
	for _, d := range main {
		got = append(got, d.PEP508())
	}
	want := []string{
		`numpy<1.25; python_version < "3.9"`,
		`numpy>=1.25; python_version >= "3.9" and (platform_machine == 'x86_64' or platform_machine == 'arm64')`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("multiple constraints mismatch (-want +got):\n%s", diff)
	}
}

func TestNoMainGroup(t *testing.T) {
	p := load(t, `[tool.poetry]
name = "demo"

[tool.poetry.group.dev.dependencies]
pytest = "^8.0"
`)
	if diff := cmp.Diff([]string{"dev"}, p.GroupNames()); diff != "" {
		t.Errorf("GroupNames mismatch (-want +got):\n%s", diff)
	}
	if p.PythonConstraint() != "" {
		t.Errorf("PythonConstraint() = %q, want empty", p.PythonConstraint())
	}
}

func TestFromDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		code errors.Code
	}{
		{
			name: "no poetry section",
			text: "[project]\nname = \"demo\"\n",
			code: errors.ErrCodeMissingSection,
		},
		{
			name: "invalid project name",
			text: "[tool.poetry]\nname = \"bad name\"\n",
			code: errors.ErrCodeInvalidPackage,
		},
		{
			name: "invalid dependency name",
			text: "[tool.poetry]\nname = \"demo\"\n[tool.poetry.dependencies]\n\"-bad\" = \"*\"\n",
			code: errors.ErrCodeInvalidPackage,
		},
		{
			name: "union constraint",
			text: "[tool.poetry]\nname = \"demo\"\n[tool.poetry.dependencies]\nrequests = \"^2 || ^3\"\n",
			code: errors.ErrCodeInvalidConstraint,
		},
		{
			name: "undeclared source",
			text: "[tool.poetry]\nname = \"demo\"\n[tool.poetry.dependencies]\nrequests = { version = \"*\", source = \"nope\" }\n",
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "source with bad url",
			text: "[tool.poetry]\nname = \"demo\"\n[[tool.poetry.source]]\nname = \"priv\"\nurl = \"ftp://example.org\"\n",
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "source without name",
			text: "[tool.poetry]\nname = \"demo\"\n[[tool.poetry.source]]\nurl = \"https://example.org\"\n",
			code: errors.ErrCodeInvalidManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := pyproject.Parse([]byte(tt.text))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			_, err = FromDocument(doc, "/work")
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyproject.toml")
	if err := os.WriteFile(path, []byte(fullProject), 0o644); err != nil {
		t.Fatal(err)
	}

	p, doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.RootDir() != dir {
		t.Errorf("RootDir() = %q, want %q", p.RootDir(), dir)
	}
	if _, ok := doc.Path("tool", "poetry"); !ok {
		t.Error("Load should return the parsed document")
	}

	if _, _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Load(missing) err = %v, want %s", err, errors.ErrCodeFileNotFound)
	}
}

func TestGitURL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"https", `{ git = "https://github.com/org/repo.git" }`, "git+https://github.com/org/repo.git"},
		{"already prefixed", `{ git = "git+https://github.com/org/repo.git", rev = "abc123" }`, "git+https://github.com/org/repo.git@abc123"},
		{"scp style", `{ git = "git@github.com:org/repo.git", branch = "main" }`, "git+ssh://git@github.com/org/repo.git@main"},
		{"ssh url", `{ git = "ssh://git@example.org:2222/org/repo.git" }`, "git+ssh://git@example.org:2222/org/repo.git"},
		{"subdirectory", `{ git = "git@gitlab.com:org/mono.git", tag = "v2", subdirectory = "pkg" }`, "git+ssh://git@gitlab.com/org/mono.git@v2#subdirectory=pkg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := pyproject.Parse([]byte("dep = " + tt.text + "\n"))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			dep, _ := doc.Table("dep")
			if got := gitURL(dep); got != tt.want {
				t.Errorf("gitURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProjectTableFallback(t *testing.T) {
	p := load(t, `[project]
name = "modern"
version = "2.0.0"
description = "Poetry 2 layout"
requires-python = ">=3.9"

[tool.poetry.dependencies]
requests = "^2.31"
`)

	if p.Name() != "modern" || p.Version() != "2.0.0" || p.Description() != "Poetry 2 layout" {
		t.Errorf("scalars = %q %q %q, want values from [project]", p.Name(), p.Version(), p.Description())
	}
	if got := p.PythonConstraint(); got != ">=3.9" {
		t.Errorf("PythonConstraint() = %q, want >=3.9", got)
	}

	p = load(t, `[project]
name = "ignored"

[tool.poetry]
name = "poetry-name"

[tool.poetry.dependencies]
python = "^3.12"
`)
	if p.Name() != "poetry-name" {
		t.Errorf("Name() = %q, want [tool.poetry] to take precedence", p.Name())
	}
	if got := p.PythonConstraint(); got != ">=3.12,<4.0" {
		t.Errorf("PythonConstraint() = %q, want >=3.12,<4.0", got)
	}
}

func TestPythonConstraintAnyVersion(t *testing.T) {
	for _, text := range []string{
		"[tool.poetry]\nname = \"demo\"\n",
		"[tool.poetry]\nname = \"demo\"\n[tool.poetry.dependencies]\npython = \"*\"\n",
	} {
		if got := load(t, text).PythonConstraint(); got != "" {
			t.Errorf("PythonConstraint() = %q, want the empty specifier set", got)
		}
	}
}

func TestEjectMergesSourcesByCanonicalName(t *testing.T) {
	text := `[tool.poetry]
name = "demo"
version = "0.1.0"
description = ""

[tool.poetry.dependencies]
python = "^3.11"
My_Pkg = { version = "^1.0", source = "priv" }

[tool.poetry.group.dev.dependencies]
my-pkg = { version = "^1.0", source = "priv2" }

[[tool.poetry.source]]
name = "priv"
url = "https://priv.example.org/simple/"

[[tool.poetry.source]]
name = "priv2"
url = "https://priv2.example.org/simple/"
`
	doc, err := pyproject.Parse([]byte(text))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p, err := FromDocument(doc, "/work/demo")
	if err != nil {
		t.Fatalf("FromDocument failed: %v", err)
	}

	out, ok, err := uvify.New(p, nil).Eject(doc)
	if err != nil || !ok {
		t.Fatalf("Eject() = ok %v, err %v", ok, err)
	}
	sources, found := out.Path("tool", "uv", "sources")
	if !found {
		t.Fatal("tool.uv.sources missing")
	}
	want := map[string]any{"my-pkg": map[string]any{"index": "priv2"}}
	if diff := cmp.Diff(want, sources.ToMap()); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}

	project, _ := out.Table("project")
	deps, _ := project.Get("dependencies")
	if diff := cmp.Diff([]any{"My_Pkg>=1.0,<2.0"}, deps); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}
