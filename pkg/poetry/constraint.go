package poetry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/matzehuels/poetry-uvify/pkg/errors"
)

// operators are PEP 440 comparison operators, longest first so prefixes
// match greedily.
var operators = []string{"===", "~=", "==", "!=", "<=", ">=", "<", ">"}

// releaseRE captures the release segment of an already validated version.
var releaseRE = regexp.MustCompile(`^v?([0-9]+(?:\.[0-9]+)*)`)

// Constraint converts a Poetry version constraint into a PEP 440 specifier
// set. "*" and "" mean any version and yield "". Caret and tilde ranges are
// expanded with Poetry's precision rules:
//
//	^1.2.3 -> >=1.2.3,<2.0.0    ~1.2.3 -> >=1.2.3,<1.3.0
//	^0.2   -> >=0.2,<0.3        ~1     -> >=1,<2
//	1.2.*  -> ==1.2.*           >=1 <2 -> >=1,<2
//
// Unions ("||") have no PEP 440 equivalent and are rejected.
func Constraint(c string) (string, error) {
	specs, err := specifiers(c)
	if err != nil {
		return "", err
	}
	return strings.Join(specs, ","), nil
}

func specifiers(c string) ([]string, error) {
	c = strings.TrimSpace(c)
	if strings.Contains(c, "|") {
		return nil, errors.New(errors.ErrCodeInvalidConstraint, "union constraint %q cannot be expressed in PEP 440", c)
	}
	var out []string
	for _, part := range splitAnd(c) {
		specs, err := convert(part)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConstraint, err, "constraint %q", c)
		}
		out = append(out, specs...)
	}
	return out, nil
}

// splitAnd splits on commas and whitespace, re-attaching an operator that was
// separated from its version by a space (">= 1.0").
func splitAnd(c string) []string {
	fields := strings.FieldsFunc(c, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	var out []string
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if isOperator(f) || f == "^" || f == "~" {
			if i+1 < len(fields) {
				f += fields[i+1]
				i++
			}
		}
		out = append(out, f)
	}
	return out
}

func isOperator(s string) bool {
	for _, op := range operators {
		if s == op {
			return true
		}
	}
	return false
}

func convert(part string) ([]string, error) {
	switch {
	case part == "*":
		return nil, nil
	case strings.HasPrefix(part, "^"):
		return caret(strings.TrimPrefix(part, "^"))
	case strings.HasPrefix(part, "~="):
		return checked("~=", strings.TrimPrefix(part, "~="))
	case strings.HasPrefix(part, "~"):
		return tilde(strings.TrimPrefix(part, "~"))
	}
	for _, op := range operators {
		if v, ok := strings.CutPrefix(part, op); ok {
			return checked(op, v)
		}
	}
	return checked("==", part)
}

func checked(op, v string) ([]string, error) {
	switch op {
	case "===":
		// Arbitrary equality compares strings, not versions.
		if v == "" || strings.ContainsAny(v, " \t") {
			return nil, errors.New(errors.ErrCodeInvalidConstraint, "invalid version %q", v)
		}
		return []string{op + v}, nil
	case "==", "!=":
		if err := validVersion(v, true); err != nil {
			return nil, err
		}
	case "~=":
		if err := validVersion(v, false); err != nil {
			return nil, err
		}
		if m := releaseRE.FindStringSubmatch(v); m == nil || !strings.Contains(m[1], ".") {
			return nil, errors.New(errors.ErrCodeInvalidConstraint, "~= needs at least two release components, got %q", v)
		}
	default:
		if err := validVersion(v, false); err != nil {
			return nil, err
		}
	}
	return []string{op + v}, nil
}

// validVersion reports whether v is a PEP 440 version. A trailing ".*" is
// accepted when wildcard is set.
func validVersion(v string, wildcard bool) error {
	parsed := v
	if wildcard {
		parsed = strings.TrimSuffix(v, ".*")
	}
	if _, err := pep440.Parse(parsed); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConstraint, err, "invalid version %q", v)
	}
	return nil
}

// release splits v into its numeric release segment, parsed by semver, and
// the number of components written.
func release(v string) (*semver.Version, int, error) {
	if err := validVersion(v, false); err != nil {
		return nil, 0, err
	}
	if strings.Contains(v, "!") {
		return nil, 0, errors.New(errors.ErrCodeUnsupported, "ranges over versions with an epoch are not supported: %q", v)
	}
	m := releaseRE.FindStringSubmatch(v)
	precision := strings.Count(m[1], ".") + 1
	if precision > 3 {
		return nil, 0, errors.New(errors.ErrCodeUnsupported, "ranges over versions with more than three components are not supported: %q", v)
	}
	sv, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeInvalidConstraint, err, "version %q", v)
	}
	return sv, precision, nil
}

func caret(v string) ([]string, error) {
	sv, n, err := release(v)
	if err != nil {
		return nil, err
	}
	var upper semver.Version
	switch {
	case sv.Major() > 0 || n == 1:
		upper = sv.IncMajor()
	case sv.Minor() > 0 || n == 2:
		upper = sv.IncMinor()
	default:
		upper = sv.IncPatch()
	}
	return []string{">=" + v, "<" + format(upper, n)}, nil
}

func tilde(v string) ([]string, error) {
	sv, n, err := release(v)
	if err != nil {
		return nil, err
	}
	upper := sv.IncMinor()
	if n == 1 {
		upper = sv.IncMajor()
	}
	return []string{">=" + v, "<" + format(upper, n)}, nil
}

// format prints the first n release components of v.
func format(v semver.Version, n int) string {
	parts := []uint64{v.Major(), v.Minor(), v.Patch()}[:n]
	strs := make([]string, n)
	for i, p := range parts {
		strs[i] = strconv.FormatUint(p, 10)
	}
	return strings.Join(strs, ".")
}

// pythonMarker turns a Poetry "python" restriction into a PEP 508 marker.
// Versions with a patch component compare against python_full_version.
func pythonMarker(c string) (string, error) {
	specs, err := specifiers(c)
	if err != nil {
		return "", err
	}
	clauses := make([]string, 0, len(specs))
	for _, s := range specs {
		op, v := splitSpecifier(s)
		variable := "python_version"
		if strings.Count(strings.TrimSuffix(v, ".*"), ".") >= 2 {
			variable = "python_full_version"
		}
		clauses = append(clauses, variable+" "+op+" \""+v+"\"")
	}
	return strings.Join(clauses, " and "), nil
}

func splitSpecifier(s string) (string, string) {
	for _, op := range operators {
		if v, ok := strings.CutPrefix(s, op); ok {
			return op, v
		}
	}
	return "==", s
}
