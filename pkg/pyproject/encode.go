package pyproject

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/poetry-uvify/pkg/errors"
)

const indent = "    "

var bareKeyRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// WriteFile serializes doc and overwrites path with it, keeping the file mode
// of an existing file.
func WriteFile(path string, doc *Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	return nil
}

// Marshal returns the TOML text of t.
func (t *Table) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes t to w as a TOML document.
func (t *Table) Encode(w io.Writer) error {
	var e encoder
	if err := e.table(t, nil); err != nil {
		return err
	}
	_, err := w.Write(e.buf.Bytes())
	return err
}

type encoder struct {
	buf bytes.Buffer
}

// table writes the key/value pairs of t, then its sub-tables and arrays of
// tables under their own headers.
func (e *encoder) table(t *Table, path []string) error {
	for _, k := range t.keys {
		v := t.values[k]
		if isSection(v) {
			continue
		}
		s, err := encodeValue(v, true)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "encode %s", headerPath(append(path, k)))
		}
		fmt.Fprintf(&e.buf, "%s = %s\n", quoteKey(k), s)
	}

	for _, k := range t.keys {
		sub := append(path[:len(path):len(path)], k)
		switch v := t.values[k].(type) {
		case *Table:
			if v.inline {
				continue
			}
			if hasValues(v) || v.Len() == 0 {
				e.header("[" + headerPath(sub) + "]")
			}
			if err := e.table(v, sub); err != nil {
				return err
			}
		case []*Table:
			if !isSection(v) {
				continue
			}
			for _, elem := range v {
				e.header("[[" + headerPath(sub) + "]]")
				if err := e.table(elem, sub); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *encoder) header(h string) {
	if e.buf.Len() > 0 {
		e.buf.WriteByte('\n')
	}
	e.buf.WriteString(h)
	e.buf.WriteByte('\n')
}

// isSection reports whether v is written under its own header instead of as
// a key/value pair.
func isSection(v any) bool {
	switch v := v.(type) {
	case *Table:
		return !v.inline
	case []*Table:
		if len(v) == 0 {
			return false
		}
		for _, t := range v {
			if !t.inline {
				return true
			}
		}
	}
	return false
}

func hasValues(t *Table) bool {
	for _, v := range t.values {
		if !isSection(v) {
			return true
		}
	}
	return false
}

func encodeValue(v any, top bool) (string, error) {
	switch v := v.(type) {
	case *Table:
		return encodeInline(v)
	case []*Table:
		elems := make([]any, len(v))
		for i, t := range v {
			elems[i] = t
		}
		return encodeArray(elems, top)
	case []any:
		return encodeArray(v, top)
	case []string:
		return encodeValue(normalize(v), top)
	case nil:
		return "", fmt.Errorf("nil value")
	default:
		return encodeScalar(v)
	}
}

func encodeInline(t *Table) (string, error) {
	if t.Len() == 0 {
		return "{}", nil
	}
	parts := make([]string, 0, t.Len())
	for _, k := range t.keys {
		s, err := encodeValue(t.values[k], false)
		if err != nil {
			return "", err
		}
		parts = append(parts, quoteKey(k)+" = "+s)
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}

// encodeArray writes top-level arrays with more than one element one element
// per line; nested arrays stay on a single line.
func encodeArray(elems []any, top bool) (string, error) {
	parts := make([]string, len(elems))
	for i, el := range elems {
		s, err := encodeValue(el, false)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	if !top || len(parts) <= 1 {
		return "[" + strings.Join(parts, ", ") + "]", nil
	}
	var b strings.Builder
	b.WriteString("[\n")
	for _, p := range parts {
		b.WriteString(indent + p + ",\n")
	}
	b.WriteString("]")
	return b.String(), nil
}

// encodeScalar lets BurntSushi/toml format a single value so strings, numbers
// and date-times follow TOML escaping rules.
func encodeScalar(v any) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]any{"v": v}); err != nil {
		return "", err
	}
	s := strings.TrimSuffix(buf.String(), "\n")
	out, ok := strings.CutPrefix(s, "v = ")
	if !ok || strings.Contains(out, "\n") {
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
	return out, nil
}

func quoteKey(k string) string {
	if bareKeyRE.MatchString(k) {
		return k
	}
	s, err := encodeScalar(k)
	if err != nil {
		return fmt.Sprintf("%q", k)
	}
	return s
}

func headerPath(path []string) string {
	parts := make([]string, len(path))
	for i, k := range path {
		parts[i] = quoteKey(k)
	}
	return strings.Join(parts, ".")
}
