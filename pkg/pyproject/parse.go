package pyproject

import (
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/poetry-uvify/pkg/errors"
)

// pathSep joins key paths for order lookups. It cannot appear in a TOML key
// without escaping, so dotted keys never collide with nested ones.
const pathSep = "\x1f"

// ReadFile reads and parses the pyproject.toml at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read %s", path)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	return doc, nil
}

// Parse decodes TOML text into a Document, keeping the key order of the
// source text.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}
	b := builder{md: md, order: keyOrder(md.Keys())}
	return b.table(raw, nil, false), nil
}

type builder struct {
	md    toml.MetaData
	order map[string][]string
}

// keyOrder groups every decoded key under its parent path, in first-seen
// order. Every prefix is registered too, so implicit tables such as [tool]
// in "[tool.poetry]" get the position of their first appearance. Keys inside
// arrays of tables are reported without an index, so all elements of one
// array share the same entry.
func keyOrder(keys []toml.Key) map[string][]string {
	order := make(map[string][]string)
	for _, k := range keys {
		for i := 1; i <= len(k); i++ {
			parent := strings.Join(k[:i-1], pathSep)
			name := k[i-1]
			if !slices.Contains(order[parent], name) {
				order[parent] = append(order[parent], name)
			}
		}
	}
	return order
}

func (b *builder) table(m map[string]any, path []string, inline bool) *Table {
	t := &Table{values: make(map[string]any, len(m)), inline: inline}
	for _, k := range b.orderedKeys(m, path) {
		t.keys = append(t.keys, k)
		t.values[k] = b.value(m[k], append(slices.Clip(path), k))
	}
	return t
}

func (b *builder) orderedKeys(m map[string]any, path []string) []string {
	seen := b.order[strings.Join(path, pathSep)]
	keys := make([]string, 0, len(m))
	for _, k := range seen {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range m {
		if !slices.Contains(keys, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func (b *builder) value(v any, path []string) any {
	switch v := v.(type) {
	case map[string]any:
		return b.table(v, path, false)
	case []map[string]any:
		if b.md.Type(path...) == "ArrayHash" {
			out := make([]*Table, len(v))
			for i, m := range v {
				out[i] = b.table(m, path, false)
			}
			return out
		}
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = b.table(m, path, true)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			if m, ok := e.(map[string]any); ok {
				out[i] = b.table(m, path, true)
				continue
			}
			out[i] = b.value(e, path)
		}
		return out
	default:
		return v
	}
}
