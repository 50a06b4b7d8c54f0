package pyproject

import "slices"

// Table is an ordered TOML table.
type Table struct {
	keys   []string
	values map[string]any
	inline bool
}

// Document is the root table of a pyproject.toml file.
type Document = Table

// NewDocument returns an empty document.
func NewDocument() *Document {
	return NewTable()
}

// NewTable returns an empty table rendered with a [header].
func NewTable() *Table {
	return &Table{values: map[string]any{}}
}

// NewInlineTable returns an empty table rendered as { k = v }.
func NewInlineTable() *Table {
	return &Table{values: map[string]any{}, inline: true}
}

// Inline reports whether t renders as an inline table.
func (t *Table) Inline() bool { return t.inline }

// Len returns the number of keys in t.
func (t *Table) Len() int { return len(t.keys) }

// Keys returns the keys of t in order.
func (t *Table) Keys() []string { return slices.Clone(t.keys) }

// Has reports whether key is present.
func (t *Table) Has(key string) bool {
	_, ok := t.values[key]
	return ok
}

// Get returns the value stored under key.
func (t *Table) Get(key string) (any, bool) {
	v, ok := t.values[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (t *Table) GetString(key string) (string, bool) {
	s, ok := t.values[key].(string)
	return s, ok
}

// Table returns the nested table under key.
func (t *Table) Table(key string) (*Table, bool) {
	sub, ok := t.values[key].(*Table)
	return sub, ok
}

// Tables returns the array of tables under key.
func (t *Table) Tables(key string) ([]*Table, bool) {
	arr, ok := t.values[key].([]*Table)
	return arr, ok
}

// Path walks nested tables and returns the one at keys.
func (t *Table) Path(keys ...string) (*Table, bool) {
	cur := t
	for _, k := range keys {
		next, ok := cur.Table(k)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Set stores v under key. An existing key keeps its position; a new key is
// appended.
func (t *Table) Set(key string, v any) {
	if t.values == nil {
		t.values = map[string]any{}
	}
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = normalize(v)
}

// Insert stores v under key at position i, moving the key if it already
// exists. i is clamped to the valid range.
func (t *Table) Insert(i int, key string, v any) {
	t.Delete(key)
	if t.values == nil {
		t.values = map[string]any{}
	}
	i = max(0, min(i, len(t.keys)))
	t.keys = slices.Insert(t.keys, i, key)
	t.values[key] = normalize(v)
}

// Delete removes key and reports whether it was present.
func (t *Table) Delete(key string) bool {
	if _, ok := t.values[key]; !ok {
		return false
	}
	delete(t.values, key)
	t.keys = slices.DeleteFunc(t.keys, func(k string) bool { return k == key })
	return true
}

// Clone returns a deep copy of t that shares no mutable state with it.
func (t *Table) Clone() *Table {
	out := &Table{
		keys:   slices.Clone(t.keys),
		values: make(map[string]any, len(t.values)),
		inline: t.inline,
	}
	for k, v := range t.values {
		out.values[k] = cloneValue(v)
	}
	return out
}

// Without returns a new table holding copies of every entry of t except the
// given keys. t is left untouched.
func (t *Table) Without(keys ...string) *Table {
	out := &Table{values: make(map[string]any, len(t.values)), inline: t.inline}
	for _, k := range t.keys {
		if slices.Contains(keys, k) {
			continue
		}
		out.keys = append(out.keys, k)
		out.values[k] = cloneValue(t.values[k])
	}
	return out
}

// CloneValue returns a deep copy of a table value.
func CloneValue(v any) any {
	return cloneValue(v)
}

// ToMap converts t into plain maps and slices: tables become map[string]any
// and arrays of tables become []any.
func (t *Table) ToMap() map[string]any {
	out := make(map[string]any, len(t.values))
	for k, v := range t.values {
		out[k] = plain(v)
	}
	return out
}

func plain(v any) any {
	switch v := v.(type) {
	case *Table:
		return v.ToMap()
	case []*Table:
		out := make([]any, len(v))
		for i, sub := range v {
			out[i] = sub.ToMap()
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case *Table:
		return v.Clone()
	case []*Table:
		out := make([]*Table, len(v))
		for i, sub := range v {
			out[i] = sub.Clone()
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func normalize(v any) any {
	switch v := v.(type) {
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case int:
		return int64(v)
	default:
		return v
	}
}
