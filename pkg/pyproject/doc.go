// Package pyproject provides an ordered, editable model of a pyproject.toml
// document.
//
// # Overview
//
// The converter needs to remove one section of a document, add two new ones
// and write everything else back untouched. Plain map[string]any decoding
// loses key order, so this package keeps every table as an ordered [Table]
// and restores the original order from the decoder's key metadata.
//
// # Values
//
// A [Table] value is one of:
//
//   - a scalar: string, int64, float64, bool, or a TOML date/time value
//   - an array: []any of values
//   - a nested table: *Table (inline tables render as { k = v })
//   - an array of tables: []*Table (rendered as [[header]] blocks unless
//     every element is inline)
//
// []string values passed to [Table.Set] are stored as []any.
//
// # Reading and Writing
//
// Use [ReadFile] or [Parse] to load a document and [WriteFile] or
// [Table.Encode] to serialize one:
//
//	doc, err := pyproject.ReadFile("pyproject.toml")
//	if err != nil {
//	    return err
//	}
//	doc.Delete("build-system")
//	return pyproject.WriteFile("pyproject.toml", doc)
//
// Encoding writes a table's key/value pairs before its sub-tables, as TOML
// requires. Scalars are escaped by BurntSushi/toml. Comments, blank-line
// layout and the inline-vs-header choice for tables parsed from text are not
// preserved.
package pyproject
