// Package table turns the list-of-records JSON returned by the DOPA service
// into a rectangular, typed in-memory table.
package table

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Field is one key of a response record. A nil Value is an explicit null.
type Field struct {
	Name  string
	Value any
}

// Record is one decoded JSON object from a service response, with its keys in
// document order.
type Record []Field

// RecordFromMap builds a Record from m with keys in sorted order.
func RecordFromMap(m map[string]any) Record {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	record := make(Record, len(names))
	for i, name := range names {
		record[i] = Field{Name: name, Value: m[name]}
	}
	return record
}

// Kind classifies the values held by a column.
type Kind string

const (
	// KindEmpty marks a column with no present values.
	KindEmpty Kind = "empty"
	// KindText marks a column of strings.
	KindText Kind = "text"
	// KindNumber marks a column of numbers.
	KindNumber Kind = "number"
	// KindBool marks a column of booleans.
	KindBool Kind = "bool"
	// KindMixed marks a column whose present values disagree on kind, or hold
	// nested objects or arrays.
	KindMixed Kind = "mixed"
)

// Column describes one table column.
type Column struct {
	Name string `json:"name"`

	// Kind is set when Options.InferKinds is true.
	Kind Kind `json:"kind,omitempty"`

	// Levels holds the sorted distinct values of a text column when
	// Options.TextAsCategories is true.
	Levels []string `json:"levels,omitempty"`
}

// Table is an ordered set of rows sharing one column set. Every row has one
// Value per column.
type Table struct {
	Columns []Column
	Rows    [][]Value
}

// Options controls how Normalize assembles a table. It is passed per call so
// concurrent callers cannot influence each other.
type Options struct {
	// InferKinds sets Column.Kind from the present values.
	InferKinds bool

	// TextAsCategories records the distinct values of text columns in
	// Column.Levels.
	TextAsCategories bool
}

// DefaultOptions infers kinds and leaves text columns as plain text.
func DefaultOptions() Options {
	return Options{InferKinds: true}
}

// Normalize binds records into a table. The column set is the union of all
// record keys in first-seen order; explicit nulls and absent keys both become
// the missing marker. Rows keep input order and none are dropped. An empty
// input yields a table with no rows and no columns.
func Normalize(records []Record, opts Options) *Table {
	normalized := &Table{
		Columns: make([]Column, 0),
		Rows:    make([][]Value, 0, len(records)),
	}
	columnIndex := make(map[string]int)

	for _, record := range records {
		for _, field := range record {
			if _, seen := columnIndex[field.Name]; !seen {
				columnIndex[field.Name] = len(normalized.Columns)
				normalized.Columns = append(normalized.Columns, Column{Name: field.Name})
			}
		}
	}

	for _, record := range records {
		// The zero Value is the missing marker, so absent keys need no fill.
		row := make([]Value, len(normalized.Columns))
		for _, field := range record {
			if field.Value == nil {
				continue
			}
			row[columnIndex[field.Name]] = Present(field.Value)
		}
		normalized.Rows = append(normalized.Rows, row)
	}

	if opts.InferKinds || opts.TextAsCategories {
		normalized.describeColumns(opts)
	}
	return normalized
}

func (normalized *Table) describeColumns(opts Options) {
	for columnIdx := range normalized.Columns {
		kind := KindEmpty
		levelSet := make(map[string]struct{})
		for _, row := range normalized.Rows {
			cell := row[columnIdx]
			if cell.IsMissing() {
				continue
			}
			cellKind := cell.Kind()
			switch {
			case kind == KindEmpty:
				kind = cellKind
			case kind != cellKind:
				kind = KindMixed
			}
			if text, ok := cell.Text(); ok {
				levelSet[text] = struct{}{}
			}
		}

		if opts.InferKinds {
			normalized.Columns[columnIdx].Kind = kind
		}
		if opts.TextAsCategories && kind == KindText {
			levels := make([]string, 0, len(levelSet))
			for level := range levelSet {
				levels = append(levels, level)
			}
			sort.Strings(levels)
			normalized.Columns[columnIdx].Levels = levels
		}
	}
}

// NumRows returns the row count.
func (normalized *Table) NumRows() int {
	return len(normalized.Rows)
}

// NumCols returns the column count.
func (normalized *Table) NumCols() int {
	return len(normalized.Columns)
}

// ColumnNames returns the column names in order.
func (normalized *Table) ColumnNames() []string {
	names := make([]string, len(normalized.Columns))
	for i, column := range normalized.Columns {
		names[i] = column.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (normalized *Table) ColumnIndex(name string) int {
	for i, column := range normalized.Columns {
		if column.Name == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (normalized *Table) HasColumn(name string) bool {
	return normalized.ColumnIndex(name) >= 0
}

// Get returns the cell at row (0-based) in the named column. Unknown columns
// and out-of-range rows yield the missing marker.
func (normalized *Table) Get(row int, column string) Value {
	columnIdx := normalized.ColumnIndex(column)
	if columnIdx < 0 || row < 0 || row >= len(normalized.Rows) {
		return Missing()
	}
	return normalized.Rows[row][columnIdx]
}

// Column returns every value of the named column, or nil if absent.
func (normalized *Table) Column(name string) []Value {
	columnIdx := normalized.ColumnIndex(name)
	if columnIdx < 0 {
		return nil
	}
	values := make([]Value, len(normalized.Rows))
	for i, row := range normalized.Rows {
		values[i] = row[columnIdx]
	}
	return values
}

// Without returns a copy of the table with the named column removed. If the
// column does not exist the copy keeps every column.
func (normalized *Table) Without(name string) *Table {
	columnIdx := normalized.ColumnIndex(name)
	reduced := &Table{
		Columns: make([]Column, 0, len(normalized.Columns)),
		Rows:    make([][]Value, len(normalized.Rows)),
	}
	for i, column := range normalized.Columns {
		if i != columnIdx {
			reduced.Columns = append(reduced.Columns, column)
		}
	}
	for rowIdx, row := range normalized.Rows {
		reducedRow := make([]Value, 0, len(reduced.Columns))
		for i, cell := range row {
			if i != columnIdx {
				reducedRow = append(reducedRow, cell)
			}
		}
		reduced.Rows[rowIdx] = reducedRow
	}
	return reduced
}

// MarshalJSON encodes the table as an array of objects whose keys follow
// column order. Missing cells encode as null.
func (normalized *Table) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('[')
	for rowIdx, row := range normalized.Rows {
		if rowIdx > 0 {
			buffer.WriteByte(',')
		}
		buffer.WriteByte('{')
		for columnIdx, cell := range row {
			if columnIdx > 0 {
				buffer.WriteByte(',')
			}
			key, err := json.Marshal(normalized.Columns[columnIdx].Name)
			if err != nil {
				return nil, err
			}
			encoded, err := cell.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buffer.Write(key)
			buffer.WriteByte(':')
			buffer.Write(encoded)
		}
		buffer.WriteByte('}')
	}
	buffer.WriteByte(']')
	return buffer.Bytes(), nil
}
