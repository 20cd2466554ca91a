// Package dataset holds the in-memory table every engine reads and produces.
//
// A Dataset is treated as a value: engines return new Datasets and never
// modify the rows of the one they were given.
package dataset

import (
	"strconv"
	"strings"

	"projector/pkg/records"
)

// Dataset is an ordered field list plus rows keyed by those fields.
//
// Every row has exactly the keys in Fields. Stats is nil until computed.
type Dataset struct {
	Fields []string         `json:"fields"`
	Data   []records.Record `json:"data"`
	Path   string           `json:"path,omitempty"`
	Stats  *Statistics      `json:"stats,omitempty"`
}

// Statistics is the result of one statistics computation.
//
// Fields is keyed field -> stat name -> value. Pairwise is keyed
// field -> stat name -> other field -> value.
type Statistics struct {
	Global   map[string]any                       `json:"global"`
	Fields   map[string]map[string]any            `json:"fields"`
	Pairwise map[string]map[string]map[string]any `json:"pairwise"`
}

// Create builds a Dataset from parsed rows.
//
// Blank field names (empty or whitespace) are replaced by their positional
// index as a string, and each row's value is moved from the blank key to
// that index key. Rows are rewritten in place; the caller hands ownership
// of rows to the returned Dataset.
func Create(rows []records.Record, fieldNames []string, path string) *Dataset {
	fields := make([]string, len(fieldNames))
	for i, name := range fieldNames {
		if strings.TrimSpace(name) != "" {
			fields[i] = name
			continue
		}
		idx := strconv.Itoa(i)
		fields[i] = idx
		for _, row := range rows {
			if row == nil {
				continue
			}
			v, ok := row[name]
			if !ok {
				continue
			}
			delete(row, name)
			row[idx] = v
		}
	}

	if rows == nil {
		rows = []records.Record{}
	}
	return &Dataset{Fields: fields, Data: rows, Path: path}
}

// FromTable builds a Dataset from a positional parser result.
//
// Blank and duplicate header names take their positional index. Short rows
// are padded with "" so every record carries every field.
func FromTable(t records.Table, path string) *Dataset {
	fields := make([]string, len(t.Fields))
	seen := make(map[string]struct{}, len(t.Fields))
	for i, name := range t.Fields {
		_, dup := seen[name]
		if strings.TrimSpace(name) == "" || dup {
			name = strconv.Itoa(i)
		}
		seen[name] = struct{}{}
		fields[i] = name
	}

	rows := make([]records.Record, len(t.Rows))
	for i := range t.Rows {
		r := make(records.Record, len(fields))
		for j, f := range fields {
			r[f] = t.Cell(i, j)
		}
		rows[i] = r
	}
	return &Dataset{Fields: fields, Data: rows, Path: path}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Data)
}

// HasField reports whether field is one of d's fields.
func (d *Dataset) HasField(field string) bool {
	for _, f := range d.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// WithStats returns a shallow copy of d with Stats replaced.
func (d *Dataset) WithStats(s *Statistics) *Dataset {
	out := *d
	out.Stats = s
	return &out
}

// Cell returns the value of field in row i, or nil when out of range.
func (d *Dataset) Cell(field string, i int) any {
	if d == nil || i < 0 || i >= len(d.Data) {
		return nil
	}
	return d.Data[i][field]
}

// Column returns the values of field across all rows, in row order.
func (d *Dataset) Column(field string) []any {
	if d == nil {
		return nil
	}
	out := make([]any, len(d.Data))
	for i, row := range d.Data {
		out[i] = row[field]
	}
	return out
}

// Row returns a copy of row i restricted to fields, or every field when
// fields is empty. Out of range returns nil.
func (d *Dataset) Row(fields []string, i int) records.Record {
	if d == nil || i < 0 || i >= len(d.Data) {
		return nil
	}
	src := d.Data[i]
	if len(fields) == 0 {
		fields = d.Fields
	}
	out := make(records.Record, len(fields))
	for _, f := range fields {
		out[f] = src[f]
	}
	return out
}

// FieldStats returns the statistics of one field, or nil.
func (d *Dataset) FieldStats(field string) map[string]any {
	if d == nil || d.Stats == nil {
		return nil
	}
	return d.Stats.Fields[field]
}
