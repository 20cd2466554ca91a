// Package records holds the row shapes shared between parsers, engines and sinks.
package records

// Record is one dataset row keyed by field name.
type Record map[string]any

// Table is the positional form a parser produces before field names are
// resolved: a header row and data rows of raw strings.
//
// Rows may be ragged; consumers treat a missing cell as the empty string.
type Table struct {
	Fields []string
	Rows   [][]string
}

// Cell returns row i, column j, or "" when the row is shorter than j.
func (t Table) Cell(i, j int) string {
	if i < 0 || i >= len(t.Rows) {
		return ""
	}
	row := t.Rows[i]
	if j < 0 || j >= len(row) {
		return ""
	}
	return row[j]
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
