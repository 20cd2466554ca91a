package storage

import (
	"fmt"
	"strings"
)

// ColumnType is a backend-neutral column type. Backends map it to their own
// DDL type.
type ColumnType string

const (
	// TypeFloat holds cast numbers.
	TypeFloat ColumnType = "float"
	// TypeText holds strings, dates, enums and anything else.
	TypeText ColumnType = "text"
	// TypeKey holds short, indexable text such as a row hash.
	TypeKey ColumnType = "key"
)

// TableSpec describes the destination table.
type TableSpec struct {
	Name        string           `json:"name"`
	Columns     []ColumnSpec     `json:"columns"`
	Constraints []ConstraintSpec `json:"constraints,omitempty"`
}

// ColumnSpec is one column of a TableSpec. A nil Nullable means nullable.
type ColumnSpec struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable *bool      `json:"nullable,omitempty"`
}

// IsNullable reports whether c accepts NULL.
func (c ColumnSpec) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

// ConstraintSpec is a table-level constraint. Only "unique" is supported.
type ConstraintSpec struct {
	Kind    string   `json:"kind"`
	Columns []string `json:"columns"`
}

// ColumnNames returns the column names of t in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the parts every backend relies on.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("table %s: column name is empty", t.Name)
		}
		switch c.Type {
		case TypeFloat, TypeText, TypeKey:
		default:
			return fmt.Errorf("table %s: column %s: unsupported type %q", t.Name, c.Name, c.Type)
		}
		seen[c.Name] = true
	}
	for _, con := range t.Constraints {
		if !strings.EqualFold(con.Kind, "unique") {
			return fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, con.Kind)
		}
		if len(con.Columns) == 0 {
			return fmt.Errorf("table %s: unique constraint requires columns", t.Name)
		}
		for _, c := range con.Columns {
			if !seen[c] {
				return fmt.Errorf("table %s: constraint column %q is not a table column", t.Name, c)
			}
		}
	}
	return nil
}

// SplitQualifiedName splits "schema.table" into its parts.
//
// Only a single dot is recognised; anything else is treated as unqualified.
func SplitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
