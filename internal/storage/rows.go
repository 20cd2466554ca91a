package storage

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"projector/internal/dataset"
	apperrors "projector/internal/errors"
	"projector/internal/metrics"
)

// DefaultBatchSize is the number of rows per INSERT when none is configured.
const DefaultBatchSize = 500

// SpecFor derives a TableSpec from a dataset's fields and values.
//
// A field whose non-nil values are all numbers becomes TypeFloat; anything
// else becomes TypeText. When key is set it becomes a NOT NULL TypeKey column
// with a UNIQUE constraint, so InsertRows can dedupe on it.
func SpecFor(table string, ds *dataset.Dataset, key string) TableSpec {
	spec := TableSpec{Name: table}
	for _, f := range ds.Fields {
		if f == key {
			continue
		}
		spec.Columns = append(spec.Columns, ColumnSpec{Name: f, Type: columnTypeOf(ds.Column(f))})
	}
	if key != "" {
		notNull := false
		spec.Columns = append(spec.Columns, ColumnSpec{Name: key, Type: TypeKey, Nullable: &notNull})
		spec.Constraints = append(spec.Constraints, ConstraintSpec{Kind: "unique", Columns: []string{key}})
	}
	return spec
}

func columnTypeOf(values []any) ColumnType {
	seen := false
	for _, v := range values {
		switch v.(type) {
		case nil:
			continue
		case float64, float32, int, int64, int32:
			seen = true
		default:
			return TypeText
		}
	}
	if !seen {
		return TypeText
	}
	return TypeFloat
}

// RowValues flattens the dataset into rows aligned with columns.
//
// NaN and ±Inf become NULL, time.Time is kept, other non-numeric values are
// rendered as strings. A missing field is NULL.
func RowValues(ds *dataset.Dataset, columns []string) [][]any {
	out := make([][]any, len(ds.Data))
	for i, r := range ds.Data {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = sqlValue(r[c])
		}
		out[i] = row
	}
	return out
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return sqlValue(float64(x))
	case int:
		return int64(x)
	case int64, string, bool, time.Time:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// DedupeRows keeps the first row for each distinct value of dedupeColumns.
//
// Order of first occurrences is preserved. A dedupe column that is not in
// columns is an error.
func DedupeRows(rows [][]any, columns []string, dedupeColumns []string) ([][]any, error) {
	if len(dedupeColumns) == 0 {
		return rows, nil
	}
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	idx := make([]int, len(dedupeColumns))
	for i, dc := range dedupeColumns {
		p, ok := pos[dc]
		if !ok {
			return nil, fmt.Errorf("dedupe column %q not present in columns", dc)
		}
		idx[i] = p
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, row := range rows {
		b.Reset()
		for _, p := range idx {
			v := row[p]
			if v == nil {
				b.WriteString("\x00")
			} else {
				s := fmt.Sprint(v)
				b.WriteString(strconv.Itoa(len(s)))
				b.WriteByte(':')
				b.WriteString(s)
			}
			b.WriteByte('\x1f')
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}

// Write creates spec's table if needed and inserts ds in batches.
//
// With key set, rows are deduplicated on it within the batch and against
// rows already stored.
func Write(ctx context.Context, repo Repository, spec TableSpec, ds *dataset.Dataset, batchSize int, key string) (int64, error) {
	if err := spec.Validate(); err != nil {
		return 0, apperrors.NewValidationError("storage: " + err.Error())
	}
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return 0, apperrors.NewStorageError("storage: ensure table "+spec.Name, err)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	columns := spec.ColumnNames()
	var dedupe []string
	if key != "" {
		dedupe = []string{key}
	}
	rows, err := DedupeRows(RowValues(ds, columns), columns, dedupe)
	if err != nil {
		return 0, apperrors.NewValidationError("storage: " + err.Error())
	}

	var total int64
	for start := 0; start < len(rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := min(start+batchSize, len(rows))
		n, err := repo.InsertRows(ctx, spec.Name, columns, rows[start:end], dedupe)
		total += n
		if err != nil {
			return total, apperrors.NewStorageError("storage: insert into "+spec.Name, err).
				WithContext("batch_start", start)
		}
		metrics.IncCounter(metrics.BatchesTotal, 1, nil)
	}
	return total, nil
}
