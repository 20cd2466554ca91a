// Package export writes a dataset to CSV or JSON.
//
// Non-finite numbers (NaN, ±Inf) have no JSON encoding and no agreed CSV
// spelling, so they are written as null in JSON and as an empty cell in CSV.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"projector/internal/dataset"
	apperrors "projector/internal/errors"
)

// Write encodes ds to w in format ("csv" or "json").
func Write(ctx context.Context, w io.Writer, ds *dataset.Dataset, format string) error {
	switch format {
	case "csv":
		return WriteCSV(ctx, w, ds)
	case "json":
		return WriteJSON(ctx, w, ds)
	default:
		return apperrors.NewValidationError(fmt.Sprintf("export: unsupported format %q", format)).
			WithContext("format", format)
	}
}

// WriteFile writes ds to path, creating parent directories. The file is
// written to a temporary name first and renamed into place on success.
func WriteFile(ctx context.Context, path string, ds *dataset.Dataset, format string) error {
	return writeAtomic(path, func(w io.Writer) error {
		return Write(ctx, w, ds, format)
	})
}

// WriteStatsFile writes s as indented JSON to path.
func WriteStatsFile(path string, s *dataset.Statistics) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteStats(w, s)
	})
}

// WriteCSV writes a header row of ds.Fields followed by one row per record.
func WriteCSV(ctx context.Context, w io.Writer, ds *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Fields); err != nil {
		return apperrors.NewIOError("export: write csv header", err)
	}
	rec := make([]string, len(ds.Fields))
	for i, row := range ds.Data {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, f := range ds.Fields {
			rec[j] = CellText(row[f])
		}
		if err := cw.Write(rec); err != nil {
			return apperrors.NewIOError("export: write csv row", err).WithContext("row", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.NewIOError("export: flush csv", err)
	}
	return nil
}

// WriteJSON writes a JSON array with one object per record. Object keys
// follow ds.Fields order.
func WriteJSON(ctx context.Context, w io.Writer, ds *dataset.Dataset) error {
	bw := bufio.NewWriter(w)
	keys := make([][]byte, len(ds.Fields))
	for j, f := range ds.Fields {
		k, err := json.Marshal(f)
		if err != nil {
			return apperrors.NewIOError("export: encode field name", err)
		}
		keys[j] = k
	}

	bw.WriteString("[")
	for i, row := range ds.Data {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if i > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n  {")
		for j, f := range ds.Fields {
			if j > 0 {
				bw.WriteString(",")
			}
			v, err := json.Marshal(Sanitize(row[f]))
			if err != nil {
				return apperrors.NewIOError("export: encode value", err).
					WithContext("row", i).
					WithContext("field", f)
			}
			bw.Write(keys[j])
			bw.WriteString(":")
			bw.Write(v)
		}
		bw.WriteString("}")
	}
	if len(ds.Data) > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("]\n")
	if err := bw.Flush(); err != nil {
		return apperrors.NewIOError("export: write json", err)
	}
	return nil
}

// WriteStats writes s as indented JSON with non-finite numbers as null.
func WriteStats(w io.Writer, s *dataset.Statistics) error {
	if s == nil {
		s = &dataset.Statistics{}
	}
	doc := map[string]any{
		"global":   Sanitize(map[string]any(s.Global)),
		"fields":   sanitizeNested(s.Fields),
		"pairwise": sanitizePairwise(s.Pairwise),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return apperrors.NewIOError("export: encode stats", err)
	}
	return nil
}

// CellText renders one value for a CSV cell.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return CellText(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// Sanitize returns v with every non-finite float replaced by nil, walking
// maps and slices. Other values are returned unchanged.
func Sanitize(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return Sanitize(float64(x))
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = Sanitize(f)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Sanitize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Sanitize(e)
		}
		return out
	default:
		return v
	}
}

func sanitizeNested(m map[string]map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Sanitize(v)
	}
	return out
}

func sanitizePairwise(m map[string]map[string]map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = sanitizeNested(v)
	}
	return out
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewIOError("export: create directory", err).WithContext("path", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return apperrors.NewIOError("export: create temp file", err).WithContext("path", path)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewIOError("export: close", err).WithContext("path", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.NewIOError("export: rename", err).WithContext("path", path)
	}
	return nil
}
