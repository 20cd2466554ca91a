// Package typecast converts raw cell strings to the types recorded in a
// dataset's field statistics.
package typecast

import (
	"log/slog"
	"math"

	"projector/internal/dataset"
	apperrors "projector/internal/errors"
	"projector/internal/inference"
	"projector/pkg/records"
)

// Caster casts datasets and reports per-field conversion counts to Logger.
type Caster struct {
	Logger *slog.Logger
}

// Cast casts ds with a silent logger.
func Cast(ds *dataset.Dataset) (*dataset.Dataset, error) {
	return Caster{}.Cast(ds)
}

// Cast returns a new Dataset whose rows hold typed values.
//
// Per field type:
//   - number: parsed to float64; empty or unparseable values become NaN.
//   - string, enum, date, null and anything else: passed through unchanged.
//
// Errors:
//   - MISSING_STATS when ds has no statistics or a field has no type
//     statistic. An all-empty field carries the null type and is not missing.
//
// All fields are checked before any row is built. ds is not modified.
func (c Caster) Cast(ds *dataset.Dataset) (*dataset.Dataset, error) {
	kinds := make(map[string]inference.Kind, len(ds.Fields))
	for _, f := range ds.Fields {
		k, ok := fieldKind(ds, f)
		if !ok {
			return nil, apperrors.NewMissingStatsError(f)
		}
		kinds[f] = k
	}

	log := c.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	nanCounts := make(map[string]int)
	rows := make([]records.Record, len(ds.Data))
	for i, src := range ds.Data {
		dst := make(records.Record, len(src))
		for k, v := range src {
			dst[k] = v
		}
		for _, f := range ds.Fields {
			if kinds[f] != inference.KindNumber {
				continue
			}
			n := castNumber(src[f])
			if math.IsNaN(n) {
				nanCounts[f]++
			}
			dst[f] = n
		}
		rows[i] = dst
	}

	for f, n := range nanCounts {
		log.Debug("unparseable numbers cast to NaN", slog.String("field", f), slog.Int("count", n))
	}

	out := *ds
	out.Data = rows
	return &out, nil
}

// fieldKind reads the type statistic of field.
func fieldKind(ds *dataset.Dataset, field string) (inference.Kind, bool) {
	td, ok := inference.DescriptorOf(ds.FieldStats(field)["type"])
	if !ok {
		return "", false
	}
	return td.Type, true
}

func castNumber(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, ok := inference.ParseNumber(t); ok {
			return f
		}
	}
	return math.NaN()
}
