// Package stats computes global, per-field and pairwise statistics over a
// Dataset by dispatching to functions resolved from a registry.
//
// Configs map a statistic name to a function reference. Caller entries are
// shallow-merged over the defaults into a new map; neither input is modified.
//
// Argument shapes:
//   - Global functions take the full row slice ([]records.Record).
//   - Field functions take one column ([]any, row order).
//   - Pairwise functions take two columns: this field's, then the other's.
//
// Every function is resolved and arity-checked before any data is touched.
package stats

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"projector/internal/dataset"
	apperrors "projector/internal/errors"
	"projector/internal/inference"
	"projector/internal/registry"
	"projector/pkg/records"
)

// Config selects the statistics to compute.
//
// A nil map means "defaults only". Pairwise has no defaults.
type Config struct {
	Global   map[string]registry.Ref `json:"global,omitempty" yaml:"global,omitempty"`
	Fields   map[string]registry.Ref `json:"fields,omitempty" yaml:"fields,omitempty"`
	Pairwise map[string]registry.Ref `json:"pairwise,omitempty" yaml:"pairwise,omitempty"`
}

// Engine runs statistics against a registry.
type Engine struct {
	Registry registry.Registry
	Logger   *slog.Logger
}

func (e Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// DefaultGlobal returns the default global statistics of ds: numRows and
// numCols. numCols is the field count of ds, so it holds for zero rows.
func DefaultGlobal(ds *dataset.Dataset) map[string]registry.Ref {
	n := len(ds.Fields)
	return map[string]registry.Ref{
		"numRows": registry.Direct(registry.Unary(numRows)),
		"numCols": registry.Direct(registry.Unary(func(any) (any, error) { return n, nil })),
	}
}

// DefaultFields returns the default field statistics: minval, maxval and type.
// The type guess reports mixed date formats to logger.
func DefaultFields(logger *slog.Logger) map[string]registry.Ref {
	g := inference.Guesser{Logger: logger}
	return map[string]registry.Ref{
		"minval": registry.Direct(registry.Unary(minval)),
		"maxval": registry.Direct(registry.Unary(maxval)),
		"type": registry.Direct(registry.Unary(func(v any) (any, error) {
			return g.GuessValues(Values(v)), nil
		})),
	}
}

// Merge returns a new map holding defaults overlaid by overrides.
func Merge(defaults, overrides map[string]registry.Ref) map[string]registry.Ref {
	out := make(map[string]registry.Ref, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

type resolved struct {
	name string
	fn   registry.Function
}

// resolveAll resolves refs in name order and checks every arity.
func (e Engine) resolveAll(kind string, refs map[string]registry.Ref, arity int) ([]resolved, error) {
	names := make([]string, 0, len(refs))
	for k := range refs {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]resolved, 0, len(names))
	for _, name := range names {
		fn, err := registry.Resolve(e.Registry, refs[name])
		if err != nil {
			return nil, fmt.Errorf("%s stat %q: %w", kind, name, err)
		}
		if fn.Arity() != arity {
			return nil, apperrors.NewArityError(fmt.Sprintf("%s stat %q", kind, name), arity, fn.Arity())
		}
		out = append(out, resolved{name: name, fn: fn})
	}
	return out, nil
}

// Global computes dataset-wide statistics.
func (e Engine) Global(cfg map[string]registry.Ref, ds *dataset.Dataset) (map[string]any, error) {
	fns, err := e.resolveAll("global", Merge(DefaultGlobal(ds), cfg), 1)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fns))
	for _, r := range fns {
		v, err := r.fn.Call(ds.Data)
		if err != nil {
			return nil, fmt.Errorf("global stat %q: %w", r.name, err)
		}
		out[r.name] = v
	}
	return out, nil
}

// Fields computes per-field statistics for every field of ds.
func (e Engine) Fields(cfg map[string]registry.Ref, ds *dataset.Dataset) (map[string]map[string]any, error) {
	fns, err := e.resolveAll("field", Merge(DefaultFields(e.logger()), cfg), 1)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(ds.Fields))
	for _, field := range ds.Fields {
		col := ds.Column(field)
		fs := make(map[string]any, len(fns))
		for _, r := range fns {
			v, err := r.fn.Call(col)
			if err != nil {
				return nil, fmt.Errorf("field %q stat %q: %w", field, r.name, err)
			}
			fs[r.name] = v
		}
		out[field] = fs
	}
	return out, nil
}

// Pairwise computes, for every field and every statistic, the value against
// every field including itself.
func (e Engine) Pairwise(cfg map[string]registry.Ref, ds *dataset.Dataset) (map[string]map[string]map[string]any, error) {
	fns, err := e.resolveAll("pairwise", Merge(nil, cfg), 2)
	if err != nil {
		return nil, err
	}

	cols := make(map[string][]any, len(ds.Fields))
	for _, f := range ds.Fields {
		cols[f] = ds.Column(f)
	}

	out := make(map[string]map[string]map[string]any, len(ds.Fields))
	for _, field := range ds.Fields {
		byStat := make(map[string]map[string]any, len(fns))
		for _, r := range fns {
			byOther := make(map[string]any, len(ds.Fields))
			for _, other := range ds.Fields {
				v, err := r.fn.Call(cols[field], cols[other])
				if err != nil {
					return nil, fmt.Errorf("pairwise stat %q (%s, %s): %w", r.name, field, other, err)
				}
				byOther[other] = v
			}
			byStat[r.name] = byOther
		}
		out[field] = byStat
	}
	return out, nil
}

// Compute runs all three groups and returns a new Dataset carrying a fresh
// Statistics. ds is not modified.
func (e Engine) Compute(cfg Config, ds *dataset.Dataset) (*dataset.Dataset, error) {
	global, err := e.Global(cfg.Global, ds)
	if err != nil {
		return nil, err
	}
	fields, err := e.Fields(cfg.Fields, ds)
	if err != nil {
		return nil, err
	}
	pairwise, err := e.Pairwise(cfg.Pairwise, ds)
	if err != nil {
		return nil, err
	}
	e.logger().Debug("statistics computed",
		slog.String("path", ds.Path),
		slog.Int("fields", len(ds.Fields)),
		slog.Int("rows", len(ds.Data)))
	return ds.WithStats(&dataset.Statistics{
		Global:   global,
		Fields:   fields,
		Pairwise: pairwise,
	}), nil
}

// Compute runs Engine.Compute with a silent logger.
func Compute(reg registry.Registry, cfg Config, ds *dataset.Dataset) (*dataset.Dataset, error) {
	return Engine{Registry: reg}.Compute(cfg, ds)
}

func numRows(v any) (any, error) {
	rows, ok := v.([]records.Record)
	if !ok {
		return nil, fmt.Errorf("numRows: want rows, got %T", v)
	}
	return len(rows), nil
}

func minval(v any) (any, error) {
	m := math.Inf(1)
	for _, x := range Values(v) {
		if f, ok := Number(x); ok && f < m {
			m = f
		}
	}
	return m, nil
}

func maxval(v any) (any, error) {
	m := math.Inf(-1)
	for _, x := range Values(v) {
		if f, ok := Number(x); ok && f > m {
			m = f
		}
	}
	return m, nil
}

// Number reads a cell as a float. Strings are parsed; NaN and non-numeric
// values report false.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), !math.IsNaN(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		return inference.ParseNumber(t)
	default:
		return 0, false
	}
}

// Numbers returns the numeric cells of a column, skipping the rest.
func Numbers(v any) []float64 {
	col := Values(v)
	out := make([]float64, 0, len(col))
	for _, x := range col {
		if f, ok := Number(x); ok {
			out = append(out, f)
		}
	}
	return out
}

// Values normalises a column argument to []any. Unknown shapes yield nil.
func Values(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out
	default:
		return nil
	}
}
