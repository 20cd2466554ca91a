package builtin

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"projector/internal/inference"
	"projector/internal/registry"
	"projector/internal/stats"
)

// Aggregates returns the column statistics every registry starts with.
// Each takes one column and skips cells that are not numbers, except count
// and distinct which look at every non-empty cell.
func Aggregates() registry.Registry {
	return registry.Registry{
		"sum":      registry.Unary(func(col any) (any, error) { return Sum(stats.Numbers(col)), nil }),
		"mean":     registry.Unary(func(col any) (any, error) { return Mean(stats.Numbers(col)), nil }),
		"variance": registry.Unary(func(col any) (any, error) { return Variance(stats.Numbers(col)), nil }),
		"stddev":   registry.Unary(func(col any) (any, error) { return StdDev(stats.Numbers(col)), nil }),
		"median":   registry.Unary(func(col any) (any, error) { return Median(stats.Numbers(col)), nil }),
		"count":    registry.Unary(func(col any) (any, error) { return Count(stats.Values(col)), nil }),
		"distinct": registry.Unary(func(col any) (any, error) { return Distinct(stats.Values(col)), nil }),
	}
}

// Sum is 0 for an empty column.
func Sum(xs []float64) float64 {
	return floats.Sum(xs)
}

// Mean is NaN for an empty column.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// Variance is the unbiased sample variance; NaN below two values.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Variance(xs, nil)
}

// StdDev is the sample standard deviation; NaN below two values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

// Median averages the two middle values of an even-length column.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Count returns the number of non-empty cells.
func Count(col []any) int {
	n := 0
	for _, v := range col {
		if !IsEmpty(v) {
			n++
		}
	}
	return n
}

// IsEmpty reports whether v is nil, "" or a NaN float.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return math.IsNaN(t)
	default:
		return false
	}
}

// Distinct returns the number of distinct non-empty cells by text form.
func Distinct(col []any) int {
	seen := make(map[string]struct{}, len(col))
	for _, v := range col {
		if IsEmpty(v) {
			continue
		}
		seen[inference.String(v)] = struct{}{}
	}
	return len(seen)
}
