package builtin

import (
	"fmt"
	"math"

	"projector/internal/dataset"
	apperrors "projector/internal/errors"
	"projector/internal/inference"
	"projector/internal/registry"
	"projector/internal/stats"
)

// Map functions take (stats, field, args..., value). The mapping engine binds
// everything but value, so each one's arity is 3 plus its configured args.

// MapFunctions returns the per-value functions available to projections.
func MapFunctions() registry.Registry {
	return registry.Registry{
		"linear": registry.New(5, func(a ...any) (any, error) {
			return Linear(statsArg(a[0]), a[1].(string), a[2], a[3], a[4])
		}),
		"scale": registry.New(4, func(a ...any) (any, error) {
			factor, err := numberArg("scale", a[2])
			if err != nil {
				return nil, err
			}
			return numberOrNaN(a[3]) * factor, nil
		}),
		"round": registry.New(4, func(a ...any) (any, error) {
			digits, err := numberArg("round", a[2])
			if err != nil {
				return nil, err
			}
			return Round(numberOrNaN(a[3]), int(digits)), nil
		}),
		"hash": registry.New(3, func(a ...any) (any, error) {
			return HashValue(a[2], true), nil
		}),
		"slug": registry.New(3, func(a ...any) (any, error) {
			return Slugify(inference.String(a[2])), nil
		}),
		"lower": registry.New(3, func(a ...any) (any, error) {
			return Lower(inference.String(a[2])), nil
		}),
		"upper": registry.New(3, func(a ...any) (any, error) {
			return Upper(inference.String(a[2])), nil
		}),
		"enum_index": registry.New(3, func(a ...any) (any, error) {
			return EnumIndex(statsArg(a[0]), a[1].(string), a[2])
		}),
		"default": registry.New(4, func(a ...any) (any, error) {
			if IsEmpty(a[3]) {
				return a[2], nil
			}
			return a[3], nil
		}),
	}
}

// Registry returns the aggregates and map functions together.
func Registry() registry.Registry {
	return Aggregates().With(MapFunctions())
}

// Linear rescales value from field's [minval, maxval] extent to
// [outMin, outMax]. Values outside the extent extrapolate along the same
// line. A zero-width extent maps
// every value to outMin. Non-numeric values map to NaN.
//
// Errors:
//   - MISSING_STATS when the field has no numeric minval/maxval.
//   - VALIDATION when outMin or outMax is not a number.
func Linear(st *dataset.Statistics, field string, outMin, outMax, value any) (float64, error) {
	lo, hi, err := extent(st, field)
	if err != nil {
		return 0, err
	}
	oMin, err := numberArg("linear", outMin)
	if err != nil {
		return 0, err
	}
	oMax, err := numberArg("linear", outMax)
	if err != nil {
		return 0, err
	}
	return LinToLin(lo, hi, oMin, oMax, numberOrNaN(value)), nil
}

// LinToLin maps v from [inMin, inMax] to [outMin, outMax] by linear
// interpolation. The result is not clamped.
func LinToLin(inMin, inMax, outMin, outMax, v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if inMax == inMin {
		return outMin
	}
	return outMin + (v-inMin)/(inMax-inMin)*(outMax-outMin)
}

// Round rounds v half away from zero to digits decimal places.
func Round(v float64, digits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// EnumIndex returns value's position in the field's enum as a float, or -1.
//
// Errors:
//   - MISSING_STATS when the field has no type statistic.
func EnumIndex(st *dataset.Statistics, field string, value any) (float64, error) {
	if st == nil {
		return 0, apperrors.NewMissingStatsError(field)
	}
	td, ok := inference.DescriptorOf(st.Fields[field]["type"])
	if !ok {
		return 0, apperrors.NewMissingStatsError(field)
	}
	s := inference.String(value)
	for i, e := range td.Enum {
		if e == s {
			return float64(i), nil
		}
	}
	return -1, nil
}

func extent(st *dataset.Statistics, field string) (float64, float64, error) {
	if st == nil {
		return 0, 0, apperrors.NewMissingStatsError(field)
	}
	fs := st.Fields[field]
	lo, okLo := stats.Number(fs["minval"])
	hi, okHi := stats.Number(fs["maxval"])
	if !okLo || !okHi || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 0, apperrors.NewMissingStatsError(field).
			WithContext("reason", "no numeric minval/maxval")
	}
	return lo, hi, nil
}

func statsArg(v any) *dataset.Statistics {
	st, _ := v.(*dataset.Statistics)
	return st
}

func numberArg(fn string, v any) (float64, error) {
	f, ok := stats.Number(v)
	if !ok {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%s: argument %v is not a number", fn, v))
	}
	return f, nil
}

func numberOrNaN(v any) float64 {
	f, ok := stats.Number(v)
	if !ok {
		return math.NaN()
	}
	return f
}
