// Package mapping projects a Dataset into a new one by applying a unary
// transform per output field.
//
// A mapping function is called as fn(stats, inputField, args..., value).
// MakeMapFunction binds everything but value up front, so the row pass only
// supplies the cell.
package mapping

import (
	"fmt"

	"projector/internal/dataset"
	apperrors "projector/internal/errors"
	"projector/internal/registry"
	"projector/pkg/records"
)

// MapSpec maps one input field to one output field.
//
// A zero Fn is the identity. Args are inserted between the field name and
// the value.
type MapSpec struct {
	Input  string       `json:"input" yaml:"input" validate:"required"`
	Output string       `json:"output" yaml:"output" validate:"required"`
	Fn     registry.Ref `json:"fn,omitempty" yaml:"fn,omitempty"`
	Args   []any        `json:"args,omitempty" yaml:"args,omitempty"`
}

// Transform maps one cell value.
type Transform func(value any) (any, error)

// Identity is the mapping used when a MapSpec names no function.
var Identity = registry.New(3, func(args ...any) (any, error) { return args[2], nil })

// MakeMapFunction resolves spec.Fn and binds (stats, spec.Input, spec.Args...).
//
// Errors:
//   - UNKNOWN_FUNCTION / INVALID_REFERENCE from resolution.
//   - ARITY when the function does not take exactly 3+len(spec.Args) arguments;
//     the message names the input field.
func MakeMapFunction(reg registry.Registry, stats *dataset.Statistics, spec MapSpec) (Transform, error) {
	fn := Identity
	if !spec.Fn.IsZero() {
		var err error
		fn, err = registry.Resolve(reg, spec.Fn)
		if err != nil {
			return nil, fmt.Errorf("map %q: %w", spec.Input, err)
		}
	}

	want := 3 + len(spec.Args)
	if fn.Arity() != want {
		return nil, apperrors.NewArityError(
			fmt.Sprintf("map function %s for field %q", spec.Fn, spec.Input), want, fn.Arity()).
			WithContext("field", spec.Input)
	}

	prefix := make([]any, 0, 2+len(spec.Args))
	prefix = append(prefix, stats, spec.Input)
	prefix = append(prefix, spec.Args...)
	bound, err := fn.Bind(prefix...)
	if err != nil {
		return nil, err
	}
	return func(v any) (any, error) { return bound.Call(v) }, nil
}

// MapDataset applies specs to every row of ds and returns the projection.
//
// Behavior:
//   - No specs returns ds itself.
//   - Output fields are deduplicated in first-appearance order; for a
//     repeated output the last spec wins.
//   - Every row is a new record holding only the output fields.
//   - Path is carried over; Stats is not, since it describes the input.
//
// All specs are resolved and checked before the first row is mapped.
func MapDataset(reg registry.Registry, specs []MapSpec, ds *dataset.Dataset) (*dataset.Dataset, error) {
	if len(specs) == 0 {
		return ds, nil
	}

	fns := make([]Transform, len(specs))
	for i, spec := range specs {
		fn, err := MakeMapFunction(reg, ds.Stats, spec)
		if err != nil {
			return nil, err
		}
		fns[i] = fn
	}

	seen := make(map[string]struct{}, len(specs))
	fields := make([]string, 0, len(specs))
	for _, spec := range specs {
		if _, ok := seen[spec.Output]; ok {
			continue
		}
		seen[spec.Output] = struct{}{}
		fields = append(fields, spec.Output)
	}

	rows := make([]records.Record, len(ds.Data))
	for i, src := range ds.Data {
		dst := make(records.Record, len(fields))
		for j, spec := range specs {
			v, err := fns[j](src[spec.Input])
			if err != nil {
				return nil, fmt.Errorf("map %q -> %q row %d: %w", spec.Input, spec.Output, i, err)
			}
			dst[spec.Output] = v
		}
		rows[i] = dst
	}

	return &dataset.Dataset{Fields: fields, Data: rows, Path: ds.Path}, nil
}
