// Package projector is the caller-facing API: load a tabular source into a
// Dataset, compute statistics, cast to typed values and project fields
// through registered functions.
//
//	ds, err := projector.Load(ctx, "testdata/iris.csv").Wait(ctx)
//	out, err := projector.Project(projector.Builtins(), projector.StatsConfig{}, []projector.MapSpec{
//		{Input: "sepal length", Output: "sepalNorm", Fn: projector.Name("linear"), Args: []any{0.0, 1.0}},
//	}, ds)
//
// Every function returns a new Dataset and leaves its input untouched.
package projector

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"projector/internal/config"
	"projector/internal/dataset"
	"projector/internal/deferred"
	"projector/internal/inference"
	"projector/internal/loader"
	"projector/internal/mapping"
	"projector/internal/registry"
	"projector/internal/stats"
	"projector/internal/transformer/builtin"
	"projector/internal/typecast"
	"projector/pkg/records"
)

type (
	Dataset        = dataset.Dataset
	Statistics     = dataset.Statistics
	Record         = records.Record
	Registry       = registry.Registry
	Function       = registry.Function
	Ref            = registry.Ref
	StatsConfig    = stats.Config
	MapSpec        = mapping.MapSpec
	TypeDescriptor = inference.TypeDescriptor
)

// Name returns a by-name function reference.
func Name(name string) Ref { return registry.Name(name) }

// Direct returns a reference holding f itself.
func Direct(f Function) Ref { return registry.Direct(f) }

// NewFunction wraps fn with a declared arity.
func NewFunction(arity int, fn func(args ...any) (any, error)) Function {
	return registry.New(arity, fn)
}

// Builtins returns the builtin statistics and mapping functions.
func Builtins() Registry { return builtin.Registry() }

// maxConcurrentLoads bounds LoadAll.
const maxConcurrentLoads = 4

// Engine runs the dataset operations against one registry. Inference
// warnings, such as mixed date formats, go to Logger; the zero Engine is
// silent and uses Builtins.
type Engine struct {
	Registry Registry
	Logger   *slog.Logger
}

func (e Engine) registry() Registry {
	if e.Registry == nil {
		return Builtins()
	}
	return e.Registry
}

// ComputeStats returns ds with statistics attached. cfg entries override
// the defaults by name.
func (e Engine) ComputeStats(cfg StatsConfig, ds *Dataset) (*Dataset, error) {
	return stats.Engine{Registry: e.registry(), Logger: e.Logger}.Compute(cfg, ds)
}

// CastTypes returns ds with number fields parsed. ds must carry a type
// statistic for every field.
func (e Engine) CastTypes(ds *Dataset) (*Dataset, error) {
	return typecast.Caster{Logger: e.Logger}.Cast(ds)
}

// Project computes statistics, casts and maps ds through specs.
func (e Engine) Project(statsCfg StatsConfig, specs []MapSpec, ds *Dataset) (*Dataset, error) {
	withStats, err := e.ComputeStats(statsCfg, ds)
	if err != nil {
		return nil, err
	}
	typed, err := e.CastTypes(withStats)
	if err != nil {
		return nil, err
	}
	return mapping.MapDataset(e.registry(), specs, typed)
}

// Load parses path and computes the default statistics.
func (e Engine) Load(ctx context.Context, path string) (*Dataset, error) {
	ds, err := e.ParseOnly(ctx, path)
	if err != nil {
		return nil, err
	}
	ds, err = e.ComputeStats(StatsConfig{}, ds)
	if err != nil {
		return nil, err
	}
	return e.CastTypes(ds)
}

// ParseOnly parses path into an untyped Dataset of strings.
func (e Engine) ParseOnly(ctx context.Context, path string) (*Dataset, error) {
	return loader.Loader{Logger: e.Logger}.Load(ctx, config.Source{Path: path})
}

// Load parses path, computes default statistics and casts, on a new
// goroutine.
func Load(ctx context.Context, path string) *deferred.Deferred[*Dataset] {
	return deferred.Go(ctx, func(ctx context.Context) (*Dataset, error) {
		return Engine{}.Load(ctx, path)
	})
}

// ParseOnly parses path on a new goroutine without statistics or casting.
func ParseOnly(ctx context.Context, path string) *deferred.Deferred[*Dataset] {
	return deferred.Go(ctx, func(ctx context.Context) (*Dataset, error) {
		return Engine{}.ParseOnly(ctx, path)
	})
}

// LoadProject parses path and projects it on a new goroutine.
func LoadProject(ctx context.Context, reg Registry, path string, statsCfg StatsConfig, specs []MapSpec) *deferred.Deferred[*Dataset] {
	project := deferred.Apply(func(ds *Dataset) (*Dataset, error) {
		return Project(reg, statsCfg, specs, ds)
	})
	return deferred.Go(ctx, func(ctx context.Context) (*Dataset, error) {
		ds, err := Engine{}.ParseOnly(ctx, path)
		if err != nil {
			return nil, err
		}
		return project(ctx, ds).Wait(ctx)
	})
}

// LoadAll loads every path concurrently. Results keep the order of paths;
// the first failure cancels the remaining loads.
func LoadAll(ctx context.Context, paths ...string) ([]*Dataset, error) {
	out := make([]*Dataset, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, p := range paths {
		g.Go(func() error {
			ds, err := Engine{}.Load(ctx, p)
			if err != nil {
				return err
			}
			out[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ComputeStats returns ds with statistics attached.
func ComputeStats(reg Registry, cfg StatsConfig, ds *Dataset) (*Dataset, error) {
	return Engine{Registry: reg}.ComputeStats(cfg, ds)
}

// CastTypes returns ds with number fields parsed.
func CastTypes(ds *Dataset) (*Dataset, error) {
	return Engine{}.CastTypes(ds)
}

// Project computes statistics, casts and maps ds through specs.
func Project(reg Registry, statsCfg StatsConfig, specs []MapSpec, ds *Dataset) (*Dataset, error) {
	return Engine{Registry: reg}.Project(statsCfg, specs, ds)
}

// GetCell returns field's value in row i, or nil when out of range.
func GetCell(ds *Dataset, field string, i int) any { return ds.Cell(field, i) }

// GetColumn returns field's values in row order.
func GetColumn(ds *Dataset, field string) []any { return ds.Column(field) }

// GetRow returns a copy of row i restricted to fields, or every field when
// none are given.
func GetRow(ds *Dataset, i int, fields ...string) Record { return ds.Row(fields, i) }

// LinMap rescales field's value in row i from the field's [minval, maxval]
// into [outMin, outMax]. ds must carry statistics.
func LinMap(ds *Dataset, outMin, outMax float64, field string, i int) (float64, error) {
	return builtin.Linear(ds.Stats, field, outMin, outMax, ds.Cell(field, i))
}
