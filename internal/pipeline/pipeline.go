// Package pipeline runs one configured projection end to end:
// load, stats, cast, map, export and sink.
//
// Each step is timed into the metrics facade and logged with the run id
// carried in the context.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"projector/internal/config"
	"projector/internal/dataset"
	"projector/internal/export"
	"projector/internal/loader"
	"projector/internal/logging"
	"projector/internal/mapping"
	"projector/internal/metrics"
	"projector/internal/registry"
	"projector/internal/stats"
	"projector/internal/storage"
	"projector/internal/transformer/builtin"
	"projector/internal/typecast"
	"projector/pkg/records"
)

// Step names used in logs and the step metrics.
const (
	StepLoad   = "load"
	StepStats  = "stats"
	StepCast   = "cast"
	StepMap    = "map"
	StepExport = "export"
	StepSink   = "sink"
)

// Options carries the collaborators of a run.
type Options struct {
	// Loader reads the source. Its Logger defaults to Logger.
	Loader loader.Loader

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// RunID is generated when empty.
	RunID string
}

// Result summarizes a finished run.
type Result struct {
	RunID string

	// Dataset is the projected dataset.
	Dataset *dataset.Dataset

	// Stats describe the loaded dataset before projection.
	Stats *dataset.Statistics

	OutputPath string
	StatsPath  string

	// Written is the number of rows the sink inserted.
	Written int64
}

// Run executes p. reg is used for statistics and mapping functions; a nil
// reg means the builtin registry.
//
// The first failing step stops the run and its error is returned wrapped
// with the step name.
func Run(ctx context.Context, p config.Pipeline, reg registry.Registry, opts Options) (Result, error) {
	if reg == nil {
		reg = builtin.Registry()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	if opts.Loader.Logger == nil {
		opts.Loader.Logger = log
	}

	res := Result{RunID: opts.RunID}
	if res.RunID == "" {
		res.RunID = logging.NewRunID()
	}
	ctx = logging.WithRunID(ctx, res.RunID)

	log.InfoContext(ctx, "run started",
		slog.String("job", p.Job),
		slog.String("source", p.Source.Path))
	start := time.Now()

	var ds *dataset.Dataset
	err := step(ctx, log, StepLoad, func() error {
		var err error
		ds, err = opts.Loader.Load(ctx, p.Source)
		if err == nil {
			metrics.RecordRecords("loaded", ds.Len())
		}
		return err
	})
	if err != nil {
		return res, err
	}

	err = step(ctx, log, StepStats, func() error {
		var err error
		ds, err = stats.Engine{Registry: reg, Logger: log}.Compute(p.Stats, ds)
		return err
	})
	if err != nil {
		return res, err
	}
	res.Stats = ds.Stats

	if p.CastEnabled() {
		err = step(ctx, log, StepCast, func() error {
			var err error
			ds, err = typecast.Caster{Logger: log}.Cast(ds)
			return err
		})
		if err != nil {
			return res, err
		}
	}

	err = step(ctx, log, StepMap, func() error {
		var err error
		ds, err = mapping.MapDataset(reg, p.Map, ds)
		if err == nil {
			metrics.RecordRecords("projected", ds.Len())
		}
		return err
	})
	if err != nil {
		return res, err
	}
	res.Dataset = ds

	if p.Output.Path != "" {
		err = step(ctx, log, StepExport, func() error {
			res.OutputPath = p.Output.Path
			if err := export.WriteFile(ctx, p.Output.Path, ds, config.OutputFormat(p.Output)); err != nil {
				return err
			}
			if p.Output.Stats {
				res.StatsPath = StatsPath(p.Output.Path)
				return export.WriteStatsFile(res.StatsPath, res.Stats)
			}
			return nil
		})
		if err != nil {
			return res, err
		}
	}

	if p.Sink.Enabled() {
		err = step(ctx, log, StepSink, func() error {
			n, err := Sink(ctx, p.Sink, ds)
			res.Written = n
			metrics.RecordRecords("written", int(n))
			return err
		})
		if err != nil {
			return res, err
		}
	}

	log.InfoContext(ctx, "run finished",
		slog.String("job", p.Job),
		slog.Int("rows", ds.Len()),
		slog.Int64("written", res.Written),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

func step(ctx context.Context, log *slog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(name, start, err)
	if err != nil {
		log.ErrorContext(ctx, "step failed",
			slog.String("step", name),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", name, err)
	}
	log.DebugContext(ctx, "step done",
		slog.String("step", name),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Sink writes ds to the configured table and returns the number of rows
// inserted. With RowHash enabled the hash column becomes the dedupe key.
// ds is not modified.
func Sink(ctx context.Context, s config.Sink, ds *dataset.Dataset) (int64, error) {
	key := ""
	if s.RowHash.Enabled() {
		ds = withRowHash(ds, s.RowHash)
		key = s.RowHash.TargetField
	}

	repo, err := storage.New(ctx, storage.Config{Kind: s.Kind, DSN: s.DSN})
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	return storage.Write(ctx, repo, storage.SpecFor(s.Table, ds, key), ds, s.BatchSize, key)
}

// withRowHash returns a copy of ds whose rows carry h.TargetField.
func withRowHash(ds *dataset.Dataset, h builtin.Hash) *dataset.Dataset {
	rows := make([]records.Record, len(ds.Data))
	for i, r := range ds.Data {
		rows[i] = r.Clone()
	}
	h.Apply(rows)

	out := *ds
	out.Data = rows
	if !ds.HasField(h.TargetField) {
		out.Fields = append(append([]string(nil), ds.Fields...), h.TargetField)
	}
	return &out
}

// StatsPath returns the statistics file written next to an output path:
// out/iris.csv becomes out/iris.stats.json.
func StatsPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".stats.json"
}
