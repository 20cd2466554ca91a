// Package loader opens a source, parses it with the parser registered for
// its format and assembles the Dataset.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"projector/internal/config"
	"projector/internal/dataset"
	apperrors "projector/internal/errors"
	"projector/internal/parser"
	"projector/internal/source"
	"projector/pkg/records"

	// every format is available to Load
	_ "projector/internal/parser/all"
)

// DefaultFormat is used when neither the config nor the name gives one.
const DefaultFormat = "csv"

// Loader reads datasets.
type Loader struct {
	Opener source.Opener
	Logger *slog.Logger
}

// Load reads path with default options.
func Load(ctx context.Context, path string) (*dataset.Dataset, error) {
	return Loader{}.Load(ctx, config.Source{Path: path})
}

// Load opens src, parses it and assembles a Dataset whose Path is the
// resolved location.
//
// Errors:
//   - IO when the source cannot be opened or read.
//   - PARSE when the content does not parse or the format is unknown.
func (l Loader) Load(ctx context.Context, src config.Source) (*dataset.Dataset, error) {
	t, name, err := l.Table(ctx, src)
	if err != nil {
		return nil, err
	}
	ds := dataset.FromTable(t, name)
	l.logger().DebugContext(ctx, "dataset assembled",
		slog.String("path", name),
		slog.Int("rows", ds.Len()),
		slog.Int("fields", len(ds.Fields)))
	return ds, nil
}

// Table opens and parses src without assembling records.
func (l Loader) Table(ctx context.Context, src config.Source) (records.Table, string, error) {
	opener := l.Opener
	if src.Timeout > 0 {
		opener.Timeout = src.Timeout
	}

	start := time.Now()
	r, err := opener.Open(ctx, src.Path)
	if err != nil {
		return records.Table{}, "", err
	}
	defer r.Close()

	format := src.Format
	if format == "" {
		format = r.Format
	}
	if format == "" {
		format = DefaultFormat
	}

	parse, err := parser.Lookup(format)
	if err != nil {
		return records.Table{}, r.Name, apperrors.NewParseError("select parser", err).WithContext("format", format)
	}

	t, err := parse(ctx, r, src.Options)
	if err != nil {
		var ae *apperrors.AppError
		if errors.As(err, &ae) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return records.Table{}, r.Name, err
		}
		return records.Table{}, r.Name, apperrors.NewIOError("read "+r.Name, err)
	}

	l.logger().DebugContext(ctx, "source parsed",
		slog.String("path", r.Name),
		slog.String("format", format),
		slog.String("compression", r.Compression),
		slog.Int("rows", len(t.Rows)),
		slog.Duration("elapsed", time.Since(start)))
	return t, r.Name, nil
}

func (l Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}
