// Package probe samples a source and describes it: per-field type guesses,
// bounded uniqueness counts, a key column and a suggested pipeline config.
package probe

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"projector/internal/config"
	"projector/internal/dataset"
	"projector/internal/inference"
	"projector/internal/loader"
	"projector/internal/transformer/builtin"
)

const (
	// DefaultMaxRows bounds the sample when Options.MaxRows is zero.
	DefaultMaxRows = 1000

	// distinctCap bounds per-column distinct tracking.
	distinctCap = 10000
)

// Options configures one probe.
type Options struct {
	Source config.Source

	// MaxRows is the number of leading rows sampled. Zero means DefaultMaxRows;
	// a negative value samples every row.
	MaxRows int

	// Name is used for the job and table names; it defaults to the source's
	// base name without extensions.
	Name string

	Logger *slog.Logger
}

// Column describes one sampled field.
type Column struct {
	Field string                   `json:"field"`
	Slug  string                   `json:"slug"`
	Type  inference.TypeDescriptor `json:"type"`

	// NonEmpty counts rows with a value; it is the uniqueness denominator.
	NonEmpty int `json:"non_empty"`
	// Distinct is capped at 10000; Capped reports when the cap was hit.
	Distinct int  `json:"distinct"`
	Capped   bool `json:"capped"`
}

// Ratio returns Distinct/NonEmpty, or 0 for an empty column.
func (c Column) Ratio() float64 {
	if c.NonEmpty <= 0 {
		return 0
	}
	return float64(c.Distinct) / float64(c.NonEmpty)
}

// Result is what a probe learned about a source.
type Result struct {
	Path        string   `json:"path"`
	Name        string   `json:"name"`
	TotalRows   int      `json:"total_rows"`
	SampledRows int      `json:"sampled_rows"`
	Columns     []Column `json:"columns"`
	Key         string   `json:"key,omitempty"`
	Breakouts   []string `json:"breakouts,omitempty"`
}

// Probe loads opt.Source through l and analyzes the leading rows.
func Probe(ctx context.Context, l loader.Loader, opt Options) (Result, error) {
	if l.Logger == nil {
		l.Logger = opt.Logger
	}
	ds, err := l.Load(ctx, opt.Source)
	if err != nil {
		return Result{}, err
	}

	res := Analyze(ds, opt.MaxRows, opt.Logger)
	res.Name = opt.Name
	if strings.TrimSpace(res.Name) == "" {
		res.Name = baseName(ds.Path)
	}
	return res, nil
}

// Analyze describes the first maxRows rows of ds.
func Analyze(ds *dataset.Dataset, maxRows int, logger *slog.Logger) Result {
	if maxRows == 0 {
		maxRows = DefaultMaxRows
	}
	rows := ds.Data
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	res := Result{
		Path:        ds.Path,
		TotalRows:   ds.Len(),
		SampledRows: len(rows),
		Columns:     make([]Column, 0, len(ds.Fields)),
	}

	g := inference.Guesser{Logger: logger}
	slugs := uniqueSlugs(ds.Fields)
	for i, f := range ds.Fields {
		values := make([]string, len(rows))
		for j, r := range rows {
			values[j] = inference.String(r[f])
		}
		col := Column{Field: f, Slug: slugs[i], Type: g.Guess(values)}
		col.NonEmpty, col.Distinct, col.Capped = countDistinct(values)
		res.Columns = append(res.Columns, col)
	}

	res.Key = InferKeyColumn(res.Columns)
	res.Breakouts = SelectBreakouts(res.Columns)
	return res
}

// countDistinct counts non-blank values and their distinct trimmed forms,
// stopping distinct tracking at distinctCap.
func countDistinct(values []string) (nonEmpty, distinct int, capped bool) {
	set := make(map[string]struct{})
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		nonEmpty++
		if capped {
			continue
		}
		set[v] = struct{}{}
		if len(set) >= distinctCap {
			capped = true
		}
	}
	return nonEmpty, len(set), capped
}

// uniqueSlugs slugs every field and suffixes collisions with 2, 3, ...
// Fields that slug to nothing become col<index>.
func uniqueSlugs(fields []string) []string {
	out := make([]string, len(fields))
	seen := make(map[string]int, len(fields))
	for i, f := range fields {
		s := builtin.Slugify(f)
		if s == "" {
			s = "col" + strconv.Itoa(i)
		}
		seen[s]++
		if n := seen[s]; n > 1 {
			s += strconv.Itoa(n)
			seen[s]++
		}
		out[i] = s
	}
	return out
}

func baseName(path string) string {
	base := filepath.Base(path)
	for {
		ext := filepath.Ext(base)
		if ext == "" || ext == base {
			break
		}
		base = strings.TrimSuffix(base, ext)
	}
	if s := builtin.Slugify(base); s != "" {
		return s
	}
	return "dataset"
}
