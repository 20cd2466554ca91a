// Package csv parses delimited text into a records.Table.
//
// Options:
//   - has_header (true): first record holds field names; otherwise names are blank.
//   - comma (','; '\t' for tsv): field delimiter.
//   - trim_space (false): trim edge whitespace from values.
//   - lazy_quotes (false), fields_per_record (0 = ragged rows allowed).
//   - header_map, normalize_headers, slug_headers: see parser.NormalizeHeaders.
//   - skip_rows (0): records to drop before the header.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"projector/internal/config"
	apperrors "projector/internal/errors"
	"projector/internal/parser"
	"projector/internal/transformer/builtin"
	"projector/pkg/records"
)

func init() {
	parser.Register("csv", Parse)
	parser.Register("tsv", func(ctx context.Context, r io.Reader, opts config.Options) (records.Table, error) {
		return parse(ctx, r, opts, '\t')
	})
}

// cancelCheckEvery is how many records are read between context checks.
const cancelCheckEvery = 4096

// Parse reads all of r.
//
// Errors:
//   - PARSE with the 1-based record number for malformed input.
//   - ctx.Err() when cancelled.
func Parse(ctx context.Context, r io.Reader, opts config.Options) (records.Table, error) {
	return parse(ctx, r, opts, ',')
}

func parse(ctx context.Context, r io.Reader, opts config.Options, defComma rune) (records.Table, error) {
	hasHeader := opts.Bool("has_header", true)
	trim := opts.Bool("trim_space", false)
	fieldsPer := opts.Int("fields_per_record", 0)
	skip := opts.Int("skip_rows", 0)

	cr := csv.NewReader(r)
	cr.Comma = opts.Rune("comma", defComma)
	cr.LazyQuotes = opts.Bool("lazy_quotes", false)
	if fieldsPer != 0 {
		cr.FieldsPerRecord = fieldsPer
	} else {
		cr.FieldsPerRecord = -1
	}

	var (
		t    records.Table
		line int
	)
	read := func() ([]string, error) {
		line++
		rec, err := cr.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, apperrors.NewParseError("csv read", err).WithContext("record", line)
		}
		return rec, err
	}

	for i := 0; i < skip; i++ {
		if _, err := read(); err != nil {
			if errors.Is(err, io.EOF) {
				return t, nil
			}
			return records.Table{}, err
		}
	}

	if hasHeader {
		hdr, err := read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return records.Table{}, err
		}
		t.Fields = parser.NormalizeHeaders(hdr, opts)
	}

	width := len(t.Fields)
	for n := 0; ; n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return records.Table{}, err
			}
		}

		rec, err := read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records.Table{}, err
		}

		row := make([]string, len(rec))
		for i, v := range rec {
			if trim && builtin.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			row[i] = v
		}
		if len(row) > width {
			width = len(row)
		}
		t.Rows = append(t.Rows, row)
	}

	// Headerless or short headers get blank names up to the widest row.
	for len(t.Fields) < width {
		t.Fields = append(t.Fields, "")
	}
	return t, nil
}
