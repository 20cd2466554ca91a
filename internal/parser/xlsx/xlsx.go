// Package xlsx reads one worksheet of an Excel workbook into a records.Table.
//
// Options:
//   - sheet: worksheet name; otherwise sheet_index (0) picks from the sheet list.
//   - skip_rows (0): rows to drop before the header.
//   - has_header (true), header_map, normalize_headers, slug_headers.
//
// Cells come back as their formatted text; trailing empty cells are dropped
// by the reader and read back as "".
package xlsx

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"projector/internal/config"
	apperrors "projector/internal/errors"
	"projector/internal/parser"
	"projector/pkg/records"
)

func init() {
	parser.Register("xlsx", Parse)
}

// Parse reads the selected sheet from r.
//
// Errors:
//   - PARSE when r is not a workbook or the sheet does not exist.
func Parse(ctx context.Context, r io.Reader, opts config.Options) (records.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return records.Table{}, apperrors.NewParseError("xlsx: open workbook", err)
	}
	defer f.Close()

	sheet := opts.String("sheet", "")
	if sheet == "" {
		list := f.GetSheetList()
		idx := opts.Int("sheet_index", 0)
		if idx < 0 || idx >= len(list) {
			return records.Table{}, apperrors.NewParseError(
				fmt.Sprintf("xlsx: sheet index %d out of range (have %d sheets)", idx, len(list)), nil)
		}
		sheet = list[idx]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return records.Table{}, apperrors.NewParseError("xlsx: read sheet "+sheet, err).WithContext("sheet", sheet)
	}
	if err := ctx.Err(); err != nil {
		return records.Table{}, err
	}

	if skip := opts.Int("skip_rows", 0); skip > 0 {
		rows = rows[min(skip, len(rows)):]
	}

	var t records.Table
	if opts.Bool("has_header", true) && len(rows) > 0 {
		t.Fields = parser.NormalizeHeaders(rows[0], opts)
		rows = rows[1:]
	}

	width := len(t.Fields)
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		width = max(width, len(row))
		t.Rows = append(t.Rows, row)
	}
	for len(t.Fields) < width {
		t.Fields = append(t.Fields, "")
	}
	return t, nil
}
