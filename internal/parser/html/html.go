// Package html reads a <table> from an HTML document into a records.Table.
//
// Options:
//   - table_selector ("table"): CSS selector for candidate tables.
//   - table_index (0): which match to read.
//   - has_header (true): the header is the <thead> row, or else the first row.
//   - header_map, normalize_headers, slug_headers: see parser.NormalizeHeaders.
//
// Cell text is whitespace-collapsed. colspan repeats a cell across columns.
package html

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"projector/internal/config"
	apperrors "projector/internal/errors"
	"projector/internal/parser"
	"projector/pkg/records"
)

func init() {
	parser.Register("html", Parse)
}

// maxColspan bounds how far one cell may repeat.
const maxColspan = 1000

// Parse reads one table from r.
//
// Errors:
//   - PARSE when the document cannot be read or no table matches.
func Parse(ctx context.Context, r io.Reader, opts config.Options) (records.Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return records.Table{}, apperrors.NewParseError("html: read document", err)
	}
	if err := ctx.Err(); err != nil {
		return records.Table{}, err
	}

	selector := opts.String("table_selector", "table")
	index := opts.Int("table_index", 0)

	tables := doc.Find(selector)
	if index < 0 || index >= tables.Length() {
		return records.Table{}, apperrors.NewParseError(
			fmt.Sprintf("html: table %d not found for selector %q (found %d)", index, selector, tables.Length()), nil)
	}
	table := tables.Eq(index)

	var t records.Table
	rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		// skip rows of nested tables
		return tr.Closest("table").IsSelection(table)
	})

	headerDone := !opts.Bool("has_header", true)
	if !headerDone {
		if head := rows.FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.ParentsFiltered("thead").Length() > 0
		}); head.Length() > 0 {
			t.Fields = parser.NormalizeHeaders(rowCells(head.Last()), opts)
			rows = rows.NotSelection(head)
			headerDone = true
		}
	}

	width := len(t.Fields)
	rows.Each(func(_ int, tr *goquery.Selection) {
		cells := rowCells(tr)
		if len(cells) == 0 {
			return
		}
		if !headerDone {
			t.Fields = parser.NormalizeHeaders(cells, opts)
			width = len(t.Fields)
			headerDone = true
			return
		}
		if len(cells) > width {
			width = len(cells)
		}
		t.Rows = append(t.Rows, cells)
	})

	for len(t.Fields) < width {
		t.Fields = append(t.Fields, "")
	}
	return t, nil
}

func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
		text := strings.Join(strings.Fields(cell.Text()), " ")
		span := 1
		if v, ok := cell.Attr("colspan"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 1 {
				span = min(n, maxColspan)
			}
		}
		for i := 0; i < span; i++ {
			cells = append(cells, text)
		}
	})
	return cells
}
