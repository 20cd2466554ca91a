package probe

import (
	"fmt"
	"sort"
	"strings"

	"projector/internal/inference"
)

// maxBreakouts caps SelectBreakouts.
const maxBreakouts = 5

// InferKeyColumn returns the slug of the column with the most distinct
// values, first column winning ties, or "" when nothing was sampled.
func InferKeyColumn(cols []Column) string {
	best, bestDistinct := -1, 0
	for i, c := range cols {
		if c.Distinct > bestDistinct {
			best, bestDistinct = i, c.Distinct
		}
	}
	if best < 0 {
		return ""
	}
	return cols[best].Slug
}

// SelectBreakouts returns up to five enum columns whose uniqueness ratio is
// at most 90%, lowest ratio first, by slug.
func SelectBreakouts(cols []Column) []string {
	type cand struct {
		slug  string
		ratio float64
	}
	cands := make([]cand, 0, len(cols))
	for _, c := range cols {
		if c.Type.Type != inference.KindEnum || c.Distinct <= 0 {
			continue
		}
		r := c.Ratio()
		if r > 0.90 {
			continue
		}
		cands = append(cands, cand{slug: c.Slug, ratio: r})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].ratio == cands[j].ratio {
			return cands[i].slug < cands[j].slug
		}
		return cands[i].ratio < cands[j].ratio
	})

	var out []string
	for _, c := range cands {
		out = append(out, c.slug)
		if len(out) >= maxBreakouts {
			break
		}
	}
	return out
}

// RenderSummary renders one CSV-ish line per column:
//
//	sample_rows=150
//	key=sepalLength
//	field,slug,type,null,date_format
//	sepal length,sepalLength,number,false,
func RenderSummary(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "sample_rows=%d\n", r.SampledRows)
	fmt.Fprintf(&b, "key=%s\n", r.Key)
	b.WriteString("field,slug,type,null,date_format\n")
	for _, c := range r.Columns {
		typ := string(c.Type.Type)
		if typ == "" {
			typ = "null"
		}
		fmt.Fprintf(&b, "%s,%s,%s,%t,%s\n", c.Field, c.Slug, typ, c.Type.Null, c.Type.DateFormat)
	}
	return b.String()
}

// FormatUniquenessReport renders a tab-separated uniqueness table sorted by
// ratio, then column. Columns with no values are omitted.
func FormatUniquenessReport(r Result) string {
	if r.SampledRows <= 0 {
		return "uniqueness: no rows sampled"
	}

	cols := make([]Column, 0, len(r.Columns))
	for _, c := range r.Columns {
		if c.NonEmpty > 0 {
			cols = append(cols, c)
		}
	}
	sort.SliceStable(cols, func(i, j int) bool {
		ri, rj := cols[i].Ratio(), cols[j].Ratio()
		if ri == rj {
			return cols[i].Slug < cols[j].Slug
		}
		return ri < rj
	})

	var b strings.Builder
	fmt.Fprintf(&b, "uniqueness report:\tsampled_rows=%d\n", r.SampledRows)
	fmt.Fprintf(&b, "%-15s\t%-7s\t%-7s\tratio\tcapped\n", "col", "unique", "rows")
	for _, c := range cols {
		fmt.Fprintf(&b, "%-15s\t%-7d\t%d\t%.1f%%\t%t\n", c.Slug, c.Distinct, c.NonEmpty, c.Ratio()*100, c.Capped)
	}
	return strings.TrimRight(b.String(), "\n")
}
