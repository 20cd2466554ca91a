package parser

import (
	"strings"

	"projector/internal/config"
	"projector/internal/transformer/builtin"
)

// NormalizeHeaders renames raw header cells according to opts. The result
// is a new slice.
//
// Steps, in order:
//   - A UTF-8 BOM is stripped from the first name; edge spaces are trimmed.
//   - header_map renames exact matches and skips the remaining steps.
//   - normalize_headers lower-cases and replaces spaces with "_".
//   - slug_headers camel-cases ("sepal length" -> "sepalLength").
func NormalizeHeaders(raw []string, opts config.Options) []string {
	hm := opts.StringMap("header_map")
	normalize := opts.Bool("normalize_headers", false)
	slug := opts.Bool("slug_headers", false)

	out := make([]string, len(raw))
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if builtin.HasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		if mapped, ok := hm[h]; ok {
			out[i] = mapped
			continue
		}
		if normalize {
			h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		}
		if slug {
			h = builtin.Slugify(h)
		}
		out[i] = h
	}
	return out
}
