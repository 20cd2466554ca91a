// Package builtin holds the functions a default registry is seeded with:
// column aggregates for the statistics engine, per-value map functions for
// projections, and the row hash used to key sink rows.
package builtin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"projector/pkg/records"
)

// Hash writes a deterministic SHA-256 of selected fields into TargetField.
//
// Sinks use it as a stable, always-non-null dedupe key for projected rows:
//
//	sink:
//	  row_hash:
//	    fields: [sepal_length, species]
//	    target_field: row_hash
//	    include_field_names: true
//
// Canonical form:
//   - Fields are joined in order with Separator (default 0x1f).
//   - Missing or nil values are a single NUL byte, so missing differs from "".
//   - NaN and ±Inf render as "NaN", "+Inf", "-Inf".
//   - time.Time renders as RFC3339Nano in UTC.
//   - The result is lowercase hex (64 chars).
type Hash struct {
	Fields            []string `json:"fields" yaml:"fields"`
	TargetField       string   `json:"target_field" yaml:"target_field"`
	IncludeFieldNames bool     `json:"include_field_names" yaml:"include_field_names"`
	Separator         string   `json:"separator" yaml:"separator"`
	// Overwrite replaces an existing TargetField; otherwise such rows are skipped.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`
	TrimSpace bool `json:"trim_space" yaml:"trim_space"`
}

// Enabled reports whether h has enough configuration to do anything.
func (h Hash) Enabled() bool {
	return h.TargetField != "" && len(h.Fields) > 0
}

// Apply hashes each record in place and returns in.
func (h Hash) Apply(in []records.Record) []records.Record {
	if len(in) == 0 || !h.Enabled() {
		return in
	}

	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}

	for _, r := range in {
		if r == nil {
			continue
		}
		if !h.Overwrite {
			if _, exists := r[h.TargetField]; exists {
				continue
			}
		}
		sum := hashRecord(r, h.Fields, sep, h.IncludeFieldNames, h.TrimSpace)
		r[h.TargetField] = hex.EncodeToString(sum[:])
	}
	return in
}

// HashValue returns the hex SHA-256 of v's canonical form.
func HashValue(v any, trimSpace bool) string {
	var b strings.Builder
	appendCanonicalValue(&b, v, trimSpace)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func hashRecord(r records.Record, fields []string, sep string, includeNames, trimSpace bool) [sha256.Size]byte {
	var b strings.Builder
	b.Grow(len(fields) * 20)

	for i, f := range fields {
		if i > 0 {
			b.WriteString(sep)
		}
		if includeNames {
			b.WriteString(f)
			b.WriteByte('=')
		}
		appendCanonicalValue(&b, r[f], trimSpace)
	}
	return sha256.Sum256([]byte(b.String()))
}

func appendCanonicalValue(b *strings.Builder, v any, trimSpace bool) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')

	case string:
		if trimSpace && HasEdgeSpace(t) {
			t = strings.TrimSpace(t)
		}
		b.WriteString(t)

	case bool:
		b.WriteString(strconv.FormatBool(t))

	case int:
		b.WriteString(strconv.Itoa(t))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))

	case float32:
		b.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))

	case time.Time:
		if !t.IsZero() {
			t = t.UTC()
		}
		b.WriteString(t.Format(time.RFC3339Nano))

	default:
		b.WriteString(fmt.Sprint(t))
	}
}
