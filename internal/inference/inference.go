// Package inference guesses the semantic type of a column of raw values.
//
// The guess is a single left fold over the column in order. Each value can
// mark the column nullable, promote it to number, lock a date format, or
// demote it to string while collecting distinct values. After the fold a
// string column with few distinct values becomes an enum.
//
// When to use:
//   - As the default "type" field statistic (see internal/stats).
//   - Directly, to describe a column before casting (see internal/typecast).
//
// Edge cases:
//   - "" is null and never changes the type.
//   - Whitespace-only values are not null; they count as numeric evidence.
//   - "NaN" is not numeric.
//   - A column of only empty values has a null type and Null=true.
package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred semantic type of a column.
//
// The zero Kind is the null type and encodes as JSON null.
type Kind string

const (
	KindNull   Kind = ""
	KindNumber Kind = "number"
	KindDate   Kind = "date"
	KindEnum   Kind = "enum"
	KindString Kind = "string"
)

// MarshalJSON encodes the null type as null.
func (k Kind) MarshalJSON() ([]byte, error) {
	if k == KindNull {
		return []byte("null"), nil
	}
	return json.Marshal(string(k))
}

// UnmarshalJSON accepts null or a kind name.
func (k *Kind) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*k = KindNull
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("inference: kind: %w", err)
	}
	*k = Kind(s)
	return nil
}

// TypeDescriptor is the result of a type guess.
//
// Enum is set only when Type is KindEnum and keeps first-seen order.
// DateFormat is one of the names in DateFormats and is set only for dates.
type TypeDescriptor struct {
	Type       Kind     `json:"type"`
	Null       bool     `json:"null"`
	DateFormat string   `json:"dateFormat,omitempty"`
	Enum       []string `json:"enum,omitempty"`
	Mixed      bool     `json:"mixed,omitempty"`
}

// DateFormat pairs a format name with the Go layout that parses it.
type DateFormat struct {
	Name   string
	Layout string
}

// DateFormats are tried in order; the first layout that parses a value wins.
// Numeric month and day tokens accept one or two digits.
var DateFormats = []DateFormat{
	{Name: "ddd MMM DD YYYY HH:mm:ss", Layout: "Mon Jan 2 2006 15:04:05"},
	{Name: "dddd, MMMM D, YYYY", Layout: "Monday, January 2, 2006"},
	{Name: "YYYY-MM-DD", Layout: "2006-1-2"},
	{Name: "M/D/YY", Layout: "1/2/06"},
	{Name: "MMM D, YYYY", Layout: "Jan 2, 2006"},
	{Name: "MMMM D, YYYY", Layout: "January 2, 2006"},
}

// Layout returns the Go layout for a format name.
func Layout(name string) (string, bool) {
	for _, f := range DateFormats {
		if f.Name == name {
			return f.Layout, true
		}
	}
	return "", false
}

// ParseDate parses s with the named format.
func ParseDate(s, format string) (time.Time, bool) {
	layout, ok := Layout(format)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// detectDateFormat returns the first format that parses s.
func detectDateFormat(s string) (string, bool) {
	for _, f := range DateFormats {
		if _, err := time.Parse(f.Layout, s); err == nil {
			return f.Name, true
		}
	}
	return "", false
}

// ParseNumber reports whether s is a number and returns its value.
//
// Leading and trailing spaces around digits are allowed; a string of only
// spaces is not a number. NaN is not a number; Inf and Infinity are.
func ParseNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// isNumeric reports whether v counts toward a number column. A
// whitespace-only value does; it reads as zero in the source data.
func isNumeric(v string) bool {
	if strings.TrimSpace(v) == "" {
		return true
	}
	_, ok := ParseNumber(v)
	return ok
}

// Guesser runs type guesses and reports mixed date formats to Logger.
type Guesser struct {
	Logger *slog.Logger
}

var discard = slog.New(slog.DiscardHandler)

// GuessType guesses the type of values without logging.
func GuessType(values []string) TypeDescriptor {
	return Guesser{Logger: discard}.Guess(values)
}

// Guess folds values into a TypeDescriptor.
//
// A value that does not parse with an already locked date format leaves the
// descriptor unchanged and emits a warning with the field value and format.
func (g Guesser) Guess(values []string) TypeDescriptor {
	log := g.Logger
	if log == nil {
		log = discard
	}

	var (
		acc  TypeDescriptor
		seen = make(map[string]struct{})
		enum []string
	)

	for _, v := range values {
		if v == "" {
			acc.Null = true
			continue
		}

		if isNumeric(v) {
			switch acc.Type {
			case KindNumber:
			case KindNull:
				acc.Type = KindNumber
			default:
				acc.Mixed = true
			}
			continue
		}

		if acc.DateFormat != "" {
			if _, ok := ParseDate(v, acc.DateFormat); !ok {
				log.Warn("mixed date format detected",
					slog.String("value", v),
					slog.String("date_format", acc.DateFormat))
			}
			continue
		}

		if name, ok := detectDateFormat(v); ok {
			acc.Type = KindDate
			acc.DateFormat = name
			continue
		}

		acc.Type = KindString
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			enum = append(enum, v)
		}
	}

	if acc.Type == KindString && len(enum)*4 < len(values) {
		acc.Type = KindEnum
		acc.Enum = enum
	}
	return acc
}

// GuessValues guesses the type of an already materialised column.
func (g Guesser) GuessValues(values []any) TypeDescriptor {
	return g.Guess(Strings(values))
}

// Strings renders column values as the strings the guess folds over.
// nil becomes "", floats use the shortest exact form.
func Strings(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = String(v)
	}
	return out
}

// String renders a single cell value as text.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

// DescriptorOf reads a "type" statistic back as a TypeDescriptor.
// Values, pointers and the map form produced by a JSON round trip are accepted.
func DescriptorOf(v any) (TypeDescriptor, bool) {
	switch t := v.(type) {
	case TypeDescriptor:
		return t, true
	case *TypeDescriptor:
		if t == nil {
			return TypeDescriptor{}, false
		}
		return *t, true
	case map[string]any:
		raw, ok := t["type"]
		if !ok {
			return TypeDescriptor{}, false
		}
		var td TypeDescriptor
		s, _ := raw.(string)
		td.Type = Kind(s)
		td.Null, _ = t["null"].(bool)
		td.DateFormat, _ = t["dateFormat"].(string)
		td.Mixed, _ = t["mixed"].(bool)
		if enum, ok := t["enum"].([]any); ok {
			for _, e := range enum {
				td.Enum = append(td.Enum, String(e))
			}
		}
		return td, true
	default:
		return TypeDescriptor{}, false
	}
}
