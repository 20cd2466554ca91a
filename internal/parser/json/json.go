// Package json parses JSON documents into a records.Table.
//
// Accepted shapes:
//   - A root array of objects; each object is a row.
//   - A root object whose first array-of-objects field holds the rows (envelope).
//   - A single root object, which is one row.
//   - Any of the above followed by more objects (JSON Lines).
//
// Field order is the order keys are first seen. Values become strings:
// numbers keep their literal text, null is "", arrays of strings are joined
// with array_join_separator (","), other nested values are compact JSON.
//
// Options: header_map, normalize_headers, slug_headers (see
// parser.NormalizeHeaders) and array_join_separator.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"projector/internal/config"
	apperrors "projector/internal/errors"
	"projector/internal/parser"
	"projector/pkg/records"
)

func init() {
	parser.Register("json", Parse)
	parser.Register("jsonl", Parse)
}

// object is a decoded JSON object that remembers key order.
type object struct {
	keys []string
	vals map[string]any
}

func (o *object) set(k string, v any) {
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

func newObject() *object { return &object{vals: make(map[string]any)} }

// collector accumulates rows, widening the field list as new keys appear.
type collector struct {
	ctx   context.Context
	opts  config.Options
	sep   string
	index map[string]int
	table records.Table
}

func (c *collector) emit(o *object) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	names := parser.NormalizeHeaders(o.keys, c.opts)
	row := make([]string, len(c.table.Fields))
	for i, k := range o.keys {
		name := names[i]
		j, ok := c.index[name]
		if !ok {
			j = len(c.table.Fields)
			c.index[name] = j
			c.table.Fields = append(c.table.Fields, name)
			row = append(row, "")
		}
		row[j] = cellString(o.vals[k], c.sep)
	}
	c.table.Rows = append(c.table.Rows, row)
	return nil
}

// Parse reads all of r.
//
// Errors:
//   - PARSE for malformed JSON or unsupported shapes, with the row number
//     being read when it failed.
//   - ctx.Err() when cancelled.
func Parse(ctx context.Context, r io.Reader, opts config.Options) (records.Table, error) {
	sep := opts.String("array_join_separator", ",")
	if sep == "" {
		sep = ","
	}
	c := &collector{ctx: ctx, opts: opts, sep: sep, index: make(map[string]int)}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := walk(dec, c); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return records.Table{}, err
		}
		return records.Table{}, apperrors.NewParseError("json", err).WithContext("row", len(c.table.Rows)+1)
	}
	return c.table, nil
}

func walk(dec *json.Decoder, c *collector) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read first token: %w", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("unsupported root token %T (want object or array)", tok)
	}
	switch d {
	case '[':
		if err := streamArrayOfObjects(dec, c); err != nil {
			return err
		}
		if err := expectDelim(dec, ']'); err != nil {
			return err
		}

	case '{':
		streamed, single, err := envelopeOrSingle(dec, c)
		if err != nil {
			return err
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
		if !streamed {
			if err := c.emit(single); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unsupported root delimiter %q", d)
	}

	return trailingObjects(dec, c)
}

// trailingObjects reads JSON Lines objects after the root value.
func trailingObjects(dec *json.Decoder, c *collector) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read trailing object: %w", err)
		}
		if tok == nil {
			continue
		}
		if tok != json.Delim('{') {
			return fmt.Errorf("trailing value is not an object (got %v)", tok)
		}
		o, err := readObject(dec)
		if err != nil {
			return err
		}
		if err := c.emit(o); err != nil {
			return err
		}
	}
}

// streamArrayOfObjects emits each element of the current array ('[' already
// consumed). null elements are skipped; other non-objects are an error.
func streamArrayOfObjects(dec *json.Decoder, c *collector) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read array element: %w", err)
		}
		if err := emitElement(dec, c, tok); err != nil {
			return err
		}
	}
	return nil
}

func emitElement(dec *json.Decoder, c *collector, tok json.Token) error {
	if tok == nil {
		return nil
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("array element not an object (got %v)", tok)
	}
	o, err := readObject(dec)
	if err != nil {
		return err
	}
	return c.emit(o)
}

// envelopeOrSingle walks a root object ('{' already consumed).
//
// The first field holding an array whose first element is an object (or an
// empty array) is streamed as the rows and the remaining fields are skipped.
// Without such a field the object itself is returned as a single row.
func envelopeOrSingle(dec *json.Decoder, c *collector) (streamed bool, single *object, _ error) {
	single = newObject()

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return false, nil, err
		}
		valTok, err := dec.Token()
		if err != nil {
			return false, nil, fmt.Errorf("read value of %q: %w", key, err)
		}

		if valTok == json.Delim('[') {
			first, err := dec.Token()
			if err != nil {
				return false, nil, fmt.Errorf("read array %q: %w", key, err)
			}
			if first == json.Delim(']') || first == json.Delim('{') {
				if first == json.Delim('{') {
					if err := emitElement(dec, c, first); err != nil {
						return false, nil, err
					}
					if err := streamArrayOfObjects(dec, c); err != nil {
						return false, nil, err
					}
					if err := expectDelim(dec, ']'); err != nil {
						return false, nil, err
					}
				}
				for dec.More() {
					if _, err := readKey(dec); err != nil {
						return true, nil, err
					}
					if err := skipNextValue(dec); err != nil {
						return true, nil, err
					}
				}
				return true, nil, nil
			}

			arr, err := materializeArrayFrom(dec, first)
			if err != nil {
				return false, nil, err
			}
			single.set(key, arr)
			continue
		}

		val, err := materialize(dec, valTok)
		if err != nil {
			return false, nil, err
		}
		single.set(key, val)
	}
	return false, single, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("read object key: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("object key not a string (got %T)", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read %q: %w", want, err)
	}
	if tok != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// readObject reads the rest of an object ('{' already consumed).
func readObject(dec *json.Decoder) (*object, error) {
	o := newObject()
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read value of %q: %w", key, err)
		}
		v, err := materialize(dec, tok)
		if err != nil {
			return nil, err
		}
		o.set(key, v)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return o, nil
}

// materialize builds a Go value for the value starting at tok. Nested
// objects become map[string]any; their key order does not matter because
// they are rendered as JSON.
func materialize(dec *json.Decoder, tok json.Token) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		o, err := readObject(dec)
		if err != nil {
			return nil, err
		}
		return o.vals, nil
	case '[':
		first, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read array: %w", err)
		}
		return materializeArrayFrom(dec, first)
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", d)
	}
}

// materializeArrayFrom reads an array whose first token (after '[') is first.
func materializeArrayFrom(dec *json.Decoder, first json.Token) ([]any, error) {
	arr := []any{}
	tok := first
	for tok != json.Delim(']') {
		v, err := materialize(dec, tok)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
		if tok, err = dec.Token(); err != nil {
			return nil, fmt.Errorf("read array: %w", err)
		}
	}
	return arr, nil
}

func skipNextValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("skip value: %w", err)
	}
	_, err = materialize(dec, tok)
	return err
}

// cellString renders a decoded value as table text.
func cellString(v any, sep string) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		ss := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			s, ok := it.(string)
			if !ok {
				return compact(v)
			}
			ss = append(ss, s)
		}
		return strings.Join(ss, sep)
	default:
		return compact(v)
	}
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
