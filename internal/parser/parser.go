// Package parser turns a byte stream into a records.Table. Each format lives
// in its own subpackage and registers itself here; import
// projector/internal/parser/all to get every format.
package parser

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"projector/internal/config"
	"projector/pkg/records"
)

// Func parses r into a table. Field names come back as found (after any
// option-driven renaming); blank names are left blank for the dataset
// assembler to replace with their column index.
type Func func(ctx context.Context, r io.Reader, opts config.Options) (records.Table, error)

var (
	mu      sync.RWMutex
	parsers = map[string]Func{}
)

// Register makes a parser available under format.
//
// Panics:
//   - If format is empty, f is nil or format is already registered.
func Register(format string, f Func) {
	mu.Lock()
	defer mu.Unlock()

	if format == "" {
		panic("parser: Register called with empty format")
	}
	if f == nil {
		panic("parser: Register called with nil parser")
	}
	if _, exists := parsers[format]; exists {
		panic(fmt.Sprintf("parser: already registered for format=%q", format))
	}
	parsers[format] = f
}

// Lookup returns the parser for format.
func Lookup(format string) (Func, error) {
	mu.RLock()
	f, ok := parsers[format]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("parser: unsupported format %q (have %v)", format, Formats())
	}
	return f, nil
}

// Formats lists the registered formats in sorted order.
func Formats() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(parsers))
	for k := range parsers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
