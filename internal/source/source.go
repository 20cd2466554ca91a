// Package source opens dataset locators: local paths, file:// URLs,
// http(s) URLs and "-" for stdin. Compressed inputs (.gz, .bz2) are
// decompressed transparently.
package source

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	apperrors "projector/internal/errors"
	"projector/internal/metrics"
)

// DefaultTimeout bounds a remote fetch when Opener.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Opener resolves and opens locators.
type Opener struct {
	// Client is used for http(s) locators; nil means http.DefaultClient.
	Client *http.Client
	// Timeout bounds the whole remote fetch, body included.
	Timeout time.Duration
	// Dir resolves relative paths; empty means the working directory.
	Dir string
	// Stdin backs the "-" locator.
	Stdin io.Reader
}

// Reader is an opened locator.
type Reader struct {
	io.Reader

	// Name is the resolved path or URL.
	Name string
	// Format is the data format implied by the name, e.g. "csv"; may be "".
	Format string
	// Compression is "gzip", "bzip2" or "".
	Compression string

	closers []func() error
}

// Close releases the underlying file, response body and decompressor.
func (r *Reader) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// Open opens locator for reading. The caller must Close the result.
//
// Errors are IO errors; for HTTP they include the status and up to 4KB of
// the response body.
func (o Opener) Open(ctx context.Context, locator string) (*Reader, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, apperrors.NewIOError("empty source locator", nil)
	}

	r := &Reader{}
	switch {
	case locator == "-":
		r.Name = "-"
		if o.Stdin == nil {
			r.Reader = strings.NewReader("")
		} else {
			r.Reader = o.Stdin
		}

	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		body, err := o.fetch(ctx, locator)
		if err != nil {
			return nil, err
		}
		r.Name = locator
		r.Reader = body
		r.closers = append(r.closers, body.Close)

	default:
		name, err := o.resolvePath(locator)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(name)
		if err != nil {
			return nil, apperrors.NewIOError("open "+name, err).WithContext("path", name)
		}
		r.Name = name
		r.Reader = f
		r.closers = append(r.closers, f.Close)
	}

	r.Format, r.Compression = Detect(r.Name)
	if r.Compression != "" {
		dr, err := Decompress(r.Compression, r.Reader)
		if err != nil {
			_ = r.Close()
			return nil, apperrors.NewIOError("decompress "+r.Name, err)
		}
		r.Reader = dr
		if c, ok := dr.(io.Closer); ok {
			r.closers = append(r.closers, c.Close)
		}
	}
	return r, nil
}

// resolvePath turns a path or file:// URL into a path, relative to Dir.
func (o Opener) resolvePath(locator string) (string, error) {
	name := locator
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return "", apperrors.NewIOError("parse file URL "+locator, err)
		}
		name = u.Path
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir := o.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", apperrors.NewIOError("resolve working directory", err)
		}
		dir = wd
	}
	return filepath.Join(dir, name), nil
}

// body wraps a response body so closing it also releases the fetch context.
type body struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b body) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

func (o Opener) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, apperrors.NewIOError("new request", err)
	}
	req.Header.Set("User-Agent", "projector/1.0")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordHTTP(0, time.Since(start))
		cancel()
		return nil, apperrors.NewIOError("http get "+rawURL, err)
	}
	metrics.RecordHTTP(resp.StatusCode, time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, apperrors.NewIOError(
			fmt.Sprintf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil).
			WithContext("status", resp.StatusCode)
	}
	return body{ReadCloser: resp.Body, cancel: cancel}, nil
}

// Detect derives the data format and compression from a name's extensions,
// e.g. "iris.csv.gz" is ("csv", "gzip"). Query strings are ignored.
func Detect(name string) (format, compression string) {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Path != "" {
		name = u.Path
	}
	_, base := path.Split(filepath.ToSlash(name))

	exts := strings.Split(strings.ToLower(base), ".")
	if len(exts) < 2 {
		return "", ""
	}
	for _, ext := range exts[1:] {
		switch ext {
		case "gz", "gzip":
			compression = "gzip"
		case "bz2", "bzip2":
			compression = "bzip2"
		case "csv":
			format = "csv"
		case "tsv", "tab":
			format = "tsv"
		case "json":
			format = "json"
		case "jsonl", "ndjson", "ldjson":
			format = "jsonl"
		case "html", "htm":
			format = "html"
		case "xlsx", "xlsm":
			format = "xlsx"
		}
	}
	return format, compression
}

// Decompress wraps r with the decoder for kind; "" returns r unchanged.
func Decompress(kind string, r io.Reader) (io.Reader, error) {
	switch kind {
	case "":
		return r, nil
	case "gzip", "gz":
		return gzip.NewReader(r)
	case "bzip2", "bz2":
		return bzip2.NewReader(r), nil
	default:
		return nil, fmt.Errorf("compression type not supported: %s", kind)
	}
}
