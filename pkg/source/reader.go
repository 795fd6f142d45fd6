// Package source reads claims from JSON, JSON lines, flattened CSV, and
// nested Parquet files.
package source

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
)

// Reader is the unified interface for reading claims.
type Reader interface {
	// Next returns the next claim. Returns io.EOF when all claims have
	// been read.
	Next() (claims.Claim, error)

	// Close releases resources associated with the reader.
	Close() error
}

// Format identifies a claim file encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ErrUnknownFormat is returned when a format cannot be determined.
var ErrUnknownFormat = errors.New("unknown input format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatJSONL, FormatCSV, FormatParquet:
		return f, nil
	case "ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// DetectFormat infers the format from a file name or object key. A trailing
// ".gz" is ignored.
func DetectFormat(name string) (Format, error) {
	base := strings.TrimSuffix(strings.ToLower(name), ".gz")
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnknownFormat, name)
	}
	return ParseFormat(ext)
}

// Open wraps r in a Reader for the given format. name is used for gzip
// detection and error messages. The returned Reader owns r.
func Open(r io.ReadCloser, name string, format Format) (Reader, error) {
	gz := strings.HasSuffix(strings.ToLower(name), ".gz")

	if format == FormatParquet {
		if gz {
			r.Close()
			return nil, fmt.Errorf("%s: gzip-wrapped parquet is not supported", name)
		}
		return NewParquetReaderFromStream(r)
	}

	var in io.Reader = r
	closers := []io.Closer{r}
	if gz {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("create gzip reader for %s: %w", name, err)
		}
		closers = append(closers, gzr)
		in = gzr
	}

	switch format {
	case FormatJSON:
		return newJSONReader(in, false, closers), nil
	case FormatJSONL:
		return newJSONReader(in, true, closers), nil
	case FormatCSV:
		return newCSVReader(in, closers), nil
	default:
		closeAll(closers)
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// OpenFile opens a local claim file. An empty format is detected from the
// path.
func OpenFile(path string, format Format) (Reader, error) {
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open claims file: %w", err)
	}
	if format == FormatParquet && !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return NewParquetReaderFromFile(f)
	}
	return Open(f, path, format)
}

// ReadAll drains r and closes it.
func ReadAll(r Reader) ([]claims.Claim, error) {
	defer r.Close()

	var out []claims.Claim
	for {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
}

// closeAll closes in reverse order, returning the first error.
func closeAll(closers []io.Closer) error {
	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
