package source

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
	"github.com/parquet-go/parquet-go"
)

// parquetBatchSize is the number of claims decoded per read call.
const parquetBatchSize = 256

// parquetReader reads claims from a Parquet file whose schema nests the
// details as a list of structs, matching the claims.Claim tags.
type parquetReader struct {
	reader   *parquet.GenericReader[claims.Claim]
	file     *os.File
	tempFile bool

	buf    []claims.Claim
	bufIdx int
	bufLen int
	eof    bool
}

// NewParquetReader creates a Parquet claim reader from an io.ReaderAt.
func NewParquetReader(r io.ReaderAt, size int64) (Reader, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	return newParquetReader(file, nil, false), nil
}

// NewParquetReaderFromFile creates a Parquet claim reader that owns f.
func NewParquetReaderFromFile(f *os.File) (Reader, error) {
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}
	file, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	return newParquetReader(file, f, false), nil
}

// NewParquetReaderFromStream buffers r to a temporary file, since Parquet
// needs random access, and reads claims from it. r is closed.
func NewParquetReaderFromStream(r io.ReadCloser) (Reader, error) {
	tempFile, err := os.CreateTemp("", "claims-*.parquet")
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		tempFile.Close()
		os.Remove(tempFile.Name())
	}

	written, err := io.Copy(tempFile, r)
	r.Close()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("buffer parquet data: %w", err)
	}

	file, err := parquet.OpenFile(tempFile, written)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	return newParquetReader(file, tempFile, true), nil
}

func newParquetReader(file *parquet.File, f *os.File, temp bool) *parquetReader {
	return &parquetReader{
		reader:   parquet.NewGenericReader[claims.Claim](file),
		file:     f,
		tempFile: temp,
		buf:      make([]claims.Claim, parquetBatchSize),
	}
}

func (r *parquetReader) Next() (claims.Claim, error) {
	for {
		if r.bufIdx < r.bufLen {
			c := r.buf[r.bufIdx]
			r.buf[r.bufIdx] = claims.Claim{}
			r.bufIdx++
			if math.IsNaN(c.DeclaredTotal) || math.IsInf(c.DeclaredTotal, 0) {
				return claims.Claim{}, &claims.InputError{
					ClaimID:  c.ID,
					Position: -1,
					Field:    claims.ColDeclaredTotal,
					Value:    strconv.FormatFloat(c.DeclaredTotal, 'g', -1, 64),
				}
			}
			return c, nil
		}
		if r.eof {
			return claims.Claim{}, io.EOF
		}

		n, err := r.reader.Read(r.buf)
		r.bufIdx = 0
		r.bufLen = n
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return claims.Claim{}, fmt.Errorf("read parquet rows: %w", err)
			}
			r.eof = true
		}
	}
}

func (r *parquetReader) Close() error {
	err := r.reader.Close()
	if r.file != nil {
		name := r.file.Name()
		r.file.Close()
		if r.tempFile {
			os.Remove(name)
		}
	}
	return err
}
