// Package report writes claims, exploded rows, and reconciliation results
// in the output formats claimagg supports.
//
// JSON, JSON lines, and Parquet keep records nested. CSV, XLSX, and PDF
// render a flat table; claims use the one-row-per-detail layout that
// package source reads back.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bigdatavik/databricks-struct-demo/pkg/aggregate"
	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
	"github.com/bigdatavik/databricks-struct-demo/pkg/reconcile"
	"github.com/bigdatavik/databricks-struct-demo/pkg/sqlverify"
	"github.com/parquet-go/parquet-go"
)

// Format identifies an output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatXLSX    Format = "xlsx"
	FormatPDF     Format = "pdf"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatJSONL, FormatCSV, FormatParquet, FormatXLSX, FormatPDF:
		return f, nil
	case "ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// DetectFormat infers the format from a file name's extension.
func DetectFormat(name string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnknownFormat, name)
	}
	return ParseFormat(ext)
}

// WriteClaims writes cs. Tabular formats get one row per detail, and a
// claim without details gets a single row with empty amount and units.
func WriteClaims(w io.Writer, format Format, cs []claims.Claim) error {
	return write(w, format, cs, func() table {
		t := table{title: "Claims", headers: claims.FlatColumns}
		for _, c := range cs {
			if len(c.Details) == 0 {
				t.rows = append(t.rows, []any{c.ID, c.Category, c.DeclaredTotal, nil, nil})
				continue
			}
			for _, d := range c.Details {
				t.rows = append(t.rows, []any{c.ID, c.Category, c.DeclaredTotal, d.Amount, d.Units})
			}
		}
		return t
	})
}

// WriteRows writes exploded aggregate rows.
func WriteRows(w io.Writer, format Format, rows []aggregate.Row) error {
	return write(w, format, rows, func() table {
		t := table{title: "Aggregates", headers: []string{"id", "category", "sum", "count", "average"}}
		for _, r := range rows {
			t.rows = append(t.rows, []any{r.ClaimID, r.Category, r.Sum, r.Count, r.Average})
		}
		return t
	})
}

// WriteDiscrepancies writes reconciliation results.
func WriteDiscrepancies(w io.Writer, format Format, ds []reconcile.Discrepancy) error {
	return write(w, format, ds, func() table {
		t := table{
			title:   "Discrepancies",
			headers: []string{"id", "category", "declared_total", "recomputed_total", "difference", "lines", "severity"},
		}
		for _, d := range ds {
			t.rows = append(t.rows, []any{d.ClaimID, d.Category, d.Declared, d.Recomputed, d.Difference, d.Lines, string(d.Severity)})
		}
		return t
	})
}

// mismatchRecord is the serialized form of sqlverify.Mismatch.
type mismatchRecord struct {
	ClaimID  string  `json:"id" parquet:"id"`
	Category string  `json:"category" parquet:"category"`
	Field    string  `json:"field" parquet:"field"`
	Fold     float64 `json:"fold" parquet:"fold"`
	SQL      float64 `json:"sql" parquet:"sql"`
}

// WriteMismatches writes the differences found by the SQL cross-check.
func WriteMismatches(w io.Writer, format Format, ms []sqlverify.Mismatch) error {
	recs := make([]mismatchRecord, len(ms))
	for i, m := range ms {
		recs[i] = mismatchRecord(m)
	}
	return write(w, format, recs, func() table {
		t := table{title: "SQL mismatches", headers: []string{"id", "category", "field", "fold", "sql"}}
		for _, r := range recs {
			t.rows = append(t.rows, []any{r.ClaimID, r.Category, r.Field, r.Fold, r.SQL})
		}
		return t
	})
}

// write dispatches records to the nested encoders, or builds the table for
// the tabular ones.
func write[T any](w io.Writer, format Format, records []T, build func() table) error {
	if records == nil {
		records = []T{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for i := range records {
			if err := enc.Encode(records[i]); err != nil {
				return fmt.Errorf("encode record %d: %w", i, err)
			}
		}
		return nil
	case FormatParquet:
		return writeParquet(w, records)
	case FormatCSV:
		return build().writeCSV(w)
	case FormatXLSX:
		return build().writeXLSX(w)
	case FormatPDF:
		return build().writePDF(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeParquet[T any](w io.Writer, records []T) error {
	pw := parquet.NewGenericWriter[T](w)
	if _, err := pw.Write(records); err != nil {
		pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// formatCell renders a cell for text output. Floats use the shortest
// representation that round-trips; nil is an empty cell.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
