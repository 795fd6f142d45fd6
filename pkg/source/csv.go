package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
)

// csvColumns holds the header positions of the flattened layout.
// Optional columns are -1 when absent.
type csvColumns struct {
	id, category, declaredTotal, amount, units int
}

// csvReader regroups flattened rows (one per detail) into claims. Rows of
// one claim must be contiguous.
type csvReader struct {
	csvReader *csv.Reader
	cols      csvColumns
	header    bool
	line      int

	pending []string // first row of the next claim
	done    bool
	closers []io.Closer
}

func newCSVReader(r io.Reader, closers []io.Closer) *csvReader {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	csvr.TrimLeadingSpace = true

	return &csvReader{csvReader: csvr, closers: closers}
}

// NewCSVReader reads flattened claim rows from r. The first row must be a
// header naming at least the id and amount columns.
func NewCSVReader(r io.Reader) Reader {
	return newCSVReader(r, nil)
}

func (r *csvReader) readRow() ([]string, error) {
	fields, err := r.csvReader.Read()
	if err != nil {
		return nil, err
	}
	r.line++
	return fields, nil
}

func (r *csvReader) readHeader() error {
	fields, err := r.readRow()
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("read CSV header: %w", err)
	}

	cols := csvColumns{id: -1, category: -1, declaredTotal: -1, amount: -1, units: -1}
	for i, name := range fields {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case claims.ColID:
			cols.id = i
		case claims.ColCategory:
			cols.category = i
		case claims.ColDeclaredTotal:
			cols.declaredTotal = i
		case claims.ColAmount:
			cols.amount = i
		case claims.ColUnits:
			cols.units = i
		}
	}
	if cols.id < 0 {
		return fmt.Errorf("CSV header missing %q column", claims.ColID)
	}
	if cols.amount < 0 {
		return fmt.Errorf("CSV header missing %q column", claims.ColAmount)
	}
	r.cols = cols
	r.header = true
	return nil
}

func cell(fields []string, col int) string {
	if col < 0 || col >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[col])
}

func (r *csvReader) Next() (claims.Claim, error) {
	if !r.header {
		if err := r.readHeader(); err != nil {
			return claims.Claim{}, err
		}
	}

	first := r.pending
	r.pending = nil
	if first == nil {
		if r.done {
			return claims.Claim{}, io.EOF
		}
		row, err := r.readRow()
		if errors.Is(err, io.EOF) {
			r.done = true
			return claims.Claim{}, io.EOF
		}
		if err != nil {
			return claims.Claim{}, fmt.Errorf("read CSV row %d: %w", r.line+1, err)
		}
		first = row
	}

	c, err := r.startClaim(first)
	if err != nil {
		return claims.Claim{}, err
	}
	if err := r.addDetail(&c, first); err != nil {
		return claims.Claim{}, err
	}

	for !r.done {
		row, err := r.readRow()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return claims.Claim{}, fmt.Errorf("read CSV row %d: %w", r.line+1, err)
		}
		if cell(row, r.cols.id) != c.ID {
			r.pending = row
			break
		}
		if err := r.addDetail(&c, row); err != nil {
			return claims.Claim{}, err
		}
	}
	return c, nil
}

func (r *csvReader) startClaim(row []string) (claims.Claim, error) {
	c := claims.Claim{
		ID:       cell(row, r.cols.id),
		Category: cell(row, r.cols.category),
	}
	if c.ID == "" {
		return claims.Claim{}, fmt.Errorf("CSV row %d: %w: empty %s", r.line, claims.ErrInvalidInput, claims.ColID)
	}
	if raw := cell(row, r.cols.declaredTotal); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return claims.Claim{}, &claims.InputError{ClaimID: c.ID, Position: -1, Field: claims.ColDeclaredTotal, Value: raw}
		}
		c.DeclaredTotal = v
	}
	return c, nil
}

// addDetail appends the row's detail. A row with empty amount and units
// carries no detail; it is how a claim without details is written.
func (r *csvReader) addDetail(c *claims.Claim, row []string) error {
	rawAmount := cell(row, r.cols.amount)
	rawUnits := cell(row, r.cols.units)
	if rawAmount == "" && rawUnits == "" {
		return nil
	}

	pos := len(c.Details)
	if rawAmount == "" {
		return &claims.InputError{ClaimID: c.ID, Position: pos, Field: claims.ColAmount, Value: "<missing>"}
	}
	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return &claims.InputError{ClaimID: c.ID, Position: pos, Field: claims.ColAmount, Value: rawAmount}
	}

	var units float64
	if rawUnits != "" {
		units, err = strconv.ParseFloat(rawUnits, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return &claims.InputError{ClaimID: c.ID, Position: pos, Field: claims.ColUnits, Value: rawUnits}
		}
	}

	c.Details = append(c.Details, claims.Detail{Amount: amount, Units: units})
	return nil
}

func (r *csvReader) Close() error {
	return closeAll(r.closers)
}
