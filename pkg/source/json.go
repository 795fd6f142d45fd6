package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
)

type wireClaim struct {
	ID            string          `json:"id"`
	Category      string          `json:"category"`
	DeclaredTotal json.RawMessage `json:"declared_total"`
	Details       []wireDetail    `json:"details"`
}

type wireDetail struct {
	Amount json.RawMessage `json:"amount"`
	Units  json.RawMessage `json:"units"`
}

// jsonReader decodes a JSON array of claims, or one claim per value when
// lines is set.
type jsonReader struct {
	dec     *json.Decoder
	lines   bool
	started bool
	index   int
	closers []io.Closer
}

func newJSONReader(r io.Reader, lines bool, closers []io.Closer) *jsonReader {
	return &jsonReader{dec: json.NewDecoder(r), lines: lines, closers: closers}
}

// NewJSONReader reads a JSON array of claims from r.
func NewJSONReader(r io.Reader) Reader {
	return newJSONReader(r, false, nil)
}

// NewJSONLinesReader reads one JSON claim per line from r.
func NewJSONLinesReader(r io.Reader) Reader {
	return newJSONReader(r, true, nil)
}

func (r *jsonReader) Next() (claims.Claim, error) {
	if !r.lines && !r.started {
		r.started = true
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			return claims.Claim{}, io.EOF
		}
		if err != nil {
			return claims.Claim{}, fmt.Errorf("read JSON: %w", err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return claims.Claim{}, fmt.Errorf("read JSON: expected array of claims, got %v", tok)
		}
	}
	if !r.lines && !r.dec.More() {
		return claims.Claim{}, io.EOF
	}

	var w wireClaim
	if err := r.dec.Decode(&w); err != nil {
		if r.lines && errors.Is(err, io.EOF) {
			return claims.Claim{}, io.EOF
		}
		return claims.Claim{}, fmt.Errorf("decode claim %d: %w", r.index, err)
	}
	r.index++
	return w.toClaim()
}

func (r *jsonReader) Close() error {
	return closeAll(r.closers)
}

func (w wireClaim) toClaim() (claims.Claim, error) {
	c := claims.Claim{ID: w.ID, Category: w.Category}

	total, err := jsonNumber(w.DeclaredTotal, true)
	if err != nil || math.IsInf(total, 0) {
		return claims.Claim{}, &claims.InputError{ClaimID: w.ID, Position: -1, Field: claims.ColDeclaredTotal, Value: rawString(w.DeclaredTotal)}
	}
	c.DeclaredTotal = total

	if w.Details != nil {
		c.Details = make([]claims.Detail, len(w.Details))
	}
	for i, d := range w.Details {
		amount, err := jsonNumber(d.Amount, false)
		if err != nil {
			return claims.Claim{}, &claims.InputError{ClaimID: w.ID, Position: i, Field: claims.ColAmount, Value: rawString(d.Amount)}
		}
		units, err := jsonNumber(d.Units, true)
		if err != nil {
			return claims.Claim{}, &claims.InputError{ClaimID: w.ID, Position: i, Field: claims.ColUnits, Value: rawString(d.Units)}
		}
		c.Details[i] = claims.Detail{Amount: amount, Units: units}
	}
	return c, nil
}

var errNotNumber = errors.New("not a number")

// jsonNumber accepts only JSON number literals. Missing and null values are
// zero when optional is set.
func jsonNumber(raw json.RawMessage, optional bool) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if optional {
			return 0, nil
		}
		return 0, errNotNumber
	}
	switch raw[0] {
	case '"', '{', '[', 't', 'f':
		return 0, errNotNumber
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	// Out-of-range literals decode to ±Inf or 0 and are left to the fold.
	return v, nil
}

func rawString(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "<missing>"
	}
	return string(raw)
}
