// Package aggregate computes sums, counts, and averages over the details
// nested inside a claim.
//
// Both output shapes are built on the same fold: an accumulator seeded with
// an explicit float64 zero and advanced in detail order. ComputeInPlace and
// Reconstruct keep one record per claim; ComputeExploded expands details into
// rows and groups them by (claim id, category).
package aggregate

import (
	"fmt"
	"math"
	"strconv"

	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
)

// Extractor returns the value aggregated for a detail. It must be pure.
type Extractor func(claims.Detail) float64

// Amount extracts Detail.Amount.
func Amount(d claims.Detail) float64 { return d.Amount }

// Units extracts Detail.Units.
func Units(d claims.Detail) float64 { return d.Units }

// ExtractorFor resolves a measure name to its extractor.
func ExtractorFor(measure string) (Extractor, error) {
	switch measure {
	case "", claims.ColAmount:
		return Amount, nil
	case claims.ColUnits:
		return Units, nil
	default:
		return nil, fmt.Errorf("unknown measure %q (want %s or %s)", measure, claims.ColAmount, claims.ColUnits)
	}
}

// EmptyPolicy decides what Average returns when there are no details.
type EmptyPolicy int

const (
	// EmptyFail reports ErrEmptyAggregate.
	EmptyFail EmptyPolicy = iota
	// EmptyZero reports an average of zero.
	EmptyZero
)

// ParseEmptyPolicy parses "fail" or "zero".
func ParseEmptyPolicy(s string) (EmptyPolicy, error) {
	switch s {
	case "", "fail":
		return EmptyFail, nil
	case "zero":
		return EmptyZero, nil
	default:
		return EmptyFail, fmt.Errorf("unknown empty-average policy %q (want fail or zero)", s)
	}
}

func (p EmptyPolicy) String() string {
	if p == EmptyZero {
		return "zero"
	}
	return "fail"
}

// Result is the aggregate of one claim's details.
type Result struct {
	ClaimID string
	Sum     float64
	Count   int
}

// Average returns Sum/Count, or applies policy when Count is zero.
func (r Result) Average(policy EmptyPolicy) (float64, error) {
	return average(r.ClaimID, r.Sum, r.Count, policy)
}

func average(claimID string, sum float64, count int, policy EmptyPolicy) (float64, error) {
	if count > 0 {
		return sum / float64(count), nil
	}
	if policy == EmptyZero {
		return 0, nil
	}
	return 0, fmt.Errorf("claim %q: %w", claimID, claims.ErrEmptyAggregate)
}

// accumulator is the fold state. The zero value is the seed.
type accumulator struct {
	sum   float64
	count int
}

// add folds one detail. A non-finite value leaves the accumulator unusable;
// callers discard it and return the error.
func (a *accumulator) add(claimID string, pos int, d claims.Detail, extract Extractor) error {
	v := extract(d)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &claims.InputError{
			ClaimID:  claimID,
			Position: pos,
			Field:    "value",
			Value:    strconv.FormatFloat(v, 'g', -1, 64),
		}
	}
	a.sum += v
	a.count++
	return nil
}

func foldDetails(claimID string, details []claims.Detail, extract Extractor) (accumulator, error) {
	acc := accumulator{sum: 0.0}
	for i, d := range details {
		if err := acc.add(claimID, i, d, extract); err != nil {
			return accumulator{}, err
		}
	}
	return acc, nil
}
