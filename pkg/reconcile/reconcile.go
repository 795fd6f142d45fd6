// Package reconcile compares the totals declared on claims with the totals
// recomputed from their details.
package reconcile

import (
	"fmt"
	"math"

	"github.com/bigdatavik/databricks-struct-demo/pkg/aggregate"
	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
)

// Severity grades a discrepancy by its relative difference.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// DefaultTolerance is the absolute difference below which totals agree.
const DefaultTolerance = 0.005

// Discrepancy is a claim whose declared total does not match its details.
type Discrepancy struct {
	ClaimID    string   `json:"id" parquet:"id"`
	Category   string   `json:"category" parquet:"category"`
	Declared   float64  `json:"declared_total" parquet:"declared_total"`
	Recomputed float64  `json:"recomputed_total" parquet:"recomputed_total"`
	Difference float64  `json:"difference" parquet:"difference"`
	Lines      int64    `json:"lines" parquet:"lines"`
	Severity   Severity `json:"severity" parquet:"severity"`
}

// Compare pairs each claim with its result and reports the claims whose
// declared total differs from the recomputed sum by more than tolerance.
// cs and results must be parallel, as returned in aggregate.BatchReport.
func Compare(cs []claims.Claim, results []aggregate.Result, tolerance float64) ([]Discrepancy, error) {
	if len(cs) != len(results) {
		return nil, fmt.Errorf("reconcile: %d claims but %d results", len(cs), len(results))
	}
	if tolerance < 0 {
		tolerance = 0
	}

	var out []Discrepancy
	for i, c := range cs {
		r := results[i]
		if r.ClaimID != c.ID {
			return nil, fmt.Errorf("reconcile: result %d is for claim %q, not %q", i, r.ClaimID, c.ID)
		}
		diff := r.Sum - c.DeclaredTotal
		if math.Abs(diff) <= tolerance {
			continue
		}
		out = append(out, Discrepancy{
			ClaimID:    c.ID,
			Category:   c.Category,
			Declared:   c.DeclaredTotal,
			Recomputed: r.Sum,
			Difference: diff,
			Lines:      int64(r.Count),
			Severity:   grade(c.DeclaredTotal, r.Sum),
		})
	}
	return out, nil
}

// grade uses the difference relative to the larger magnitude: under 1% is
// low, under 10% medium, anything else high.
func grade(declared, recomputed float64) Severity {
	base := math.Max(math.Abs(declared), math.Abs(recomputed))
	if base == 0 {
		return SeverityLow
	}
	rel := math.Abs(recomputed-declared) / base
	switch {
	case rel < 0.01:
		return SeverityLow
	case rel < 0.10:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}
