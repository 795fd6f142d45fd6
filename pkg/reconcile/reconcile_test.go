package reconcile

import (
	"testing"

	"github.com/bigdatavik/databricks-struct-demo/pkg/aggregate"
	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
)

func TestCompare(t *testing.T) {
	cs := []claims.Claim{
		{ID: "ABC123456789", Category: "Medicaid", DeclaredTotal: 3.25,
			Details: []claims.Detail{{Amount: 1.25}, {Amount: 2}}},
		{ID: "STALE", Category: "Medicare", DeclaredTotal: 100,
			Details: []claims.Detail{{Amount: 50}, {Amount: 25}}},
		{ID: "CLOSE", Category: "Medicare", DeclaredTotal: 10.001,
			Details: []claims.Detail{{Amount: 10}}},
		{ID: "EMPTY", Category: "Commercial"},
		{ID: "ROUNDING", Category: "Commercial", DeclaredTotal: 1000,
			Details: []claims.Detail{{Amount: 995}}},
	}

	results := make([]aggregate.Result, len(cs))
	for i, c := range cs {
		r, err := aggregate.ComputeInPlace(c, aggregate.Amount)
		if err != nil {
			t.Fatalf("ComputeInPlace: %v", err)
		}
		results[i] = r
	}

	got, err := Compare(cs, results, DefaultTolerance)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d discrepancies, want 2: %+v", len(got), got)
	}

	stale := got[0]
	if stale.ClaimID != "STALE" || stale.Declared != 100 || stale.Recomputed != 75 || stale.Difference != -25 || stale.Lines != 2 {
		t.Errorf("stale = %+v", stale)
	}
	if stale.Severity != SeverityHigh {
		t.Errorf("stale severity = %s, want HIGH", stale.Severity)
	}
	if got[1].ClaimID != "ROUNDING" || got[1].Severity != SeverityLow {
		t.Errorf("rounding = %+v, want LOW", got[1])
	}
}

func TestCompareMismatchedInputs(t *testing.T) {
	cs := []claims.Claim{{ID: "A"}, {ID: "B"}}

	if _, err := Compare(cs, []aggregate.Result{{ClaimID: "A"}}, 0); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := Compare(cs, []aggregate.Result{{ClaimID: "A"}, {ClaimID: "C"}}, 0); err == nil {
		t.Error("expected claim id mismatch error")
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		declared, recomputed float64
		want                 Severity
	}{
		{100, 99.5, SeverityLow},
		{100, 95, SeverityMedium},
		{100, 50, SeverityHigh},
		{0, 5, SeverityHigh},
		{0, 0, SeverityLow},
	}
	for _, tt := range tests {
		if got := grade(tt.declared, tt.recomputed); got != tt.want {
			t.Errorf("grade(%v, %v) = %s, want %s", tt.declared, tt.recomputed, got, tt.want)
		}
	}
}
