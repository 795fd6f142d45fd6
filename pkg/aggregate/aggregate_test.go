package aggregate

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
)

func sampleClaim() claims.Claim {
	return claims.Claim{
		ID:            "ABC123456789",
		Category:      "Medicaid",
		DeclaredTotal: 3.25,
		Details: []claims.Detail{
			{Amount: 1.25, Units: 1.00},
			{Amount: 2.00, Units: 1.00},
		},
	}
}

func TestComputeInPlaceReadmeExample(t *testing.T) {
	c := sampleClaim()

	r, err := ComputeInPlace(c, Amount)
	if err != nil {
		t.Fatalf("ComputeInPlace: %v", err)
	}
	if r.ClaimID != "ABC123456789" || r.Sum != 3.25 || r.Count != 2 {
		t.Errorf("result = %+v, want {ABC123456789 3.25 2}", r)
	}
	avg, err := r.Average(EmptyFail)
	if err != nil {
		t.Fatalf("Average: %v", err)
	}
	if avg != 1.625 {
		t.Errorf("Average() = %v, want 1.625", avg)
	}

	rebuilt := Reconstruct(c, r)
	if !reflect.DeepEqual(rebuilt, c) {
		t.Errorf("Reconstruct() = %+v, want %+v", rebuilt, c)
	}

	rows, err := ComputeExploded([]claims.Claim{c}, Amount, ExplodedOptions{})
	if err != nil {
		t.Fatalf("ComputeExploded: %v", err)
	}
	want := []Row{{ClaimID: "ABC123456789", Category: "Medicaid", Sum: 3.25, Count: 2, Average: 1.625}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("ComputeExploded() = %+v, want %+v", rows, want)
	}
}

func TestComputeInPlaceSumAndCount(t *testing.T) {
	tests := []struct {
		name    string
		amounts []float64
		wantSum float64
	}{
		{"empty", nil, 0},
		{"single", []float64{7}, 7},
		{"integers", []float64{1, 2, 3, 4, 5}, 15},
		{"negative", []float64{10, -2.5, -7.5}, 0},
		{"large", []float64{1e15, 1, 1}, 1e15 + 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := claims.Claim{ID: "C"}
			for _, a := range tt.amounts {
				c.Details = append(c.Details, claims.Detail{Amount: a})
			}
			r, err := ComputeInPlace(c, Amount)
			if err != nil {
				t.Fatalf("ComputeInPlace: %v", err)
			}
			if r.Sum != tt.wantSum {
				t.Errorf("Sum = %v, want %v", r.Sum, tt.wantSum)
			}
			if r.Count != len(tt.amounts) {
				t.Errorf("Count = %d, want %d", r.Count, len(tt.amounts))
			}
		})
	}
}

func TestComputeInPlaceFractionalWithinEpsilon(t *testing.T) {
	c := claims.Claim{ID: "C"}
	for i := 0; i < 10; i++ {
		c.Details = append(c.Details, claims.Detail{Amount: 0.1})
	}
	r, err := ComputeInPlace(c, Amount)
	if err != nil {
		t.Fatalf("ComputeInPlace: %v", err)
	}
	if math.Abs(r.Sum-1.0) > 1e-12 {
		t.Errorf("Sum = %v, want ~1.0", r.Sum)
	}
}

func TestComputeInPlaceUnits(t *testing.T) {
	c := sampleClaim()
	c.Details[1].Units = 3
	r, err := ComputeInPlace(c, Units)
	if err != nil {
		t.Fatalf("ComputeInPlace: %v", err)
	}
	if r.Sum != 4 {
		t.Errorf("Sum = %v, want 4", r.Sum)
	}
}

func TestComputeInPlaceDoesNotMutate(t *testing.T) {
	c := sampleClaim()
	before := c.Clone()
	if _, err := ComputeInPlace(c, Amount); err != nil {
		t.Fatalf("ComputeInPlace: %v", err)
	}
	if !reflect.DeepEqual(c, before) {
		t.Errorf("input mutated: %+v", c)
	}
}

func TestEmptyDetails(t *testing.T) {
	c := claims.Claim{ID: "EMPTY", Category: "Medicare", DeclaredTotal: 12}

	r, err := ComputeInPlace(c, Amount)
	if err != nil {
		t.Fatalf("ComputeInPlace: %v", err)
	}
	if r.Sum != 0 || r.Count != 0 {
		t.Errorf("result = %+v, want zero sum and count", r)
	}

	if _, err := r.Average(EmptyFail); !errors.Is(err, claims.ErrEmptyAggregate) {
		t.Errorf("Average(EmptyFail) error = %v, want ErrEmptyAggregate", err)
	}
	avg, err := r.Average(EmptyZero)
	if err != nil || avg != 0 {
		t.Errorf("Average(EmptyZero) = %v, %v; want 0, nil", avg, err)
	}

	rebuilt := Reconstruct(c, r)
	if rebuilt.DeclaredTotal != 0 {
		t.Errorf("DeclaredTotal = %v, want 0", rebuilt.DeclaredTotal)
	}
}

func TestNonFiniteValueFails(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		c := claims.Claim{ID: "BAD", Details: []claims.Detail{{Amount: 1}, {Amount: bad}, {Amount: 2}}}

		r, err := ComputeInPlace(c, Amount)
		if !errors.Is(err, claims.ErrInvalidInput) {
			t.Fatalf("ComputeInPlace(%v) error = %v, want ErrInvalidInput", bad, err)
		}
		if r != (Result{}) {
			t.Errorf("partial result returned: %+v", r)
		}
		var ie *claims.InputError
		if !errors.As(err, &ie) {
			t.Fatalf("error %T is not *InputError", err)
		}
		if ie.ClaimID != "BAD" || ie.Position != 1 {
			t.Errorf("InputError = %+v, want claim BAD position 1", ie)
		}

		if _, err := ComputeExploded([]claims.Claim{c}, Amount, ExplodedOptions{}); !errors.Is(err, claims.ErrInvalidInput) {
			t.Errorf("ComputeExploded(%v) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestReconstructPreservesStructure(t *testing.T) {
	c := claims.Claim{
		ID:            "X1",
		Category:      "Commercial",
		DeclaredTotal: 100,
		Details:       []claims.Detail{{Amount: 5, Units: 2}, {Amount: 3, Units: 1}, {Amount: 5, Units: 2}},
	}
	r, err := ComputeInPlace(c, Amount)
	if err != nil {
		t.Fatalf("ComputeInPlace: %v", err)
	}

	out := Reconstruct(c, r)
	if out.DeclaredTotal != 13 {
		t.Errorf("DeclaredTotal = %v, want 13", out.DeclaredTotal)
	}
	if out.ID != c.ID || out.Category != c.Category {
		t.Errorf("header changed: %+v", out)
	}
	if !reflect.DeepEqual(out.Details, c.Details) {
		t.Errorf("Details = %+v, want %+v", out.Details, c.Details)
	}

	out.Details[0].Amount = -1
	if c.Details[0].Amount != 5 {
		t.Error("reconstructed details alias the input")
	}
	if c.DeclaredTotal != 100 {
		t.Error("input DeclaredTotal mutated")
	}
}

func TestInPlace(t *testing.T) {
	c := sampleClaim()
	c.DeclaredTotal = 9.99

	out, r, err := InPlace(c, Amount)
	if err != nil {
		t.Fatalf("InPlace: %v", err)
	}
	if out.DeclaredTotal != 3.25 || r.Sum != 3.25 {
		t.Errorf("InPlace() = %+v, %+v", out, r)
	}
}

func TestComputeExplodedGrouping(t *testing.T) {
	cs := []claims.Claim{
		{ID: "A", Category: "Medicaid", Details: []claims.Detail{{Amount: 1}, {Amount: 2}}},
		{ID: "B", Category: "Medicare", Details: []claims.Detail{{Amount: 10}}},
		{ID: "EMPTY", Category: "Medicaid"},
		{ID: "A", Category: "Medicaid", Details: []claims.Detail{{Amount: 3}}},
		{ID: "A", Category: "Commercial", Details: []claims.Detail{{Amount: 4}}},
	}

	rows, err := ComputeExploded(cs, Amount, ExplodedOptions{})
	if err != nil {
		t.Fatalf("ComputeExploded: %v", err)
	}

	want := []Row{
		{ClaimID: "A", Category: "Medicaid", Sum: 6, Count: 3, Average: 2},
		{ClaimID: "B", Category: "Medicare", Sum: 10, Count: 1, Average: 10},
		{ClaimID: "A", Category: "Commercial", Sum: 4, Count: 1, Average: 4},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("ComputeExploded() =\n%+v\nwant\n%+v", rows, want)
	}

	seen := make(map[[2]string]bool)
	for _, r := range rows {
		k := [2]string{r.ClaimID, r.Category}
		if seen[k] {
			t.Errorf("duplicate key %v", k)
		}
		seen[k] = true
	}
}

func TestComputeExplodedInvalidSharedKey(t *testing.T) {
	cs := []claims.Claim{
		{ID: "A", Category: "Medicaid", Details: []claims.Detail{{Amount: 1}, {Amount: 2}}},
		{ID: "A", Category: "Medicaid", Details: []claims.Detail{{Amount: 3}, {Amount: math.NaN()}}},
	}

	_, err := ComputeExploded(cs, Amount, ExplodedOptions{})
	var ie *claims.InputError
	if !errors.As(err, &ie) {
		t.Fatalf("error = %v, want *InputError", err)
	}
	if ie.ClaimID != "A" || ie.Position != 1 {
		t.Errorf("InputError = %+v, want claim A position 1", ie)
	}
	if want := "input claim 1: "; !strings.HasPrefix(err.Error(), want) {
		t.Errorf("error = %q, want prefix %q", err, want)
	}
}

func TestComputeExplodedIncludeEmpty(t *testing.T) {
	cs := []claims.Claim{
		{ID: "EMPTY", Category: "Medicaid"},
		{ID: "B", Category: "Medicare", Details: []claims.Detail{{Amount: 10}}},
	}

	rows, err := ComputeExploded(cs, Amount, ExplodedOptions{IncludeEmpty: true, Empty: EmptyZero})
	if err != nil {
		t.Fatalf("ComputeExploded: %v", err)
	}
	want := []Row{
		{ClaimID: "EMPTY", Category: "Medicaid"},
		{ClaimID: "B", Category: "Medicare", Sum: 10, Count: 1, Average: 10},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("ComputeExploded() = %+v, want %+v", rows, want)
	}

	_, err = ComputeExploded(cs, Amount, ExplodedOptions{IncludeEmpty: true, Empty: EmptyFail})
	if !errors.Is(err, claims.ErrEmptyAggregate) {
		t.Errorf("error = %v, want ErrEmptyAggregate", err)
	}
}

func TestDeterminism(t *testing.T) {
	cs := make([]claims.Claim, 50)
	for i := range cs {
		c := claims.Claim{ID: string(rune('a'+i%26)) + string(rune('A'+i/26)), Category: "LOB"}
		for j := 0; j < 100; j++ {
			c.Details = append(c.Details, claims.Detail{Amount: float64(j)*0.37 + float64(i)*1e-3})
		}
		cs[i] = c
	}

	first, err := ComputeExploded(cs, Amount, ExplodedOptions{})
	if err != nil {
		t.Fatalf("ComputeExploded: %v", err)
	}
	for run := 0; run < 5; run++ {
		again, err := ComputeExploded(cs, Amount, ExplodedOptions{})
		if err != nil {
			t.Fatalf("ComputeExploded: %v", err)
		}
		for i := range first {
			if math.Float64bits(first[i].Sum) != math.Float64bits(again[i].Sum) || first[i] != again[i] {
				t.Fatalf("run %d row %d differs: %+v vs %+v", run, i, first[i], again[i])
			}
		}
	}
}

func TestExtractorFor(t *testing.T) {
	d := claims.Detail{Amount: 2, Units: 3}
	tests := []struct {
		measure string
		want    float64
		wantErr bool
	}{
		{"", 2, false},
		{"amount", 2, false},
		{"units", 3, false},
		{"price", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.measure, func(t *testing.T) {
			fn, err := ExtractorFor(tt.measure)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractorFor(%q) error = %v, wantErr %v", tt.measure, err, tt.wantErr)
			}
			if err == nil && fn(d) != tt.want {
				t.Errorf("extractor(%+v) = %v, want %v", d, fn(d), tt.want)
			}
		})
	}
}

func TestParsePolicies(t *testing.T) {
	if p, err := ParseEmptyPolicy("zero"); err != nil || p != EmptyZero {
		t.Errorf(`ParseEmptyPolicy("zero") = %v, %v`, p, err)
	}
	if p, err := ParseEmptyPolicy(""); err != nil || p != EmptyFail {
		t.Errorf(`ParseEmptyPolicy("") = %v, %v`, p, err)
	}
	if _, err := ParseEmptyPolicy("nan"); err == nil {
		t.Error(`ParseEmptyPolicy("nan") should fail`)
	}
	if p, err := ParseInvalidPolicy("skip"); err != nil || p != SkipClaim {
		t.Errorf(`ParseInvalidPolicy("skip") = %v, %v`, p, err)
	}
	if _, err := ParseInvalidPolicy("retry"); err == nil {
		t.Error(`ParseInvalidPolicy("retry") should fail`)
	}
}
