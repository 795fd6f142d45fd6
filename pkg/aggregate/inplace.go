package aggregate

import "github.com/bigdatavik/databricks-struct-demo/pkg/claims"

// ComputeInPlace folds extract over c.Details in order. It returns an
// *claims.InputError for the first non-finite value and no partial result.
// c is not modified.
func ComputeInPlace(c claims.Claim, extract Extractor) (Result, error) {
	acc, err := foldDetails(c.ID, c.Details, extract)
	if err != nil {
		return Result{}, err
	}
	return Result{ClaimID: c.ID, Sum: acc.sum, Count: acc.count}, nil
}

// Reconstruct returns a copy of c with DeclaredTotal replaced by r.Sum.
// Every other field, and the order and contents of Details, is unchanged.
func Reconstruct(c claims.Claim, r Result) claims.Claim {
	out := c.Clone()
	out.DeclaredTotal = r.Sum
	return out
}

// InPlace runs ComputeInPlace and Reconstruct.
func InPlace(c claims.Claim, extract Extractor) (claims.Claim, Result, error) {
	r, err := ComputeInPlace(c, extract)
	if err != nil {
		return claims.Claim{}, Result{}, err
	}
	return Reconstruct(c, r), r, nil
}
