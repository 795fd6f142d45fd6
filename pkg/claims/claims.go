// Package claims defines the claim header and line-item records that the
// aggregation packages consume.
package claims

// Claim is a claim header owning an ordered sequence of line items.
type Claim struct {
	// ID identifies the claim. It is unique within a batch.
	ID string `json:"id" parquet:"id"`

	// Category classifies the claim, e.g. the line of business ("Medicaid").
	Category string `json:"category" parquet:"category"`

	// DeclaredTotal is the total carried by the source. It may be stale;
	// aggregation recomputes it from Details.
	DeclaredTotal float64 `json:"declared_total" parquet:"declared_total"`

	// Details are the claim's line items in source order.
	Details []Detail `json:"details" parquet:"details,list"`
}

// Detail is a single claim line. It has no identity beyond its position
// within the owning claim.
type Detail struct {
	Amount float64 `json:"amount" parquet:"amount"`
	Units  float64 `json:"units" parquet:"units"`
}

// Clone returns a copy of c whose Details slice does not alias c.Details.
func (c Claim) Clone() Claim {
	out := c
	if c.Details != nil {
		out.Details = make([]Detail, len(c.Details))
		copy(out.Details, c.Details)
	}
	return out
}

// Flattened column names used when a claim is written one row per detail.
// A claim without details occupies a single row with empty amount and units.
const (
	ColID            = "id"
	ColCategory      = "category"
	ColDeclaredTotal = "declared_total"
	ColAmount        = "amount"
	ColUnits         = "units"
)

// FlatColumns is the header of the flattened layout, in column order.
var FlatColumns = []string{ColID, ColCategory, ColDeclaredTotal, ColAmount, ColUnits}
