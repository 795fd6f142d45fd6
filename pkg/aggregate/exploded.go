package aggregate

import (
	"fmt"

	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
)

// Row is one exploded output row: the aggregate of every detail sharing a
// (claim id, category) key.
type Row struct {
	ClaimID  string  `json:"id" parquet:"id"`
	Category string  `json:"category" parquet:"category"`
	Sum      float64 `json:"sum" parquet:"sum"`
	Count    int64   `json:"count" parquet:"count"`
	Average  float64 `json:"average" parquet:"average"`
}

// ExplodedOptions controls ComputeExploded.
type ExplodedOptions struct {
	// IncludeEmpty emits a zero row for a claim with no details. By default
	// such claims are dropped, since they expand to no rows.
	IncludeEmpty bool

	// Empty is the average policy for zero-filled rows.
	Empty EmptyPolicy
}

type groupKey struct {
	claimID  string
	category string
}

// line is a detail tagged with its parent key, the index of its claim in
// the input and its position within that claim. Claims may share a key, so
// pos alone does not locate a detail.
type line struct {
	key    groupKey
	claim  int
	pos    int
	detail claims.Detail
}

type group struct {
	key   groupKey
	lines []line
}

// ComputeExploded expands each claim's details into lines tagged with the
// claim id and category, groups the lines by that pair, and folds each
// group. Rows come out in the order their key first appears; each key
// appears exactly once. An invalid value fails with an *claims.InputError
// wrapped with the index of its claim in cs.
func ComputeExploded(cs []claims.Claim, extract Extractor, opts ExplodedOptions) ([]Row, error) {
	groups := make([]*group, 0, len(cs))
	index := make(map[groupKey]*group, len(cs))

	for ci, c := range cs {
		key := groupKey{claimID: c.ID, category: c.Category}
		g, ok := index[key]
		if !ok {
			if len(c.Details) == 0 && !opts.IncludeEmpty {
				continue
			}
			g = &group{key: key}
			index[key] = g
			groups = append(groups, g)
		}
		for i, d := range c.Details {
			g.lines = append(g.lines, line{key: key, claim: ci, pos: i, detail: d})
		}
	}

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		acc := accumulator{sum: 0.0}
		for _, l := range g.lines {
			if err := acc.add(l.key.claimID, l.pos, l.detail, extract); err != nil {
				return nil, fmt.Errorf("input claim %d: %w", l.claim, err)
			}
		}
		avg, err := average(g.key.claimID, acc.sum, acc.count, opts.Empty)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			ClaimID:  g.key.claimID,
			Category: g.key.category,
			Sum:      acc.sum,
			Count:    int64(acc.count),
			Average:  avg,
		})
	}
	return rows, nil
}
