package aggregate

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
	"github.com/bigdatavik/databricks-struct-demo/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// InvalidPolicy decides how Batch treats a claim that fails to aggregate.
type InvalidPolicy int

const (
	// AbortBatch fails the whole batch.
	AbortBatch InvalidPolicy = iota
	// SkipClaim records the failure and continues with the other claims.
	SkipClaim
)

// ParseInvalidPolicy parses "abort" or "skip".
func ParseInvalidPolicy(s string) (InvalidPolicy, error) {
	switch s {
	case "", "abort":
		return AbortBatch, nil
	case "skip":
		return SkipClaim, nil
	default:
		return AbortBatch, fmt.Errorf("unknown invalid-input policy %q (want abort or skip)", s)
	}
}

func (p InvalidPolicy) String() string {
	if p == SkipClaim {
		return "skip"
	}
	return "abort"
}

// BatchOptions controls Batch.
type BatchOptions struct {
	// Workers bounds the number of claims aggregated concurrently.
	// Default: runtime.NumCPU().
	Workers int

	// OnInvalid is applied when a claim fails to aggregate.
	OnInvalid InvalidPolicy
}

// DefaultBatchOptions returns options using every CPU and aborting on the
// first invalid claim.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		Workers:   runtime.NumCPU(),
		OnInvalid: AbortBatch,
	}
}

// WithWorkers sets the worker count.
func (o BatchOptions) WithWorkers(n int) BatchOptions {
	o.Workers = n
	return o
}

// WithOnInvalid sets the invalid-input policy.
func (o BatchOptions) WithOnInvalid(p InvalidPolicy) BatchOptions {
	o.OnInvalid = p
	return o
}

// Skipped records a claim left out of a batch.
type Skipped struct {
	Index   int
	ClaimID string
	Err     error
}

// BatchReport holds the outcome of Batch. Claims[i] and Results[i] belong to
// the same input claim; skipped claims are absent from both.
type BatchReport struct {
	Claims  []claims.Claim
	Results []Result
	Skipped []Skipped
	// Lines is the number of details folded into Results.
	Lines int
}

// Batch aggregates every claim with ComputeInPlace and reconstructs it.
// Claims are independent, so they are processed on a bounded pool; each
// claim's own fold stays sequential, and output order matches input order.
//
// Under AbortBatch the error of the lowest-index failing claim is returned.
func Batch(ctx context.Context, cs []claims.Claim, extract Extractor, opts BatchOptions) (*BatchReport, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultBatchOptions().Workers
	}
	log := logging.FromContext(ctx)

	results := make([]Result, len(cs))
	errs := make([]error, len(cs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i := range cs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Each slot is written by exactly one goroutine.
			results[i], errs[i] = ComputeInPlace(cs[i], extract)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregate batch: %w", err)
	}

	report := &BatchReport{
		Claims:  make([]claims.Claim, 0, len(cs)),
		Results: make([]Result, 0, len(cs)),
	}
	for i, err := range errs {
		if err != nil {
			if opts.OnInvalid == AbortBatch {
				return nil, err
			}
			clog := logging.FromContext(logging.WithClaim(ctx, cs[i].ID))
			ev := clog.Warn().Err(err).Int("index", i)
			var ie *claims.InputError
			if errors.As(err, &ie) {
				ev = ev.Int("position", ie.Position).Str("value", ie.Value)
			}
			ev.Msg("skipping claim")
			report.Skipped = append(report.Skipped, Skipped{Index: i, ClaimID: cs[i].ID, Err: err})
			continue
		}
		report.Claims = append(report.Claims, Reconstruct(cs[i], results[i]))
		report.Results = append(report.Results, results[i])
		report.Lines += results[i].Count
	}

	log.Debug().
		Int("claims", len(cs)).
		Int("aggregated", len(report.Results)).
		Int("skipped", len(report.Skipped)).
		Int("workers", opts.Workers).
		Msg("batch aggregated")

	return report, nil
}

// Validate checks that every claim has a non-empty id and that ids are
// unique within cs.
func Validate(cs []claims.Claim) error {
	seen := make(map[string]int, len(cs))
	for i, c := range cs {
		if c.ID == "" {
			return fmt.Errorf("claim at index %d: %w: empty id", i, claims.ErrInvalidInput)
		}
		if prev, ok := seen[c.ID]; ok {
			return fmt.Errorf("claim %q at index %d: %w: duplicate of index %d", c.ID, i, claims.ErrInvalidInput, prev)
		}
		seen[c.ID] = i
	}
	return nil
}
