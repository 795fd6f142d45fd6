// Package cli implements the command-line interface for claimagg.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bigdatavik/databricks-struct-demo/pkg/aggregate"
	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
	"github.com/bigdatavik/databricks-struct-demo/pkg/humanfmt"
	"github.com/bigdatavik/databricks-struct-demo/pkg/logging"
	"github.com/bigdatavik/databricks-struct-demo/pkg/metrics"
	"github.com/bigdatavik/databricks-struct-demo/pkg/reconcile"
	"github.com/bigdatavik/databricks-struct-demo/pkg/report"
	"github.com/bigdatavik/databricks-struct-demo/pkg/source"
	"github.com/bigdatavik/databricks-struct-demo/pkg/sqlverify"
	"github.com/rs/zerolog"
)

const usage = `usage: claimagg <command> [options] --in <path|s3://bucket/key>
commands: inplace, exploded, reconcile, verify`

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	return run(context.Background(), args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "inplace":
		return runCommand(ctx, newInvocation("inplace"), args[1:], stdout, stderr, runInPlace)
	case "exploded":
		return runCommand(ctx, newInvocation("exploded", withIncludeEmpty, withEmptyAverage), args[1:], stdout, stderr, runExploded)
	case "reconcile":
		return runCommand(ctx, newInvocation("reconcile", withTolerance), args[1:], stdout, stderr, runReconcile)
	case "verify":
		return runCommand(ctx, newInvocation("verify", withIncludeEmpty, withEmptyAverage, withTolerance, withSQLDB), args[1:], stdout, stderr, runVerify)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// invocation holds the flags of one command. Flags left unset on the
// command line do not override the config file.
type invocation struct {
	fs *flag.FlagSet

	in         string
	format     string
	out        string
	outFormat  string
	configPath string

	flags Config
}

type flagOption func(inv *invocation)

func withIncludeEmpty(inv *invocation) {
	inv.fs.BoolVar(&inv.flags.IncludeEmpty, "include-empty", false, "emit a zero row for claims without details")
}

// withEmptyAverage is only registered where a row can have no details.
func withEmptyAverage(inv *invocation) {
	inv.fs.StringVar(&inv.flags.EmptyAverage, "empty-average", DefaultConfig().EmptyAverage, "average of a row with no details: fail or zero")
}

func withTolerance(inv *invocation) {
	inv.fs.Float64Var(&inv.flags.Tolerance, "tolerance", reconcile.DefaultTolerance, "absolute difference treated as equal")
}

func withSQLDB(inv *invocation) {
	inv.fs.StringVar(&inv.flags.SQLDB, "sql-db", "", "SQLite file for the cross-check (default in-memory)")
}

func newInvocation(name string, opts ...flagOption) *invocation {
	inv := &invocation{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	fs := inv.fs
	def := DefaultConfig()

	fs.StringVar(&inv.in, "in", "", "input claims file or s3:// URI")
	fs.StringVar(&inv.format, "format", "", "input format: json, jsonl, csv, parquet (default from extension)")
	fs.StringVar(&inv.out, "out", "", "output file (default stdout)")
	fs.StringVar(&inv.outFormat, "out-format", "", "output format: json, jsonl, csv, parquet, xlsx, pdf")
	fs.StringVar(&inv.configPath, "config", "", "YAML config file (default $"+ConfigEnv+")")

	fs.StringVar(&inv.flags.Measure, "measure", def.Measure, "detail field to aggregate: amount or units")
	fs.IntVar(&inv.flags.Workers, "workers", def.Workers, "claims aggregated concurrently")
	fs.StringVar(&inv.flags.OnInvalid, "on-invalid", def.OnInvalid, "invalid claim policy: abort or skip")
	fs.StringVar(&inv.flags.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	fs.BoolVar(&inv.flags.Log.Debug, "debug", false, "enable debug logging")
	fs.BoolVar(&inv.flags.Log.Human, "human", false, "human-readable log output")

	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// parse reads the flags, loads the config file, and applies the flags that
// were set explicitly on top of it.
func (inv *invocation) parse(args []string) (Config, error) {
	inv.fs.SetOutput(io.Discard)
	if err := inv.fs.Parse(args); err != nil {
		return Config{}, err
	}
	if inv.in == "" {
		return Config{}, errors.New("--in is required")
	}

	cfg, err := LoadConfig(inv.configPath)
	if err != nil {
		return Config{}, err
	}

	inv.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "measure":
			cfg.Measure = inv.flags.Measure
		case "workers":
			cfg.Workers = inv.flags.Workers
		case "on-invalid":
			cfg.OnInvalid = inv.flags.OnInvalid
		case "empty-average":
			cfg.EmptyAverage = inv.flags.EmptyAverage
		case "include-empty":
			cfg.IncludeEmpty = inv.flags.IncludeEmpty
		case "tolerance":
			cfg.Tolerance = inv.flags.Tolerance
		case "metrics-file":
			cfg.MetricsFile = inv.flags.MetricsFile
		case "sql-db":
			cfg.SQLDB = inv.flags.SQLDB
		case "debug":
			cfg.Log.Debug = inv.flags.Log.Debug
		case "human":
			cfg.Log.Human = inv.flags.Log.Human
		}
	})
	return cfg, nil
}

// env is the state shared by a command's phases.
type env struct {
	inv     *invocation
	cfg     Config
	set     settings
	log     zerolog.Logger
	metrics *metrics.Registry
	stdout  io.Writer
}

type commandFunc func(ctx context.Context, e *env) error

func runCommand(ctx context.Context, inv *invocation, args []string, stdout, stderr io.Writer, cmd commandFunc) error {
	cfg, err := inv.parse(args)
	if err != nil {
		return err
	}
	set, err := cfg.resolve()
	if err != nil {
		return err
	}

	log := logging.New(stderr, cfg.Log.Debug, cfg.Log.Human).With().Str("command", inv.fs.Name()).Logger()
	ctx = logging.WithLogger(ctx, log)

	e := &env{
		inv:     inv,
		cfg:     cfg,
		set:     set,
		log:     log,
		metrics: metrics.NewRegistry(),
		stdout:  stdout,
	}

	start := time.Now()
	err = cmd(ctx, e)
	if err != nil {
		e.metrics.ObserveError(err)
	}
	if cfg.MetricsFile != "" {
		if werr := e.metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
			log.Error().Err(werr).Str("path", cfg.MetricsFile).Msg("failed to write metrics")
			if err == nil {
				err = fmt.Errorf("write metrics: %w", werr)
			}
		}
	}
	if err != nil {
		return err
	}
	log.Info().Str("elapsed", humanfmt.Duration(time.Since(start))).Msg("done")
	return nil
}

// readClaims reads and validates the whole input.
func (e *env) readClaims(ctx context.Context) ([]claims.Claim, error) {
	ctx = logging.WithPhase(ctx, "read")
	r, err := openInput(ctx, e.inv.in, e.inv.format)
	if err != nil {
		return nil, err
	}
	cs, err := source.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.inv.in, err)
	}
	if err := aggregate.Validate(cs); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx)
	log.Debug().Str("input", e.inv.in).Int("claims", len(cs)).Msg("read claims")
	return cs, nil
}

// runBatch reads the input and runs the batch fold over it.
func (e *env) runBatch(ctx context.Context) ([]claims.Claim, *aggregate.BatchReport, error) {
	cs, err := e.readClaims(ctx)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	rep, err := aggregate.Batch(logging.WithPhase(ctx, "aggregate"), cs, e.set.extract, e.set.batch)
	e.metrics.ObserveBatch(rep, time.Since(start))
	if err != nil {
		return nil, nil, err
	}

	elapsed := time.Since(start)
	e.log.Info().
		Int("claims", len(cs)).
		Int("aggregated", len(rep.Results)).
		Int("skipped", len(rep.Skipped)).
		Int("lines", rep.Lines).
		Str("elapsed", humanfmt.Duration(elapsed)).
		Str("rate", humanfmt.Rate(int64(len(cs)), elapsed)).
		Msg("aggregated claims")
	return cs, rep, nil
}

func (e *env) write(write func(io.Writer, report.Format) error) error {
	format, err := outputFormat(e.inv.outFormat, e.inv.out)
	if err != nil {
		return err
	}
	return writeOutput(e.inv.out, e.stdout, func(w io.Writer) error {
		return write(w, format)
	})
}

// runInPlace writes every aggregated claim with its declared total replaced
// by the recomputed sum.
func runInPlace(ctx context.Context, e *env) error {
	_, rep, err := e.runBatch(ctx)
	if err != nil {
		return err
	}
	return e.write(func(w io.Writer, f report.Format) error {
		return report.WriteClaims(w, f, rep.Claims)
	})
}

// runExploded writes one row per (claim id, category).
func runExploded(ctx context.Context, e *env) error {
	_, rep, err := e.runBatch(ctx)
	if err != nil {
		return err
	}
	rows, err := aggregate.ComputeExploded(rep.Claims, e.set.extract, e.set.exploded)
	if err != nil {
		return err
	}
	e.log.Debug().Str("rows", humanfmt.Count(int64(len(rows)))).Msg("exploded claims")
	return e.write(func(w io.Writer, f report.Format) error {
		return report.WriteRows(w, f, rows)
	})
}

// runReconcile writes the claims whose declared total disagrees with their
// details.
func runReconcile(ctx context.Context, e *env) error {
	cs, rep, err := e.runBatch(ctx)
	if err != nil {
		return err
	}
	ds, err := reconcile.Compare(unskipped(cs, rep), rep.Results, e.set.tolerance)
	if err != nil {
		return err
	}
	for _, d := range ds {
		e.metrics.ObserveDiscrepancy(string(d.Severity))
	}
	e.log.Info().Int("discrepancies", len(ds)).Float64("tolerance", e.set.tolerance).Msg("reconciled declared totals")
	return e.write(func(w io.Writer, f report.Format) error {
		return report.WriteDiscrepancies(w, f, ds)
	})
}

// runVerify recomputes the exploded rows in SQLite and fails if the two
// disagree. Mismatches are written to the output.
func runVerify(ctx context.Context, e *env) error {
	_, rep, err := e.runBatch(ctx)
	if err != nil {
		return err
	}
	fold, err := aggregate.ComputeExploded(rep.Claims, e.set.extract, e.set.exploded)
	if err != nil {
		return err
	}

	sqlCtx := logging.WithPhase(ctx, "sql")
	v, err := sqlverify.Open(sqlCtx, sqlverify.Config{DBPath: e.cfg.SQLDB})
	if err != nil {
		return err
	}
	defer v.Close()

	if err := v.Load(sqlCtx, rep.Claims); err != nil {
		return err
	}
	sqlRows, err := v.Exploded(sqlCtx, e.cfg.Measure, e.set.exploded.IncludeEmpty)
	if err != nil {
		return err
	}
	mismatches, err := sqlverify.Compare(fold, sqlRows, e.set.tolerance)
	if err != nil {
		return err
	}

	if err := e.write(func(w io.Writer, f report.Format) error {
		return report.WriteMismatches(w, f, mismatches)
	}); err != nil {
		return err
	}
	if len(mismatches) > 0 {
		e.log.Error().Int("mismatches", len(mismatches)).Str("first", mismatches[0].String()).Msg("fold and SQL disagree")
		return fmt.Errorf("verify: %d mismatches between fold and SQL; first: %s", len(mismatches), mismatches[0])
	}
	e.log.Info().Int("rows", len(fold)).Msg("fold and SQL agree")
	return nil
}

// unskipped returns the input claims that made it into rep, parallel to
// rep.Results.
func unskipped(cs []claims.Claim, rep *aggregate.BatchReport) []claims.Claim {
	if len(rep.Skipped) == 0 {
		return cs
	}
	skipped := make(map[int]bool, len(rep.Skipped))
	for _, s := range rep.Skipped {
		skipped[s.Index] = true
	}
	out := make([]claims.Claim, 0, len(cs)-len(rep.Skipped))
	for i, c := range cs {
		if !skipped[i] {
			out = append(out, c)
		}
	}
	return out
}
