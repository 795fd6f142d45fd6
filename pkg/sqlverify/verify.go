// Package sqlverify recomputes exploded aggregates with SQL, as a
// cross-check of the in-memory fold.
//
// Claims are loaded into SQLite as one row per detail and aggregated with
// SUM/COUNT/AVG ... GROUP BY claim_id, category, the same shape as the
// exploded queries run against a warehouse.
package sqlverify

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/bigdatavik/databricks-struct-demo/pkg/aggregate"
	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
	"github.com/bigdatavik/databricks-struct-demo/pkg/index"
	"github.com/bigdatavik/databricks-struct-demo/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
)

// Config holds configuration for the verifier.
type Config struct {
	// DBPath is the SQLite database path. Empty means in-memory.
	DBPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS claims (
	seq            INTEGER PRIMARY KEY,
	claim_id       TEXT NOT NULL,
	category       TEXT NOT NULL,
	declared_total REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS claim_lines (
	seq       INTEGER PRIMARY KEY,
	claim_seq INTEGER NOT NULL REFERENCES claims(seq),
	position  INTEGER NOT NULL,
	amount    REAL NOT NULL,
	units     REAL NOT NULL
);
DELETE FROM claim_lines;
DELETE FROM claims;
`

// measureColumns whitelists the columns a measure may aggregate.
var measureColumns = map[string]string{
	"":               claims.ColAmount,
	claims.ColAmount: claims.ColAmount,
	claims.ColUnits:  claims.ColUnits,
}

// Verifier holds the SQLite database used for the cross-check.
type Verifier struct {
	db *sql.DB
}

// Open creates the database and its tables. Existing rows are cleared.
func Open(ctx context.Context, cfg Config) (*Verifier, error) {
	dsn := cfg.DBPath
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Verifier{db: db}, nil
}

// Load inserts cs, one claims row per claim and one claim_lines row per
// detail, in a single transaction.
func (v *Verifier) Load(ctx context.Context, cs []claims.Claim) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	claimStmt, err := tx.PrepareContext(ctx, `INSERT INTO claims (seq, claim_id, category, declared_total) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare claim insert: %w", err)
	}
	defer claimStmt.Close()

	lineStmt, err := tx.PrepareContext(ctx, `INSERT INTO claim_lines (claim_seq, position, amount, units) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare line insert: %w", err)
	}
	defer lineStmt.Close()

	lines := 0
	for i, c := range cs {
		if _, err := claimStmt.ExecContext(ctx, i, c.ID, c.Category, c.DeclaredTotal); err != nil {
			return fmt.Errorf("insert claim %q: %w", c.ID, err)
		}
		for pos, d := range c.Details {
			if !finite(d.Amount) || !finite(d.Units) {
				return &claims.InputError{ClaimID: c.ID, Position: pos, Field: "value", Value: fmt.Sprint(d.Amount, "/", d.Units)}
			}
			if _, err := lineStmt.ExecContext(ctx, i, pos, d.Amount, d.Units); err != nil {
				return fmt.Errorf("insert claim %q detail %d: %w", c.ID, pos, err)
			}
			lines++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log := logging.FromContext(ctx)
	log.Debug().Int("claims", len(cs)).Int("lines", lines).Msg("loaded claims into sqlite")
	return nil
}

// Exploded runs the GROUP BY aggregation over the loaded lines. With
// includeEmpty, claims without lines produce a zero row (left join);
// otherwise they are absent (inner join). Rows are ordered by the first
// appearance of their key.
func (v *Verifier) Exploded(ctx context.Context, measure string, includeEmpty bool) ([]aggregate.Row, error) {
	col, ok := measureColumns[measure]
	if !ok {
		return nil, fmt.Errorf("unknown measure %q", measure)
	}

	var query string
	if includeEmpty {
		query = fmt.Sprintf(`
SELECT c.claim_id, c.category,
       COALESCE(SUM(l.%[1]s), 0.0), COUNT(l.seq), COALESCE(AVG(l.%[1]s), 0.0)
FROM claims c LEFT JOIN claim_lines l ON l.claim_seq = c.seq
GROUP BY c.claim_id, c.category
ORDER BY MIN(c.seq)`, col)
	} else {
		query = fmt.Sprintf(`
SELECT c.claim_id, c.category, SUM(l.%[1]s), COUNT(*), AVG(l.%[1]s)
FROM claim_lines l JOIN claims c ON c.seq = l.claim_seq
GROUP BY c.claim_id, c.category
ORDER BY MIN(l.seq)`, col)
	}

	rows, err := v.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query exploded aggregates: %w", err)
	}
	defer rows.Close()

	var out []aggregate.Row
	for rows.Next() {
		var r aggregate.Row
		if err := rows.Scan(&r.ClaimID, &r.Category, &r.Sum, &r.Count, &r.Average); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (v *Verifier) Close() error {
	return v.db.Close()
}

// Mismatch is a disagreement between the fold and SQL for one key.
type Mismatch struct {
	ClaimID  string
	Category string
	// Field is "sum", "count", "average", "missing_in_sql" or
	// "missing_in_fold".
	Field string
	Fold  float64
	SQL   float64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("claim %q category %q: %s fold=%v sql=%v", m.ClaimID, m.Category, m.Field, m.Fold, m.SQL)
}

// Compare joins fold and sql rows on (claim id, category) and reports every
// difference larger than tolerance. Counts must match exactly.
func Compare(fold, sqlRows []aggregate.Row, tolerance float64) ([]Mismatch, error) {
	keys := make([]string, len(sqlRows))
	for i, r := range sqlRows {
		keys[i] = index.Key(r.ClaimID, r.Category)
	}
	idx, err := index.Build(keys)
	if err != nil {
		return nil, fmt.Errorf("index sql rows: %w", err)
	}

	var out []Mismatch
	matched := make([]bool, len(sqlRows))
	for _, f := range fold {
		pos, ok := idx.Lookup(index.Key(f.ClaimID, f.Category))
		if !ok {
			out = append(out, Mismatch{ClaimID: f.ClaimID, Category: f.Category, Field: "missing_in_sql", Fold: f.Sum})
			continue
		}
		matched[pos] = true
		s := sqlRows[pos]
		if f.Count != s.Count {
			out = append(out, Mismatch{ClaimID: f.ClaimID, Category: f.Category, Field: "count", Fold: float64(f.Count), SQL: float64(s.Count)})
		}
		if math.Abs(f.Sum-s.Sum) > tolerance {
			out = append(out, Mismatch{ClaimID: f.ClaimID, Category: f.Category, Field: "sum", Fold: f.Sum, SQL: s.Sum})
		}
		if math.Abs(f.Average-s.Average) > tolerance {
			out = append(out, Mismatch{ClaimID: f.ClaimID, Category: f.Category, Field: "average", Fold: f.Average, SQL: s.Average})
		}
	}
	for i, s := range sqlRows {
		if !matched[i] {
			out = append(out, Mismatch{ClaimID: s.ClaimID, Category: s.Category, Field: "missing_in_fold", SQL: s.Sum})
		}
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
