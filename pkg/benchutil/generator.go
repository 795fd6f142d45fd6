// Package benchutil provides synthetic claim generation for benchmarks and testing.
package benchutil

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
)

// CategoryWeight is the probability of a category being chosen.
type CategoryWeight struct {
	Category string
	P        float64
}

// GeneratorConfig configures synthetic data generation.
type GeneratorConfig struct {
	// NumClaims is the total number of claims to generate.
	NumClaims int
	// MinDetails and MaxDetails bound the details per non-empty claim.
	MinDetails int
	MaxDetails int
	// EmptyFraction is the share of claims with no details.
	EmptyFraction float64
	// StaleFraction is the share of claims whose declared total does not
	// match their details.
	StaleFraction float64
	// Categories are drawn in order; weights should sum to 1. If empty,
	// every claim is "Commercial".
	Categories []CategoryWeight
	// Seed for reproducible generation. 0 = use default seed.
	Seed int64
}

// DefaultConfig returns a reasonable default configuration.
func DefaultConfig(numClaims int) GeneratorConfig {
	return ShapeConfig(numClaims, "typical")
}

// ShapeConfig returns the configuration for one of DetailShapes.
func ShapeConfig(numClaims int, shape string) GeneratorConfig {
	cfg := GeneratorConfig{
		NumClaims:     numClaims,
		MinDetails:    1,
		MaxDetails:    12,
		EmptyFraction: 0.02,
		StaleFraction: 0.05,
		Categories: []CategoryWeight{
			{"Medicaid", 0.40},
			{"Medicare", 0.35},
			{"Commercial", 0.20},
			{"SelfPay", 0.05},
		},
		Seed: BenchmarkSeed,
	}
	switch shape {
	case "single":
		cfg.MaxDetails = 1
		cfg.EmptyFraction = 0
	case "wide":
		cfg.MinDetails = 100
		cfg.MaxDetails = 500
	}
	return cfg
}

// Generator generates synthetic claims.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a new data generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = BenchmarkSeed
	}
	if cfg.MinDetails < 1 {
		cfg.MinDetails = 1
	}
	if cfg.MaxDetails < cfg.MinDetails {
		cfg.MaxDetails = cfg.MinDetails
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Generate returns a slice of synthetic claims with unique ids.
func (g *Generator) Generate() []claims.Claim {
	cs := make([]claims.Claim, g.cfg.NumClaims)
	for i := range cs {
		cs[i] = g.generateClaim(i)
	}
	return cs
}

func (g *Generator) generateClaim(i int) claims.Claim {
	c := claims.Claim{
		ID:       fmt.Sprintf("CLM%09d", i),
		Category: g.generateCategory(),
	}
	if g.rng.Float64() < g.cfg.EmptyFraction {
		return c
	}

	n := g.cfg.MinDetails + g.rng.Intn(g.cfg.MaxDetails-g.cfg.MinDetails+1)
	c.Details = make([]claims.Detail, n)
	total := 0.0
	for j := range c.Details {
		c.Details[j] = g.generateDetail()
		total += c.Details[j].Amount
	}

	c.DeclaredTotal = total
	if g.rng.Float64() < g.cfg.StaleFraction {
		// Off by up to 20% either way.
		c.DeclaredTotal = roundCents(total * (0.8 + 0.4*g.rng.Float64()))
	}
	return c
}

func (g *Generator) generateDetail() claims.Detail {
	// Mostly small line items, some large ones.
	var cents int
	switch g.rng.Intn(10) {
	case 0:
		cents = 100_000 + g.rng.Intn(900_000)
	case 1, 2, 3:
		cents = 10_000 + g.rng.Intn(90_000)
	default:
		cents = 100 + g.rng.Intn(9_900)
	}
	return claims.Detail{
		Amount: float64(cents) / 100,
		Units:  float64(1 + g.rng.Intn(10)),
	}
}

func (g *Generator) generateCategory() string {
	if len(g.cfg.Categories) == 0 {
		return "Commercial"
	}

	r := g.rng.Float64()
	cumulative := 0.0
	for _, cw := range g.cfg.Categories {
		cumulative += cw.P
		if r < cumulative {
			return cw.Category
		}
	}
	return g.cfg.Categories[len(g.cfg.Categories)-1].Category
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
