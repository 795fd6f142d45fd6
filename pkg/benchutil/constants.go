package benchutil

// Shared constants for benchmarks across packages.

// BenchmarkSeed is the default seed for reproducible benchmark data generation.
const BenchmarkSeed = 42

// Standard benchmark sizes for quick runs.
var BenchmarkSizes = []int{1000, 10000, 100000}

// ScalingSizes are larger sizes for comprehensive scaling tests.
// Used with CLAIMAGG_LONG_BENCH=1 environment variable.
var ScalingSizes = []int{100000, 500000, 1000000}

// DetailShapes name the detail-count distributions for benchmarking:
//   - single: one detail per claim
//   - typical: 1 to 12 details, a few empty claims
//   - wide: up to 500 details per claim
var DetailShapes = []string{
	"single",
	"typical",
	"wide",
}
