package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/bigdatavik/databricks-struct-demo/pkg/aggregate"
	"github.com/bigdatavik/databricks-struct-demo/pkg/reconcile"
	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable holding the default config path.
const ConfigEnv = "CLAIMAGG_CONFIG"

// LogConfig controls logger construction.
type LogConfig struct {
	Debug bool `yaml:"debug"`
	Human bool `yaml:"human"`
}

// Config holds the settings shared by every command. Values come from
// defaults, then the YAML file, then command-line flags.
type Config struct {
	Measure      string    `yaml:"measure"`
	Workers      int       `yaml:"workers"`
	OnInvalid    string    `yaml:"on_invalid"`
	EmptyAverage string    `yaml:"empty_average"`
	IncludeEmpty bool      `yaml:"include_empty"`
	Tolerance    float64   `yaml:"tolerance"`
	Log          LogConfig `yaml:"log"`
	MetricsFile  string    `yaml:"metrics_file"`
	// SQLDB keeps the verify database on disk instead of in memory.
	SQLDB string `yaml:"sql_db"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Measure:      "amount",
		Workers:      aggregate.DefaultBatchOptions().Workers,
		OnInvalid:    aggregate.AbortBatch.String(),
		EmptyAverage: aggregate.EmptyFail.String(),
		Tolerance:    reconcile.DefaultTolerance,
	}
}

// LoadConfig reads the YAML file at path over the defaults. An empty path
// falls back to $CLAIMAGG_CONFIG; if that is unset too, the defaults are
// returned unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// settings is a Config resolved into the types the packages take.
type settings struct {
	extract   aggregate.Extractor
	batch     aggregate.BatchOptions
	exploded  aggregate.ExplodedOptions
	tolerance float64
}

func (c Config) resolve() (settings, error) {
	var s settings
	var err error

	if s.extract, err = aggregate.ExtractorFor(c.Measure); err != nil {
		return s, err
	}
	onInvalid, err := aggregate.ParseInvalidPolicy(c.OnInvalid)
	if err != nil {
		return s, err
	}
	empty, err := aggregate.ParseEmptyPolicy(c.EmptyAverage)
	if err != nil {
		return s, err
	}
	if c.Workers < 0 {
		return s, errors.New("workers must not be negative")
	}
	if c.Tolerance < 0 {
		return s, errors.New("tolerance must not be negative")
	}

	s.batch = aggregate.DefaultBatchOptions().WithOnInvalid(onInvalid)
	if c.Workers > 0 {
		s.batch = s.batch.WithWorkers(c.Workers)
	}
	s.exploded = aggregate.ExplodedOptions{IncludeEmpty: c.IncludeEmpty, Empty: empty}
	s.tolerance = c.Tolerance
	return s, nil
}
