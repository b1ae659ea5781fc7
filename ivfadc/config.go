package ivfadc

import (
	"github.com/corvid-labs/ivfadc/internal/engine"
	"github.com/corvid-labs/ivfadc/internal/obs"
	"github.com/corvid-labs/ivfadc/internal/quant"
)

// Logger is the leveled sink an Index logs through. Supply one with
// WithLogger; the default is silent.
type Logger = obs.Logger

// CoarseConfig configures the coarse k-means quantizer. Field names and
// JSON tags mirror the driver-facing parameter names enumerated for this
// component.
type CoarseConfig struct {
	NumCentroids  int   `json:"numberCentroids"`
	MaxIterations int   `json:"maxIterations"`
	Seed          int64 `json:"seed"`
}

// PQConfig configures the product quantizer. Field names and JSON tags
// mirror the driver-facing parameter names enumerated for this component.
type PQConfig struct {
	NumSubquantizers int   `json:"numberSubquantizers"`
	NumCentroids     int   `json:"numberCentroids"` // K_s, must be <= 256
	MaxIterations    int   `json:"maxIterations"`
	Seed             int64 `json:"seed"`
}

// Config holds everything needed to construct an Index. It round-trips
// through encoding/json so a driver can load it straight from a
// configuration file.
type Config struct {
	Coarse CoarseConfig `json:"coarse"`
	PQ     PQConfig     `json:"pq"`

	// DefaultK and DefaultW are used by SearchDefault; Search always takes
	// k and w explicitly. These mirror the driver's nearestNeighbors and
	// coarseNeighborsLookup parameters.
	DefaultK int `json:"nearestNeighbors"`
	DefaultW int `json:"coarseNeighborsLookup"`

	// logger is not part of the JSON-serializable driver configuration;
	// set it via WithLogger.
	logger Logger `json:"-"`
}

// Option configures a Config. Mirrors the functional-options pattern used
// throughout this codebase's lineage.
type Option func(*Config) error

// WithCoarse sets the coarse quantizer's training parameters.
func WithCoarse(numCentroids, maxIterations int, seed int64) Option {
	return func(c *Config) error {
		if numCentroids < 1 {
			return invalidArgument("WithCoarse", "numCentroids must be >= 1, got %d", numCentroids)
		}
		if maxIterations < 1 {
			return invalidArgument("WithCoarse", "maxIterations must be >= 1, got %d", maxIterations)
		}
		c.Coarse = CoarseConfig{NumCentroids: numCentroids, MaxIterations: maxIterations, Seed: seed}
		return nil
	}
}

// WithPQ sets the product quantizer's training parameters.
func WithPQ(numSubquantizers, numCentroids, maxIterations int, seed int64) Option {
	return func(c *Config) error {
		if numSubquantizers < 1 {
			return invalidArgument("WithPQ", "numSubquantizers must be >= 1, got %d", numSubquantizers)
		}
		if numCentroids < 1 || numCentroids > 256 {
			return invalidArgument("WithPQ", "numCentroids must be in [1,256], got %d", numCentroids)
		}
		if maxIterations < 1 {
			return invalidArgument("WithPQ", "maxIterations must be >= 1, got %d", maxIterations)
		}
		c.PQ = PQConfig{NumSubquantizers: numSubquantizers, NumCentroids: numCentroids, MaxIterations: maxIterations, Seed: seed}
		return nil
	}
}

// WithDefaultSearch sets the (k, w) pair SearchDefault uses.
func WithDefaultSearch(k, w int) Option {
	return func(c *Config) error {
		if k < 1 {
			return invalidArgument("WithDefaultSearch", "k must be >= 1, got %d", k)
		}
		if w < 1 {
			return invalidArgument("WithDefaultSearch", "w must be >= 1, got %d", w)
		}
		c.DefaultK = k
		c.DefaultW = w
		return nil
	}
}

// WithLogger installs the leveled sink the Index logs through. Unset, an
// Index logs nothing.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

func (c Config) toEngineConfig() engine.Config {
	return engine.Config{
		Coarse: quant.CoarseConfig{
			NumCentroids:  c.Coarse.NumCentroids,
			MaxIterations: c.Coarse.MaxIterations,
			Seed:          c.Coarse.Seed,
		},
		PQ: quant.PQConfig{
			NumSubquantizers: c.PQ.NumSubquantizers,
			NumCentroids:     c.PQ.NumCentroids,
			MaxIterations:    c.PQ.MaxIterations,
			Seed:             c.PQ.Seed,
		},
	}
}
