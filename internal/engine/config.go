package engine

import "github.com/corvid-labs/ivfadc/internal/quant"

// Config holds the two quantizers' training configuration. It is set once,
// at construction, and does not change for the engine's lifetime.
type Config struct {
	Coarse quant.CoarseConfig
	PQ     quant.PQConfig
}
