package reservoir

import "fmt"

// Config holds the physical and scoring constants of one reservoir.
type Config struct {
	// Capacity is the maximum storage in TAF.
	Capacity float64
	// FloodThresholdCFS is the release rate above which a day counts as flood damage.
	FloodThresholdCFS float64
	// FloodPenalty is added to the cost for each flood-damage day.
	FloodPenalty float64
	// FixedFloodReference is the storage (TAF) the flood-control rule draws down
	// towards when not fitting to history.
	FixedFloodReference float64
	// FitHistorical scores by storage RMSE against the observed record and uses
	// the seasonal TOCS curve as the flood-control reference.
	FitHistorical bool
}

// DefaultConfig returns the Folsom Reservoir constants.
func DefaultConfig() Config {
	return Config{
		Capacity:            975,
		FloodThresholdCFS:   150000,
		FloodPenalty:        1e8,
		FixedFloodReference: 400,
	}
}

func (c Config) validate() error {
	if !(c.Capacity > 0) {
		return fmt.Errorf("reservoir: capacity must be positive, got %v", c.Capacity)
	}
	if c.FloodThresholdCFS < 0 || c.FloodPenalty < 0 {
		return fmt.Errorf("reservoir: flood threshold and penalty must be non-negative")
	}
	return nil
}
