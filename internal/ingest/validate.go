package ingest

import (
	"encoding/json"
	"math"

	"github.com/lox/floodsim/internal/models"
)

const (
	FlagInflowMissing       = "inflow_missing"
	FlagInflowNegative      = "inflow_negative"
	FlagStorageMissing      = "storage_missing"
	FlagStorageNegative     = "storage_negative"
	FlagStorageOverCapacity = "storage_over_capacity"
	FlagDemandInvalid       = "demand_invalid"
)

// ValidateDay flags suspicious values. Values are never altered: the simulation
// propagates whatever it is given.
func ValidateDay(d models.Day, capacity float64) []string {
	var flags []string

	switch {
	case math.IsNaN(d.Inflow):
		flags = append(flags, FlagInflowMissing)
	case d.Inflow < 0:
		flags = append(flags, FlagInflowNegative)
	}

	switch {
	case math.IsNaN(d.Storage):
		flags = append(flags, FlagStorageMissing)
	case d.Storage < 0:
		flags = append(flags, FlagStorageNegative)
	case capacity > 0 && d.Storage > capacity:
		flags = append(flags, FlagStorageOverCapacity)
	}

	return flags
}

func ValidateDemand(v float64) []string {
	if math.IsNaN(v) || v < 0 {
		return []string{FlagDemandInvalid}
	}
	return nil
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
