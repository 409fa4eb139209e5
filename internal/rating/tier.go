package rating

import (
	"math"

	"github.com/Clark-Hu/portion-finder/internal/domain"
)

// Tier is the display bucket for an aggregate.
type Tier string

const (
	TierUnrated   Tier = "unrated"
	TierTragedy   Tier = "tragedy"
	TierBlunder   Tier = "blunder"
	TierQuality   Tier = "quality"
	TierGreatness Tier = "greatness"

	// TierUnavailable marks a site whose ratings could not be read.
	TierUnavailable Tier = "unavailable"
)

// TierFor buckets an aggregate. Unrated is its own tier, never a low score.
func TierFor(agg domain.RatingAggregate) Tier {
	switch {
	case agg.Count == 0:
		return TierUnrated
	case agg.Average <= 3:
		return TierTragedy
	case agg.Average <= 6:
		return TierBlunder
	case agg.Average <= 8:
		return TierQuality
	default:
		return TierGreatness
	}
}

// RoundToOneDecimal rounds an average for display.
func RoundToOneDecimal(value float64) float64 {
	return math.Round(value*10) / 10.0
}
