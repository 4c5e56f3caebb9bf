package matching

import (
	"math"
	"sort"

	"github.com/BearBump/FleetBox/internal/models"
)

// DefaultRouteDistanceKm stands in for a real distance lookup.
const DefaultRouteDistanceKm = 500.0

type ShipmentSize struct {
	TotalWeight float64
	TotalVolume float64
}

type RankedTruck struct {
	Truck *models.Truck `json:"truck"`

	// Utilization is informational only: shipment volume as a percentage
	// of truck volume capacity. Not part of the score.
	Utilization   float64 `json:"utilization"`
	EstimatedCost float64 `json:"estimatedCost"`
	Score         float64 `json:"score"`
}

// RankTrucks filters the pool down to trucks that fit the shipment and
// ranks the rest cheapest-first at the given route distance. Ties keep
// input order. An empty result is a valid answer, not an error.
func RankTrucks(s ShipmentSize, pool []*models.Truck, distanceKm float64) []RankedTruck {
	if distanceKm <= 0 {
		distanceKm = DefaultRouteDistanceKm
	}

	ranked := make([]RankedTruck, 0, len(pool))
	for _, t := range pool {
		if t == nil || !t.IsAvailable {
			continue
		}
		if t.CapacityWeight < s.TotalWeight || t.CapacityVolume < s.TotalVolume {
			continue
		}

		// Feasibility guarantees CapacityVolume >= TotalVolume, so the
		// division is only reachable with a positive denominator.
		utilization := 0.0
		if s.TotalVolume > 0 {
			utilization = s.TotalVolume / t.CapacityVolume * 100
		}

		cost := distanceKm * t.CostPerKm
		ranked = append(ranked, RankedTruck{
			Truck:         t,
			Utilization:   round1(utilization),
			EstimatedCost: cost,
			Score:         cost,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score < ranked[j].Score })
	return ranked
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
