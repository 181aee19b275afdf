// Package scoring ranks available couriers for a pickup/drop-off pair.
//
// Selection is greedy and single-shot: it picks the best courier for one
// request without looking at other pending requests. Two concurrent callers
// can pick the same courier; exclusivity is enforced later by the claim.
package scoring

import (
	"math"
	"sort"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

const (
	distanceWeight    = 1.5
	ratingWeight      = 2.0
	priorityWeight    = 3.0
	experienceDivisor = 50.0
	experienceCap     = 5.0
)

// Candidate is a scored courier.
type Candidate struct {
	Courier           domain.Courier
	DistanceToOrigin  float64
	TotalTripDistance float64
	Score             float64
}

// Score computes the ranking score of a courier; lower is better.
func Score(distanceToOrigin, rating float64, totalDeliveries int, priority bool) float64 {
	experience := math.Min(float64(totalDeliveries)/experienceDivisor, experienceCap)
	score := distanceWeight*distanceToOrigin - ratingWeight*rating - experience
	if priority {
		score -= priorityWeight * rating
	}
	return score
}

// Rank scores every available courier and returns them best first.
// Ties are broken by the lowest courier id.
func Rank(candidates []domain.Courier, origin, destination domain.GeoPoint, priority bool) []Candidate {
	trip := geo.Distance(origin, destination)
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Availability != domain.AvailabilityAvailable {
			continue
		}
		toOrigin := geo.Distance(c.Position, origin)
		out = append(out, Candidate{
			Courier:           c,
			DistanceToOrigin:  toOrigin,
			TotalTripDistance: toOrigin + trip,
			Score:             Score(toOrigin, c.Rating, c.TotalDeliveries, priority),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Courier.ID < out[j].Courier.ID
	})
	return out
}

// SelectBest returns the lowest-scoring available courier.
// The boolean is false when no courier is available; that is a normal outcome.
func SelectBest(candidates []domain.Courier, origin, destination domain.GeoPoint, priority bool) (domain.Courier, bool) {
	ranked := Rank(candidates, origin, destination, priority)
	if len(ranked) == 0 {
		return domain.Courier{}, false
	}
	return ranked[0].Courier, true
}
