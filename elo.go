/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import "math"

// RatingPolicy holds the knobs of the Elo update. The zero value is not
// usable; construct one from Config via ratingPolicy().
type RatingPolicy struct {
	K         int
	MinRating int

	// Mean-reverting variant: K is scaled per player by distance from
	// MeanRating and clamped to [MinK, MaxK]. Off by default.
	MeanReverting bool
	MeanRating    int
	MinK          int
	MaxK          int
}

// meanReversionSlope converts rating distance from the mean into extra
// K-factor: one point of K per this many rating points below the mean.
const meanReversionSlope = 25

func eloExpected(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/400))
}

func (p RatingPolicy) effectiveK(rating int) float64 {
	if !p.MeanReverting {
		return float64(p.K)
	}
	k := float64(p.K) + float64(p.MeanRating-rating)/meanReversionSlope
	return math.Min(math.Max(k, float64(p.MinK)), float64(p.MaxK))
}

// Rate computes both players' new ratings after a decisive match.
// Pure: no side effects, deterministic given inputs.
func (p RatingPolicy) Rate(winner, loser int) (winnerNew, loserNew int) {
	expected := eloExpected(winner, loser)

	winnerNew = int(math.Round(float64(winner) + p.effectiveK(winner)*(1-expected)))
	loserNew = int(math.Round(float64(loser) - p.effectiveK(loser)*(1-expected)))

	if winnerNew < p.MinRating {
		winnerNew = p.MinRating
	}
	if loserNew < p.MinRating {
		loserNew = p.MinRating
	}
	return winnerNew, loserNew
}
