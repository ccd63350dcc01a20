// Package rating implements the Elo-style pairwise rating update used to
// rank items after a duel.
//
// The mathematical basis: the two ratings are compared on a curve of width
// 400 to produce an expected score in [0,1] for each side, which is then
// compared to the actual outcome and scaled by the K-factor. A win against a
// much stronger opponent moves the rating far more than a win against a
// weaker one.
package rating

import (
	"errors"
	"math"
)

// DefaultK is the volatility constant applied when the caller does not
// supply one.
const DefaultK = 32

// Spread is the rating difference at which one side has 10-to-1 odds.
const Spread = 400

// Result carries both post-duel ratings and the signed delta for each side.
// The deltas are rounded independently and are not guaranteed to be equal in
// magnitude; for equal starting ratings they are exactly opposite.
type Result struct {
	RatingA int
	RatingB int
	DeltaA  int
	DeltaB  int
}

// ErrNonPositiveK is returned when the K-factor is zero or negative.
var ErrNonPositiveK = errors.New("k-factor must be positive")

// Expected returns A's expected score against B. The complement is B's.
func Expected(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/Spread))
}

// ResolveDuel computes both new ratings after a duel. Ties are not
// supported; the caller must have forced a winner. Both expectations are
// computed from the pre-update ratings: neither side's rating is touched
// before the other's delta is known.
//
// The function is pure. Persisting both ratings atomically, bumping both
// duel counters, and appending the DuelEvent record are the caller's
// responsibility.
func ResolveDuel(ratingA, ratingB float64, winnerIsA bool, k float64) (Result, error) {
	if k <= 0 {
		return Result{}, ErrNonPositiveK
	}
	expectedA := Expected(ratingA, ratingB)
	expectedB := 1 - expectedA

	scoreA, scoreB := 0.0, 1.0
	if winnerIsA {
		scoreA, scoreB = 1.0, 0.0
	}

	newA := int(math.Round(ratingA + k*(scoreA-expectedA)))
	newB := int(math.Round(ratingB + k*(scoreB-expectedB)))
	return Result{
		RatingA: newA,
		RatingB: newB,
		DeltaA:  newA - int(math.Round(ratingA)),
		DeltaB:  newB - int(math.Round(ratingB)),
	}, nil
}
