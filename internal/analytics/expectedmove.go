package analytics

import (
	"math"
	"time"

	"github.com/kriterionquant/chainscope/internal/chain"
)

// ExpectedMoveResult is the implied one-sigma price range for an
// expiration. Both fields are nil when no ATM implied volatility is
// available.
type ExpectedMoveResult struct {
	ExpectedMove *float64 `json:"expected_move"`
	ATMIV        *float64 `json:"atm_iv"`
	DTE          int      `json:"dte"`
}

// ExpectedMove estimates spot * atmIV * sqrt(DTE/365) for one
// expiration.
//
// ATM IV rule (fixed): take the strike nearest spot and average the
// call and put IVs quoted there; if only one side has an IV, use it
// alone. Zero DTE yields an expected move of exactly zero.
func ExpectedMove(snap *chain.Snapshot, expiration time.Time) ExpectedMoveResult {
	result := ExpectedMoveResult{DTE: snap.DTE(expiration)}

	atm := atmStrike(snap, expiration)
	if atm == nil {
		return result
	}

	var sum float64
	var n int
	for _, c := range snap.ByExpiration(expiration) {
		if c.Strike == *atm && c.IV != nil {
			sum += *c.IV
			n++
		}
	}
	if n == 0 {
		return result
	}

	iv := sum / float64(n)
	move := snap.Spot() * iv * math.Sqrt(float64(result.DTE)/365)

	result.ATMIV = chain.Ptr(iv)
	result.ExpectedMove = chain.Ptr(move)
	return result
}

// atmStrike returns the expiration strike nearest spot among strikes
// that quote an IV on at least one side, nil when none do.
func atmStrike(snap *chain.Snapshot, expiration time.Time) *float64 {
	spot := snap.Spot()
	var best *float64
	for _, c := range snap.ByExpiration(expiration) {
		if c.IV == nil {
			continue
		}
		if best == nil || math.Abs(c.Strike-spot) < math.Abs(*best-spot) {
			best = chain.Ptr(c.Strike)
		}
	}
	return best
}
