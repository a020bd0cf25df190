package analytics

import (
	"sort"
	"time"

	"github.com/kriterionquant/chainscope/internal/chain"
)

// MaxPainResult holds the settlement strike minimizing aggregate
// option-holder payout. Strike is nil for an expiration with no rows.
type MaxPainResult struct {
	Strike *float64 `json:"strike"`
	Payout float64  `json:"payout"`
}

// MaxPain evaluates every distinct strike of the expiration as a
// candidate settlement price and returns the one with the least total
// payout to holders. Ties go to the smallest strike. The double loop
// is O(S^2); strike counts per expiration are small enough that this
// never matters.
func MaxPain(snap *chain.Snapshot, expiration time.Time) MaxPainResult {
	contracts := snap.ByExpiration(expiration)
	if len(contracts) == 0 {
		return MaxPainResult{}
	}

	strikeSet := make(map[float64]struct{})
	for _, c := range contracts {
		strikeSet[c.Strike] = struct{}{}
	}
	candidates := make([]float64, 0, len(strikeSet))
	for s := range strikeSet {
		candidates = append(candidates, s)
	}
	sort.Float64s(candidates)

	var best MaxPainResult
	for _, candidate := range candidates {
		payout := holderPayout(contracts, candidate)
		// Strict improvement only: ascending order makes the
		// smallest strike win ties.
		if best.Strike == nil || payout < best.Payout {
			best.Strike = chain.Ptr(candidate)
			best.Payout = payout
		}
	}
	return best
}

// holderPayout is the total intrinsic value paid to option holders if
// the underlying settles at the candidate price.
func holderPayout(contracts []chain.Contract, candidate float64) float64 {
	var payout float64
	for _, c := range contracts {
		switch {
		case c.Type == chain.Call && c.Strike < candidate:
			payout += (candidate - c.Strike) * float64(c.OpenInterest)
		case c.Type == chain.Put && c.Strike > candidate:
			payout += (c.Strike - candidate) * float64(c.OpenInterest)
		}
	}
	return payout
}
