package analytics

import (
	"math"
	"time"

	"github.com/kriterionquant/chainscope/internal/chain"
)

// PositioningResult captures the open-interest walls and put/call
// sentiment ratios of one expiration. Nil means no qualifying data.
type PositioningResult struct {
	PutWall       *float64 `json:"put_wall"`
	PutWallOI     int64    `json:"put_wall_oi"`
	CallWall      *float64 `json:"call_wall"`
	CallWallOI    int64    `json:"call_wall_oi"`
	PCRatioOI     *float64 `json:"pc_ratio_oi"`
	PCRatioVolume *float64 `json:"pc_ratio_volume"`
}

// Positioning computes OI support/resistance and put/call ratios for
// one expiration.
//
// Put wall: strike with maximum put OI strictly below spot. Call wall:
// strike with maximum call OI at or above spot. Ties go to the strike
// closest to spot. Wall detection is limited to strikes within the
// relevance band around spot; the ratios use the whole expiration.
func Positioning(snap *chain.Snapshot, expiration time.Time, p Params) PositioningResult {
	spot := snap.Spot()
	lower, upper := 0.0, math.Inf(1)
	if p.RelevanceBand > 0 {
		lower = spot * (1 - p.RelevanceBand)
		upper = spot * (1 + p.RelevanceBand)
	}

	var result PositioningResult
	var putOI, callOI, putVol, callVol int64

	for _, c := range snap.ByExpiration(expiration) {
		switch c.Type {
		case chain.Put:
			putOI += c.OpenInterest
			putVol += c.Volume
		case chain.Call:
			callOI += c.OpenInterest
			callVol += c.Volume
		}

		if c.Strike < lower || c.Strike > upper || c.OpenInterest == 0 {
			continue
		}

		switch {
		case c.Type == chain.Put && c.Strike < spot:
			if betterWall(c, result.PutWall, result.PutWallOI, spot) {
				result.PutWall = chain.Ptr(c.Strike)
				result.PutWallOI = c.OpenInterest
			}
		case c.Type == chain.Call && c.Strike >= spot:
			if betterWall(c, result.CallWall, result.CallWallOI, spot) {
				result.CallWall = chain.Ptr(c.Strike)
				result.CallWallOI = c.OpenInterest
			}
		}
	}

	if callOI > 0 {
		result.PCRatioOI = chain.Ptr(float64(putOI) / float64(callOI))
	}
	if callVol > 0 {
		result.PCRatioVolume = chain.Ptr(float64(putVol) / float64(callVol))
	}
	return result
}

// betterWall reports whether candidate c displaces the current wall:
// strictly more OI wins, equal OI goes to the strike nearest spot.
func betterWall(c chain.Contract, current *float64, currentOI int64, spot float64) bool {
	if current == nil || c.OpenInterest > currentOI {
		return true
	}
	if c.OpenInterest == currentOI {
		return math.Abs(c.Strike-spot) < math.Abs(*current-spot)
	}
	return false
}
