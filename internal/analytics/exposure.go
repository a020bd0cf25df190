package analytics

import (
	"sort"
	"time"

	"github.com/kriterionquant/chainscope/internal/chain"
)

// StrikeExposure is the signed dealer gamma exposure aggregated at one
// strike.
type StrikeExposure struct {
	Strike   float64 `json:"strike"`
	Exposure float64 `json:"exposure"`
}

// ExposureResult is the gamma exposure profile of one expiration.
// SwitchPoint is nil when the cumulative exposure never changes sign or
// fewer than two strikes carry exposure.
type ExposureResult struct {
	Strikes     []StrikeExposure `json:"strikes"`
	NetGEX      float64          `json:"net_gex"`
	SwitchPoint *float64         `json:"switch_point"`
}

// GammaExposure computes per-strike and net gamma exposure for one
// expiration. Per contract:
//
//	exposure = gamma * OI * multiplier * spot^2 * 0.01
//
// Calls add, puts subtract (dealers long call gamma, short put gamma).
// Contracts missing gamma or open interest contribute zero.
func GammaExposure(snap *chain.Snapshot, expiration time.Time, p Params) ExposureResult {
	spot := snap.Spot()
	byStrike := make(map[float64]float64)

	for _, c := range snap.ByExpiration(expiration) {
		if c.Gamma == nil || c.OpenInterest == 0 {
			continue
		}
		notional := *c.Gamma * float64(c.OpenInterest) * p.ContractMultiplier * spot * spot * 0.01
		if c.Type == chain.Put {
			notional = -notional
		}
		byStrike[c.Strike] += notional
	}

	strikes := make([]StrikeExposure, 0, len(byStrike))
	for strike, exp := range byStrike {
		strikes = append(strikes, StrikeExposure{Strike: strike, Exposure: exp})
	}
	sort.Slice(strikes, func(i, j int) bool { return strikes[i].Strike < strikes[j].Strike })

	var net float64
	for _, s := range strikes {
		net += s.Exposure
	}

	return ExposureResult{
		Strikes:     strikes,
		NetGEX:      net,
		SwitchPoint: switchPoint(strikes),
	}
}

// switchPoint locates the zero crossing of the cumulative signed
// exposure across ascending strikes, linearly interpolated between the
// bracketing strikes.
func switchPoint(strikes []StrikeExposure) *float64 {
	nonzero := 0
	for _, s := range strikes {
		if s.Exposure != 0 {
			nonzero++
		}
	}
	if nonzero < 2 {
		return nil
	}

	cum := make([]float64, len(strikes))
	running := 0.0
	for i, s := range strikes {
		running += s.Exposure
		cum[i] = running
	}

	for i := 0; i+1 < len(cum); i++ {
		c0, c1 := cum[i], cum[i+1]
		if c0 == 0 && c1 != 0 && i > 0 && cum[i-1]*c1 < 0 {
			// Cumulative sum touches zero exactly at this strike.
			return chain.Ptr(strikes[i].Strike)
		}
		if c0*c1 < 0 {
			x0, x1 := strikes[i].Strike, strikes[i+1].Strike
			cross := x0 + (0-c0)*(x1-x0)/(c1-c0)
			return chain.Ptr(cross)
		}
	}
	return nil
}
