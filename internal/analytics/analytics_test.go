package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/kriterionquant/chainscope/internal/chain"
)

var testExpiry = time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)

func mkSnapshot(t *testing.T, spot float64, asOf time.Time, contracts []chain.Contract) *chain.Snapshot {
	t.Helper()
	snap, err := chain.NewSnapshot(spot, asOf, contracts)
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	return snap
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestGammaExposureFormulaAndSigns(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -30)
	snap := mkSnapshot(t, 100, asOf, []chain.Contract{
		{Strike: 100, Expiration: testExpiry, Type: chain.Call, OpenInterest: 10, Gamma: chain.Ptr(0.01)},
		{Strike: 100, Expiration: testExpiry, Type: chain.Put, OpenInterest: 5, Gamma: chain.Ptr(0.01)},
	})

	result := GammaExposure(snap, testExpiry, DefaultParams())

	if len(result.Strikes) != 1 {
		t.Fatalf("expected 1 strike, got %d", len(result.Strikes))
	}
	// call: 0.01*10*100*100^2*0.01 = 100, put: -50
	if !approx(result.Strikes[0].Exposure, 50, 1e-9) {
		t.Errorf("expected net exposure 50 at strike, got %v", result.Strikes[0].Exposure)
	}
	if !approx(result.NetGEX, 50, 1e-9) {
		t.Errorf("expected net GEX 50, got %v", result.NetGEX)
	}
}

func TestGammaExposureNetEqualsSum(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -10)
	snap := mkSnapshot(t, 4050, asOf, []chain.Contract{
		{Strike: 4000, Expiration: testExpiry, Type: chain.Put, OpenInterest: 500, Gamma: chain.Ptr(0.002)},
		{Strike: 4000, Expiration: testExpiry, Type: chain.Call, OpenInterest: 50, Gamma: chain.Ptr(0.002)},
		{Strike: 4050, Expiration: testExpiry, Type: chain.Put, OpenInterest: 100, Gamma: chain.Ptr(0.004)},
		{Strike: 4050, Expiration: testExpiry, Type: chain.Call, OpenInterest: 100, Gamma: chain.Ptr(0.004)},
		{Strike: 4100, Expiration: testExpiry, Type: chain.Call, OpenInterest: 500, Gamma: chain.Ptr(0.002)},
	})

	result := GammaExposure(snap, testExpiry, DefaultParams())

	var sum float64
	for _, s := range result.Strikes {
		sum += s.Exposure
	}
	if !approx(result.NetGEX, sum, 1e-6) {
		t.Errorf("net GEX %v does not equal per-strike sum %v", result.NetGEX, sum)
	}
}

func TestGammaExposureMissingGammaContributesZero(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -10)
	snap := mkSnapshot(t, 100, asOf, []chain.Contract{
		{Strike: 100, Expiration: testExpiry, Type: chain.Call, OpenInterest: 10},
		{Strike: 105, Expiration: testExpiry, Type: chain.Call, OpenInterest: 10, Gamma: chain.Ptr(0.01)},
	})

	result := GammaExposure(snap, testExpiry, DefaultParams())

	if len(result.Strikes) != 1 {
		t.Fatalf("strike without gamma should not appear, got %d strikes", len(result.Strikes))
	}
	if result.Strikes[0].Strike != 105 {
		t.Errorf("expected only strike 105, got %v", result.Strikes[0].Strike)
	}
	if result.SwitchPoint != nil {
		t.Errorf("single nonzero strike must have no switch point, got %v", *result.SwitchPoint)
	}
}

func TestSwitchPointInterpolation(t *testing.T) {
	// Cumulative sequence -50, -10, +30, +80 across the strikes.
	strikes := []StrikeExposure{
		{Strike: 4000, Exposure: -50},
		{Strike: 4025, Exposure: 40},
		{Strike: 4050, Exposure: 40},
		{Strike: 4075, Exposure: 50},
	}

	sp := switchPoint(strikes)
	if sp == nil {
		t.Fatal("expected a switch point")
	}
	if *sp <= 4025 || *sp >= 4050 {
		t.Fatalf("switch point %v not between 4025 and 4050", *sp)
	}
	// Linear crossing: 4025 + 10/40 * 25 = 4031.25
	if !approx(*sp, 4031.25, 1e-9) {
		t.Errorf("expected 4031.25, got %v", *sp)
	}
}

func TestSwitchPointUndefinedWhenSameSign(t *testing.T) {
	strikes := []StrikeExposure{
		{Strike: 4000, Exposure: 10},
		{Strike: 4050, Exposure: 20},
	}
	if sp := switchPoint(strikes); sp != nil {
		t.Errorf("all-positive profile must have no switch point, got %v", *sp)
	}
}

func TestPositioningWallsScenario(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -10)
	snap := mkSnapshot(t, 4050, asOf, []chain.Contract{
		{Strike: 4000, Expiration: testExpiry, Type: chain.Put, OpenInterest: 500, Volume: 10},
		{Strike: 4050, Expiration: testExpiry, Type: chain.Put, OpenInterest: 100, Volume: 10},
		{Strike: 4100, Expiration: testExpiry, Type: chain.Put, OpenInterest: 50, Volume: 10},
		{Strike: 4000, Expiration: testExpiry, Type: chain.Call, OpenInterest: 50, Volume: 10},
		{Strike: 4050, Expiration: testExpiry, Type: chain.Call, OpenInterest: 100, Volume: 10},
		{Strike: 4100, Expiration: testExpiry, Type: chain.Call, OpenInterest: 500, Volume: 10},
	})

	result := Positioning(snap, testExpiry, DefaultParams())

	if result.PutWall == nil || *result.PutWall != 4000 {
		t.Errorf("expected put wall 4000, got %v", result.PutWall)
	}
	if result.CallWall == nil || *result.CallWall != 4100 {
		t.Errorf("expected call wall 4100, got %v", result.CallWall)
	}
	if result.PCRatioOI == nil || !approx(*result.PCRatioOI, 1.0, 1e-12) {
		t.Errorf("expected PC ratio (OI) 1.0, got %v", result.PCRatioOI)
	}
}

func TestPositioningTieBreakClosestToSpot(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -10)
	snap := mkSnapshot(t, 4050, asOf, []chain.Contract{
		{Strike: 3900, Expiration: testExpiry, Type: chain.Put, OpenInterest: 300},
		{Strike: 4000, Expiration: testExpiry, Type: chain.Put, OpenInterest: 300},
		{Strike: 4100, Expiration: testExpiry, Type: chain.Call, OpenInterest: 200},
		{Strike: 4200, Expiration: testExpiry, Type: chain.Call, OpenInterest: 200},
	})

	result := Positioning(snap, testExpiry, DefaultParams())

	if result.PutWall == nil || *result.PutWall != 4000 {
		t.Errorf("tied put wall should pick strike closest to spot (4000), got %v", result.PutWall)
	}
	if result.CallWall == nil || *result.CallWall != 4100 {
		t.Errorf("tied call wall should pick strike closest to spot (4100), got %v", result.CallWall)
	}
}

func TestPositioningUndefinedSides(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -10)
	// Spot below every strike: no put wall, and zero call OI means the
	// OI ratio must be undefined rather than infinite.
	snap := mkSnapshot(t, 3000, asOf, []chain.Contract{
		{Strike: 4000, Expiration: testExpiry, Type: chain.Put, OpenInterest: 500, Volume: 5},
		{Strike: 4000, Expiration: testExpiry, Type: chain.Call, OpenInterest: 0, Volume: 0},
	})

	result := Positioning(snap, testExpiry, Params{ContractMultiplier: 100})

	if result.PutWall != nil {
		t.Errorf("expected undefined put wall, got %v", *result.PutWall)
	}
	if result.PCRatioOI != nil {
		t.Errorf("zero call OI must leave the ratio undefined, got %v", *result.PCRatioOI)
	}
	if result.PCRatioVolume != nil {
		t.Errorf("zero call volume must leave the ratio undefined, got %v", *result.PCRatioVolume)
	}
}

func TestMaxPainMinimization(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -10)
	contracts := []chain.Contract{
		{Strike: 4000, Expiration: testExpiry, Type: chain.Call, OpenInterest: 100},
		{Strike: 4000, Expiration: testExpiry, Type: chain.Put, OpenInterest: 400},
		{Strike: 4050, Expiration: testExpiry, Type: chain.Call, OpenInterest: 250},
		{Strike: 4050, Expiration: testExpiry, Type: chain.Put, OpenInterest: 250},
		{Strike: 4100, Expiration: testExpiry, Type: chain.Call, OpenInterest: 400},
		{Strike: 4100, Expiration: testExpiry, Type: chain.Put, OpenInterest: 100},
	}
	snap := mkSnapshot(t, 4050, asOf, contracts)

	result := MaxPain(snap, testExpiry)
	if result.Strike == nil {
		t.Fatal("expected a max pain strike")
	}

	// The winner's payout must be <= payout at every other strike.
	for _, candidate := range []float64{4000, 4050, 4100} {
		if p := holderPayout(contracts, candidate); p < result.Payout {
			t.Errorf("candidate %v has payout %v below winner's %v", candidate, p, result.Payout)
		}
	}

	// Symmetric OI around 4050 must settle there.
	if *result.Strike != 4050 {
		t.Errorf("symmetric distribution should pin 4050, got %v", *result.Strike)
	}
}

func TestMaxPainNoITMPuts(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -10)
	snap := mkSnapshot(t, 4050, asOf, []chain.Contract{
		{Strike: 4000, Expiration: testExpiry, Type: chain.Call, OpenInterest: 0},
		{Strike: 4050, Expiration: testExpiry, Type: chain.Call, OpenInterest: 0},
		{Strike: 4100, Expiration: testExpiry, Type: chain.Call, OpenInterest: 1000},
	})

	result := MaxPain(snap, testExpiry)
	if result.Strike == nil || *result.Strike != 4000 {
		t.Errorf("expected max pain 4000, got %v", result.Strike)
	}
	if result.Payout != 0 {
		t.Errorf("expected zero payout at 4000, got %v", result.Payout)
	}
}

func TestMaxPainEmptyExpiration(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -10)
	snap := mkSnapshot(t, 4050, asOf, []chain.Contract{
		{Strike: 4000, Expiration: testExpiry, Type: chain.Call, OpenInterest: 10},
	})

	other := testExpiry.AddDate(0, 1, 0)
	result := MaxPain(snap, other)
	if result.Strike != nil {
		t.Errorf("expiration without rows must be undefined, got %v", *result.Strike)
	}
}

func TestExpectedMoveZeroDTE(t *testing.T) {
	snap := mkSnapshot(t, 4050, testExpiry, []chain.Contract{
		{Strike: 4050, Expiration: testExpiry, Type: chain.Call, OpenInterest: 10, IV: chain.Ptr(0.25)},
	})

	result := ExpectedMove(snap, testExpiry)
	if result.DTE != 0 {
		t.Fatalf("expected DTE 0, got %d", result.DTE)
	}
	if result.ExpectedMove == nil || *result.ExpectedMove != 0 {
		t.Errorf("zero DTE must yield expected move 0, got %v", result.ExpectedMove)
	}
}

func TestExpectedMoveATMAverage(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -365)
	snap := mkSnapshot(t, 4049, asOf, []chain.Contract{
		{Strike: 4000, Expiration: testExpiry, Type: chain.Call, OpenInterest: 1, IV: chain.Ptr(0.50)},
		{Strike: 4050, Expiration: testExpiry, Type: chain.Call, OpenInterest: 1, IV: chain.Ptr(0.20)},
		{Strike: 4050, Expiration: testExpiry, Type: chain.Put, OpenInterest: 1, IV: chain.Ptr(0.30)},
	})

	result := ExpectedMove(snap, testExpiry)
	if result.ATMIV == nil || !approx(*result.ATMIV, 0.25, 1e-12) {
		t.Fatalf("expected ATM IV 0.25 from nearest strike, got %v", result.ATMIV)
	}
	// 4049 * 0.25 * sqrt(365/365)
	if result.ExpectedMove == nil || !approx(*result.ExpectedMove, 4049*0.25, 1e-9) {
		t.Errorf("unexpected expected move %v", result.ExpectedMove)
	}
}

func TestExpectedMoveUndefinedWithoutIV(t *testing.T) {
	asOf := testExpiry.AddDate(0, 0, -10)
	snap := mkSnapshot(t, 4050, asOf, []chain.Contract{
		{Strike: 4050, Expiration: testExpiry, Type: chain.Call, OpenInterest: 10},
	})

	result := ExpectedMove(snap, testExpiry)
	if result.ExpectedMove != nil || result.ATMIV != nil {
		t.Error("missing IV must leave the expected move undefined")
	}
}
