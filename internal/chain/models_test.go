package chain

import (
	"testing"
	"time"
)

var (
	asOf    = time.Date(2026, 1, 6, 15, 45, 0, 0, time.UTC)
	expNear = time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	expFar  = time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
)

func TestNewSnapshotValidation(t *testing.T) {
	valid := Contract{Strike: 4000, Expiration: expNear, Type: Call, OpenInterest: 10}

	cases := []struct {
		name      string
		spot      float64
		contracts []Contract
		wantErr   bool
	}{
		{"valid", 4050, []Contract{valid}, false},
		{"zero spot", 0, []Contract{valid}, true},
		{"negative OI", 4050, []Contract{{Strike: 4000, Expiration: expNear, Type: Call, OpenInterest: -1}}, true},
		{"bid above ask", 4050, []Contract{{Strike: 4000, Expiration: expNear, Type: Call, Bid: 5, Ask: 4}}, true},
		{"zero strike", 4050, []Contract{{Strike: 0, Expiration: expNear, Type: Call}}, true},
		{"duplicate row", 4050, []Contract{valid, valid}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSnapshot(tc.spot, asOf, tc.contracts)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSnapshotOrderingAndAccessors(t *testing.T) {
	snap, err := NewSnapshot(4050, asOf, []Contract{
		{Strike: 4100, Expiration: expFar, Type: Call, OpenInterest: 1},
		{Strike: 4000, Expiration: expNear, Type: Put, OpenInterest: 5},
		{Strike: 4100, Expiration: expNear, Type: Call, OpenInterest: 1},
		{Strike: 4000, Expiration: expFar, Type: Put, OpenInterest: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exps := snap.Expirations()
	if len(exps) != 2 || !exps[0].Equal(expNear) || !exps[1].Equal(expFar) {
		t.Fatalf("expirations not sorted/deduped: %v", exps)
	}

	near := snap.ByExpiration(expNear)
	if len(near) != 2 {
		t.Fatalf("expected 2 near contracts, got %d", len(near))
	}
	if near[0].Strike != 4000 || near[1].Strike != 4100 {
		t.Errorf("contracts not strike-ordered: %v, %v", near[0].Strike, near[1].Strike)
	}

	if got := snap.ByExpiration(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)); len(got) != 0 {
		t.Errorf("unknown expiration should return no rows, got %d", len(got))
	}
}

func TestSnapshotDTE(t *testing.T) {
	snap, err := NewSnapshot(4050, asOf, []Contract{
		{Strike: 4000, Expiration: expNear, Type: Call, OpenInterest: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := snap.DTE(expNear); got != 10 {
		t.Errorf("expected DTE 10, got %d", got)
	}
	// Same-day expiration, even with intraday time elapsed, is 0.
	if got := snap.DTE(asOf); got != 0 {
		t.Errorf("same-day DTE must be 0, got %d", got)
	}
	// Already expired clamps to zero rather than going negative.
	if got := snap.DTE(asOf.AddDate(0, 0, -5)); got != 0 {
		t.Errorf("past expiration DTE must clamp to 0, got %d", got)
	}
}

func TestDefaultExpirationMaxOI(t *testing.T) {
	snap, err := NewSnapshot(4050, asOf, []Contract{
		{Strike: 4000, Expiration: expNear, Type: Call, OpenInterest: 10},
		{Strike: 4000, Expiration: expFar, Type: Call, OpenInterest: 500},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def, ok := snap.DefaultExpiration()
	if !ok || !def.Equal(expFar) {
		t.Errorf("expected default expiration %v, got %v (ok=%v)", expFar, def, ok)
	}
}
