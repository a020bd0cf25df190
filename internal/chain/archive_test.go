package chain

import (
	"path/filepath"
	"testing"
	"time"
)

func archiveFixture(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(4050.25, asOf, []Contract{
		{Strike: 4000, Expiration: expNear, Type: Call, OpenInterest: 1500, Volume: 120, Bid: 54, Ask: 56, IV: Ptr(0.21), Gamma: Ptr(0.002), Delta: Ptr(0.6)},
		{Strike: 4000, Expiration: expNear, Type: Put, OpenInterest: 2500, Volume: 300, Bid: 12, Ask: 13, IV: Ptr(0.24), Gamma: Ptr(0.002)},
		{Strike: 4100, Expiration: expFar, Type: Call, OpenInterest: 900},
	})
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	return snap
}

func TestArchiveRoundTrip(t *testing.T) {
	for _, name := range []string{"snap.jsonl", "snap.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			original := archiveFixture(t)

			if err := WriteArchive(path, original); err != nil {
				t.Fatalf("write: %v", err)
			}

			restored, err := ReadArchive(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}

			if restored.Spot() != original.Spot() {
				t.Errorf("spot mismatch: %v vs %v", restored.Spot(), original.Spot())
			}
			if !restored.AsOf().Equal(original.AsOf()) {
				t.Errorf("asOf mismatch: %v vs %v", restored.AsOf(), original.AsOf())
			}
			if restored.Len() != original.Len() {
				t.Fatalf("row count mismatch: %d vs %d", restored.Len(), original.Len())
			}

			a, b := original.Contracts(), restored.Contracts()
			for i := range a {
				if a[i].Strike != b[i].Strike || a[i].Type != b[i].Type ||
					a[i].OpenInterest != b[i].OpenInterest {
					t.Errorf("row %d mismatch: %+v vs %+v", i, a[i], b[i])
				}
				if (a[i].IV == nil) != (b[i].IV == nil) {
					t.Errorf("row %d IV presence mismatch", i)
				}
			}
		})
	}
}

func TestReadArchiveMissingFile(t *testing.T) {
	_, err := ReadArchive(filepath.Join(t.TempDir(), "absent.jsonl.zst"))
	if err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestIsTradingDay(t *testing.T) {
	// A regular Friday vs. a Saturday and Christmas.
	friday := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	christmas := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)

	if !IsTradingDay(friday) {
		t.Errorf("%v should be a trading day", friday)
	}
	if IsTradingDay(saturday) {
		t.Errorf("%v should not be a trading day", saturday)
	}
	if IsTradingDay(christmas) {
		t.Errorf("christmas %v should not be a trading day", christmas)
	}
}
