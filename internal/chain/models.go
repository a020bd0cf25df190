package chain

import (
	"fmt"
	"sort"
	"time"
)

// OptionType identifies the side of a contract.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Contract is one strike/expiration/type row of the options chain.
// IV, Gamma and Delta are nil when the vendor file had no usable value
// for the contract (typical for illiquid strikes).
type Contract struct {
	Strike       float64    `json:"strike"`
	Expiration   time.Time  `json:"expiration"`
	Type         OptionType `json:"type"`
	OpenInterest int64      `json:"open_interest"`
	Volume       int64      `json:"volume"`
	Bid          float64    `json:"bid"`
	Ask          float64    `json:"ask"`
	IV           *float64   `json:"iv,omitempty"`
	Gamma        *float64   `json:"gamma,omitempty"`
	Delta        *float64   `json:"delta,omitempty"`
}

// Moneyness returns strike normalized by the given spot price.
func (c Contract) Moneyness(spot float64) float64 {
	return c.Strike / spot
}

// Snapshot is one immutable view of the full chain at a point in time.
// All analytics are pure functions of a Snapshot; nothing mutates it
// after construction.
type Snapshot struct {
	spot        float64
	asOf        time.Time
	contracts   []Contract
	expirations []time.Time
}

// NewSnapshot validates and assembles a snapshot. Contracts are copied
// and ordered by (expiration, strike, type). Rejected inputs: non-positive
// spot, negative OI or volume, bid above ask, duplicate
// (expiration, strike, type) rows.
func NewSnapshot(spot float64, asOf time.Time, contracts []Contract) (*Snapshot, error) {
	if spot <= 0 {
		return nil, fmt.Errorf("spot price must be positive, got %v", spot)
	}

	rows := make([]Contract, len(contracts))
	copy(rows, contracts)

	seen := make(map[string]struct{}, len(rows))
	for _, c := range rows {
		if c.Strike <= 0 {
			return nil, fmt.Errorf("strike must be positive, got %v", c.Strike)
		}
		if c.OpenInterest < 0 || c.Volume < 0 {
			return nil, fmt.Errorf("negative OI/volume at strike %v", c.Strike)
		}
		if c.Bid > 0 && c.Ask > 0 && c.Bid > c.Ask {
			return nil, fmt.Errorf("bid %v above ask %v at strike %v", c.Bid, c.Ask, c.Strike)
		}
		key := fmt.Sprintf("%s|%.6f|%s", c.Expiration.Format("2006-01-02"), c.Strike, c.Type)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate contract row %s", key)
		}
		seen[key] = struct{}{}
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Expiration.Equal(rows[j].Expiration) {
			return rows[i].Expiration.Before(rows[j].Expiration)
		}
		if rows[i].Strike != rows[j].Strike {
			return rows[i].Strike < rows[j].Strike
		}
		return rows[i].Type < rows[j].Type
	})

	var expirations []time.Time
	for _, c := range rows {
		n := len(expirations)
		if n == 0 || !expirations[n-1].Equal(c.Expiration) {
			expirations = append(expirations, c.Expiration)
		}
	}

	return &Snapshot{
		spot:        spot,
		asOf:        asOf,
		contracts:   rows,
		expirations: expirations,
	}, nil
}

// Spot returns the underlying reference price.
func (s *Snapshot) Spot() float64 { return s.spot }

// AsOf returns the snapshot timestamp.
func (s *Snapshot) AsOf() time.Time { return s.asOf }

// Len returns the number of contract rows.
func (s *Snapshot) Len() int { return len(s.contracts) }

// Contracts returns all rows ordered by (expiration, strike, type).
// The returned slice is shared and must not be modified.
func (s *Snapshot) Contracts() []Contract { return s.contracts }

// Expirations returns the distinct expiration dates in ascending order.
func (s *Snapshot) Expirations() []time.Time { return s.expirations }

// ByExpiration returns the rows for one expiration date, strike-ordered.
// The returned slice is shared and must not be modified.
func (s *Snapshot) ByExpiration(expiration time.Time) []Contract {
	lo := sort.Search(len(s.contracts), func(i int) bool {
		return !s.contracts[i].Expiration.Before(expiration)
	})
	hi := lo
	for hi < len(s.contracts) && s.contracts[hi].Expiration.Equal(expiration) {
		hi++
	}
	return s.contracts[lo:hi]
}

// DTE returns calendar days from the snapshot date to the expiration
// date, clamped at zero for same-day expiration.
func (s *Snapshot) DTE(expiration time.Time) int {
	days := int(truncateDay(expiration).Sub(truncateDay(s.asOf)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DefaultExpiration returns the expiration carrying the most total open
// interest, the same default the dashboard preselects. ok is false for
// an empty snapshot.
func (s *Snapshot) DefaultExpiration() (time.Time, bool) {
	if len(s.expirations) == 0 {
		return time.Time{}, false
	}
	best := s.expirations[0]
	var bestOI int64 = -1
	for _, exp := range s.expirations {
		var total int64
		for _, c := range s.ByExpiration(exp) {
			total += c.OpenInterest
		}
		if total > bestOI {
			best = exp
			bestOI = total
		}
	}
	return best, true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Ptr returns a pointer to v. Convenience for optional fields.
func Ptr(v float64) *float64 { return &v }
