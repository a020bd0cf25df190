package analytics

// Params carries the tunable constants of the analytics engine. Every
// calculation takes Params explicitly; there is no package-level state.
type Params struct {
	// ContractMultiplier converts per-contract gamma into notional
	// units. 100 for standard index options.
	ContractMultiplier float64

	// RelevanceBand restricts wall detection to strikes within
	// spot*(1±band). Zero disables the filter.
	RelevanceBand float64

	// SurfaceGridSize is the node count per axis of the volatility
	// surface grid.
	SurfaceGridSize int

	// IDWPower is the inverse-distance weighting exponent.
	IDWPower float64

	// MinIV and MaxIV bound the implied volatilities admitted as
	// surface samples. Values outside the window are vendor noise.
	MinIV float64
	MaxIV float64

	// SurfaceWorkers caps the goroutines interpolating grid rows.
	// Zero means one per CPU.
	SurfaceWorkers int
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		ContractMultiplier: 100,
		RelevanceBand:      0.25,
		SurfaceGridSize:    50,
		IDWPower:           2,
		MinIV:              0.01,
		MaxIV:              1.50,
		SurfaceWorkers:     0,
	}
}
