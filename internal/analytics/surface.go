package analytics

import (
	"errors"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/kriterionquant/chainscope/internal/chain"
)

// ErrSurfaceUnavailable signals that the snapshot does not contain
// enough well-spread IV samples for a 2-D interpolation.
var ErrSurfaceUnavailable = errors.New("volatility surface unavailable")

// Surface is the regularized implied-volatility grid over
// (moneyness, DTE). IV[i][j] is the value at Moneyness[i] and DTE[j];
// nil entries lie outside the convex hull of the observed samples.
type Surface struct {
	Moneyness []float64    `json:"moneyness"`
	DTE       []float64    `json:"dte"`
	IV        [][]*float64 `json:"iv"`
	Samples   int          `json:"samples"`
}

// surfaceSample is one scattered observation in normalized axis space.
// nx, ny are the coordinates mapped onto the unit square so that the
// two axes carry equal weight in distance calculations.
type surfaceSample struct {
	moneyness float64
	dte       float64
	iv        float64
	nx, ny    float64
}

// BuildSurface interpolates a regular (moneyness, DTE) grid from the
// scattered IV samples of the whole snapshot.
//
// Sample selection follows the upstream surface: OTM contracts only
// (puts below spot, calls at or above), one sample per
// strike/expiration, IV restricted to the plausibility window.
//
// Interpolation: inverse-distance weighting in normalized axis space,
// with exact pass-through when a grid node coincides with a sample.
// Extrapolation policy is mask-only: nodes outside the convex hull of
// the samples stay nil, they are never filled from the nearest
// neighbor.
func BuildSurface(snap *chain.Snapshot, p Params) (*Surface, error) {
	samples := collectSamples(snap, p)
	if err := checkDegenerate(samples); err != nil {
		return nil, err
	}

	minX, maxX := bounds(samples, func(s surfaceSample) float64 { return s.moneyness })
	minY, maxY := bounds(samples, func(s surfaceSample) float64 { return s.dte })

	// Normalize onto the unit square for distance and hull work.
	for i := range samples {
		samples[i].nx = (samples[i].moneyness - minX) / (maxX - minX)
		samples[i].ny = (samples[i].dte - minY) / (maxY - minY)
	}

	hull := convexHull(samples)
	if len(hull) < 3 || hullArea(hull) < 1e-9 {
		// Collinear or near-collinear cloud: 2-D interpolation is
		// ill-posed, refuse rather than fabricate.
		return nil, ErrSurfaceUnavailable
	}

	n := p.SurfaceGridSize
	if n < 2 {
		n = DefaultParams().SurfaceGridSize
	}
	power := p.IDWPower
	if power <= 0 {
		power = DefaultParams().IDWPower
	}

	surface := &Surface{
		Moneyness: linspace(minX, maxX, n),
		DTE:       linspace(minY, maxY, n),
		IV:        make([][]*float64, n),
		Samples:   len(samples),
	}

	// Grid nodes are independent; interpolate rows concurrently.
	workers := p.SurfaceWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				row := make([]*float64, n)
				nx := float64(i) / float64(n-1)
				for j := 0; j < n; j++ {
					ny := float64(j) / float64(n-1)
					if !insideHull(hull, nx, ny) {
						continue
					}
					row[j] = chain.Ptr(idw(samples, nx, ny, power))
				}
				surface.IV[i] = row
			}
		}()
	}
	for i := 0; i < n; i++ {
		rows <- i
	}
	close(rows)
	wg.Wait()

	return surface, nil
}

func collectSamples(snap *chain.Snapshot, p Params) []surfaceSample {
	spot := snap.Spot()
	seen := make(map[[2]float64]struct{})
	var samples []surfaceSample

	for _, exp := range snap.Expirations() {
		dte := float64(snap.DTE(exp))
		for _, c := range snap.ByExpiration(exp) {
			if c.IV == nil || *c.IV <= p.MinIV || *c.IV >= p.MaxIV {
				continue
			}
			// OTM side only, so each (strike, expiration) yields
			// at most one sample.
			if c.Type == chain.Put && c.Strike >= spot {
				continue
			}
			if c.Type == chain.Call && c.Strike < spot {
				continue
			}
			m := c.Moneyness(spot)
			key := [2]float64{m, dte}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			samples = append(samples, surfaceSample{moneyness: m, dte: dte, iv: *c.IV})
		}
	}
	return samples
}

func checkDegenerate(samples []surfaceSample) error {
	if len(samples) < 3 {
		return ErrSurfaceUnavailable
	}
	sameX, sameY := true, true
	for _, s := range samples[1:] {
		if s.moneyness != samples[0].moneyness {
			sameX = false
		}
		if s.dte != samples[0].dte {
			sameY = false
		}
	}
	if sameX || sameY {
		return ErrSurfaceUnavailable
	}
	return nil
}

func bounds(samples []surfaceSample, f func(surfaceSample) float64) (float64, float64) {
	lo, hi := f(samples[0]), f(samples[0])
	for _, s := range samples[1:] {
		v := f(s)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// idw is inverse-distance weighting over all samples with exact
// pass-through at coincident points.
func idw(samples []surfaceSample, nx, ny, power float64) float64 {
	const coincident = 1e-18 // squared distance considered zero

	var weightSum, valueSum float64
	for _, s := range samples {
		dx, dy := nx-s.nx, ny-s.ny
		d2 := dx*dx + dy*dy
		if d2 < coincident {
			return s.iv
		}
		w := 1 / math.Pow(d2, power/2)
		weightSum += w
		valueSum += w * s.iv
	}
	return valueSum / weightSum
}

// convexHull computes the hull of the normalized sample cloud with
// Andrew's monotone chain, counter-clockwise. Returns fewer than three
// vertices for collinear input.
func convexHull(samples []surfaceSample) [][2]float64 {
	pts := make([][2]float64, len(samples))
	for i, s := range samples {
		pts[i] = [2]float64{s.nx, s.ny}
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	// Drop exact duplicates.
	uniq := pts[:0]
	for i, p := range pts {
		if i == 0 || p != pts[i-1] {
			uniq = append(uniq, p)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return nil
	}

	var lower, upper [][2]float64
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil
	}
	return hull
}

// hullArea is the shoelace area of the hull polygon in normalized
// space.
func hullArea(hull [][2]float64) float64 {
	var area float64
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		area += a[0]*b[1] - b[0]*a[1]
	}
	return math.Abs(area) / 2
}

func cross(o, a, b [2]float64) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// insideHull tests a point against a counter-clockwise hull, boundary
// inclusive.
func insideHull(hull [][2]float64, x, y float64) bool {
	const eps = 1e-12
	p := [2]float64{x, y}
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		if cross(a, b, p) < -eps {
			return false
		}
	}
	return true
}
