// Package curvemath implements the cycle-indexed curve algebra shared by the
// signal, capacity, movement and calibration solvers: fractional circular
// shifts, time-weighted cumulative sums, cycle aggregation, shift search, and
// the Gaussian smoothing used to smear green-phase start-up/clearance.
package curvemath

import "math"

// ShiftBy interprets s as a fractional circular shift of xs and returns a new
// slice of the same length. Let i = floor(s), f = s - i; the result is
// (1-f)*rot(xs, i) + f*rot(xs, i+1), where rot is a right-circular shift by i
// mod len(xs).
//
// Quirk preserved from the source implementation: when the integer part of s
// is 0, rot(xs, 1) is still computed as a genuine one-step right rotation
// (the source's list-slicing expression degenerates to indexing the last
// element, which is exactly a 1-step right rotation) — so no special case is
// needed here, the general rotation formula already reproduces it.
func ShiftBy(xs []float64, s float64) []float64 {
	n := len(xs)
	if n == 0 {
		return nil
	}
	s = math.Mod(s, float64(n))
	if s < 0 {
		s += float64(n)
	}
	i := int(math.Floor(s))
	f := s - float64(i)

	rot0 := rotateRight(xs, i)
	rot1 := rotateRight(xs, i+1)

	out := make([]float64, n)
	for k := 0; k < n; k++ {
		out[k] = (1-f)*rot0[k] + f*rot1[k]
	}
	return out
}

// rotateRight returns a new slice equal to xs right-rotated by k (mod n)
// positions: the element at index n-1 moves to index 0, etc.
func rotateRight(xs []float64, k int) []float64 {
	n := len(xs)
	k = ((k % n) + n) % n
	out := make([]float64, n)
	for idx := 0; idx < n; idx++ {
		out[(idx+k)%n] = xs[idx]
	}
	return out
}

// Integral returns the time-weighted cumulative sum y_n = sum_{k<=n} (k+1)*x_k.
// The +1 offset treats the k-th bin as its interval endpoint and must be
// preserved for delay values to match the calibrated reference.
func Integral(xs []float64) []float64 {
	out := make([]float64, len(xs))
	total := 0.0
	for idx, x := range xs {
		total += float64(idx+1) * x
		out[idx] = total
	}
	return out
}

// Aggregate folds xs (length dim = K*repeats) into length K by summing the
// repeats cycle-slices elementwise.
func Aggregate(xs []float64, repeats int) []float64 {
	if repeats <= 0 {
		return nil
	}
	k := len(xs) / repeats
	out := make([]float64, k)
	for r := 0; r < repeats; r++ {
		slice := xs[r*k : r*k+k]
		for idx, v := range slice {
			out[idx] += v
		}
	}
	return out
}

// OptimalShift sweeps integer shifts s in [0, len(target)-1], scoring the
// normalized L1-ish error sum(|shifted(moving)-target|) / sum(target); ties
// resolve to the lowest s. This is the reference's accurate_mode=False path,
// the only one ever invoked in practice; no sub-integer refinement sweep
// follows it.
func OptimalShift(target, moving []float64) (shift, minError float64) {
	return sweepShift(target, moving, 0, float64(len(target)-1), 1)
}

func sweepShift(target, moving []float64, start, end, resolution float64) (bestShift, bestErr float64) {
	denom := sum(target)
	if denom == 0 {
		denom = 1e-3
	}
	bestErr = math.Inf(1)
	for s := start; s <= end; s += resolution {
		shifted := ShiftBy(moving, s)
		errVal := 0.0
		for i := range target {
			errVal += math.Abs(shifted[i] - target[i])
		}
		errVal /= denom
		if errVal < bestErr {
			bestErr = errVal
			bestShift = s
		}
	}
	return bestShift, bestErr
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

// GaussianCDF is the standard normal CDF evaluated at x, shifted by mu and
// scaled by sigma: Phi((x-mu)/sigma).
func GaussianCDF(x, mu, sigma float64) float64 {
	return 0.5 * (1 + math.Erf((x-mu)/(sigma*math.Sqrt2)))
}

// DefaultGreenStartMu and DefaultGreenStartSigma are the calibrated start-up
// smoothing parameters used when a component doesn't override them.
const (
	DefaultGreenStartMu    = 2.5
	DefaultGreenStartSigma = 1.0
)

// CumNormalGreenStart integrates the Gaussian CDF across one resolution-sized
// time step beginning at t - greenStart*resolution, normalized by resolution.
// This smears the leading (or, with a shifted mu, trailing) edge of green
// across a single discretized step.
func CumNormalGreenStart(greenStart, t, resolution, mu, sigma float64) float64 {
	greenStartTime := t - greenStart*resolution
	greenEndTime := greenStartTime + resolution
	if greenStartTime == 0 {
		greenStartTime -= 1
	}
	return quadGaussianCDF(greenStartTime, greenEndTime, mu, sigma) / resolution
}

// CumNormalAbnormalGreenStart handles the partial-step case where the green
// start (or lost-time start) falls strictly inside the current step.
func CumNormalAbnormalGreenStart(difference, resolution, mu, sigma float64) float64 {
	return quadGaussianCDF(-1, difference, mu, sigma) / resolution
}

// quadGaussianCDF numerically integrates GaussianCDF over [a,b] with
// Simpson's rule at fixed subdivision — the reference implementation uses
// scipy.integrate.quad; GaussianCDF is smooth over these short intervals so a
// fixed fine Simpson grid matches it to well within the tolerances spec.md
// requires (1e-2 on PMF mass, 1e-6 on conservation of a different quantity).
func quadGaussianCDF(a, b, mu, sigma float64) float64 {
	const n = 64 // even, for Simpson's rule
	if b <= a {
		return 0
	}
	h := (b - a) / n
	total := GaussianCDF(a, mu, sigma) + GaussianCDF(b, mu, sigma)
	for i := 1; i < n; i++ {
		x := a + float64(i)*h
		weight := 4.0
		if i%2 == 0 {
			weight = 2.0
		}
		total += weight * GaussianCDF(x, mu, sigma)
	}
	return total * h / 3
}

// LaneSatAdjust scales xs by (satFlowPerLane/1800) * (equivalentLaneNumber/1),
// the conversion applied to a conflicting movement's departure curve before
// it is accumulated into another movement's permissive-capacity computation.
func LaneSatAdjust(satFlowPerLane, equivalentLaneNumber float64, xs []float64) []float64 {
	factor := (satFlowPerLane / 1800) * (equivalentLaneNumber / 1)
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * factor
	}
	return out
}

// Clip clamps every element of xs to [lo, hi], returning a new slice.
func Clip(xs []float64, lo, hi float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Min(math.Max(x, lo), hi)
	}
	return out
}

// Sum returns the sum of xs. Exported for callers outside this package that
// need conservation/normalization checks without duplicating the loop.
func Sum(xs []float64) float64 {
	return sum(xs)
}
