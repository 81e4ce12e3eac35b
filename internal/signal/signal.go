// Package signal implements the continuous-time green/yellow/red signal
// state model of spec.md §4.4 (component C4): a Gaussian-smoothed start-up
// and clearance edge around each green interval, folded onto a departure-
// domain step grid and shifted by the movement's geometric offset.
package signal

import (
	"math"

	"corridorsolve/internal/capacity"
	"corridorsolve/internal/curvemath"
)

// GreenInterval is one green phase within a cycle: it starts at Start
// (seconds from the start of the cycle) and lasts Duration seconds.
type GreenInterval struct {
	Start    float64
	Duration float64
}

// Params collects the signal-timing inputs needed to evaluate the state at
// any departure-domain step.
type Params struct {
	Resolution           float64
	CycleLength          float64
	GreenTime            []GreenInterval
	YellowChangeInterval float64
	EffectiveGreenChange float64
	ClearanceInterval    float64
	GreenStartShift      float64
	AdditionalOffset     float64
	BinaryGreen          bool
	PermissiveType       capacity.PermissiveType
}

// SignalStateList evaluates the signal state at each of the dimension
// departure-domain steps, then shifts the whole list by the movement's
// offset from the center of the intersection ((AdditionalOffset +
// GreenStartShift) / Resolution steps; a fractional shift blends the two
// neighbouring whole-step rotations, as curvemath.ShiftBy does).
func SignalStateList(p Params, dimension int) []float64 {
	states := make([]float64, dimension)
	for i := 0; i < dimension; i++ {
		states[i] = signalState(p, float64(i)*p.Resolution, 1)
	}
	shift := (p.AdditionalOffset + p.GreenStartShift) / p.Resolution
	return curvemath.ShiftBy(states, shift)
}

// signalState evaluates the green/yellow/red probability at time t (seconds
// into the cycle, an integer multiple of Resolution), smoothing the leading
// and trailing edges of each green interval with a Gaussian CDF. lostTimeShift
// is the resolution-step fudge applied to the lost-time boundary (1 in the
// normal case, per the reference model).
func signalState(p Params, t, lostTimeShift float64) float64 {
	intervalInCycle := math.Mod(t, p.CycleLength) / p.Resolution
	timeInCycle := intervalInCycle * p.Resolution

	for _, green := range p.GreenTime {
		if p.BinaryGreen {
			if green.Start+curvemath.DefaultGreenStartMu <= timeInCycle &&
				timeInCycle < green.Start+green.Duration-p.YellowChangeInterval/2 {
				return 1
			}
			return 0
		}

		greenStart := (green.Start + p.GreenStartShift) / p.Resolution
		greenEnd := (green.Start + green.Duration + p.EffectiveGreenChange + p.GreenStartShift) / p.Resolution

		greenStartCeil := math.Ceil(greenStart)
		lostTimeStart := greenEnd - (p.YellowChangeInterval+p.ClearanceInterval)/p.Resolution
		lostTimeStart += lostTimeShift / p.Resolution

		switch {
		case intervalInCycle+1 > lostTimeStart && lostTimeStart > intervalInCycle:
			return 1 - curvemath.CumNormalAbnormalGreenStart(
				(intervalInCycle+1-lostTimeStart)*p.Resolution,
				p.Resolution, p.YellowChangeInterval/2, curvemath.DefaultGreenStartSigma)

		case greenStartCeil <= intervalInCycle && intervalInCycle < lostTimeStart:
			if p.PermissiveType == capacity.LeftTurnProtected {
				return 1
			}
			return curvemath.CumNormalGreenStart(greenStart, timeInCycle, p.Resolution,
				curvemath.DefaultGreenStartMu, curvemath.DefaultGreenStartSigma)

		case intervalInCycle+1 > greenStart && greenStart > intervalInCycle:
			if p.PermissiveType == capacity.LeftTurnProtected {
				return 1
			}
			return curvemath.CumNormalAbnormalGreenStart(
				(intervalInCycle+1-greenStart)*p.Resolution,
				p.Resolution, curvemath.DefaultGreenStartMu, curvemath.DefaultGreenStartSigma)

		case lostTimeStart <= intervalInCycle && intervalInCycle < greenEnd:
			return 1 - curvemath.CumNormalGreenStart(lostTimeStart, timeInCycle, p.Resolution,
				p.YellowChangeInterval/2, curvemath.DefaultGreenStartSigma)

		case intervalInCycle < greenEnd && greenEnd < intervalInCycle+1:
			return greenEnd - intervalInCycle
		}
	}
	return 0
}
