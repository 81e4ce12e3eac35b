// Package capacity implements the permissive capacity model of spec.md §4.5
// (component C5): gap-acceptance capacity borrowed from conflicting
// movements, leftover capacity, and the combine step that folds signal
// state and permissive capacity into one capacity-state curve.
package capacity

import "math"

// PermissiveType tags how a movement's departure capacity is governed,
// modeled as a variant rather than a string comparison.
type PermissiveType int

const (
	// None is a movement with no permissive interaction: its own signal
	// state is its capacity.
	None PermissiveType = iota
	// LeftTurnPermissive departs during gaps in a conflicting movement's
	// flow, scaled by a permissive factor while its own signal is green.
	LeftTurnPermissive
	// LeftTurnProtected has a dedicated protected phase: its signal state
	// skips the start-up smoothing inside green, and its capacity state
	// combines like None (the larger of permissive capacity and signal).
	LeftTurnProtected
	// ProtectedPermissive combines a protected phase with a trailing
	// permissive window.
	ProtectedPermissive
)

func (p PermissiveType) String() string {
	switch p {
	case LeftTurnPermissive:
		return "lt_turn_permissive"
	case LeftTurnProtected:
		return "lt_turn_protected"
	case ProtectedPermissive:
		return "protected_permissive"
	default:
		return "none"
	}
}

// ConflictingMovement is the read-only view of a conflicting movement's
// curve that the permissive capacity computation needs. A movement package
// type satisfies this implicitly.
type ConflictingMovement interface {
	SignalStateList() []float64
	AggregatedDepartureList(usePrediction bool) []float64
	SatFlowPerLane() float64
	EquivalentLaneNumber() float64
}

// PermissiveCapacity computes, for each of arrivalDim steps, the probability
// that a permissive movement finds a gap of length gapAcceptance (rounded to
// the nearest resolution step) in every conflicting movement's combined
// signal-state/departure flow, plus the leftover capacity (unused signal
// state minus conflicting departures) at that step. Both results are tiled
// departureRepeats times, matching the departure-domain curve length.
func PermissiveCapacity(conflicting []ConflictingMovement, gapAcceptance, resolution float64, arrivalDim int, departureRepeats int, usePrediction bool) (permissiveCapacityList, leftoverCapacityList []float64) {
	if len(conflicting) == 0 {
		return nil, nil
	}

	vacantNumber := int(math.Round(gapAcceptance / resolution))

	permissiveCapacityList = make([]float64, arrivalDim)
	leftoverCapacityList = make([]float64, arrivalDim)

	for iStep := 0; iStep < arrivalDim; iStep++ {
		conflictSumDeparture := make([]float64, arrivalDim)
		permissiveState := make([]float64, arrivalDim)

		for _, conflictCurve := range conflicting {
			conflictSignalState := conflictCurve.SignalStateList()
			conflictDeparture := lanesatAdjust(conflictCurve, conflictCurve.AggregatedDepartureList(usePrediction))

			for predictStep, predict := range conflictDeparture {
				conflictSumDeparture[predictStep] += predict

				prevState := conflictSignalState[wrapIndex(predictStep-1, arrivalDim)]
				if prevState > conflictSignalState[predictStep] && conflictSignalState[predictStep] > 0.01 {
					permissiveState[predictStep] = 1
				} else {
					permissiveState[predictStep] = conflictSignalState[predictStep]
				}
			}
		}

		vacantProbability := 1.0
		for iv := 0; iv < vacantNumber; iv++ {
			idx := wrapIndex(iStep-iv, arrivalDim)
			signal := permissiveState[idx]
			departed := conflictSumDeparture[idx]
			vacant := math.Max(signal-departed, 0)
			vacantProbability *= vacant
		}

		permissiveCapacityList[iStep] = vacantProbability
		leftoverCapacityList[iStep] = math.Max(permissiveState[iStep]-conflictSumDeparture[iStep], 0)
	}

	permissiveCapacityList = tile(permissiveCapacityList, departureRepeats)
	leftoverCapacityList = tile(leftoverCapacityList, departureRepeats)
	return permissiveCapacityList, leftoverCapacityList
}

func lanesatAdjust(m ConflictingMovement, xs []float64) []float64 {
	factor := (m.SatFlowPerLane() / 1800) * (m.EquivalentLaneNumber() / 1)
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * factor
	}
	return out
}

// wrapIndex maps i into [0, n) the way a Python list index does, including
// negative indices wrapping from the end (spec.md §4.5's circular indexing
// into permissive_state/conflict_sum_departure_list).
func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func tile(xs []float64, repeats int) []float64 {
	out := make([]float64, 0, len(xs)*repeats)
	for r := 0; r < repeats; r++ {
		out = append(out, xs...)
	}
	return out
}

// CapacityState combines a movement's own signal state with its borrowed
// permissive capacity into the actual capacity-state curve used by the
// departure solver (component C6). permissiveCapacityList may be nil (no
// conflicting movements), in which case it is treated as all zeros.
func CapacityState(signalStateList, permissiveCapacityList []float64, permissiveType PermissiveType, permissiveFactor float64) []float64 {
	n := len(signalStateList)
	capacityState := make([]float64, n)

	for i, signalState := range signalStateList {
		var conflictingState float64
		if permissiveCapacityList != nil && i < len(permissiveCapacityList) {
			conflictingState = permissiveCapacityList[i]
		}

		switch permissiveType {
		case LeftTurnPermissive:
			if signalState > 0 {
				capacityState[i] = conflictingState * permissiveFactor
			} else {
				capacityState[i] = signalState
			}
		default:
			capacityState[i] = math.Max(conflictingState, signalState)
		}
	}
	return capacityState
}
