package movement

import (
	"math"

	"corridorsolve/internal/capacity"
	"corridorsolve/internal/queue"
	"corridorsolve/internal/signal"
)

// SolveParams bounds the fixed-point departure-curve solve of
// spec.md §4.6 (component C6).
type SolveParams struct {
	MaximumSteps            int     // default 15
	StoppingCriteria        float64 // default 1e-6
	StopMinResidual         int     // default 3
	OccupiedLookaheadCycles int     // default 3 (max_repeat)
	UsePredictedArrival     bool
	PermissiveFactor        float64 // default 1.0
}

// DefaultSolveParams returns the reference tuning of _departure_curve_prediction.
func DefaultSolveParams() SolveParams {
	return SolveParams{
		MaximumSteps:            15,
		StoppingCriteria:        1e-6,
		StopMinResidual:         3,
		OccupiedLookaheadCycles: 3,
		PermissiveFactor:        1.0,
	}
}

// SolveDepartureCurve runs update_movement_capacity_state followed by the
// fixed-point departure-prediction loop, converging predicted delay to
// within StoppingCriteria or exhausting MaximumSteps.
func SolveDepartureCurve(c *Curve, conflicting []capacity.ConflictingMovement, p SolveParams) {
	c.signalState = signal.SignalStateList(signal.Params{
		Resolution:           c.Resolution,
		CycleLength:          c.CycleLength,
		GreenTime:            c.GreenTime,
		YellowChangeInterval: c.YellowChangeInterval,
		EffectiveGreenChange: c.EffectiveGreenChange,
		ClearanceInterval:    c.ClearanceInterval,
		GreenStartShift:      c.GreenStartShift,
		AdditionalOffset:     c.AdditionalOffset,
		BinaryGreen:          c.BinaryGreen,
		PermissiveType:       c.PermissiveType,
	}, c.Departure.Dimension)

	if len(conflicting) > 0 {
		c.PermissiveCapacityList, c.LeftoverCapacityList = capacity.PermissiveCapacity(
			conflicting, c.GapAcceptance, c.Resolution, c.Arrival.Dimension, c.DepartureCycles, p.UsePredictedArrival)
	}
	c.CapacityStateList = capacity.CapacityState(c.signalState, c.PermissiveCapacityList, c.PermissiveType, p.PermissiveFactor)

	predictDeparture := make([]float64, c.Departure.Dimension)

	var prevMetric float64
	havePrev := false
	for step := 0; step < p.MaximumSteps; step++ {
		predictDeparture = departurePredictionStep(c, predictDeparture, p)
		currentMetric := c.PredictedDelay
		if havePrev {
			if math.Abs(currentMetric-prevMetric)/maxFloat(prevMetric, 1) <= p.StoppingCriteria {
				break
			}
		}
		prevMetric = currentMetric
		havePrev = true
	}

	c.Departure.AggCurves()
	c.HourlyVolume = EstimateVolume(c)
}

// getOccupiedProbability sums the probability that a vehicle from one of the
// next OccupiedLookaheadCycles upstream cycles is still occupying the
// movement's departure capacity at currentIndex.
func getOccupiedProbability(departureList []float64, currentIndex, cycleCounts, maxRepeat int) float64 {
	occupied := 0.0
	for r := 0; r < maxRepeat; r++ {
		cursor := (r+1)*cycleCounts + currentIndex
		if cursor < len(departureList) {
			occupied += departureList[cursor]
		}
	}
	return occupied
}

// departurePredictionStep runs one full pass of the arrival/departure PMF
// stepping over the departure domain, given the previous pass's departure
// prediction (used for the cross-cycle occupied-probability lookahead).
func departurePredictionStep(c *Curve, previousDeparture []float64, p SolveParams) []float64 {
	departureDim := c.Departure.Dimension
	arrivalDim := c.Arrival.Dimension

	var arrivalProbList []float64
	if p.UsePredictedArrival && c.Arrival.PredictList != nil {
		arrivalProbList = c.Arrival.PredictList
	} else {
		arrivalProbList = c.Arrival.ProbList
	}

	predictDeparture := make([]float64, 0, departureDim)
	pmfList := make([][]float64, 0, departureDim)
	effCapacityList := make([]float64, 0, departureDim)

	totalStops := 0.0
	cumArrivalPmf := queue.NewSingleQueuePmf()

	for iStep := 0; iStep < departureDim; iStep++ {
		capacityState := c.CapacityStateList[iStep]

		residualProb := cumArrivalPmf.GetProb(p.StopMinResidual)
		occupiedProb := getOccupiedProbability(previousDeparture, iStep, arrivalDim, p.OccupiedLookaheadCycles)
		releaseCapacity := capacityState - occupiedProb
		effCapacityList = append(effCapacityList, releaseCapacity)

		if iStep < arrivalDim {
			arrivalRate := arrivalProbList[iStep]
			directPassProb := releaseCapacity * (1 - residualProb)
			stopProb := arrivalRate * (1 - directPassProb)
			totalStops += stopProb
			cumArrivalPmf.ArrivalStep(arrivalRate)
		}

		if capacityState > 0 {
			newDepartureProb := cumArrivalPmf.DepartureStep(releaseCapacity)
			predictDeparture = append(predictDeparture, newDepartureProb)
		} else {
			predictDeparture = append(predictDeparture, 0)
		}
		pmfList = append(pmfList, cumArrivalPmf.PMF())
	}
	c.EffCapacityList = effCapacityList

	notServed := curvemathSum(arrivalProbList) - curvemathSum(predictDeparture)
	if len(predictDeparture) > 0 {
		predictDeparture[len(predictDeparture)-1] += notServed
	}

	c.PredictedStopRatio = totalStops / maxFloat(curvemathSum(arrivalProbList), 0.0001)
	c.Departure.PredictList = predictDeparture
	c.PredictedDelay = EstimateDelay(c, true, true, p.UsePredictedArrival)

	c.PMFList = pmfList
	c.DepartureCalibrationError = c.Departure.PredictionError(2)
	return predictDeparture
}

func curvemathSum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}
