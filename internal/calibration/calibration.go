// Package calibration implements the per-origin arrival calibration of
// spec.md §4.7 (component C7): folding minor upstream origins into a
// single sentinel bucket, then fitting each remaining origin's diverge
// proportion and time shift against its upstream movement's departure
// curve.
package calibration

import (
	"sort"

	"corridorsolve/internal/curvemath"
	"corridorsolve/internal/movement"
)

// NetworkLookup resolves a movement id/time-of-day pair to its solved
// curve, the way MovementNetDict.get_movement_tod_curve does. internal/network
// satisfies this directly; it is declared here so calibration never has to
// import network.
type NetworkLookup interface {
	GetMovementTODCurve(movementID, todName string) *movement.Curve
}

const nullOrigin = "null"

// MergeMinorOrigins folds upstream origins that are either unresolved in
// net or contribute less than minProp of the movement's total volume into
// the "null" sentinel origin, across the curve, prob and predict
// breakdowns (merge_minor_origins).
func MergeMinorOrigins(net NetworkLookup, c *movement.Curve, minProp float64) {
	todName := c.TODName
	totalTrajs := c.TotalTrajs

	var uncoordCurve, uncoordProb, uncoordPredict []float64
	newCurveDict := map[string][]float64{}
	newProbDict := map[string][]float64{}
	newPredictDict := map[string][]float64{}

	for originID, curveList := range c.Arrival.OriginCurveDict {
		originTrajs := curvemath.Sum(curveList)
		originProportion := originTrajs / maxFloat(totalTrajs, 1e-9)
		upstream := net.GetMovementTODCurve(originID, todName)

		if upstream == nil || originProportion <= minProp {
			uncoordCurve = addInto(uncoordCurve, curveList)
			if probList, ok := c.Arrival.OriginProbDict[originID]; ok {
				uncoordProb = addInto(uncoordProb, probList)
			}
			if predictList, ok := c.Arrival.OriginPredictDict[originID]; ok {
				uncoordPredict = addInto(uncoordPredict, predictList)
			}
			continue
		}

		newCurveDict[originID] = curveList
		if probList, ok := c.Arrival.OriginProbDict[originID]; ok {
			newProbDict[originID] = probList
		}
		if predictList, ok := c.Arrival.OriginPredictDict[originID]; ok {
			newPredictDict[originID] = predictList
		}
	}

	if uncoordProb != nil {
		newProbDict[nullOrigin] = uncoordProb
	}
	if uncoordCurve != nil {
		newCurveDict[nullOrigin] = uncoordCurve
	}
	if uncoordPredict != nil {
		newPredictDict[nullOrigin] = uncoordPredict
	}

	c.Arrival.OriginCurveDict = newCurveDict
	c.Arrival.OriginProbDict = newProbDict
	c.Arrival.OriginPredictDict = newPredictDict

	upstreamList := make([]string, 0, len(newCurveDict))
	for id := range newCurveDict {
		if id == nullOrigin {
			continue
		}
		upstreamList = append(upstreamList, id)
	}
	sort.Strings(upstreamList)
	c.UpstreamMovementList = upstreamList
}

// CalibrateMovementArrival merges minor origins and then, for every
// remaining resolved origin, fits a diverge proportion and an optimal time
// shift of the upstream movement's aggregated departure curve against this
// movement's per-origin arrival curve, recording the result in
// c.OriginDivergeDict / OriginShiftDict / OriginErrorDict
// (movement_arrival_calibration).
func CalibrateMovementArrival(net NetworkLookup, c *movement.Curve, useProb, upstreamPredict bool, minProp float64) {
	MergeMinorOrigins(net, c, minProp)
	todName := c.TODName

	for originID := range c.Arrival.OriginCurveDict {
		if originID == nullOrigin {
			continue
		}
		upstream := net.GetMovementTODCurve(originID, todName)
		if upstream == nil {
			continue
		}

		var upstreamDeparture, downstreamArrival []float64
		if !useProb {
			upstreamDeparture = upstream.Departure.AggCurveList
			downstreamArrival = c.Arrival.OriginCurveDict[originID]
		} else {
			upstreamDeparture = upstream.Departure.AggProbList
			downstreamArrival = c.Arrival.OriginProbDict[originID]
		}
		if upstreamPredict {
			if upstream.Departure.AggPredictList != nil {
				upstreamDeparture = upstream.Departure.AggPredictList
			} else {
				upstreamDeparture = upstream.Departure.AggProbList
			}
		}
		if len(upstreamDeparture) == 0 || len(downstreamArrival) == 0 {
			continue
		}

		divergeProportion := curvemath.Sum(downstreamArrival) / maxFloat(curvemath.Sum(upstreamDeparture), 0.1)
		divergeProportion = clamp01(divergeProportion)

		scaledUpstream := make([]float64, len(upstreamDeparture))
		for i, v := range upstreamDeparture {
			scaledUpstream[i] = v * divergeProportion
		}

		optimalShift, errVal := curvemath.OptimalShift(downstreamArrival, scaledUpstream)

		c.OriginDivergeDict[originID] = divergeProportion
		c.OriginShiftDict[originID] = float64(int(optimalShift))
		c.OriginErrorDict[originID] = errVal
	}
}

func addInto(acc, xs []float64) []float64 {
	if acc == nil {
		return append([]float64(nil), xs...)
	}
	for i, x := range xs {
		if i < len(acc) {
			acc[i] += x
		}
	}
	return acc
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
