// Package network implements the corridor-wide movement collection
// (MovementNetDict) and the topological network solver of spec.md §4.8
// (component C8), plus its supplemented housekeeping operations
// (Aggregate, CheckNetworkTopology; the minor-origin merge itself is
// calibration.MergeMinorOrigins).
package network

import (
	"fmt"
	"sort"

	"corridorsolve/internal/calibration"
	"corridorsolve/internal/capacity"
	"corridorsolve/internal/curvemath"
	"corridorsolve/internal/movement"
)

// TODWindow is the real-clock hour span a time-of-day label covers, used
// to convert raw histograms into hourly-rate probability curves.
type TODWindow struct {
	StartHour float64
	EndHour   float64
}

// MovementNetDict is the corridor-wide collection of movement curves,
// keyed first by movement id and then by time-of-day label.
type MovementNetDict struct {
	Dict             map[string]map[string]*movement.Curve
	Resolution       float64
	DepartureRepeats int
	DateList         []string
	TODDict          map[string]TODWindow
}

// New returns an empty MovementNetDict.
func New() *MovementNetDict {
	return &MovementNetDict{
		Dict:    map[string]map[string]*movement.Curve{},
		TODDict: map[string]TODWindow{},
	}
}

// AddMovementTODCurve registers a movement curve under its own movement id
// and time-of-day name.
func (n *MovementNetDict) AddMovementTODCurve(c *movement.Curve) {
	if n.Dict[c.MovementID] == nil {
		n.Dict[c.MovementID] = map[string]*movement.Curve{}
	}
	n.Dict[c.MovementID][c.TODName] = c
}

// GetMovementTODCurve resolves a movement id/time-of-day pair, or nil if
// absent. It satisfies calibration.NetworkLookup.
func (n *MovementNetDict) GetMovementTODCurve(movementID, todName string) *movement.Curve {
	todDict, ok := n.Dict[movementID]
	if !ok {
		return nil
	}
	return todDict[todName]
}

func (n *MovementNetDict) sortedMovementIDs() []string {
	ids := make([]string, 0, len(n.Dict))
	for id := range n.Dict {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (n *MovementNetDict) conflictingMovements(c *movement.Curve, todName string) []capacity.ConflictingMovement {
	if c.ConflictingMovementList == nil {
		return nil
	}
	var out []capacity.ConflictingMovement
	for _, id := range c.ConflictingMovementList {
		if cm := n.GetMovementTODCurve(id, todName); cm != nil {
			out = append(out, cm)
		}
	}
	return out
}

// Aggregate combines this dict with another covering different dates,
// summing per-movement histograms and recomputing the volume-weighted
// average free-flow speed (aggregate).
func (n *MovementNetDict) Aggregate(other *MovementNetDict) (*MovementNetDict, error) {
	if n.Resolution != other.Resolution {
		return nil, fmt.Errorf("network: cannot aggregate dicts with different resolutions (%v vs %v)",
			n.Resolution, other.Resolution)
	}
	merged := New()
	merged.DateList = append(append([]string{}, n.DateList...), other.DateList...)
	merged.Resolution = n.Resolution
	merged.DepartureRepeats = n.DepartureRepeats
	merged.TODDict = n.TODDict

	for _, movementID := range n.sortedMovementIDs() {
		for todName := range n.Dict[movementID] {
			local := n.GetMovementTODCurve(movementID, todName)
			otherCurve := other.GetMovementTODCurve(movementID, todName)
			if otherCurve == nil {
				merged.AddMovementTODCurve(local)
				continue
			}
			merged.AddMovementTODCurve(aggregateCurves(local, otherCurve))
		}
	}
	return merged, nil
}

func aggregateCurves(a, b *movement.Curve) *movement.Curve {
	out := *a
	totalTrajs := a.TotalTrajs + b.TotalTrajs
	if totalTrajs > 0 {
		out.MeasuredFreeV = (a.TotalTrajs*a.MeasuredFreeV + b.TotalTrajs*b.MeasuredFreeV) / totalTrajs
	}
	out.NumberOfDates = a.NumberOfDates + b.NumberOfDates
	out.TotalTrajs = totalTrajs
	out.TotalControlDelay = a.TotalControlDelay + b.TotalControlDelay
	out.TotalStops = a.TotalStops + b.TotalStops
	out.TotalStopDelay = a.TotalStopDelay + b.TotalStopDelay
	out.TotalStoppedTrajs = a.TotalStoppedTrajs + b.TotalStoppedTrajs
	out.Arrival.CurveList = addElementwise(a.Arrival.CurveList, b.Arrival.CurveList)
	out.Departure.CurveList = addElementwise(a.Departure.CurveList, b.Departure.CurveList)
	out.Arrival.RawDataList = append(append([]float64{}, a.Arrival.RawDataList...), b.Arrival.RawDataList...)
	out.Departure.RawDataList = append(append([]float64{}, a.Departure.RawDataList...), b.Departure.RawDataList...)
	return &out
}

func addElementwise(a, b []float64) []float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]float64, n)
	for i, v := range a {
		out[i] += v
	}
	for i, v := range b {
		out[i] += v
	}
	return out
}

// CheckNetworkTopology refreshes every movement's upstream-origin and
// conflicting-movement dependencies against what is actually resolvable in
// this dict (check_network_topology).
func (n *MovementNetDict) CheckNetworkTopology() {
	for _, movementID := range n.sortedMovementIDs() {
		for _, c := range n.Dict[movementID] {
			calibration.MergeMinorOrigins(n, c, 0.001)

			if c.ConflictingMovementList == nil {
				continue
			}
			kept := make([]string, 0, len(c.ConflictingMovementList))
			for _, id := range c.ConflictingMovementList {
				if n.GetMovementTODCurve(id, c.TODName) != nil {
					kept = append(kept, id)
				}
			}
			c.ConflictingMovementList = kept
		}
	}
}

// CalibrateArrivalCurves runs CalibrateMovementArrival over every movement
// matching todName (or all movements, if todName is empty), the way
// arrival_curve_calibration drives movement_arrival_calibration.
func (n *MovementNetDict) CalibrateArrivalCurves(todName string) {
	for _, movementID := range n.sortedMovementIDs() {
		for localTOD, c := range n.Dict[movementID] {
			if todName != "" && localTOD != todName {
				continue
			}
			calibration.CalibrateMovementArrival(n, c, true, false, 0.05)
		}
	}
}

// SetPenetrationRate resolves each movement's penetration rate (per-movement
// override, else global, else the curve's own stored rate), rescales its
// probability curves, and then (if arrivalCalibration) recalibrates arrival
// origins, since the diverge proportions depend on the rescaled curves
// (_set_penetration_rate).
func (n *MovementNetDict) SetPenetrationRate(todName string, globalRate *float64, rateDict map[string]float64, arrivalCalibration bool) error {
	for _, movementID := range n.sortedMovementIDs() {
		for localTOD, c := range n.Dict[movementID] {
			if todName != "" && localTOD != todName {
				continue
			}

			var rate float64
			switch {
			case rateDict != nil && hasRate(rateDict, movementID):
				rate = rateDict[movementID]
			case globalRate != nil:
				rate = *globalRate
			case c.PenetrationRate != nil:
				rate = *c.PenetrationRate
			default:
				return fmt.Errorf("network: penetration rate of movement %s at %s is not set", movementID, localTOD)
			}

			r := rate
			c.PenetrationRate = &r
			window := n.TODDict[localTOD]
			c.UpdateProbCurves(window.StartHour, window.EndHour)
		}
	}
	if arrivalCalibration {
		n.CalibrateArrivalCurves(todName)
	}
	return nil
}

func hasRate(m map[string]float64, key string) bool {
	_, ok := m[key]
	return ok
}

const nullOrigin = "null"

// PredictMovementArrival recomputes a movement's predicted arrival curve as
// the sum, across its origins, of each upstream movement's aggregated
// departure curve shifted and scaled by that origin's calibrated shift and
// diverge proportion (_movement_arrival_prediction). The "null" origin
// contributes its own prob curve, clipped to [0,1], with no shift or
// scaling.
func (n *MovementNetDict) PredictMovementArrival(c *movement.Curve, fromUpstream, fromUpstreamPrediction bool) []float64 {
	predictDict := map[string][]float64{}
	var overall []float64

	accumulate := func(local []float64) {
		if overall == nil {
			overall = append([]float64(nil), local...)
			return
		}
		for i, v := range local {
			if i < len(overall) {
				overall[i] += v
			}
		}
	}

	for originID, originList := range c.Arrival.OriginProbDict {
		if originID == nullOrigin {
			local := curvemath.Clip(originList, 0, 1)
			predictDict[originID] = originList
			accumulate(local)
			continue
		}
		if !fromUpstream {
			local := curvemath.Clip(originList, 0, 1)
			predictDict[originID] = local
			accumulate(local)
			continue
		}

		upstream := n.GetMovementTODCurve(originID, c.TODName)
		if upstream == nil {
			continue
		}
		scaleCoefficient := c.OriginDivergeDict[originID]
		shiftVal := c.OriginShiftDict[originID]

		var aggArrival []float64
		if fromUpstreamPrediction && upstream.Departure.AggPredictList != nil {
			aggArrival = upstream.Departure.AggPredictList
		} else {
			aggArrival = upstream.Departure.AggProbList
		}
		transformed := curvemath.ShiftBy(aggArrival, shiftVal)
		local := make([]float64, len(transformed))
		for i, v := range transformed {
			local[i] = v * scaleCoefficient
		}
		local = curvemath.Clip(local, 0, 1)
		predictDict[originID] = local
		accumulate(local)
	}

	if overall != nil {
		c.Arrival.PredictList = overall
		c.Arrival.OriginPredictDict = predictDict
	}
	return overall
}
