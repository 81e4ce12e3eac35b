package movement

import (
	"corridorsolve/internal/capacity"
	"corridorsolve/internal/signal"
)

// Curve is the full movement-level state: SPaT geometry, physical
// parameters, conflicting-movement relationships, and the arrival/departure
// curves themselves (spec.md §3).
type Curve struct {
	MovementID    string
	MovementIndex int
	JunctionID    string
	TODName       string
	Resolution    float64

	DepartureCycles int
	NumberOfDates   int

	Arrival   ArrivalCurve
	Departure DepartureCurve

	CycleLength          float64
	Offset               float64
	GreenTime            []signal.GreenInterval
	AdditionalOffset     float64
	GreenStartShift      float64
	EffectiveGreenChange float64
	YellowChangeInterval float64
	ClearanceInterval    float64
	BinaryGreen          bool

	satFlowPerLane         float64
	LaneNumber             float64
	equivalentLaneNumber   float64
	ShareLaneMovements     []string
	ShareApproachMovements []string
	UpstreamMovementList   []string
	UpstreamLength         float64

	ConflictingMovementList []string
	PermissiveType          capacity.PermissiveType
	GapAcceptance           float64
	PermissiveCapacityList  []float64
	LeftoverCapacityList    []float64

	signalState       []float64
	CapacityStateList []float64

	TotalTrajs        float64
	TotalStops        float64
	TotalStoppedTrajs float64
	TotalControlDelay float64
	TotalStopDelay    float64
	MeasuredFreeV     float64
	histAvgDelay      float64

	PMFList         [][]float64
	CapacityList    []float64
	EffCapacityList []float64

	PenetrationRate           *float64
	DepartureCalibrationError float64
	ArrivalCalibrationError   float64
	HourlyVolume              float64
	PredictedDelay            float64
	PredictedStopRatio        float64

	OriginDivergeDict map[string]float64
	OriginShiftDict   map[string]float64
	OriginErrorDict   map[string]float64
}

// New returns a Curve with the physical defaults of movement_tod_classes.py.
func New(movementID, todName string) *Curve {
	return &Curve{
		MovementID:           movementID,
		TODName:              todName,
		Resolution:           3,
		satFlowPerLane:       1800,
		LaneNumber:           1,
		equivalentLaneNumber: 1,
		GapAcceptance:        10,
		OriginDivergeDict:    map[string]float64{},
		OriginShiftDict:      map[string]float64{},
		OriginErrorDict:      map[string]float64{},
	}
}

// SatFlowPerLane satisfies capacity.ConflictingMovement.
func (c *Curve) SatFlowPerLane() float64 { return c.satFlowPerLane }

// SetSatFlowPerLane sets the per-lane saturation flow rate.
func (c *Curve) SetSatFlowPerLane(v float64) { c.satFlowPerLane = v }

// EquivalentLaneNumber satisfies capacity.ConflictingMovement.
func (c *Curve) EquivalentLaneNumber() float64 { return c.equivalentLaneNumber }

// SetEquivalentLaneNumber sets the equivalent lane count used in capacity
// scaling.
func (c *Curve) SetEquivalentLaneNumber(v float64) { c.equivalentLaneNumber = v }

// SignalStateList satisfies capacity.ConflictingMovement.
func (c *Curve) SignalStateList() []float64 { return c.signalState }

// HistAvgDelay returns the ground-truth average delay computed from the raw
// histograms (as opposed to PredictedDelay, which uses the solved curves).
func (c *Curve) HistAvgDelay() float64 { return c.histAvgDelay }

// AggregatedDepartureList satisfies capacity.ConflictingMovement: it returns
// the one-cycle-folded departure curve. With usePrediction and a
// PredictList present, the final bin of PredictList is zeroed before folding
// (the leftover-mass bin is not part of the repeating pattern a conflicting
// movement presents to others); otherwise AggProbList is returned as it is.
func (c *Curve) AggregatedDepartureList(usePrediction bool) []float64 {
	var source []float64
	if usePrediction && c.Departure.PredictList != nil {
		source = append([]float64(nil), c.Departure.PredictList...)
	} else {
		source = append([]float64(nil), c.Departure.AggProbList...)
		return source
	}
	if len(source) > 0 {
		source[len(source)-1] = 0
	}
	return aggregateFold(source, c.Departure.Dimension, c.Departure.ExtendCycles)
}

func aggregateFold(xs []float64, dimension, extendCycles int) []float64 {
	if len(xs) != dimension || extendCycles <= 0 {
		return xs
	}
	dim1 := dimension / extendCycles
	out := make([]float64, dim1)
	for p := 0; p < extendCycles; p++ {
		for i := 0; i < dim1; i++ {
			out[i] += xs[p*dim1+i]
		}
	}
	return out
}

// UpdateHistCurves rebuilds the arrival/departure dimensions and raw
// histograms from the movement's SPaT timing and its raw trajectory data,
// the way _update_movement_hist_curves does.
func (c *Curve) UpdateHistCurves() {
	c.Arrival.Dimension = ceilDiv(c.CycleLength, c.Resolution)
	c.Departure.Dimension = c.Arrival.Dimension * c.DepartureCycles
	c.Departure.ExtendCycles = c.DepartureCycles

	originCurve := map[string][]float64{}
	for originID, times := range c.Arrival.RawDataDict {
		bins := make([]float64, c.Arrival.Dimension)
		for _, arrivalTime := range times {
			idx := c.cycleIndex(arrivalTime-c.Offset, c.Arrival.Dimension)
			bins[idx]++
		}
		originCurve[originID] = bins
	}
	c.Arrival.OriginCurveDict = originCurve

	arrivalBins := make([]float64, c.Arrival.Dimension)
	departureBins := make([]float64, c.Departure.Dimension)
	for i := range c.Arrival.RawDataList {
		arrivalTime := c.Arrival.RawDataList[i] - c.Offset
		arrivalTimeInCycle := mod(arrivalTime, c.CycleLength)
		shiftTime := arrivalTime - arrivalTimeInCycle
		departureTimeInCycle := c.Departure.RawDataList[i] - shiftTime - c.Offset

		arrivalIdx := int(arrivalTimeInCycle / c.Resolution)
		if arrivalIdx >= c.Arrival.Dimension {
			arrivalIdx = c.Arrival.Dimension - 1
		}
		arrivalBins[arrivalIdx]++

		departureIdx := int(departureTimeInCycle / c.Resolution)
		if departureIdx >= c.Departure.Dimension {
			departureIdx = c.Departure.Dimension - 1
		}
		departureBins[departureIdx]++
	}
	c.Arrival.CurveList = arrivalBins
	c.Departure.CurveList = departureBins
	c.histAvgDelay = EstimateDelay(c, false, false, false)
	c.Departure.AggCurves()
}

func (c *Curve) cycleIndex(t float64, dimension int) int {
	timeInCycle := mod(t, c.CycleLength)
	idx := int(timeInCycle / c.Resolution)
	if idx >= dimension {
		idx = dimension - 1
	}
	return idx
}

// UpdateProbCurves rescales the arrival/departure histograms into
// probability curves given the current penetration rate, number of dates,
// lane count, and saturation flow, matching _update_movement_prob_curves.
func (c *Curve) UpdateProbCurves(todStartHour, todEndHour float64) {
	if c.PenetrationRate == nil {
		return
	}
	totalCyclesDaily := (todEndHour - todStartHour) * 3600 / c.CycleLength
	overallCycles := totalCyclesDaily * float64(c.NumberOfDates) * c.Resolution
	intervalMaxArrival := c.satFlowPerLane * c.equivalentLaneNumber / 3600
	scaleCoefficient := 1 / maxFloat(*c.PenetrationRate*overallCycles*intervalMaxArrival, 1e-3)
	c.Arrival.UpdateProbCurve(scaleCoefficient)
	c.Departure.UpdateProbCurve(scaleCoefficient)
}

func ceilDiv(a, b float64) int {
	n := a / b
	i := int(n)
	if float64(i) < n {
		i++
	}
	return i
}

func mod(a, m float64) float64 {
	r := a - m*float64(int(a/m))
	if r < 0 {
		r += m
	}
	return r
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
