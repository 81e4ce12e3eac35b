package movement

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"corridorsolve/internal/capacity"
	"corridorsolve/internal/signal"
)

func closeEnough(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDepartureCurveAggCurves(t *testing.T) {
	Convey("Given a departure curve spanning two cycles", t, func() {
		d := DepartureCurve{
			ProbList:     []float64{1, 2, 3, 4, 5, 6},
			Dimension:    6,
			ExtendCycles: 2,
		}
		d.AggCurves()

		Convey("AggProbList folds the two cycles together", func() {
			So(d.AggProbList, ShouldResemble, []float64{5, 7, 9})
		})
	})
}

func TestNewCurveDefaults(t *testing.T) {
	Convey("Given a freshly constructed curve", t, func() {
		c := New("m1", "AM")

		Convey("Physical defaults match the reference model", func() {
			So(c.SatFlowPerLane(), ShouldEqual, 1800)
			So(c.EquivalentLaneNumber(), ShouldEqual, 1)
			So(c.GapAcceptance, ShouldEqual, 10)
			So(c.Resolution, ShouldEqual, 3)
		})
	})
}

func buildSaturatedMovement() *Curve {
	c := New("m1", "AM")
	c.CycleLength = 20
	c.Resolution = 1
	c.DepartureCycles = 1
	c.GreenTime = []signal.GreenInterval{{Start: 0, Duration: 18}}
	c.BinaryGreen = true
	c.YellowChangeInterval = 2
	c.Arrival.Dimension = 20
	c.Departure.Dimension = 20
	c.Departure.ExtendCycles = 1

	probList := make([]float64, 20)
	for i := range probList {
		probList[i] = 0.3
	}
	c.Arrival.ProbList = probList
	c.Departure.ProbList = make([]float64, 20)
	return c
}

func TestSolveDepartureCurveConverges(t *testing.T) {
	Convey("Given a saturated single-cycle movement with no conflicts", t, func() {
		c := buildSaturatedMovement()
		SolveDepartureCurve(c, nil, DefaultSolveParams())

		Convey("The predicted departure curve conserves the arriving mass", func() {
			arrived := curvemathSum(c.Arrival.ProbList)
			departed := curvemathSum(c.Departure.PredictList)
			So(closeEnough(arrived, departed, 1e-6), ShouldBeTrue)
		})

		Convey("The stop ratio is a valid probability", func() {
			So(c.PredictedStopRatio, ShouldBeGreaterThanOrEqualTo, 0)
			So(c.PredictedStopRatio, ShouldBeLessThanOrEqualTo, 1.0001)
		})

		Convey("Predicted delay is non-negative", func() {
			So(c.PredictedDelay, ShouldBeGreaterThanOrEqualTo, -1e-6)
		})
	})
}

func TestSolveDepartureCurveWithConflict(t *testing.T) {
	Convey("Given a permissive left-turn movement with a saturated conflict", t, func() {
		c := buildSaturatedMovement()
		c.PermissiveType = capacity.LeftTurnPermissive

		conflict := New("conflict", "AM")
		conflict.CycleLength = 20
		conflict.Resolution = 1
		conflict.DepartureCycles = 1
		conflict.Arrival.Dimension = 20
		conflict.Departure.Dimension = 20
		conflict.Departure.ExtendCycles = 1
		conflict.Departure.PredictList = make([]float64, 20)
		for i := range conflict.Departure.PredictList {
			conflict.Departure.PredictList[i] = 1
		}
		signalState := make([]float64, 20)
		for i := range signalState {
			signalState[i] = 1
		}
		conflict.signalState = signalState

		SolveDepartureCurve(c, []capacity.ConflictingMovement{conflict}, DefaultSolveParams())

		Convey("Permissive capacity is computed against the conflict", func() {
			So(c.PermissiveCapacityList, ShouldNotBeNil)
		})
	})
}

func buildSeedScenarioMovement(arrivalProb float64) *Curve {
	c := New("m1", "AM")
	c.CycleLength = 30
	c.Resolution = 3
	c.DepartureCycles = 1
	c.GreenTime = []signal.GreenInterval{{Start: 0, Duration: 15}}
	c.YellowChangeInterval = 3
	c.Arrival.Dimension = 10
	c.Departure.Dimension = 10
	c.Departure.ExtendCycles = 1
	rate := 1.0
	c.PenetrationRate = &rate

	probList := make([]float64, 10)
	for i := range probList {
		probList[i] = arrivalProb
	}
	c.Arrival.ProbList = probList
	c.Departure.ProbList = make([]float64, 10)
	return c
}

func TestSeedScenarioS1Identity(t *testing.T) {
	Convey("Given a single isolated movement with uniform light demand", t, func() {
		c := buildSeedScenarioMovement(0.1)
		SolveDepartureCurve(c, nil, DefaultSolveParams())

		Convey("predict_list conserves the arriving mass", func() {
			So(closeEnough(curvemathSum(c.Departure.PredictList), 1.0, 1e-6), ShouldBeTrue)
		})

		Convey("predicted delay falls within the reference band", func() {
			So(c.PredictedDelay, ShouldBeGreaterThanOrEqualTo, 3.0)
			So(c.PredictedDelay, ShouldBeLessThanOrEqualTo, 9.0)
		})

		Convey("predicted stop ratio falls within the reference band", func() {
			So(c.PredictedStopRatio, ShouldBeGreaterThanOrEqualTo, 0.4)
			So(c.PredictedStopRatio, ShouldBeLessThanOrEqualTo, 0.6)
		})
	})
}

func TestSeedScenarioS2Saturated(t *testing.T) {
	Convey("Given a single isolated movement with saturated demand", t, func() {
		c := buildSeedScenarioMovement(1.0)
		SolveDepartureCurve(c, nil, DefaultSolveParams())

		Convey("predicted stop ratio is high", func() {
			So(c.PredictedStopRatio, ShouldBeGreaterThan, 0.9)
		})

		Convey("the last bin absorbs substantial residual demand", func() {
			last := c.Departure.PredictList[len(c.Departure.PredictList)-1]
			So(last, ShouldBeGreaterThan, 0.3)
		})
	})
}

func TestCalibrationDiff(t *testing.T) {
	Convey("Given a movement with matching predicted and ground-truth metrics", t, func() {
		c := New("m1", "AM")
		c.PredictedStopRatio = 0.5
		c.PredictedDelay = 10
		c.TotalControlDelay = 10
		c.TotalStoppedTrajs = 0.5
		c.TotalTrajs = 1

		Convey("The residual is zero", func() {
			So(closeEnough(CalibrationDiff(c, 1), 0, 1e-9), ShouldBeTrue)
		})
	})
}
