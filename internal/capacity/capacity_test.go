package capacity

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func closeEnough(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

type fakeConflict struct {
	signal         []float64
	departure      []float64
	satFlowPerLane float64
	lanes          float64
}

func (f fakeConflict) SignalStateList() []float64 { return f.signal }
func (f fakeConflict) AggregatedDepartureList(usePrediction bool) []float64 {
	return f.departure
}
func (f fakeConflict) SatFlowPerLane() float64       { return f.satFlowPerLane }
func (f fakeConflict) EquivalentLaneNumber() float64 { return f.lanes }

func TestPermissiveCapacityNoConflicts(t *testing.T) {
	Convey("Given no conflicting movements", t, func() {
		cap, leftover := PermissiveCapacity(nil, 3, 1, 5, 2, true)
		Convey("Both lists are nil", func() {
			So(cap, ShouldBeNil)
			So(leftover, ShouldBeNil)
		})
	})
}

func TestPermissiveCapacityNeverSignaledConflict(t *testing.T) {
	Convey("Given a conflicting movement with no signal presence and no departures", t, func() {
		conflict := fakeConflict{
			signal:         []float64{0, 0, 0, 0, 0},
			departure:      []float64{0, 0, 0, 0, 0},
			satFlowPerLane: 1800,
			lanes:          1,
		}
		cap, leftover := PermissiveCapacity([]ConflictingMovement{conflict}, 2, 1, 5, 1, true)

		Convey("Permissive capacity is zero (no conflicting presence to leave a scored gap)", func() {
			for _, v := range cap {
				So(closeEnough(v, 0, 1e-9), ShouldBeTrue)
			}
		})

		Convey("Leftover capacity is zero", func() {
			for _, v := range leftover {
				So(closeEnough(v, 0, 1e-9), ShouldBeTrue)
			}
		})
	})
}

func TestPermissiveCapacityGreenButUndepartedConflict(t *testing.T) {
	Convey("Given a conflicting movement signaled green throughout with nothing actually departing", t, func() {
		conflict := fakeConflict{
			signal:         []float64{1, 1, 1, 1, 1},
			departure:      []float64{0, 0, 0, 0, 0},
			satFlowPerLane: 1800,
			lanes:          1,
		}
		cap, _ := PermissiveCapacity([]ConflictingMovement{conflict}, 2, 1, 5, 1, true)

		Convey("Permissive capacity is 1 at every step unaffected by the gap window's edge", func() {
			So(closeEnough(cap[4], 1, 1e-9), ShouldBeTrue)
		})

		Convey("Permissive capacity also reaches 1 at the start of the cycle, where the gap window wraps circularly into the prior cycle's tail instead of being zero-filled", func() {
			So(closeEnough(cap[0], 1, 1e-9), ShouldBeTrue)
		})
	})
}

func TestPermissiveCapacitySaturatedConflict(t *testing.T) {
	Convey("Given a conflicting movement with permanent green and full departure", t, func() {
		conflict := fakeConflict{
			signal:         []float64{1, 1, 1, 1, 1},
			departure:      []float64{1, 1, 1, 1, 1},
			satFlowPerLane: 1800,
			lanes:          1,
		}
		cap, _ := PermissiveCapacity([]ConflictingMovement{conflict}, 2, 1, 5, 1, true)

		Convey("No permissive gap is ever available", func() {
			for _, v := range cap {
				So(closeEnough(v, 0, 1e-9), ShouldBeTrue)
			}
		})
	})
}

func TestPermissiveCapacityTrailingEdgeWrapsToPriorCycle(t *testing.T) {
	Convey("Given a conflicting movement whose trailing green edge falls at the end of the cycle", t, func() {
		conflict := fakeConflict{
			signal:         []float64{0.5, 0, 0, 0, 0.9},
			departure:      []float64{0, 0, 0, 0, 0},
			satFlowPerLane: 1800,
			lanes:          1,
		}
		cap, _ := PermissiveCapacity([]ConflictingMovement{conflict}, 1, 1, 5, 1, true)

		Convey("The dying-green override applies at step 0 by wrapping into signal[-1]", func() {
			So(closeEnough(cap[0], 1, 1e-9), ShouldBeTrue)
		})
	})
}

func TestCapacityStateProtectedDefault(t *testing.T) {
	Convey("Given no permissive interaction", t, func() {
		signal := []float64{0, 1, 1, 0}
		got := CapacityState(signal, nil, None, 1.0)
		Convey("Capacity state equals the signal state", func() {
			So(got, ShouldResemble, signal)
		})
	})
}

func TestCapacityStateLeftTurnPermissive(t *testing.T) {
	Convey("Given a left-turn-permissive movement with borrowed capacity", t, func() {
		signal := []float64{0, 1, 1, 0}
		permissive := []float64{0.1, 0.2, 0.3, 0.4}
		got := CapacityState(signal, permissive, LeftTurnPermissive, 0.5)

		Convey("Capacity scales the conflicting capacity by the permissive factor while green", func() {
			So(closeEnough(got[1], 0.1, 1e-9), ShouldBeTrue)
			So(closeEnough(got[2], 0.15, 1e-9), ShouldBeTrue)
		})

		Convey("Capacity falls back to the raw signal state while not green", func() {
			So(got[0], ShouldEqual, 0)
			So(got[3], ShouldEqual, 0)
		})
	})
}

func TestPermissiveTypeString(t *testing.T) {
	Convey("Each PermissiveType stringifies to its snake_case name", t, func() {
		So(None.String(), ShouldEqual, "none")
		So(LeftTurnPermissive.String(), ShouldEqual, "lt_turn_permissive")
		So(LeftTurnProtected.String(), ShouldEqual, "lt_turn_protected")
		So(ProtectedPermissive.String(), ShouldEqual, "protected_permissive")
	})
}
