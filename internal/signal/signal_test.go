package signal

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"corridorsolve/internal/capacity"
)

func TestSignalStateListBinaryGreen(t *testing.T) {
	Convey("Given a single binary-green phase covering most of the cycle", t, func() {
		p := Params{
			Resolution:           1,
			CycleLength:          20,
			GreenTime:            []GreenInterval{{Start: 0, Duration: 18}},
			YellowChangeInterval: 3,
			BinaryGreen:          true,
		}
		states := SignalStateList(p, 20)

		Convey("Every state is either exactly 0 or exactly 1", func() {
			for _, s := range states {
				So(s == 0 || s == 1, ShouldBeTrue)
			}
		})
	})
}

func TestSignalStateListSmoothedGreen(t *testing.T) {
	Convey("Given a smoothed green phase in the middle of the cycle", t, func() {
		p := Params{
			Resolution:           1,
			CycleLength:          20,
			GreenTime:            []GreenInterval{{Start: 5, Duration: 10}},
			YellowChangeInterval: 3,
			ClearanceInterval:    1,
			EffectiveGreenChange: 0,
		}
		states := SignalStateList(p, 20)

		Convey("The deep green interior reaches full probability", func() {
			maxState := 0.0
			for _, s := range states {
				if s > maxState {
					maxState = s
				}
			}
			So(maxState, ShouldBeGreaterThan, 0.9)
		})

		Convey("All states lie within [0,1]", func() {
			for _, s := range states {
				So(s, ShouldBeGreaterThanOrEqualTo, 0)
				So(s, ShouldBeLessThanOrEqualTo, 1.0001)
			}
		})
	})
}

func TestSignalStateListProtectedLeftTurnSkipsStartupLoss(t *testing.T) {
	Convey("Given a protected left-turn phase", t, func() {
		base := Params{
			Resolution:           1,
			CycleLength:          20,
			GreenTime:            []GreenInterval{{Start: 5, Duration: 10}},
			YellowChangeInterval: 3,
			ClearanceInterval:    1,
		}
		protected := base
		protected.PermissiveType = capacity.LeftTurnProtected

		protectedStates := SignalStateList(protected, 20)
		unprotectedStates := SignalStateList(base, 20)

		Convey("The protected phase reaches near-full green at least as early as the unprotected one", func() {
			foundProtected := firstAbove(protectedStates, 0.999)
			foundUnprotected := firstAbove(unprotectedStates, 0.999)
			So(foundProtected, ShouldBeGreaterThanOrEqualTo, 0)
			So(foundUnprotected, ShouldBeGreaterThanOrEqualTo, 0)
			So(foundProtected, ShouldBeLessThanOrEqualTo, foundUnprotected)
		})
	})
}

func firstAbove(xs []float64, threshold float64) int {
	for i, x := range xs {
		if x >= threshold {
			return i
		}
	}
	return -1
}
