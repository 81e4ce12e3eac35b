package curvemath

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func closeEnough(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestShiftBy(t *testing.T) {
	Convey("Given a simple curve", t, func() {
		xs := []float64{1, 2, 3, 4, 5}

		Convey("Shifting by an integer amount rotates the curve", func() {
			shifted := ShiftBy(xs, 2)
			So(shifted, ShouldResemble, []float64{4, 5, 1, 2, 3})
		})

		Convey("Shifting preserves total mass within epsilon", func() {
			shifted := ShiftBy(xs, 1.7)
			So(closeEnough(Sum(shifted), Sum(xs), 1e-9), ShouldBeTrue)
		})

		Convey("Shifting by an integer s then by -s returns the original curve", func() {
			shifted := ShiftBy(xs, 3)
			back := ShiftBy(shifted, -3)
			for i := range xs {
				So(closeEnough(back[i], xs[i], 1e-9), ShouldBeTrue)
			}
		})

		Convey("Shifting by zero integer part still blends with a one-step rotation", func() {
			shifted := ShiftBy(xs, 0.5)
			want := make([]float64, len(xs))
			rot1 := rotateRight(xs, 1)
			for i := range xs {
				want[i] = 0.5*xs[i] + 0.5*rot1[i]
			}
			So(shifted, ShouldResemble, want)
		})
	})
}

func TestIntegral(t *testing.T) {
	Convey("Given a curve of three bins", t, func() {
		xs := []float64{1, 1, 1}
		Convey("The time-weighted cumulative sum uses a (k+1) offset", func() {
			got := Integral(xs)
			So(got, ShouldResemble, []float64{1, 3, 6})
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Given a departure-domain curve spanning two cycles", t, func() {
		xs := []float64{1, 2, 3, 4, 5, 6}
		Convey("Aggregate folds the repeats by summing slices", func() {
			got := Aggregate(xs, 2)
			So(got, ShouldResemble, []float64{5, 7, 9})
		})
	})
}

func TestOptimalShift(t *testing.T) {
	Convey("Given a target that is a known rotation of the moving curve", t, func() {
		moving := []float64{0, 0, 1, 0, 0, 0, 0, 0, 0, 0}
		target := rotateRight(moving, 3)
		Convey("OptimalShift finds the exact integer rotation that minimizes error", func() {
			shift, errVal := OptimalShift(target, moving)
			So(shift, ShouldEqual, 3)
			So(errVal, ShouldBeLessThan, 1e-6)
		})
	})
}

func TestGaussianCDF(t *testing.T) {
	Convey("At the mean, the Gaussian CDF is 0.5", t, func() {
		So(closeEnough(GaussianCDF(2.5, 2.5, 1), 0.5, 1e-9), ShouldBeTrue)
	})
	Convey("Far below the mean, the Gaussian CDF approaches 0", t, func() {
		So(GaussianCDF(-10, 2.5, 1), ShouldBeLessThan, 1e-6)
	})
	Convey("Far above the mean, the Gaussian CDF approaches 1", t, func() {
		So(GaussianCDF(20, 2.5, 1), ShouldBeGreaterThan, 1-1e-6)
	})
}

func TestLaneSatAdjust(t *testing.T) {
	Convey("Default saturation flow and a single lane leave the curve unchanged", t, func() {
		xs := []float64{1, 2, 3}
		got := LaneSatAdjust(1800, 1, xs)
		So(got, ShouldResemble, xs)
	})
	Convey("Two lanes double the curve", t, func() {
		xs := []float64{1, 2, 3}
		got := LaneSatAdjust(1800, 2, xs)
		So(got, ShouldResemble, []float64{2, 4, 6})
	})
}

func TestClip(t *testing.T) {
	Convey("Clip clamps values outside [0,1]", t, func() {
		got := Clip([]float64{-0.5, 0.5, 1.5}, 0, 1)
		So(got, ShouldResemble, []float64{0, 0.5, 1})
	})
}
