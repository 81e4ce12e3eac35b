package artifact

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"corridorsolve/internal/capacity"
	"corridorsolve/internal/movement"
	"corridorsolve/internal/network"
	"corridorsolve/internal/signal"
)

func buildNet() *network.MovementNetDict {
	n := network.New()
	n.Resolution = 2
	n.DepartureRepeats = 3
	n.DateList = []string{"2024-01-01", "2024-01-02"}
	n.TODDict["AM"] = network.TODWindow{StartHour: 6, EndHour: 9}

	c := movement.New("m1", "AM")
	c.MovementIndex = 2
	c.JunctionID = "j1"
	c.CycleLength = 20
	c.GreenTime = []signal.GreenInterval{{Start: 0, Duration: 10}}
	c.Arrival.Dimension = 10
	c.Arrival.CurveList = []float64{1, 2, 3, 0, 0, 0, 0, 0, 0, 0}
	c.Departure.Dimension = 10
	c.Departure.ExtendCycles = 1
	c.Departure.CurveList = []float64{0, 1, 2, 3, 0, 0, 0, 0, 0, 0}
	rate := 0.5
	c.PenetrationRate = &rate
	c.TotalTrajs = 6
	n.AddMovementTODCurve(c)
	return n
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	Convey("Given a network saved to disk", t, func() {
		n := buildNet()
		path := filepath.Join(t.TempDir(), "artifact.json")
		err := Save(path, n)
		So(err, ShouldBeNil)

		Convey("Loading it back reconstructs the same movement", func() {
			loaded, err := Load(path)
			So(err, ShouldBeNil)
			So(loaded.Resolution, ShouldEqual, 2)
			So(loaded.DepartureRepeats, ShouldEqual, 3)
			So(loaded.DateList, ShouldResemble, []string{"2024-01-01", "2024-01-02"})
			So(loaded.TODDict["AM"].StartHour, ShouldEqual, 6)
			So(loaded.TODDict["AM"].EndHour, ShouldEqual, 9)

			got := loaded.GetMovementTODCurve("m1", "AM")
			So(got, ShouldNotBeNil)
			So(got.MovementIndex, ShouldEqual, 2)
			So(got.JunctionID, ShouldEqual, "j1")
			So(got.CycleLength, ShouldEqual, 20)
			So(got.GreenTime, ShouldResemble, []signal.GreenInterval{{Start: 0, Duration: 10}})
			So(got.Arrival.CurveList, ShouldResemble, []float64{1, 2, 3, 0, 0, 0, 0, 0, 0, 0})
			So(got.Departure.CurveList, ShouldResemble, []float64{0, 1, 2, 3, 0, 0, 0, 0, 0, 0})
			So(*got.PenetrationRate, ShouldEqual, 0.5)
			So(got.TotalTrajs, ShouldEqual, 6)
		})
	})
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	Convey("Given a path that does not exist", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))

		Convey("An error is returned", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLoadMalformedJSONReturnsError(t *testing.T) {
	Convey("Given a file that is not valid JSON", t, func() {
		path := filepath.Join(t.TempDir(), "bad.json")
		err := os.WriteFile(path, []byte("{not json"), 0o644)
		So(err, ShouldBeNil)

		_, err = Load(path)

		Convey("An error is returned", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPermissiveTypeRoundTrips(t *testing.T) {
	Convey("Given a movement with a left-turn-permissive type", t, func() {
		n := network.New()
		n.TODDict["AM"] = network.TODWindow{StartHour: 6, EndHour: 9}
		c := movement.New("m2", "AM")
		c.PermissiveType = capacity.LeftTurnPermissive
		n.AddMovementTODCurve(c)

		path := filepath.Join(t.TempDir(), "artifact.json")
		So(Save(path, n), ShouldBeNil)
		loaded, err := Load(path)
		So(err, ShouldBeNil)

		Convey("It survives the round trip", func() {
			got := loaded.GetMovementTODCurve("m2", "AM")
			So(got.PermissiveType.String(), ShouldEqual, "lt_turn_permissive")
		})
	})
}
