package introspect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"corridorsolve/internal/artifact"
	"corridorsolve/internal/movement"
	"corridorsolve/internal/network"
)

func TestServeStateReturnsArtifactDocument(t *testing.T) {
	Convey("Given a server over a network with one movement", t, func() {
		n := network.New()
		n.TODDict["AM"] = network.TODWindow{StartHour: 6, EndHour: 9}
		n.AddMovementTODCurve(movement.New("m1", "AM"))

		srv := NewServer(":0", n, nil)

		req := httptest.NewRequest(http.MethodGet, "/state", nil)
		rec := httptest.NewRecorder()
		srv.serveState(rec, req)

		Convey("It returns a 200 with a decodable artifact document", func() {
			So(rec.Code, ShouldEqual, http.StatusOK)
			var doc artifact.Document
			err := json.Unmarshal(rec.Body.Bytes(), &doc)
			So(err, ShouldBeNil)
			So(doc.Movements, ShouldContainKey, "m1")
		})
	})
}

func TestServeShutsDownOnContextCancel(t *testing.T) {
	Convey("Given a running server", t, func() {
		n := network.New()
		srv := NewServer("127.0.0.1:0", n, nil)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx) }()
		cancel()

		Convey("Serve returns without error once cancelled", func() {
			err := <-done
			So(err, ShouldBeNil)
		})
	})
}
