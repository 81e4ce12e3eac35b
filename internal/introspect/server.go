// Package introspect serves the current network state and live
// super-iteration progress for an external observer, never a rendered
// page: plotting stays out of scope, this just exposes JSON.
package introspect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"corridorsolve/internal/artifact"
	"corridorsolve/internal/network"
	"corridorsolve/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait      = 1 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Server exposes a MovementNetDict's state over HTTP and streams
// telemetry.MovementSnapshot batches over a websocket.
type Server struct {
	addr     string
	net      *network.MovementNetDict
	reporter *telemetry.ChannelReporter
}

// NewServer builds a Server over net, fed by reporter (typically the same
// telemetry.ChannelReporter passed to PredictionOptions.Reporter).
func NewServer(addr string, net *network.MovementNetDict, reporter *telemetry.ChannelReporter) *Server {
	return &Server{addr: addr, net: net, reporter: reporter}
}

// Serve blocks, serving /state and /ws until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	r := mux.NewRouter()
	r.HandleFunc("/state", s.serveState).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.serveWebsocket)

	httpServer := &http.Server{Addr: s.addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("introspect: serve: %w", err)
	}
	return nil
}

// serveState dumps the current network as the §6 artifact document.
func (s *Server) serveState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	if err := enc.Encode(artifact.ToDocument(s.net)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// serveWebsocket streams throttled batches of movement snapshots from the
// server's reporter to a single connected client, mirroring the teacher's
// publishEleUpdates ping/pong/write-deadline shape.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		log.Println("introspect: upgrade:", err)
		return
	}
	defer closeWebsocket(ws)

	if s.reporter == nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	batches := telemetry.Throttle(ctx.Done(), s.reporter.Updates(), 100*time.Millisecond)

	pong := make(chan struct{})
	ws.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	lastPong := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(lastPong) > pingPeriod*2 {
				return
			}
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-pong:
			lastPong = time.Now()
		case batch, ok := <-batches:
			if !ok {
				return
			}
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := ws.WriteJSON(batch); err != nil {
				return
			}
		}
	}
}

func closeWebsocket(ws *websocket.Conn) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()
}
